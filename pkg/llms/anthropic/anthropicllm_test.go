package anthropic_test

import (
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/pkg/llms/anthropic"
	"github.com/effective-security/agentic/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New(t *testing.T) {
	tests := []struct {
		name        string
		opts        []anthropic.Option
		wantErr     bool
		errContains string
	}{
		{
			name:        "missing token",
			opts:        []anthropic.Option{anthropic.WithModel("claude-sonnet-4-20250514")},
			wantErr:     true,
			errContains: "missing API key",
		},
		{
			name:        "missing model",
			opts:        []anthropic.Option{anthropic.WithToken("fake-token")},
			wantErr:     true,
			errContains: "model is required",
		},
		{
			name: "valid configuration",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel("claude-sonnet-4-20250514"),
			},
		},
		{
			name: "with custom base URL and client",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel("claude-sonnet-4-20250514"),
				anthropic.WithBaseURL("https://custom.anthropic.com"),
				anthropic.WithHTTPClient(&http.Client{}),
				anthropic.WithAnthropicBetaHeader("beta-feature-1"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(anthropic.TokenEnvVarName, "")

			allm, err := anthropic.New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, allm)
			} else {
				require.NoError(t, err)
				require.NotNil(t, allm)
				assert.NotNil(t, allm.Client)
				assert.Equal(t, llms.ProviderAnthropic, allm.GetProviderType())
			}
		})
	}
}

func Test_New_EnvironmentToken(t *testing.T) {
	t.Setenv(anthropic.TokenEnvVarName, "env-token")

	allm, err := anthropic.New(anthropic.WithModel("claude-sonnet-4-20250514"))
	require.NoError(t, err)
	assert.Equal(t, "env-token", allm.Options.Token)
	assert.Equal(t, "claude-sonnet-4-20250514", allm.GetName())
}

func Test_ProcessMessages(t *testing.T) {
	tests := []struct {
		name         string
		messages     []llms.Message
		wantMessages int
		wantSystem   string
		wantErr      string
	}{
		{
			name: "empty messages",
		},
		{
			name: "system extracted",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful assistant."),
				llms.MessageFromTextParts(llms.RoleHuman, "Hello"),
			},
			wantMessages: 1,
			wantSystem:   "You are a helpful assistant.",
		},
		{
			name: "multiple system messages joined",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful assistant."),
				llms.MessageFromTextParts(llms.RoleSystem, "Always be polite."),
			},
			wantSystem: "You are a helpful assistant.\nAlways be polite.",
		},
		{
			name: "assistant with tool call",
			messages: []llms.Message{
				llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
					ID:   "call_123",
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      "get_weather",
						Arguments: `{"location": "Boston"}`,
					},
				}),
			},
			wantMessages: 1,
		},
		{
			name: "tool result",
			messages: []llms.Message{
				llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
					ToolCallID: "call_123",
					Name:       "get_weather",
					Content:    "sunny, 22C",
				}),
			},
			wantMessages: 1,
		},
		{
			name: "text part in tool message",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleTool, "not a tool response"),
			},
			wantErr: "invalid content type",
		},
		{
			name: "unknown role",
			messages: []llms.Message{
				llms.MessageFromTextParts("narrator", "once upon a time"),
			},
			wantErr: "unsupported message type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, system, err := anthropic.ProcessMessages(tt.messages)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Len(t, messages, tt.wantMessages)
				assert.Equal(t, tt.wantSystem, system)
			}
		})
	}
}

func Test_ProcessMessages_MalformedToolArguments(t *testing.T) {
	// a call with truncated arguments stays in history next to its error
	// result; the conversion substitutes a placeholder input instead of
	// failing the whole next round
	messages := []llms.Message{
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
			ID:   "call_123",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "get_weather",
				Arguments: `{"city":`,
			},
		}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "call_123",
			Name:       "get_weather",
			Content:    "malformed tool arguments",
			IsError:    true,
		}),
	}

	converted, system, err := anthropic.ProcessMessages(messages)
	require.NoError(t, err)
	assert.Empty(t, system)
	require.Len(t, converted, 2)

	require.Len(t, converted[0].Content, 1)
	block := converted[0].Content[0].OfToolUse
	require.NotNil(t, block)
	assert.Equal(t, "call_123", block.ID)
	assert.Equal(t, "get_weather", block.Name)
	assert.Equal(t, json.RawMessage(`{}`), block.Input)
}

func Test_ToTools(t *testing.T) {
	type weatherParams struct {
		Location string `json:"location" jsonschema:"description=The city name"`
	}
	weatherSchema, err := schema.New(reflect.TypeOf(weatherParams{}))
	require.NoError(t, err)

	res, err := anthropic.ToTools(nil)
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = anthropic.ToTools([]llms.Tool{{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "get_weather",
			Description: "Get current weather",
			Parameters:  weatherSchema.Parameters,
		},
	}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.NotNil(t, res[0].OfTool)
	assert.Equal(t, "get_weather", res[0].OfTool.Name)
	assert.Equal(t, "object", string(res[0].OfTool.InputSchema.Type))
	assert.Contains(t, res[0].OfTool.InputSchema.Required, "location")

	// remote tool servers hand over schemas as decoded JSON maps
	res, err = anthropic.ToTools([]llms.Tool{{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name: "echo",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
				"required": []any{"text"},
			},
		},
	}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, res[0].OfTool.InputSchema.Properties, "text")

	_, err = anthropic.ToTools([]llms.Tool{{Type: "function"}})
	assert.ErrorContains(t, err, "has no function definition")
}
