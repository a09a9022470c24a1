package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/x/values"
)

var (
	ErrEmptyResponse          = errors.New("anthropic: no response")
	ErrMissingToken           = errors.New("anthropic: missing API key, set it in the ANTHROPIC_API_KEY environment variable")
	ErrInvalidContentType     = errors.New("anthropic: invalid content type")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
	ErrUnsupportedContentType = errors.New("anthropic: unsupported content type")
)

const (
	DefaultMaxTokens = 4096
)

type LLM struct {
	Client  *anthropic.Client
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Anthropic LLM client using the official Anthropic SDK.
//
// If no token is provided via options, the API key is read from the
// ANTHROPIC_API_KEY environment variable. The model is required.
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		Token:      os.Getenv(TokenEnvVarName),
		BaseURL:    "https://api.anthropic.com",
		HttpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(options)
	}

	if len(options.Token) == 0 {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	c, err := newClient(options)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create client")
	}
	return &LLM{
		Client:  c,
		Options: options,
	}, nil
}

func newClient(options *Options) (*anthropic.Client, error) {
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithMaxRetries(2),
		option.WithRequestTimeout(5 * time.Minute),
	}

	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}

	if options.HttpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HttpClient))
	}

	if options.AnthropicBetaHeader != "" {
		sdkOpts = append(sdkOpts, option.WithHeader("anthropic-beta", options.AnthropicBetaHeader))
	}

	client := anthropic.NewClient(sdkOpts...)

	return &client, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	params, err := o.buildParams(messages, options)
	if err != nil {
		return nil, err
	}

	result, err := o.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}
	if len(result.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := &llms.ContentChoice{
		StopReason: normalizeStopReason(string(result.StopReason)),
	}
	for _, contentBlock := range result.Content {
		switch content := contentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			choice.Content += content.Text
		case anthropic.ThinkingBlock:
			choice.ReasoningContent += content.Thinking
		case anthropic.ToolUseBlock:
			argumentsJSON, err := json.Marshal(content.Input)
			if err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to marshal tool use arguments")
			}
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   content.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      content.Name,
					Arguments: string(argumentsJSON),
				},
			})
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "anthropic: %T", content)
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{choice},
		Usage: &llms.Usage{
			PromptTokens:     int(result.Usage.InputTokens),
			CompletionTokens: int(result.Usage.OutputTokens),
			TotalTokens:      int(result.Usage.InputTokens + result.Usage.OutputTokens),
		},
	}, nil
}

// StreamContent implements the Model interface. SDK events are converted to
// stream chunks: text deltas carry visible text, thinking deltas carry
// reasoning text, and tool-use blocks produce tool-call deltas correlated by
// the content block index.
func (o *LLM) StreamContent(ctx context.Context, messages []llms.Message, fn llms.StreamFunc, options ...llms.CallOption) (*llms.ContentResponse, error) {
	params, err := o.buildParams(messages, options)
	if err != nil {
		return nil, err
	}

	stream := o.Client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var content, reasoning strings.Builder
	var toolCalls []llms.ToolCall
	var currentToolCall *llms.ToolCall
	var stopReason string
	var inputTokens, outputTokens int64

	emit := func(chunk llms.StreamChunk) error {
		if fn == nil {
			return nil
		}
		return fn(ctx, chunk)
	}

	for stream.Next() {
		event := stream.Current()

		switch evt := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			inputTokens = evt.Message.Usage.InputTokens
		case anthropic.ContentBlockStartEvent:
			switch block := evt.ContentBlock.AsAny().(type) {
			case anthropic.ToolUseBlock:
				currentToolCall = &llms.ToolCall{
					ID:   block.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name: block.Name,
					},
				}
				err := emit(llms.StreamChunk{
					ToolCallDeltas: []llms.ToolCallDelta{{
						Index: int(evt.Index),
						ID:    block.ID,
						Name:  block.Name,
					}},
				})
				if err != nil {
					return nil, errors.Wrap(err, "anthropic: streaming function error")
				}
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				content.WriteString(delta.Text)
				if err := emit(llms.StreamChunk{Text: delta.Text}); err != nil {
					return nil, errors.Wrap(err, "anthropic: streaming function error")
				}
			case anthropic.ThinkingDelta:
				reasoning.WriteString(delta.Thinking)
				if err := emit(llms.StreamChunk{ReasoningText: delta.Thinking}); err != nil {
					return nil, errors.Wrap(err, "anthropic: streaming function error")
				}
			case anthropic.InputJSONDelta:
				if currentToolCall != nil {
					currentToolCall.FunctionCall.Arguments += delta.PartialJSON
					err := emit(llms.StreamChunk{
						ToolCallDeltas: []llms.ToolCallDelta{{
							Index:     int(evt.Index),
							Arguments: delta.PartialJSON,
						}},
					})
					if err != nil {
						return nil, errors.Wrap(err, "anthropic: streaming function error")
					}
				}
			}
		case anthropic.ContentBlockStopEvent:
			if currentToolCall != nil {
				toolCalls = append(toolCalls, *currentToolCall)
				currentToolCall = nil
			}
		case anthropic.MessageDeltaEvent:
			stopReason = normalizeStopReason(string(evt.Delta.StopReason))
			outputTokens = evt.Usage.OutputTokens
		}
	}

	if err := stream.Err(); err != nil {
		return nil, errors.Wrap(err, "anthropic: streaming error")
	}

	usage := &llms.Usage{
		PromptTokens:     int(inputTokens),
		CompletionTokens: int(outputTokens),
		TotalTokens:      int(inputTokens + outputTokens),
	}
	err = emit(llms.StreamChunk{Usage: usage, FinishReason: stopReason})
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: streaming function error")
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:          content.String(),
			ReasoningContent: reasoning.String(),
			StopReason:       stopReason,
			ToolCalls:        toolCalls,
		}},
		Usage: usage,
	}, nil
}

// ListModels implements the Model interface.
func (o *LLM) ListModels(ctx context.Context) ([]string, error) {
	page, err := o.Client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to list models")
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, string(m.ID))
	}
	return ids, nil
}

// HealthCheck implements the Model interface.
func (o *LLM) HealthCheck(ctx context.Context) bool {
	_, err := o.ListModels(ctx)
	return err == nil
}

// normalizeStopReason maps Anthropic stop reasons to the neutral vocabulary
// used by the other providers.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "tool_use":
		return "tool_calls"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}

func (o *LLM) buildParams(messages []llms.Message, options []llms.CallOption) (anthropic.MessageNewParams, error) {
	opts := llms.CallOptions{
		Model: o.Options.Model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	sdkMessages, systemPrompt, err := ProcessMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, errors.Wrap(err, "anthropic: failed to process messages")
	}

	tools, err := ToTools(opts.Tools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		Messages:  sdkMessages,
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		}
	}

	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}

	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}

	if len(tools) > 0 {
		params.Tools = tools
	}

	return params, nil
}

// toolInputSchema is the subset of a JSON schema document the Anthropic API
// accepts as tool input.
type toolInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// ToTools converts tool definitions to Anthropic SDK tool parameters.
// Parameters hold raw schema documents of varying concrete types, remote tool
// servers supply theirs as decoded JSON, so the conversion goes through a
// JSON round trip.
func ToTools(tools []llms.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	sdkTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		if tool.Function == nil {
			return nil, errors.Errorf("anthropic: tool %d has no function definition", i)
		}
		var schema toolInputSchema
		if tool.Function.Parameters != nil {
			raw, err := json.Marshal(tool.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "anthropic: failed to marshal parameters for tool %q", tool.Function.Name)
			}
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, errors.Wrapf(err, "anthropic: invalid parameters schema for tool %q", tool.Function.Name)
			}
		}

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: schema.Properties,
		}
		if len(schema.Required) > 0 {
			inputSchema.Required = schema.Required
		}

		sdkTools[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropic.String(tool.Function.Description),
				InputSchema: inputSchema,
			},
		}
	}
	return sdkTools, nil
}

// ProcessMessages converts messages to Anthropic SDK message parameters.
// System messages are extracted and returned as a separate system prompt.
func ProcessMessages(messages []llms.Message) ([]anthropic.MessageParam, string, error) {
	chatMessages := make([]anthropic.MessageParam, 0, len(messages))
	systemPrompt := ""
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		switch msg.Role {
		case llms.RoleSystem:
			content, err := handleSystemMessage(msg)
			if err != nil {
				return nil, "", errors.Wrap(err, "anthropic: failed to handle system message")
			}
			if systemPrompt != "" {
				systemPrompt += "\n" + content
			} else {
				systemPrompt = content
			}
		case llms.RoleHuman:
			chatMessage, err := handleHumanMessage(msg)
			if err != nil {
				return nil, "", errors.Wrap(err, "anthropic: failed to handle human message")
			}
			chatMessages = append(chatMessages, chatMessage)
		case llms.RoleAI:
			chatMessage, err := handleAIMessage(msg)
			if err != nil {
				return nil, "", errors.Wrap(err, "anthropic: failed to handle AI message")
			}
			chatMessages = append(chatMessages, chatMessage)
		case llms.RoleTool:
			chatMessage, err := handleToolMessage(msg)
			if err != nil {
				return nil, "", errors.WithMessage(err, "anthropic: failed to handle tool message")
			}
			chatMessages = append(chatMessages, chatMessage)
		default:
			return nil, "", errors.WithMessagef(ErrUnsupportedMessageType, "anthropic: %v", msg.Role)
		}
	}
	return chatMessages, systemPrompt, nil
}

func handleSystemMessage(msg llms.Message) (string, error) {
	if textContent, ok := msg.Parts[0].(llms.TextContent); ok {
		return textContent.Text, nil
	}
	return "", errors.WithMessagef(ErrInvalidContentType, "anthropic: for system message")
}

func handleHumanMessage(msg llms.Message) (anthropic.MessageParam, error) {
	var contents []anthropic.ContentBlockParamUnion

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			contents = append(contents, anthropic.NewTextBlock(p.Text))
		default:
			return anthropic.MessageParam{}, errors.Errorf("anthropic: unsupported human message part type: %T", part)
		}
	}

	if len(contents) == 0 {
		return anthropic.MessageParam{}, errors.New("anthropic: no valid content in human message")
	}

	return anthropic.NewUserMessage(contents...), nil
}

func handleAIMessage(msg llms.Message) (anthropic.MessageParam, error) {
	var contents []anthropic.ContentBlockParamUnion

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.ToolCall:
			var inputJSON json.RawMessage
			if err := json.Unmarshal([]byte(p.FunctionCall.Arguments), &inputJSON); err != nil {
				// a call with malformed arguments already carries an error
				// result in the next tool message; keep the turn convertible
				// so the model can react to that result
				inputJSON = json.RawMessage(`{}`)
			}

			contents = append(contents, anthropic.NewToolUseBlock(
				p.ID,
				inputJSON,
				p.FunctionCall.Name,
			))
		case llms.TextContent:
			contents = append(contents, anthropic.NewTextBlock(p.Text))
		default:
			return anthropic.MessageParam{}, errors.Errorf("anthropic: unsupported AI message part type: %T", part)
		}
	}

	if len(contents) == 0 {
		return anthropic.MessageParam{}, errors.New("anthropic: no valid content in AI message")
	}

	return anthropic.NewAssistantMessage(contents...), nil
}

// handleToolMessage converts tool results to the user message format the
// Anthropic API expects for tool result blocks.
func handleToolMessage(msg llms.Message) (anthropic.MessageParam, error) {
	var contents []anthropic.ContentBlockParamUnion

	for _, part := range msg.Parts {
		if toolCallResponse, ok := part.(llms.ToolCallResponse); ok {
			contents = append(contents, anthropic.NewToolResultBlock(
				toolCallResponse.ToolCallID,
				toolCallResponse.Content,
				toolCallResponse.IsError,
			))
		} else {
			return anthropic.MessageParam{}, errors.WithMessagef(ErrInvalidContentType, "anthropic: for tool message part type: %T", part)
		}
	}

	if len(contents) == 0 {
		return anthropic.MessageParam{}, errors.New("anthropic: no valid content in tool message")
	}

	return anthropic.NewUserMessage(contents...), nil
}
