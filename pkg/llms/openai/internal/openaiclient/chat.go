package openaiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3/packages/ssestream"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatRequest is a request to complete a chat completion.
type ChatRequest struct {
	Model       string         `json:"model"`
	Messages    []*ChatMessage `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	MaxTokens   int            `json:"max_completion_tokens,omitempty"`
	Stop        []string       `json:"stop,omitempty"`
	Tools       []Tool         `json:"tools,omitempty"`
	ToolChoice  any            `json:"tool_choice,omitempty"`

	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// StreamOptions requests additional payloads on the stream.
type StreamOptions struct {
	// IncludeUsage asks the provider to send a final chunk with token usage.
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is a message in a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name of the tool, when the message reports a tool result.
	Name string `json:"name,omitempty"`
	// ToolCalls requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID matches a tool result to the call that requested it.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool is a tool the model may call.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolCall is a completed call requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction holds the function name and raw JSON arguments.
type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a response to a non-streaming chat request.
type ChatResponse struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []*ChatChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChatChoice is a completion candidate.
type ChatChoice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// StreamedChatResponsePayload is one chunk of a streaming chat response.
type StreamedChatResponsePayload struct {
	ID      string `json:"id"`
	Choices []struct {
		Index        int         `json:"index"`
		Delta        StreamDelta `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// StreamDelta is the incremental part of a streamed choice.
type StreamDelta struct {
	Role             string                `json:"role,omitempty"`
	Content          string                `json:"content,omitempty"`
	ReasoningContent string                `json:"reasoning_content,omitempty"`
	ToolCalls        []StreamToolCallDelta `json:"tool_calls,omitempty"`
}

// StreamToolCallDelta is a fragment of a tool call on the stream.
// ID and Name typically arrive on the first fragment only, arguments
// accumulate across fragments for the same index.
type StreamToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// StreamingChunkFunc receives each decoded stream payload.
type StreamingChunkFunc func(ctx context.Context, payload StreamedChatResponsePayload) error

// CreateChat completes a chat request without streaming.
func (c *Client) CreateChat(ctx context.Context, r *ChatRequest) (*ChatResponse, error) {
	if r.Model == "" {
		r.Model = c.Model
	}
	r.Stream = false
	r.StreamOptions = nil

	res, err := c.postChat(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var resp ChatResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &resp, nil
}

// CreateChatStream completes a chat request and invokes fn for every
// server-sent chunk. It returns after the stream terminates.
func (c *Client) CreateChatStream(ctx context.Context, r *ChatRequest, fn StreamingChunkFunc) error {
	if r.Model == "" {
		r.Model = c.Model
	}
	r.Stream = true
	if r.StreamOptions == nil {
		r.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	res, err := c.postChat(ctx, r)
	if err != nil {
		return err
	}

	decoder := ssestream.NewDecoder(res)
	defer func() { _ = decoder.Close() }()

	for decoder.Next() {
		data := decoder.Event().Data
		if bytes.Equal(bytes.TrimSpace(data), []byte("[DONE]")) {
			break
		}
		var payload StreamedChatResponsePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			logger.ContextKV(ctx, xlog.DEBUG,
				"reason", "malformed_stream_chunk",
				"err", err.Error(),
			)
			continue
		}
		if err := fn(ctx, payload); err != nil {
			return err
		}
	}
	return errors.Wrap(decoder.Err(), "stream")
}

func (c *Client) postChat(ctx context.Context, r *ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	u := c.buildURL("/chat/completions", r.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	c.setHeaders(req)
	if r.Stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	if res.StatusCode != http.StatusOK {
		defer func() { _ = res.Body.Close() }()
		return nil, c.decodeError(res, u)
	}
	return res, nil
}
