package openai

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/pkg/llms/openai/internal/openaiclient"
)

type ChatMessage = openaiclient.ChatMessage

// ErrEmptyResponse is returned when the API returned no choices.
var ErrEmptyResponse = openaiclient.ErrEmptyResponse

// LLM is an OpenAI chat model. It also serves Azure OpenAI deployments and
// self-hosted OpenAI-compatible endpoints.
type LLM struct {
	client *openaiclient.Client
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	_, c, err := newClient(opts...)
	if err != nil {
		return nil, err
	}
	return &LLM{
		client: c,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.client.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	switch o.client.Provider {
	case openaiclient.ProviderAzure:
		return llms.ProviderAzure
	case openaiclient.ProviderSelfHosted:
		return llms.ProviderSelfHosted
	default:
		return llms.ProviderOpenAI
	}
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	req, err := o.buildRequest(messages, options)
	if err != nil {
		return nil, err
	}

	result, err := o.client.CreateChat(ctx, req)
	if err != nil {
		return nil, err
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
		}
		for _, tool := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tool.ID,
				Type: tool.Type,
				FunctionCall: &llms.FunctionCall{
					Name:      tool.Function.Name,
					Arguments: tool.Function.Arguments,
				},
			})
		}
		choices[i] = choice
	}

	resp := &llms.ContentResponse{Choices: choices}
	if result.Usage != nil {
		resp.Usage = &llms.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// StreamContent implements the Model interface. Provider-native tool-call
// deltas are forwarded as-is; self-hosted models that emit inline markers in
// the text channel are handled downstream by the stream normalizer.
func (o *LLM) StreamContent(ctx context.Context, messages []llms.Message, fn llms.StreamFunc, options ...llms.CallOption) (*llms.ContentResponse, error) {
	req, err := o.buildRequest(messages, options)
	if err != nil {
		return nil, err
	}

	agg := newStreamAggregator()
	err = o.client.CreateChatStream(ctx, req, func(ctx context.Context, payload openaiclient.StreamedChatResponsePayload) error {
		chunk := llms.StreamChunk{}
		if payload.Usage != nil {
			chunk.Usage = &llms.Usage{
				PromptTokens:     payload.Usage.PromptTokens,
				CompletionTokens: payload.Usage.CompletionTokens,
				TotalTokens:      payload.Usage.TotalTokens,
			}
		}
		for _, c := range payload.Choices {
			if c.Index != 0 {
				continue
			}
			chunk.Text += c.Delta.Content
			chunk.ReasoningText += c.Delta.ReasoningContent
			for _, tc := range c.Delta.ToolCalls {
				chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, llms.ToolCallDelta{
					Index:     tc.Index,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
			if c.FinishReason != nil && *c.FinishReason != "" {
				chunk.FinishReason = *c.FinishReason
			}
		}
		agg.add(chunk)
		if fn != nil {
			return fn(ctx, chunk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg.response(), nil
}

// ListModels implements the Model interface.
func (o *LLM) ListModels(ctx context.Context) ([]string, error) {
	return o.client.ListModels(ctx)
}

// HealthCheck implements the Model interface.
func (o *LLM) HealthCheck(ctx context.Context) bool {
	_, err := o.client.ListModels(ctx)
	return err == nil
}

func (o *LLM) buildRequest(messages []llms.Message, options []llms.CallOption) (*openaiclient.ChatRequest, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs := make([]*ChatMessage, 0, len(messages))
	for _, mc := range messages {
		msgs, err := chatMessagesFromMessage(mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msgs...)
	}

	req := &openaiclient.ChatRequest{
		Model:     opts.Model,
		Messages:  chatMsgs,
		MaxTokens: opts.MaxTokens,
		Stop:      opts.StopWords,
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	if opts.TopP > 0 {
		req.TopP = &opts.TopP
	}
	for _, tool := range opts.Tools {
		t, err := toolFromTool(tool)
		if err != nil {
			return nil, err
		}
		req.Tools = append(req.Tools, t)
	}
	if opts.ToolChoice != nil {
		req.ToolChoice = opts.ToolChoice
	}
	return req, nil
}

// chatMessagesFromMessage converts one message to the OpenAI wire format. A
// tool-role message with several tool responses expands into one wire message
// per response.
func chatMessagesFromMessage(mc llms.Message) ([]*ChatMessage, error) {
	switch mc.Role {
	case llms.RoleSystem:
		return []*ChatMessage{{
			Role:    openaiclient.RoleSystem,
			Content: mc.GetContent(),
		}}, nil
	case llms.RoleHuman:
		return []*ChatMessage{{
			Role:    openaiclient.RoleUser,
			Content: mc.GetContent(),
		}}, nil
	case llms.RoleAI:
		msg := &ChatMessage{Role: openaiclient.RoleAssistant}
		for _, part := range mc.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				msg.Content += p.Text
			case llms.ToolCall:
				msg.ToolCalls = append(msg.ToolCalls, openaiclient.ToolCall{
					ID:   p.ID,
					Type: p.Type,
					Function: openaiclient.ToolFunction{
						Name:      p.FunctionCall.Name,
						Arguments: p.FunctionCall.Arguments,
					},
				})
			default:
				return nil, errors.Errorf("unsupported part %T for role %v", part, mc.Role)
			}
		}
		return []*ChatMessage{msg}, nil
	case llms.RoleTool:
		var msgs []*ChatMessage
		for _, part := range mc.Parts {
			p, ok := part.(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Errorf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, part)
			}
			msgs = append(msgs, &ChatMessage{
				Role:       openaiclient.RoleTool,
				Content:    p.Content,
				Name:       p.Name,
				ToolCallID: p.ToolCallID,
			})
		}
		return msgs, nil
	default:
		return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
	}
}

// toolFromTool converts an llms.Tool to the wire representation.
func toolFromTool(t llms.Tool) (openaiclient.Tool, error) {
	if t.Type != "function" || t.Function == nil {
		return openaiclient.Tool{}, errors.Errorf("tool type %q not supported", t.Type)
	}
	return openaiclient.Tool{
		Type: t.Type,
		Function: openaiclient.FunctionDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		},
	}, nil
}

// streamAggregator assembles the final response from streamed chunks so
// StreamContent can return the same shape as GenerateContent.
type streamAggregator struct {
	content      string
	reasoning    string
	finishReason string
	usage        *llms.Usage
	calls        map[int]*openaiclient.ToolCall
}

func newStreamAggregator() *streamAggregator {
	return &streamAggregator{
		calls: make(map[int]*openaiclient.ToolCall),
	}
}

func (a *streamAggregator) add(chunk llms.StreamChunk) {
	a.content += chunk.Text
	a.reasoning += chunk.ReasoningText
	if chunk.FinishReason != "" {
		a.finishReason = chunk.FinishReason
	}
	if chunk.Usage != nil {
		if a.usage == nil {
			a.usage = &llms.Usage{}
		}
		a.usage.Add(chunk.Usage)
	}
	for _, tc := range chunk.ToolCallDeltas {
		call := a.calls[tc.Index]
		if call == nil {
			call = &openaiclient.ToolCall{Type: "function"}
			a.calls[tc.Index] = call
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Name != "" && call.Function.Name == "" {
			call.Function.Name = tc.Name
		}
		call.Function.Arguments += tc.Arguments
	}
}

func (a *streamAggregator) response() *llms.ContentResponse {
	choice := &llms.ContentChoice{
		Content:          a.content,
		ReasoningContent: a.reasoning,
		StopReason:       a.finishReason,
	}
	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		call := a.calls[idx]
		choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
			ID:   call.ID,
			Type: call.Type,
			FunctionCall: &llms.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{choice},
		Usage:   a.usage,
	}
}
