package tools

import (
	"context"
)

//go:generate mockgen -source=tool.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// ITool is a tool the agent can invoke. Implementations are either local
// handlers or proxies for tools exposed by an external tool server; the
// caller cannot tell them apart.
type ITool interface {
	// Name returns the name of the Tool. Names of remote tools are
	// namespaced as <server>__<tool> and must be treated as opaque.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the JSON schema of the tool input.
	Parameters() any

	// Call executes the tool with the given JSON-encoded input.
	// A failed execution should be reported through Output.IsError whenever
	// the failure is meaningful to the model; a returned error is reserved
	// for faults the tool could not describe.
	Call(ctx context.Context, input string) (*Output, error)
}

// Output is the result of a tool execution. Execution failures are encoded
// as IsError=true with a human-readable Content, so the agent loop can
// always append a result message.
type Output struct {
	Content  string         `json:"content"`
	IsError  bool           `json:"is_error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TextOutput returns a successful Output with the given content.
func TextOutput(content string) *Output {
	return &Output{Content: content}
}

// ErrorOutput returns a failed Output with the given description.
func ErrorOutput(content string) *Output {
	return &Output{Content: content, IsError: true}
}

// Callback receives tool lifecycle events.
type Callback interface {
	OnToolStart(ctx context.Context, tool ITool, input string)
	OnToolEnd(ctx context.Context, tool ITool, input string, output *Output)
	OnToolError(ctx context.Context, tool ITool, input string, err error)
}
