package streaming

import (
	"context"

	"github.com/effective-security/agentic/pkg/llms"
)

// EventType tags a normalized stream event.
type EventType string

const (
	// EventText is a visible text fragment.
	EventText EventType = "text"
	// EventThinking is a reasoning fragment.
	EventThinking EventType = "thinking"
	// EventToolStart signals a tool execution has been dispatched.
	EventToolStart EventType = "tool_start"
	// EventToolProgress carries a progress note from a running tool.
	EventToolProgress EventType = "tool_progress"
	// EventToolComplete signals a tool execution finished successfully.
	EventToolComplete EventType = "tool_complete"
	// EventToolError signals a tool call failed, was malformed, or was
	// rejected by a limit.
	EventToolError EventType = "tool_error"
	// EventUsage carries token counts reported by the provider.
	EventUsage EventType = "usage"
	// EventDone is the normal terminal event.
	EventDone EventType = "done"
	// EventError is the faulted terminal event.
	EventError EventType = "error"
)

// Event is the provider-agnostic stream event. Every tool_* event carries
// the stable ToolCallID of its call so that start/progress/complete/error
// can be correlated by the caller.
type Event struct {
	Type EventType `json:"type"`

	// Text is the fragment for text/thinking events, the tool output for
	// tool_complete, or the progress note for tool_progress.
	Text string `json:"text,omitempty"`

	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	// Arguments is the complete JSON arguments text, set on tool_start.
	Arguments string `json:"arguments,omitempty"`

	Usage *llms.Usage `json:"usage,omitempty"`

	// Err is the failure description for tool_error and error events.
	Err string `json:"error,omitempty"`
}

// Handler consumes normalized events in order. Returning an error stops
// the stream.
type Handler func(ctx context.Context, ev Event) error
