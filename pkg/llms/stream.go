package llms

import "context"

// ToolCallDelta is a fragment of a tool call arriving on a stream. A single
// call's name and JSON arguments may be split across many deltas that share
// the same Index; ID and Name are set by the first delta that carries them.
type ToolCallDelta struct {
	// Index correlates fragments of the same call within a round.
	Index int `json:"index"`
	// ID is the provider-assigned call identifier, if present.
	ID string `json:"id,omitempty"`
	// Name is the tool name, if present in this delta.
	Name string `json:"name,omitempty"`
	// Arguments is a raw fragment of the JSON arguments text.
	Arguments string `json:"arguments,omitempty"`
}

// StreamChunk is one provider-native streaming delta, already decoded from
// the wire but not yet normalized.
type StreamChunk struct {
	// Text is a visible text fragment.
	Text string
	// ReasoningText is a reasoning/thinking fragment, for models that
	// stream it on a separate channel.
	ReasoningText string
	// ToolCallDeltas are tool-call fragments carried by this chunk.
	ToolCallDeltas []ToolCallDelta
	// Usage carries token counts, typically on the final chunk.
	Usage *Usage
	// FinishReason is non-empty on the chunk that ends a choice,
	// e.g. "stop" or "tool_calls".
	FinishReason string
}

// StreamFunc is called for each chunk of a streaming response.
// Return an error to stop streaming early.
type StreamFunc func(ctx context.Context, chunk StreamChunk) error
