package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/google/uuid"
)

// pendingCall accumulates one tool call whose fragments arrive across
// multiple chunks, keyed by the provider-assigned delta index.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
	seq  int
}

// Round is the outcome of one normalized provider stream: the cleaned
// visible text, the completed tool calls in first-seen order, and any calls
// whose arguments could not be parsed.
type Round struct {
	Content   string
	Reasoning string
	// ToolCalls are the completed calls of the round, including malformed
	// ones, so the conversation message can reference every emitted call ID.
	ToolCalls []llms.ToolCall
	// Malformed maps a tool-call ID to the reason its arguments are not
	// usable. Such calls must receive a synthetic error result, never be
	// executed.
	Malformed map[string]string
	Usage     *llms.Usage
	// FinishReason is the provider-signaled stop reason, if any.
	FinishReason string
}

// Normalizer converts one provider's native stream of low-level deltas into
// the ordered normalized event sequence. One Normalizer handles exactly one
// round; it is not safe for concurrent use.
type Normalizer struct {
	emit Handler

	acc      map[int]*pendingCall
	scanner  markerScanner
	content  strings.Builder
	thinking strings.Builder
	calls    []llms.ToolCall
	badCalls map[string]string
	usage    *llms.Usage
	finish   string
	terminal bool
}

// NewNormalizer creates a Normalizer emitting to the given handler.
// A nil handler discards events.
func NewNormalizer(emit Handler) *Normalizer {
	if emit == nil {
		emit = func(context.Context, Event) error { return nil }
	}
	return &Normalizer{
		emit:     emit,
		acc:      make(map[int]*pendingCall),
		badCalls: make(map[string]string),
	}
}

// OnChunk consumes one provider-native delta. It satisfies llms.StreamFunc
// as a method value.
func (n *Normalizer) OnChunk(ctx context.Context, chunk llms.StreamChunk) error {
	if n.terminal {
		return errors.New("stream already terminated")
	}

	if chunk.ReasoningText != "" {
		n.thinking.WriteString(chunk.ReasoningText)
		if err := n.emit(ctx, Event{Type: EventThinking, Text: chunk.ReasoningText}); err != nil {
			return err
		}
	}

	if chunk.Text != "" {
		prose, calls := n.scanner.scan(chunk.Text)
		if prose != "" {
			n.content.WriteString(prose)
			if err := n.emit(ctx, Event{Type: EventText, Text: prose}); err != nil {
				return err
			}
		}
		for _, mc := range calls {
			n.addMarkerCall(mc)
		}
	}

	for _, delta := range chunk.ToolCallDeltas {
		entry := n.acc[delta.Index]
		if entry == nil {
			entry = &pendingCall{seq: len(n.acc)}
			n.acc[delta.Index] = entry
		}
		if delta.ID != "" {
			entry.id = delta.ID
		}
		if delta.Name != "" && entry.name == "" {
			// name is immutable once seen for a given index
			entry.name = delta.Name
		}
		// raw text append; parsing waits for end of round
		entry.args.WriteString(delta.Arguments)
	}

	if chunk.Usage != nil {
		u := *chunk.Usage
		n.usage = &u
		if err := n.emit(ctx, Event{Type: EventUsage, Usage: &u}); err != nil {
			return err
		}
	}

	if chunk.FinishReason != "" {
		n.finish = chunk.FinishReason
	}
	return nil
}

func (n *Normalizer) addMarkerCall(mc markerCall) {
	call := llms.ToolCall{
		ID:   "call_" + uuid.NewString(),
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      mc.Name,
			Arguments: mc.Arguments,
		},
	}
	if mc.Name == "" {
		n.badCalls[call.ID] = "malformed tool arguments: missing tool name"
	} else if mc.Arguments != "" && !json.Valid([]byte(mc.Arguments)) {
		n.badCalls[call.ID] = "malformed tool arguments"
	}
	n.calls = append(n.calls, call)
}

// Finish closes the round normally: it drains the accumulators, validates
// argument buffers, emits tool_error events for malformed calls, then emits
// the terminal done event. No events follow.
func (n *Normalizer) Finish(ctx context.Context) (*Round, error) {
	if n.terminal {
		return nil, errors.New("stream already terminated")
	}

	prose, truncated, partial := n.scanner.finish()
	if prose != "" {
		n.content.WriteString(prose)
		if err := n.emit(ctx, Event{Type: EventText, Text: prose}); err != nil {
			return nil, err
		}
	}
	if truncated {
		call := llms.ToolCall{
			ID:   "call_" + uuid.NewString(),
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      parseMarkerCall(partial).Name,
				Arguments: "",
			},
		}
		n.badCalls[call.ID] = "malformed tool arguments: truncated tool call block"
		n.calls = append(n.calls, call)
	}

	// structured accumulator entries, in first-seen order
	indexes := make([]int, 0, len(n.acc))
	for idx := range n.acc {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool {
		return n.acc[indexes[i]].seq < n.acc[indexes[j]].seq
	})

	for _, idx := range indexes {
		entry := n.acc[idx]
		if entry.id == "" {
			entry.id = fmt.Sprintf("%s_%d", entry.name, idx)
		}
		args := entry.args.String()
		call := llms.ToolCall{
			ID:   entry.id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      entry.name,
				Arguments: args,
			},
		}
		if entry.name == "" {
			n.badCalls[call.ID] = "malformed tool arguments: missing tool name"
		} else if args != "" && !json.Valid([]byte(args)) {
			n.badCalls[call.ID] = "malformed tool arguments"
		}
		n.calls = append(n.calls, call)
	}
	n.acc = make(map[int]*pendingCall)

	for _, call := range n.calls {
		if reason, ok := n.badCalls[call.ID]; ok {
			ev := Event{
				Type:       EventToolError,
				ToolCallID: call.ID,
				ToolName:   call.FunctionCall.Name,
				Err:        reason,
			}
			if err := n.emit(ctx, ev); err != nil {
				return nil, err
			}
		}
	}

	n.terminal = true
	if err := n.emit(ctx, Event{Type: EventDone}); err != nil {
		return nil, err
	}

	return &Round{
		Content:      n.content.String(),
		Reasoning:    n.thinking.String(),
		ToolCalls:    n.calls,
		Malformed:    n.badCalls,
		Usage:        n.usage,
		FinishReason: n.finish,
	}, nil
}

// Fail closes the round with a terminal error event. It is used for
// stream-level provider or transport faults, which abort the run.
func (n *Normalizer) Fail(ctx context.Context, cause error) {
	if n.terminal {
		return
	}
	n.terminal = true
	_ = n.emit(ctx, Event{Type: EventError, Err: cause.Error()})
}
