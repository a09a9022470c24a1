package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentic", "tools")

// ErrDuplicateName is returned when a tool with the same name is already
// registered by a different owner.
var ErrDuplicateName = errors.New("duplicate tool name")

// NamespaceSep joins a tool-server name and a remote tool name into a
// registry-wide unique name.
const NamespaceSep = "__"

// QualifiedName returns the namespaced registry name for a remote tool.
func QualifiedName(server, tool string) string {
	return server + NamespaceSep + tool
}

// SplitQualified splits a namespaced name into server and tool name.
// ok is false when the name carries no namespace.
func SplitQualified(name string) (server, tool string, ok bool) {
	return strings.Cut(name, NamespaceSep)
}

// Registry maps tool names to capabilities and dispatches execution.
// Lookups run over an atomically-swapped map, so registration and removal
// are safe concurrently with in-flight Execute calls and no lock is held
// during tool execution.
type Registry struct {
	mu   sync.Mutex // serializes writers
	caps atomic.Pointer[map[string]ITool]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]ITool)
	r.caps.Store(&empty)
	return r
}

func (r *Registry) snapshot() map[string]ITool {
	return *r.caps.Load()
}

// swap installs a new map built by mutate from a copy of the current one.
// Callers must hold r.mu.
func (r *Registry) swap(mutate func(m map[string]ITool)) {
	cur := r.snapshot()
	next := make(map[string]ITool, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	mutate(next)
	r.caps.Store(&next)
}

// Register adds a tool. It fails with ErrDuplicateName if the name is
// already taken; remote refreshes replace their server's entries through
// SetNamespace instead.
func (r *Registry) Register(tool ITool) error {
	name := tool.Name()
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshot()[key]; ok {
		return errors.WithMessagef(ErrDuplicateName, "tool %q", name)
	}
	r.swap(func(m map[string]ITool) {
		m[key] = tool
	})
	return nil
}

// RegisterAll registers each tool independently; a bad entry is logged and
// skipped rather than aborting the rest.
func (r *Registry) RegisterAll(list ...ITool) {
	for _, tool := range list {
		if err := r.Register(tool); err != nil {
			logger.KV(xlog.WARNING,
				"status", "tool_registration_skipped",
				"tool", tool.Name(),
				"err", err.Error(),
			)
		}
	}
}

// Remove deletes tools by name. Unknown names are ignored.
func (r *Registry) Remove(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.swap(func(m map[string]ITool) {
		for _, name := range names {
			delete(m, strings.ToLower(name))
		}
	})
}

// SetNamespace atomically replaces every tool registered under the server's
// namespace with the provided set. Entries of list that are not already
// namespaced are registered as <server>__<name>. Stale entries that the new
// set omits do not survive.
func (r *Registry) SetNamespace(server string, list []ITool) {
	prefix := strings.ToLower(server + NamespaceSep)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.swap(func(m map[string]ITool) {
		for key := range m {
			if strings.HasPrefix(key, prefix) {
				delete(m, key)
			}
		}
		for _, tool := range list {
			name := tool.Name()
			if _, _, ok := SplitQualified(name); !ok {
				name = QualifiedName(server, name)
			}
			m[strings.ToLower(name)] = tool
		}
	})
}

// RemoveNamespace removes every tool registered under the server's
// namespace and returns how many were removed. Idempotent.
func (r *Registry) RemoveNamespace(server string) int {
	prefix := strings.ToLower(server + NamespaceSep)
	removed := 0

	r.mu.Lock()
	defer r.mu.Unlock()

	r.swap(func(m map[string]ITool) {
		for key := range m {
			if strings.HasPrefix(key, prefix) {
				delete(m, key)
				removed++
			}
		}
	})
	return removed
}

// Get returns the tool by name, or nil. Lookup is case-insensitive.
func (r *Registry) Get(name string) ITool {
	return r.snapshot()[strings.ToLower(name)]
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	m := r.snapshot()
	names := make([]string, 0, len(m))
	for _, tool := range m {
		names = append(names, tool.Name())
	}
	return names
}

// List returns tool definitions in the shape of the provider tool-list
// parameter, without exposing handlers.
func (r *Registry) List() []llms.Tool {
	m := r.snapshot()
	defs := make([]llms.Tool, 0, len(m))
	for _, tool := range m {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute resolves the tool by name and runs it. It always returns an
// Output: unknown names, handler errors and handler panics are all encoded
// as IsError=true. Concurrent calls are not serialized; each call is
// cancellable via its own ctx.
func (r *Registry) Execute(ctx context.Context, name, input string) (out *Output) {
	tool := r.Get(name)
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		return ErrorOutput(fmt.Sprintf("tool not found: %s", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			metricskey.StatsToolCallsFailed.IncrCounter(1, name)
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "tool_panic",
				"tool", name,
				"recovered", fmt.Sprintf("%v", rec),
			)
			out = ErrorOutput(fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	started := time.Now()
	res, err := tool.Call(ctx, input)
	metricskey.PerfToolCall.MeasureSince(started, name)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_call_failed",
			"tool", name,
			"err", err.Error(),
		)
		return ErrorOutput(err.Error())
	}
	if res == nil {
		res = TextOutput("")
	}
	if res.IsError {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
	} else {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	}
	return res
}
