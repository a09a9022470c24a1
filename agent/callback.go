package agent

import (
	"context"

	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/tools"
)

// IAgent is the read-only view of an agent exposed to callbacks.
type IAgent interface {
	// Name returns the agent name.
	Name() string
	// Model returns the backing LLM.
	Model() llms.Model
}

// Callback receives run lifecycle events. All methods are invoked
// synchronously on the run's goroutine, except the tool hooks, which fire
// from tool worker goroutines.
type Callback interface {
	tools.Callback

	OnAgentStart(ctx context.Context, agent IAgent, input string)
	OnAgentEnd(ctx context.Context, agent IAgent, input string, result *RunResult)
	OnAgentError(ctx context.Context, agent IAgent, input string, err error)
	OnToolNotFound(ctx context.Context, agent IAgent, tool string)
}
