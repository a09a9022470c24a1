package agent

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/chatmodel"
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/pkg/metricskey"
	"github.com/effective-security/agentic/streaming"
	"github.com/effective-security/agentic/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentic", "agent")

// State is the terminal state of a run.
type State string

const (
	// StateDone is the normal terminal state: the model produced a final
	// text answer without requesting tools.
	StateDone State = "done"
	// StateError is the terminal state for provider or stream-level faults.
	StateError State = "error"
	// StateCancelled is the terminal state when the run context is cancelled.
	StateCancelled State = "cancelled"
	// StateLimitReached is the terminal state when an iteration or tool-call
	// ceiling stops the run. It is not an error.
	StateLimitReached State = "limit_reached"
)

// RunResult is the outcome of one run.
type RunResult struct {
	// Content is the final visible text of the run.
	Content string
	// Messages is the full message history of the run.
	Messages []llms.Message
	// ToolCallCount is the number of tool calls that received a result,
	// including synthesized error results.
	ToolCallCount int
	// Usage is the token usage summed across rounds.
	Usage llms.Usage
	// State is the terminal state.
	State State
}

// Agent drives completion and tool-execution rounds against one model,
// resolving tool calls through a shared registry. An Agent is stateless
// between runs and safe for concurrent Run calls.
type Agent struct {
	name     string
	llm      llms.Model
	registry *tools.Registry
	cfg      *Config
}

var _ IAgent = (*Agent)(nil)

// New creates an Agent.
func New(name string, llm llms.Model, registry *tools.Registry, opts ...Option) *Agent {
	return &Agent{
		name:     name,
		llm:      llm,
		registry: registry,
		cfg:      NewConfig(opts...),
	}
}

// Name implements the IAgent interface.
func (a *Agent) Name() string {
	return a.name
}

// Model implements the IAgent interface.
func (a *Agent) Model() llms.Model {
	return a.llm
}

// toolCallResult pairs a call with its output for completion-order delivery.
type toolCallResult struct {
	call llms.ToolCall
	out  *tools.Output
}

// run carries the mutable state of one Run invocation.
type run struct {
	agent   *Agent
	cfg     *Config
	history []llms.Message

	emitMu sync.Mutex

	content   string
	usage     llms.Usage
	toolCalls int
}

// emit forwards one normalized event to the run's handler. Tool workers
// fire events concurrently, so delivery is serialized.
func (r *run) emit(ctx context.Context, ev streaming.Event) error {
	if r.cfg.EventHandler == nil {
		return nil
	}
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	return r.cfg.EventHandler(ctx, ev)
}

// Run executes the loop until a terminal condition: the model answers
// without tool calls (done), the context is cancelled (cancelled), an
// iteration or tool-call ceiling stops the run (limit_reached), or a
// provider-level fault aborts it (error, with the fault returned).
// The returned RunResult is non-nil in every case.
func (a *Agent) Run(ctx context.Context, input string) (*RunResult, error) {
	started := time.Now()
	defer metricskey.PerfAgentRun.MeasureSince(started, a.name)

	if chatmodel.GetChatContext(ctx) == nil {
		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("", "", nil))
	}

	if a.cfg.Callback != nil {
		a.cfg.Callback.OnAgentStart(ctx, a, input)
	}

	r := &run{
		agent: a,
		cfg:   a.cfg,
	}

	if a.cfg.SystemPrompt != "" {
		r.history = append(r.history, llms.MessageFromTextParts(llms.RoleSystem, a.cfg.SystemPrompt))
	}
	if a.cfg.Store != nil {
		r.history = append(r.history, a.cfg.Store.Messages(ctx)...)
	}
	userMsg := llms.MessageFromTextParts(llms.RoleHuman, input)
	r.history = append(r.history, userMsg)
	r.storeAdd(ctx, userMsg)

	result, err := r.loop(ctx)

	switch result.State {
	case StateDone:
		metricskey.StatsAgentRunsSucceeded.IncrCounter(1, a.name)
	case StateLimitReached:
		metricskey.StatsAgentRunsLimited.IncrCounter(1, a.name)
	case StateError:
		metricskey.StatsAgentRunsFailed.IncrCounter(1, a.name)
	}

	if err != nil {
		if a.cfg.Callback != nil {
			a.cfg.Callback.OnAgentError(ctx, a, input, err)
		}
		return result, err
	}

	if a.cfg.Callback != nil {
		a.cfg.Callback.OnAgentEnd(ctx, a, input, result)
	}
	return result, nil
}

func (r *run) loop(ctx context.Context) (*RunResult, error) {
	a := r.agent
	modelName := a.llm.GetName()

	toolDefs := a.registry.List()
	callOpts := r.cfg.CallOptions
	if len(toolDefs) > 0 {
		if !a.llm.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return r.result(StateError), errors.Newf("agent %s: the LLM does not support function calling", a.name)
		}
		callOpts = append(callOpts, llms.WithTools(toolDefs))
	}

	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			return r.result(StateCancelled), nil
		}

		norm := streaming.NewNormalizer(r.emit)
		_, err := a.llm.StreamContent(ctx, r.history, norm.OnChunk, callOpts...)
		if err != nil {
			if ctx.Err() != nil {
				norm.Fail(ctx, ctx.Err())
				return r.result(StateCancelled), nil
			}
			norm.Fail(ctx, err)
			return r.result(StateError), errors.Wrap(err, "failed to generate content from LLM")
		}

		round, err := norm.Finish(ctx)
		if err != nil {
			return r.result(StateError), err
		}

		r.usage.Add(round.Usage)
		if round.Usage != nil {
			metricskey.StatsLLMInputTokens.IncrCounter(float64(round.Usage.PromptTokens), a.name, modelName)
			metricskey.StatsLLMOutputTokens.IncrCounter(float64(round.Usage.CompletionTokens), a.name, modelName)
			metricskey.StatsLLMTotalTokens.IncrCounter(float64(round.Usage.TotalTokens), a.name, modelName)
		}
		r.content = round.Content

		// the assistant message references every emitted call ID, so each
		// tool result below has a matching call in history
		var parts []llms.ContentPart
		if round.Content != "" {
			parts = append(parts, llms.TextPart(round.Content))
		}
		for _, call := range round.ToolCalls {
			parts = append(parts, call)
		}
		if len(parts) > 0 {
			msg := llms.MessageFromParts(llms.RoleAI, parts...)
			r.history = append(r.history, msg)
			r.storeAdd(ctx, msg)
		}

		if len(round.ToolCalls) == 0 {
			return r.result(StateDone), nil
		}

		if iteration >= r.cfg.MaxIterations-1 {
			// ceiling reached with unresolved calls; they are not executed
			logger.ContextKV(ctx, xlog.DEBUG,
				"agent", a.name,
				"status", "iteration_limit",
				"iterations", iteration+1,
				"unresolved_calls", len(round.ToolCalls),
			)
			return r.result(StateLimitReached), nil
		}

		budgetHit := r.executeRound(ctx, round)

		if ctx.Err() != nil {
			return r.result(StateCancelled), nil
		}
		if budgetHit {
			return r.result(StateLimitReached), nil
		}
	}
}

// executeRound resolves every call of the round: malformed calls and calls
// past the run-wide budget get synthesized error results, the rest run on a
// bounded worker fan-out. Results are appended in completion order. Returns
// whether the tool-call budget was exhausted.
func (r *run) executeRound(ctx context.Context, round *streaming.Round) bool {
	calls := round.ToolCalls

	resultCh := make(chan toolCallResult, len(calls))
	sem := make(chan struct{}, r.cfg.MaxConcurrentTools)
	var wg sync.WaitGroup

	budgetHit := false
	dispatched := r.toolCalls
	for _, call := range calls {
		if reason, ok := round.Malformed[call.ID]; ok {
			// tool_error was already emitted by the normalizer
			resultCh <- toolCallResult{call: call, out: tools.ErrorOutput(reason)}
			continue
		}
		if dispatched >= r.cfg.MaxToolCalls {
			budgetHit = true
			reason := "tool call limit reached"
			_ = r.emit(ctx, streaming.Event{
				Type:       streaming.EventToolError,
				ToolCallID: call.ID,
				ToolName:   call.FunctionCall.Name,
				Err:        reason,
			})
			resultCh <- toolCallResult{call: call, out: tools.ErrorOutput(reason)}
			continue
		}
		dispatched++

		wg.Add(1)
		go func(tc llms.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			resultCh <- toolCallResult{call: tc, out: r.executeCall(ctx, tc)}
		}(call)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// completion order, not request order
	for res := range resultCh {
		msg := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: res.call.ID,
			Name:       res.call.FunctionCall.Name,
			Content:    res.out.Content,
			IsError:    res.out.IsError,
		})
		r.history = append(r.history, msg)
		r.storeAdd(ctx, msg)
		r.toolCalls++
	}
	return budgetHit
}

// executeCall runs one tool call through the registry and surfaces its
// start/progress/complete/error events in real time.
func (r *run) executeCall(ctx context.Context, tc llms.ToolCall) *tools.Output {
	a := r.agent
	name := tc.FunctionCall.Name
	args := tc.FunctionCall.Arguments

	_ = r.emit(ctx, streaming.Event{
		Type:       streaming.EventToolStart,
		ToolCallID: tc.ID,
		ToolName:   name,
		Arguments:  args,
	})

	tool := a.registry.Get(name)
	if tool == nil && r.cfg.Callback != nil {
		r.cfg.Callback.OnToolNotFound(ctx, a, name)
	}
	if tool != nil && r.cfg.Callback != nil {
		r.cfg.Callback.OnToolStart(ctx, tool, args)
	}

	// progress notes from the tool surface as tool_progress events
	toolCtx := ctx
	if cc := chatmodel.GetChatContext(ctx); cc != nil {
		toolCtx = chatmodel.WithChatContext(ctx, &progressChatContext{
			ChatContext: cc,
			report: func(note string) {
				_ = r.emit(ctx, streaming.Event{
					Type:       streaming.EventToolProgress,
					ToolCallID: tc.ID,
					ToolName:   name,
					Text:       note,
				})
			},
		})
	}

	out := a.registry.Execute(toolCtx, name, args)

	if out.IsError {
		_ = r.emit(ctx, streaming.Event{
			Type:       streaming.EventToolError,
			ToolCallID: tc.ID,
			ToolName:   name,
			Err:        out.Content,
		})
		if tool != nil && r.cfg.Callback != nil {
			r.cfg.Callback.OnToolError(ctx, tool, args, errors.New(out.Content))
		}
	} else {
		_ = r.emit(ctx, streaming.Event{
			Type:       streaming.EventToolComplete,
			ToolCallID: tc.ID,
			ToolName:   name,
			Text:       out.Content,
		})
		if tool != nil && r.cfg.Callback != nil {
			r.cfg.Callback.OnToolEnd(ctx, tool, args, out)
		}
	}
	return out
}

func (r *run) storeAdd(ctx context.Context, msg llms.Message) {
	if r.cfg.Store == nil {
		return
	}
	if err := r.cfg.Store.Add(ctx, msg); err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", r.agent.name,
			"status", "store_add_failed",
			"err", err.Error(),
		)
	}
}

func (r *run) result(state State) *RunResult {
	return &RunResult{
		Content:       r.content,
		Messages:      r.history,
		ToolCallCount: r.toolCalls,
		Usage:         r.usage,
		State:         state,
	}
}

// progressChatContext forwards tool progress notes to the run's event
// handler in addition to the caller's own progress callback.
type progressChatContext struct {
	chatmodel.ChatContext
	report func(string)
}

func (c *progressChatContext) ReportProgress(message string) {
	c.ChatContext.ReportProgress(message)
	c.report(message)
}
