package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/agentic/agent"
	"github.com/effective-security/agentic/tools"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ agent.Callback = (*Noop)(nil)
	_ tools.Callback = (*Noop)(nil)
	_ agent.Callback = (*Printer)(nil)
	_ tools.Callback = (*Printer)(nil)
	_ agent.Callback = (*PackageLogger)(nil)
	_ tools.Callback = (*PackageLogger)(nil)
	_ agent.Callback = (*Fanout)(nil)
	_ tools.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []agent.Callback
}

func NewFanout(callbacks ...agent.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback agent.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnAgentStart(ctx context.Context, ag agent.IAgent, input string) {
	for _, callback := range l.callbacks {
		callback.OnAgentStart(ctx, ag, input)
	}
}

func (l *Fanout) OnAgentEnd(ctx context.Context, ag agent.IAgent, input string, result *agent.RunResult) {
	for _, callback := range l.callbacks {
		callback.OnAgentEnd(ctx, ag, input, result)
	}
}

func (l *Fanout) OnAgentError(ctx context.Context, ag agent.IAgent, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnAgentError(ctx, ag, input, err)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output *tools.Output) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, ag agent.IAgent, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, ag, tool)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnAgentStart(ctx context.Context, ag agent.IAgent, input string) {}
func (l *Noop) OnAgentEnd(ctx context.Context, ag agent.IAgent, input string, result *agent.RunResult) {
}
func (l *Noop) OnAgentError(ctx context.Context, ag agent.IAgent, input string, err error) {}
func (l *Noop) OnToolStart(ctx context.Context, tool tools.ITool, input string)            {}
func (l *Noop) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output *tools.Output) {
}
func (l *Noop) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {}
func (l *Noop) OnToolNotFound(ctx context.Context, ag agent.IAgent, tool string)           {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnAgentStart(ctx context.Context, ag agent.IAgent, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Agent Start: %s\n", ag.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnAgentEnd(ctx context.Context, ag agent.IAgent, input string, result *agent.RunResult) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Agent End: %s: %s, %d tool calls\n", ag.Name(), result.State, result.ToolCallCount)
	if l.Mode == ModeVerbose && result.Content != "" {
		fmt.Fprintln(l.Out, result.Content)
	}
}

func (l *Printer) OnAgentError(ctx context.Context, ag agent.IAgent, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Agent Error: %s: %s\n", ag.Name(), err.Error())
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output *tools.Output) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s\n", tool.Name())
	if l.Mode == ModeVerbose && output != nil {
		fmt.Fprintf(l.Out, "Output: %s\n", output.Content)
	}
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, ag agent.IAgent, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnAgentStart(ctx context.Context, ag agent.IAgent, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "agent_start",
		"agent", ag.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnAgentEnd(ctx context.Context, ag agent.IAgent, input string, result *agent.RunResult) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "agent_end",
		"agent", ag.Name(),
		"state", result.State,
		"tool_calls", result.ToolCallCount,
	)
	if result.Content != "" {
		l.logger.ContextKV(ctx, xlog.DEBUG, "result", result.Content)
	}
}

func (l *PackageLogger) OnAgentError(ctx context.Context, ag agent.IAgent, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "agent_error",
		"agent", ag.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output *tools.Output) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", tool.Name(),
		"output", output.Content,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, ag agent.IAgent, tool string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_not_found",
		"agent", ag.Name(),
		"tool", tool,
	)
}
