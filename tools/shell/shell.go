// Package shell provides a local tool that executes shell commands in the
// invocation working directory.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"reflect"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/chatmodel"
	"github.com/effective-security/agentic/pkg/schema"
	"github.com/effective-security/agentic/tools"
)

const ToolName = "execute_command"

// DefaultTimeout bounds a command that specifies no timeout of its own.
const DefaultTimeout = 60 * time.Second

// Request represents the tool input.
type Request struct {
	Command        string `json:"command" jsonschema:"title=command,description=The shell command to execute."`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"title=timeout_seconds,description=Optional timeout in seconds for the command."`
}

// Tool executes shell commands. The command runs under a context derived
// from the call's own, so cancelling the run terminates the child process
// and the call still resolves to an error result.
type Tool struct {
	name        string
	description string
	funcParams  any

	shell string
}

var _ tools.ITool = (*Tool)(nil)

func New() (*Tool, error) {
	sc, err := schema.New(reflect.TypeOf(Request{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Tool{
		name:        ToolName,
		description: "Executes a shell command in the session working directory and returns its combined output and exit code.",
		funcParams:  sc.Parameters,
		shell:       "/bin/sh",
	}, nil
}

// WithShell overrides the shell binary, default /bin/sh.
func (t *Tool) WithShell(shell string) *Tool {
	t.shell = shell
	return t
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() any {
	return t.funcParams
}

func (t *Tool) Call(ctx context.Context, input string) (*tools.Output, error) {
	var req Request
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return tools.ErrorOutput(fmt.Sprintf("invalid arguments: %s", err.Error())), nil
	}
	if req.Command == "" {
		return tools.ErrorOutput("command is required"), nil
	}

	timeout := DefaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatmodel.ReportProgress(ctx, "running: "+req.Command)

	cmd := exec.CommandContext(ctx, t.shell, "-c", req.Command)
	cmd.Dir = chatmodel.GetWorkDir(ctx)
	// the command runs in its own process group and cancellation kills the
	// whole group: killing only the shell would leave grandchildren holding
	// the output pipe, and Run would block until they exit on their own
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()

	if err != nil {
		// a killed child also reports an ExitError, so the ctx check comes first
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tools.ErrorOutput(fmt.Sprintf("command aborted: %s\n%s", ctxErr.Error(), output)), nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return tools.ErrorOutput(fmt.Sprintf("exit code %d\n%s", exitErr.ExitCode(), output)), nil
		}
		return tools.ErrorOutput(err.Error()), nil
	}

	return &tools.Output{
		Content: output,
		Metadata: map[string]any{
			"exit_code": 0,
		},
	}, nil
}
