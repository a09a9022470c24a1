package shell_test

import (
	"context"
	"testing"
	"time"

	"github.com/effective-security/agentic/chatmodel"
	"github.com/effective-security/agentic/tools/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Shell_Success(t *testing.T) {
	tool, err := shell.New()
	require.NoError(t, err)
	assert.Equal(t, shell.ToolName, tool.Name())
	assert.NotNil(t, tool.Parameters())

	var notes []string
	ctx := chatmodel.WithChatContext(context.Background(),
		chatmodel.NewChatContext("", t.TempDir(), func(msg string) {
			notes = append(notes, msg)
		}))

	out, err := tool.Call(ctx, `{"command":"echo hello"}`)
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, "hello\n", out.Content)
	assert.Equal(t, 0, out.Metadata["exit_code"])

	// progress is reported through the chat context
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[0], "echo hello")
}

func Test_Shell_ExitCode(t *testing.T) {
	tool, err := shell.New()
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), `{"command":"echo oops >&2; exit 3"}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "exit code 3")
	assert.Contains(t, out.Content, "oops")
}

func Test_Shell_BadInput(t *testing.T) {
	tool, err := shell.New()
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), `{}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "command is required")

	out, err = tool.Call(context.Background(), `garbage`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func Test_Shell_Timeout(t *testing.T) {
	tool, err := shell.New()
	require.NoError(t, err)

	started := time.Now()
	out, err := tool.Call(context.Background(), `{"command":"sleep 10","timeout_seconds":1}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "command aborted")
	assert.Less(t, time.Since(started), 5*time.Second)
}

func Test_Shell_TimeoutKillsProcessGroup(t *testing.T) {
	tool, err := shell.New()
	require.NoError(t, err)

	// the pipe spawns children of the shell; they hold the output pipe, so
	// only a process-group kill releases it promptly
	started := time.Now()
	out, err := tool.Call(context.Background(), `{"command":"sleep 10 | cat","timeout_seconds":1}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "command aborted")
	assert.Less(t, time.Since(started), 5*time.Second)
}

func Test_Shell_Cancellation(t *testing.T) {
	tool, err := shell.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	started := time.Now()
	out, err := tool.Call(ctx, `{"command":"sleep 10"}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "command aborted")
	assert.Less(t, time.Since(started), 5*time.Second)
}

func Test_Shell_WorkDir(t *testing.T) {
	tool, err := shell.New()
	require.NoError(t, err)

	dir := t.TempDir()
	ctx := chatmodel.WithChatContext(context.Background(),
		chatmodel.NewChatContext("", dir, nil))

	out, err := tool.Call(ctx, `{"command":"pwd"}`)
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Contains(t, out.Content, dir)
}
