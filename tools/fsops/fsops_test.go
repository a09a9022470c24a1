package fsops_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/effective-security/agentic/chatmodel"
	"github.com/effective-security/agentic/tools/fsops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workCtx(t *testing.T) context.Context {
	t.Helper()
	return chatmodel.WithChatContext(context.Background(),
		chatmodel.NewChatContext("", t.TempDir(), nil))
}

func Test_ReadTool(t *testing.T) {
	ctx := workCtx(t)
	dir := chatmodel.GetWorkDir(ctx)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644))

	tool, err := fsops.NewReadTool()
	require.NoError(t, err)
	assert.Equal(t, fsops.ReadToolName, tool.Name())
	assert.NotNil(t, tool.Parameters())

	out, err := tool.Call(ctx, `{"path":"note.txt"}`)
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, "hello", out.Content)

	out, err = tool.Call(ctx, `{"path":"missing.txt"}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)

	out, err = tool.Call(ctx, `{}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "path is required")

	out, err = tool.Call(ctx, `not json`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func Test_WriteTool(t *testing.T) {
	ctx := workCtx(t)
	dir := chatmodel.GetWorkDir(ctx)

	tool, err := fsops.NewWriteTool()
	require.NoError(t, err)

	out, err := tool.Call(ctx, `{"path":"sub/dir/out.txt","content":"data"}`)
	require.NoError(t, err)
	assert.False(t, out.IsError)

	bs, err := os.ReadFile(filepath.Join(dir, "sub", "dir", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(bs))
}

func Test_ListTool(t *testing.T) {
	ctx := workCtx(t)
	dir := chatmodel.GetWorkDir(ctx)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	tool, err := fsops.NewListTool()
	require.NoError(t, err)

	out, err := tool.Call(ctx, "")
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, "a.txt\nb.txt\nsub/", out.Content)

	out, err = tool.Call(ctx, `{"path":"sub"}`)
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Empty(t, out.Content)
}

func Test_PathEscapeRejected(t *testing.T) {
	ctx := workCtx(t)

	read, err := fsops.NewReadTool()
	require.NoError(t, err)

	for _, path := range []string{"../outside.txt", "sub/../../etc/passwd", "/etc/passwd"} {
		out, err := read.Call(ctx, `{"path":"`+path+`"}`)
		require.NoError(t, err, path)
		assert.True(t, out.IsError, path)
	}
}

func Test_NewAll(t *testing.T) {
	all, err := fsops.NewAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	names := []string{all[0].Name(), all[1].Name(), all[2].Name()}
	assert.ElementsMatch(t, []string{fsops.ReadToolName, fsops.WriteToolName, fsops.ListToolName}, names)
}
