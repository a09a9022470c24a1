package mcpbridge

import (
	"context"
	"testing"

	"github.com/effective-security/agentic/tools"
	mcp "github.com/metoro-io/mcp-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	tools    []mcp.ToolRetType
	pageSize int
	callErr  error
	reply    *mcp.ToolResponse
	lastTool string
	lastArgs any
}

func (c *fakeClient) Initialize(ctx context.Context) (*mcp.InitializeResponse, error) {
	return &mcp.InitializeResponse{}, nil
}

func (c *fakeClient) ListTools(ctx context.Context, cursor *string) (*mcp.ToolsResponse, error) {
	start := 0
	if cursor != nil {
		for i, t := range c.tools {
			if t.Name == *cursor {
				start = i
				break
			}
		}
	}
	size := c.pageSize
	if size <= 0 {
		size = len(c.tools)
	}
	end := min(start+size, len(c.tools))
	resp := &mcp.ToolsResponse{Tools: c.tools[start:end]}
	if end < len(c.tools) {
		next := c.tools[end].Name
		resp.NextCursor = &next
	}
	return resp, nil
}

func (c *fakeClient) CallTool(ctx context.Context, name string, arguments any) (*mcp.ToolResponse, error) {
	c.lastTool = name
	c.lastArgs = arguments
	if c.callErr != nil {
		return nil, c.callErr
	}
	if c.reply != nil {
		return c.reply, nil
	}
	return mcp.NewToolResponse(mcp.NewTextContent("ok")), nil
}

func remoteToolDef(name, description string) mcp.ToolRetType {
	return mcp.ToolRetType{
		Name:        name,
		Description: &description,
		InputSchema: map[string]any{"type": "object"},
	}
}

// connect wires a fake client as a connected server, bypassing transports.
func connect(m *Manager, name string, client *fakeClient) {
	m.mu.Lock()
	m.servers[name] = &serverConn{name: name, client: client, close: func() {}}
	m.mu.Unlock()
}

func Test_Manager_RefreshTools(t *testing.T) {
	ctx := context.Background()
	registry := tools.NewRegistry()
	m := NewManager(registry)

	client := &fakeClient{tools: []mcp.ToolRetType{
		remoteToolDef("alpha", "first tool"),
		remoteToolDef("beta", "second tool"),
	}}
	connect(m, "srv", client)

	require.NoError(t, m.RefreshTools(ctx, "srv"))
	assert.NotNil(t, registry.Get("srv__alpha"))
	assert.NotNil(t, registry.Get("srv__beta"))
	assert.ElementsMatch(t, []string{"srv__alpha", "srv__beta"}, m.ToolNames("srv"))

	tool := registry.Get("srv__alpha")
	assert.Equal(t, "srv__alpha", tool.Name())
	assert.Equal(t, "first tool", tool.Description())
	assert.NotNil(t, tool.Parameters())

	// refresh with a different set; stale entries do not survive
	client.tools = []mcp.ToolRetType{
		remoteToolDef("beta", "second tool"),
		remoteToolDef("gamma", "third tool"),
	}
	require.NoError(t, m.RefreshTools(ctx, "srv"))
	assert.Nil(t, registry.Get("srv__alpha"))
	assert.NotNil(t, registry.Get("srv__beta"))
	assert.NotNil(t, registry.Get("srv__gamma"))
}

func Test_Manager_RefreshTools_Paginated(t *testing.T) {
	ctx := context.Background()
	registry := tools.NewRegistry()
	m := NewManager(registry)

	client := &fakeClient{
		pageSize: 2,
		tools: []mcp.ToolRetType{
			remoteToolDef("a", ""),
			remoteToolDef("b", ""),
			remoteToolDef("c", ""),
		},
	}
	connect(m, "srv", client)

	require.NoError(t, m.RefreshTools(ctx, "srv"))
	assert.Len(t, m.ToolNames("srv"), 3)
}

func Test_Manager_RefreshTools_NotConnected(t *testing.T) {
	m := NewManager(tools.NewRegistry())
	err := m.RefreshTools(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerNotConnected)
}

func Test_Manager_ExecuteTool(t *testing.T) {
	ctx := context.Background()
	registry := tools.NewRegistry()
	m := NewManager(registry)

	client := &fakeClient{tools: []mcp.ToolRetType{remoteToolDef("echo", "")}}
	connect(m, "srv", client)
	require.NoError(t, m.RefreshTools(ctx, "srv"))

	// the registry path: the proxy strips the namespace before forwarding
	out := registry.Execute(ctx, "srv__echo", `{"msg":"hi"}`)
	require.NotNil(t, out)
	assert.False(t, out.IsError)
	assert.Equal(t, "ok", out.Content)
	assert.Equal(t, "echo", client.lastTool)
	assert.Equal(t, map[string]any{"msg": "hi"}, client.lastArgs)

	// empty input forwards an empty argument object
	out = m.ExecuteTool(ctx, "srv__echo", "  ")
	assert.False(t, out.IsError)
	assert.Equal(t, map[string]any{}, client.lastArgs)

	// invalid JSON input resolves to an error result, not a call
	out = m.ExecuteTool(ctx, "srv__echo", "{broken")
	require.NotNil(t, out)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "invalid tool arguments")

	out = m.ExecuteTool(ctx, "unqualified", "{}")
	assert.True(t, out.IsError)

	out = m.ExecuteTool(ctx, "ghost__echo", "{}")
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "not connected")
}

func Test_Manager_ExecuteTool_TransportFault(t *testing.T) {
	ctx := context.Background()
	m := NewManager(tools.NewRegistry())

	client := &fakeClient{callErr: assert.AnError}
	connect(m, "srv", client)

	out := m.ExecuteTool(ctx, "srv__echo", "{}")
	require.NotNil(t, out)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, assert.AnError.Error())
}

func Test_Manager_ContentFlattening(t *testing.T) {
	ctx := context.Background()
	m := NewManager(tools.NewRegistry())

	client := &fakeClient{
		reply: mcp.NewToolResponse(
			mcp.NewTextContent("line one"),
			mcp.NewImageContent("aGVsbG8=", "image/png"),
			mcp.NewTextContent("line two"),
		),
	}
	connect(m, "srv", client)

	out := m.ExecuteTool(ctx, "srv__render", "{}")
	require.NotNil(t, out)
	assert.False(t, out.IsError)
	assert.Contains(t, out.Content, "line one")
	assert.Contains(t, out.Content, "line two")
	// image blocks become a bounded placeholder, never raw base64
	assert.Contains(t, out.Content, "[image image/png")
	assert.NotContains(t, out.Content, "aGVsbG8=")
}

func Test_Manager_Disconnect(t *testing.T) {
	ctx := context.Background()
	registry := tools.NewRegistry()
	m := NewManager(registry)

	client := &fakeClient{tools: []mcp.ToolRetType{remoteToolDef("echo", "")}}
	connect(m, "srv", client)
	require.NoError(t, m.RefreshTools(ctx, "srv"))
	require.NotNil(t, registry.Get("srv__echo"))
	assert.Equal(t, StateConnected, m.State("srv"))

	require.NoError(t, m.Disconnect("srv"))
	assert.Nil(t, registry.Get("srv__echo"))
	assert.Equal(t, StateDisconnected, m.State("srv"))
	assert.Empty(t, m.ToolNames("srv"))

	// idempotent
	require.NoError(t, m.Disconnect("srv"))
}

func Test_ServerConfig_Validate(t *testing.T) {
	assert.Error(t, (&ServerConfig{}).Validate())
	assert.Error(t, (&ServerConfig{Name: "x"}).Validate())
	assert.Error(t, (&ServerConfig{Name: "x", Command: "run", URL: "http://h"}).Validate())
	assert.NoError(t, (&ServerConfig{Name: "x", Command: "run"}).Validate())
	assert.NoError(t, (&ServerConfig{Name: "x", URL: "http://h"}).Validate())
}
