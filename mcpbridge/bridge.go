package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentic/pkg/metricskey"
	"github.com/effective-security/agentic/tools"
	"github.com/effective-security/xlog"
	mcp "github.com/metoro-io/mcp-golang"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"
	"github.com/metoro-io/mcp-golang/transport/stdio"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentic", "mcpbridge")

// State of a tool-server connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ErrServerNotConnected is returned for operations on an unknown or
// disconnected server.
var ErrServerNotConnected = errors.New("tool server not connected")

// client is the subset of the MCP client used by the bridge.
type client interface {
	Initialize(ctx context.Context) (*mcp.InitializeResponse, error)
	ListTools(ctx context.Context, cursor *string) (*mcp.ToolsResponse, error)
	CallTool(ctx context.Context, name string, arguments any) (*mcp.ToolResponse, error)
}

type serverConn struct {
	name      string
	client    client
	close     func()
	toolNames []string
}

// Manager owns connections to external tool servers, discovers their
// capabilities, namespaces them into the registry and proxies invocation.
// The interface implies no retry policy; callers decide when to reconnect.
type Manager struct {
	registry *tools.Registry

	mu      sync.Mutex
	servers map[string]*serverConn
}

// NewManager creates a Manager registering discovered tools into registry.
func NewManager(registry *tools.Registry) *Manager {
	return &Manager{
		registry: registry,
		servers:  make(map[string]*serverConn),
	}
}

// State returns the connection state of the named server.
func (m *Manager) State(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[name]; ok {
		return StateConnected
	}
	return StateDisconnected
}

// Servers returns the names of connected servers.
func (m *Manager) Servers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	return names
}

// Connect opens the transport, performs the MCP handshake and discovers the
// server's tools before returning. A failed handshake leaves no state
// behind.
func (m *Manager) Connect(ctx context.Context, cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.servers[cfg.Name]; ok {
		m.mu.Unlock()
		return errors.Errorf("server %s: already connected", cfg.Name)
	}
	m.mu.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "connecting",
		"server", cfg.Name,
	)

	conn, err := m.open(ctx, cfg)
	if err != nil {
		return errors.WithMessagef(err, "failed to connect to server %s", cfg.Name)
	}

	if _, err := conn.client.Initialize(ctx); err != nil {
		conn.close()
		return errors.WithMessagef(err, "server %s: handshake failed", cfg.Name)
	}

	m.mu.Lock()
	if _, ok := m.servers[cfg.Name]; ok {
		m.mu.Unlock()
		conn.close()
		return errors.Errorf("server %s: already connected", cfg.Name)
	}
	m.servers[cfg.Name] = conn
	m.mu.Unlock()

	metricskey.StatsMcpServerConnects.IncrCounter(1, cfg.Name)

	if err := m.RefreshTools(ctx, cfg.Name); err != nil {
		_ = m.Disconnect(cfg.Name)
		return err
	}
	return nil
}

func (m *Manager) open(ctx context.Context, cfg ServerConfig) (*serverConn, error) {
	if cfg.URL != "" {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "/mcp"
		}
		transport := mcphttp.NewHTTPClientTransport(endpoint)
		transport.WithBaseURL(strings.TrimSuffix(cfg.URL, "/"))
		return &serverConn{
			name:   cfg.Name,
			client: mcp.NewClient(transport),
			close:  func() {},
		}, nil
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", cfg.Command)
	}

	conn := &serverConn{
		name:   cfg.Name,
		client: mcp.NewClient(stdio.NewStdioServerTransportWithIO(stdout, stdin)),
	}
	var once sync.Once
	conn.close = func() {
		once.Do(func() {
			_ = stdin.Close()
			_ = cmd.Process.Kill()
		})
	}

	// Purge the server's tools the moment the process exits, so no
	// registry entry ever references a dead connection.
	go func() {
		err := cmd.Wait()
		if m.dropConn(cfg.Name, conn) {
			logger.KV(xlog.WARNING,
				"status", "server_exited",
				"server", cfg.Name,
				"err", fmt.Sprintf("%v", err),
			)
		}
	}()

	return conn, nil
}

// dropConn removes the connection and its tools if it is still the current
// one for the name. It reports whether anything was removed.
func (m *Manager) dropConn(name string, conn *serverConn) bool {
	m.mu.Lock()
	cur, ok := m.servers[name]
	if !ok || (conn != nil && cur != conn) {
		m.mu.Unlock()
		return false
	}
	delete(m.servers, name)
	m.mu.Unlock()

	cur.close()
	removed := m.registry.RemoveNamespace(name)
	metricskey.StatsMcpServerDisconnects.IncrCounter(1, name)
	logger.KV(xlog.DEBUG,
		"status", "disconnected",
		"server", name,
		"tools_removed", removed,
	)
	return true
}

// Disconnect closes the transport and removes every tool registered under
// the server's namespace. Safe to call twice.
func (m *Manager) Disconnect(name string) error {
	m.dropConn(name, nil)
	return nil
}

// Close disconnects all servers.
func (m *Manager) Close() {
	for _, name := range m.Servers() {
		_ = m.Disconnect(name)
	}
}

// RefreshTools queries the server for its current tool list and replaces
// the server's namespace in the registry with it. Stale entries that the
// new list omits are removed.
func (m *Manager) RefreshTools(ctx context.Context, name string) error {
	m.mu.Lock()
	conn, ok := m.servers[name]
	m.mu.Unlock()
	if !ok {
		return errors.WithMessagef(ErrServerNotConnected, "server %s", name)
	}

	var list []tools.ITool
	var names []string
	var cursor *string
	for {
		resp, err := conn.client.ListTools(ctx, cursor)
		if err != nil {
			return errors.WithMessagef(err, "server %s: failed to list tools", name)
		}
		for _, t := range resp.Tools {
			description := ""
			if t.Description != nil {
				description = *t.Description
			}
			qualified := tools.QualifiedName(name, t.Name)
			list = append(list, &remoteTool{
				manager:     m,
				server:      name,
				name:        qualified,
				description: description,
				schema:      t.InputSchema,
			})
			names = append(names, qualified)
		}
		if resp.NextCursor == nil {
			break
		}
		cursor = resp.NextCursor
	}

	m.registry.SetNamespace(name, list)

	m.mu.Lock()
	conn.toolNames = names
	m.mu.Unlock()

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tools_refreshed",
		"server", name,
		"tools", len(names),
	)
	return nil
}

// ToolNames returns the qualified names the server currently exposes.
func (m *Manager) ToolNames(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.servers[name]; ok {
		return append([]string(nil), conn.toolNames...)
	}
	return nil
}

// ExecuteTool strips the server prefix from a qualified name, forwards the
// call over the transport and flattens the result content blocks into a
// single string. Transport failures, including a cancelled ctx, are
// returned as an error Output and never escape as an error.
func (m *Manager) ExecuteTool(ctx context.Context, qualified, input string) *tools.Output {
	server, toolName, ok := tools.SplitQualified(qualified)
	if !ok {
		return tools.ErrorOutput(fmt.Sprintf("invalid tool name: %s", qualified))
	}

	m.mu.Lock()
	conn, connected := m.servers[server]
	m.mu.Unlock()
	if !connected {
		return tools.ErrorOutput(fmt.Sprintf("tool server not connected: %s", server))
	}

	args := map[string]any{}
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			return tools.ErrorOutput(fmt.Sprintf("invalid tool arguments: %s", err.Error()))
		}
	}

	started := time.Now()
	resp, err := conn.client.CallTool(ctx, toolName, args)
	metricskey.PerfMcpToolCall.MeasureSince(started, server)

	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "remote_tool_call_failed",
			"server", server,
			"tool", toolName,
			"err", err.Error(),
		)
		return tools.ErrorOutput(err.Error())
	}

	return tools.TextOutput(flattenContent(resp.Content))
}

// flattenContent renders MCP content blocks as one string. Image blocks
// become a placeholder reference to keep text-stream output bounded; any
// unrecognized block is serialized as JSON rather than dropped.
func flattenContent(blocks []*mcp.Content) string {
	var parts []string
	for _, block := range blocks {
		if block == nil {
			continue
		}
		switch {
		case block.TextContent != nil:
			parts = append(parts, block.TextContent.Text)
		case block.ImageContent != nil:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes base64]",
				block.ImageContent.MimeType, len(block.ImageContent.Data)))
		default:
			js, err := json.Marshal(block)
			if err != nil {
				continue
			}
			parts = append(parts, string(js))
		}
	}
	return strings.Join(parts, "\n")
}

// remoteTool proxies a tool exposed by an external server. It conforms to
// the same capability interface as local tools, so the registry and the
// loop never branch on the tool's origin.
type remoteTool struct {
	manager     *Manager
	server      string
	name        string
	description string
	schema      any
}

var _ tools.ITool = (*remoteTool)(nil)

func (t *remoteTool) Name() string {
	return t.name
}

func (t *remoteTool) Description() string {
	return t.description
}

func (t *remoteTool) Parameters() any {
	return t.schema
}

func (t *remoteTool) Call(ctx context.Context, input string) (*tools.Output, error) {
	return t.manager.ExecuteTool(ctx, t.name, input), nil
}

// ConnectAll connects every configured server; it keeps going on individual
// failures and returns the combined error.
func (m *Manager) ConnectAll(ctx context.Context, cfg *Config) error {
	var errs []error
	for _, sc := range cfg.Servers {
		if err := m.Connect(ctx, sc); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "connect_failed",
				"server", sc.Name,
				"err", err.Error(),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
