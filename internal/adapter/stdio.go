package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"mcprouter/internal/registry"
	"mcprouter/internal/rerr"
	"mcprouter/pkg/logging"
)

// defaultInitTimeout bounds the subprocess spawn + MCP handshake, mirroring
// the teacher's StdioClient.DefaultStdioInitTimeout.
const defaultInitTimeout = 10 * time.Second

// stdioConnection is one connected child process and the client speaking to
// it. Single-writer: callers hold mu for the duration of a request/response
// exchange (spec.md §4.4's concurrency note).
type stdioConnection struct {
	mu        sync.Mutex
	client    client.MCPClient
	toolsByID []ToolDescriptor
}

// StdioAdapter is the shipped Adapter implementation: it manages a fleet of
// local subprocesses speaking MCP over stdio, generalizing the teacher's
// single-purpose mcpserver.StdioClient into a multi-server Adapter keyed by
// serverID.
type StdioAdapter struct {
	mu          sync.RWMutex
	connections map[string]*stdioConnection
}

// NewStdioAdapter constructs an empty StdioAdapter.
func NewStdioAdapter() *StdioAdapter {
	return &StdioAdapter{connections: make(map[string]*stdioConnection)}
}

func (a *StdioAdapter) Kind() registry.TransportKind { return registry.TransportStdio }
func (a *StdioAdapter) Name() string                 { return "stdio" }
func (a *StdioAdapter) Version() string              { return "1.0.0" }

// CanHandle accepts any launch spec carrying a non-empty command, so a
// future transport kind that happens to still be a local executable can
// fall back to this adapter.
func (a *StdioAdapter) CanHandle(spec registry.LaunchSpec) bool {
	return spec.Command != ""
}

// Connect spawns the child process with the configured command, arguments,
// and environment overlay merged onto the parent environment, then performs
// the MCP initialize handshake.
func (a *StdioAdapter) Connect(ctx context.Context, serverID string, spec registry.LaunchSpec) error {
	a.mu.Lock()
	if _, exists := a.connections[serverID]; exists {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	envStrings := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	logging.Debug("StdioAdapter", "connecting %s: %s %v", serverID, spec.Command, spec.Args)
	mcpClient, err := client.NewStdioMCPClient(spec.Command, envStrings, spec.Args...)
	if err != nil {
		return rerr.Connect("Connect", err, "failed to spawn %s for server %s", spec.Command, serverID)
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, defaultInitTimeout)
		defer cancel()
	}

	_, err = mcpClient.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "mcprouter",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		_ = mcpClient.Close()
		return rerr.Connect("Connect", err, "failed MCP handshake with server %s", serverID)
	}

	a.mu.Lock()
	a.connections[serverID] = &stdioConnection{client: mcpClient}
	a.mu.Unlock()
	return nil
}

// Disconnect closes the session and terminates the child; idempotent.
func (a *StdioAdapter) Disconnect(serverID string) error {
	a.mu.Lock()
	conn, ok := a.connections[serverID]
	delete(a.connections, serverID)
	a.mu.Unlock()

	if !ok {
		return nil
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.client.Close(); err != nil {
		return rerr.Connect("Disconnect", err, "failed to close connection for server %s", serverID)
	}
	return nil
}

func (a *StdioAdapter) connection(serverID string) (*stdioConnection, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	conn, ok := a.connections[serverID]
	if !ok {
		return nil, rerr.Connect("connection", nil, "server %q is not connected", serverID)
	}
	return conn, nil
}

// ExecuteTool sends a call_tool request and awaits the response.
func (a *StdioAdapter) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (*ToolResult, error) {
	conn, err := a.connection(serverID)
	if err != nil {
		return nil, err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	result, err := conn.client.CallTool(ctx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      toolName,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, rerr.Tool("ExecuteTool", err, "server %s tool %s failed", serverID, toolName)
	}

	return normalizeToolResult(result), nil
}

func normalizeToolResult(result *mcp.CallToolResult) *ToolResult {
	out := &ToolResult{IsError: result.IsError}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out.RawText += tc.Text
		}
	}
	out.Content = result.Content
	return out
}

// ListTools sends a list_tools request and normalizes/caches the result.
// Tools lacking a valid schema are skipped with a warning, per spec.md §4.4.
func (a *StdioAdapter) ListTools(ctx context.Context, serverID string) ([]ToolDescriptor, error) {
	conn, err := a.connection(serverID)
	if err != nil {
		return nil, err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.toolsByID != nil {
		return conn.toolsByID, nil
	}

	result, err := conn.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, rerr.Tool("ListTools", err, "failed to list tools for server %s", serverID)
	}

	var out []ToolDescriptor
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			logging.Warn("StdioAdapter", "skipping tool %s on server %s: invalid schema: %v", t.Name, serverID, err)
			continue
		}
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Schema:      schema,
		})
	}
	conn.toolsByID = out
	return out, nil
}

// ProbeHealth issues a lightweight list_tools and measures wall time if
// connected; otherwise attempts a transient connect/disconnect round-trip.
func (a *StdioAdapter) ProbeHealth(ctx context.Context, serverID string, spec registry.LaunchSpec) (bool, float64) {
	start := time.Now()

	conn, err := a.connection(serverID)
	if err == nil {
		conn.mu.Lock()
		_, listErr := conn.client.ListTools(ctx, mcp.ListToolsRequest{})
		conn.mu.Unlock()
		elapsed := time.Since(start).Seconds()
		if listErr != nil {
			return false, elapsed
		}
		return true, elapsed
	}

	if connErr := a.Connect(ctx, serverID, spec); connErr != nil {
		return false, time.Since(start).Seconds()
	}
	_ = a.Disconnect(serverID)
	return true, time.Since(start).Seconds()
}
