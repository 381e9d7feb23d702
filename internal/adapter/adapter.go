// Package adapter implements the transport-abstracted Adapter Framework
// (spec.md §4.4): a fixed interface over server transports, with a shipped
// stdio implementation built on mark3labs/mcp-go, and a Manager that indexes
// adapters by kind and owns the server_id -> active connection mapping.
package adapter

import (
	"context"
	"encoding/json"

	"mcprouter/internal/registry"
)

// ToolDescriptor is the normalized {name, description, schema} triple
// returned by ListTools.
type ToolDescriptor struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ToolResult is the normalized result of ExecuteTool.
type ToolResult struct {
	Content any
	IsError bool
	RawText string
}

// Adapter is the fixed interface every transport implementation satisfies
// (spec.md §4.4). A single Adapter instance serves many servers at once,
// identified by serverID; it is the Manager's job to route by serverID to
// the Adapter that owns that server's connection.
type Adapter interface {
	// CanHandle reports whether this adapter can bring spec online, used as
	// the fallback when no adapter's Kind matches spec.Kind exactly.
	CanHandle(spec registry.LaunchSpec) bool

	// Connect spawns/dials the server and performs the MCP handshake.
	Connect(ctx context.Context, serverID string, spec registry.LaunchSpec) error

	// Disconnect closes the session. Must be idempotent.
	Disconnect(serverID string) error

	// ExecuteTool sends a call_tool request and awaits the response.
	ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (*ToolResult, error)

	// ListTools returns the server's tools, normalized and cached until the
	// next Disconnect.
	ListTools(ctx context.Context, serverID string) ([]ToolDescriptor, error)

	// ProbeHealth reports (healthy, elapsedSeconds). If not connected, it
	// attempts a transient connect/disconnect round-trip.
	ProbeHealth(ctx context.Context, serverID string, spec registry.LaunchSpec) (bool, float64)

	Kind() registry.TransportKind
	Name() string
	Version() string
}
