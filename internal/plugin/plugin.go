// Package plugin implements the Plugin Manager (spec.md §4.7). Per the
// REDESIGN FLAG in spec.md §9, dynamic reflection-based loading is replaced
// by a static constructor registry: plugin packages register a Constructor
// under a (Kind, name) pair from their own init(), and discovery stays
// file-driven — configured directories are scanned for descriptor files
// naming which registered constructor to instantiate.
package plugin

import (
	"context"

	"mcprouter/internal/adapter"
)

// Kind identifies which of the three plugin contracts a plugin implements.
type Kind string

const (
	KindRouterExtension Kind = "router_extension"
	KindServerAdapter   Kind = "server_adapter"
	KindRoutingStrategy Kind = "routing_strategy"
)

// Plugin is the common contract every plugin kind extends.
type Plugin interface {
	Name() string
	Version() string
	Description() string
	Initialize(router RouterHandle) bool
	Shutdown()
}

// RouterHandle is the slice of the Router Facade a plugin is given at
// Initialize time. Defined here (rather than imported from internal/facade)
// so this package never depends on the facade package; Facade implements it
// structurally.
type RouterHandle interface {
	RouteQuery(ctx context.Context, query string) ([]string, float64, error)
	ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any, noCache bool) (*adapter.ToolResult, error)
}

// ExtensionResult is what a Router Extension returns when it wants to
// short-circuit normal request processing.
type ExtensionResult struct {
	ServerIDs  []string
	Confidence float64
}

// RouterExtension may intercept a request before C6 runs.
type RouterExtension interface {
	Plugin
	// Intercept returns (result, true) to short-circuit; (nil, false) to
	// let normal routing proceed.
	Intercept(ctx context.Context, query string) (*ExtensionResult, bool)
}

// ServerAdapter is a plugin-supplied adapter.Adapter, registered into the
// Adapter Manager at startup.
type ServerAdapter interface {
	Plugin
	adapter.Adapter
}

// RoutingStrategy overrides C6's select_servers.
type RoutingStrategy interface {
	Plugin
	SelectServers(ctx context.Context, query string) ([]string, float64, error)
}

// Constructor builds a Plugin instance. Registered from a plugin package's
// init() via Register.
type Constructor func() (Plugin, error)
