package adapter

import (
	"context"
	"sync"

	"mcprouter/internal/registry"
	"mcprouter/internal/rerr"
)

// Manager indexes registered adapters by kind and tracks which adapter owns
// each server's live connection, generalizing the teacher's per-transport
// client map (mcpserver.Manager) into a kind-indexed registry of Adapters.
type Manager struct {
	mu       sync.RWMutex
	adapters []Adapter
	owners   map[string]Adapter // serverID -> owning Adapter
}

// NewManager constructs a Manager over the given adapters, in priority
// order for the CanHandle fallback.
func NewManager(adapters ...Adapter) *Manager {
	return &Manager{
		adapters: adapters,
		owners:   make(map[string]Adapter),
	}
}

// Register adds an adapter to the manager after construction (used by the
// Plugin Manager to install a ServerAdapter plugin).
func (m *Manager) Register(a Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters = append(m.adapters, a)
}

// selectAdapter implements spec.md §4.4's adapter-selection rule: first try
// adapters whose Kind() equals spec.Kind, then fall back to any adapter
// whose CanHandle reports true.
func (m *Manager) selectAdapter(spec registry.LaunchSpec) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.adapters {
		if a.Kind() == spec.Kind {
			return a, nil
		}
	}
	for _, a := range m.adapters {
		if a.CanHandle(spec) {
			return a, nil
		}
	}
	return nil, rerr.Adapter("selectAdapter", "no adapter can handle launch spec of kind %q", spec.Kind)
}

// Connect selects an adapter for spec, connects serverID through it, and
// records the ownership so later operations route to the same adapter.
func (m *Manager) Connect(ctx context.Context, serverID string, spec registry.LaunchSpec) error {
	a, err := m.selectAdapter(spec)
	if err != nil {
		return err
	}
	if err := a.Connect(ctx, serverID, spec); err != nil {
		return err
	}

	m.mu.Lock()
	m.owners[serverID] = a
	m.mu.Unlock()
	return nil
}

// Disconnect closes serverID's connection through its owning adapter, if any.
func (m *Manager) Disconnect(serverID string) error {
	m.mu.Lock()
	a, ok := m.owners[serverID]
	delete(m.owners, serverID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return a.Disconnect(serverID)
}

func (m *Manager) owner(serverID string) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.owners[serverID]
	if !ok {
		return nil, rerr.Connect("owner", nil, "server %q has no active connection", serverID)
	}
	return a, nil
}

// ExecuteTool routes to serverID's owning adapter.
func (m *Manager) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (*ToolResult, error) {
	a, err := m.owner(serverID)
	if err != nil {
		return nil, err
	}
	return a.ExecuteTool(ctx, serverID, toolName, args)
}

// ListTools routes to serverID's owning adapter.
func (m *Manager) ListTools(ctx context.Context, serverID string) ([]ToolDescriptor, error) {
	a, err := m.owner(serverID)
	if err != nil {
		return nil, err
	}
	return a.ListTools(ctx, serverID)
}

// ProbeHealth routes to an adapter able to handle spec, connecting
// transiently through it when serverID has no live connection.
func (m *Manager) ProbeHealth(ctx context.Context, serverID string, spec registry.LaunchSpec) (bool, float64) {
	a, err := m.owner(serverID)
	if err != nil {
		a, err = m.selectAdapter(spec)
		if err != nil {
			return false, 0
		}
	}
	return a.ProbeHealth(ctx, serverID, spec)
}

// Adapters returns every adapter installed in priority order, for
// introspection (spec.md §4.8's get_all_adapters).
func (m *Manager) Adapters() []Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Adapter(nil), m.adapters...)
}

// AdapterByKind returns the first installed adapter whose Kind matches, for
// introspection (spec.md §4.8's get_adapter).
func (m *Manager) AdapterByKind(kind registry.TransportKind) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.adapters {
		if a.Kind() == kind {
			return a, true
		}
	}
	return nil, false
}

// IsConnected reports whether serverID currently has an owning adapter.
func (m *Manager) IsConnected(serverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.owners[serverID]
	return ok
}
