package plugin

import (
	"sort"
	"sync"

	"mcprouter/pkg/logging"
)

// Manager discovers, initializes, and looks up plugins for the Router
// Facade (spec.md §4.7). Discovery is two-stage: descriptor files name a
// (kind, constructor) pair; the constructor itself must already be
// registered at compile time via Register.
type Manager struct {
	mu     sync.RWMutex
	handle RouterHandle
	config *ConfigStore

	byName            map[string]Plugin
	routerExtensions  []RouterExtension
	serverAdapters    []ServerAdapter
	routingStrategies []RoutingStrategy
}

// New constructs a Manager. handle is passed to every plugin's Initialize;
// configDir is where per-plugin {name}.json config documents live.
func New(handle RouterHandle, configDir string) *Manager {
	return &Manager{
		handle: handle,
		config: NewConfigStore(configDir),
		byName: map[string]Plugin{},
	}
}

// Discover scans every directory in dirs for descriptor files and
// initializes the plugins they name. A constructor that isn't registered,
// a plugin whose Initialize returns false, or a duplicate name is skipped
// with a warning rather than aborting the whole scan — one bad plugin
// should not keep the rest from loading.
func (m *Manager) Discover(dirs []string) error {
	for _, dir := range dirs {
		descs, err := loadDescriptors(dir)
		if err != nil {
			return err
		}
		for _, d := range descs {
			m.load(d)
		}
	}
	return nil
}

func (m *Manager) load(d descriptor) {
	ctor, ok := lookup(d.Kind, d.Constructor)
	if !ok {
		logging.Warn("PluginManager", "no constructor registered for %s/%s", d.Kind, d.Constructor)
		return
	}
	p, err := ctor()
	if err != nil {
		logging.Warn("PluginManager", "constructor %s/%s failed: %v", d.Kind, d.Constructor, err)
		return
	}
	m.Register(d.Kind, p)
}

// Register initializes and installs a plugin directly, bypassing descriptor
// discovery. Used both by Discover and by tests/embedders that construct
// plugins in-process.
func (m *Manager) Register(kind Kind, p Plugin) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if _, exists := m.byName[name]; exists {
		logging.Warn("PluginManager", "duplicate plugin name %q rejected", name)
		return false
	}
	if !p.Initialize(m.handle) {
		logging.Warn("PluginManager", "plugin %q failed to initialize", name)
		return false
	}

	m.byName[name] = p
	switch kind {
	case KindRouterExtension:
		if re, ok := p.(RouterExtension); ok {
			m.routerExtensions = append(m.routerExtensions, re)
		}
	case KindServerAdapter:
		if sa, ok := p.(ServerAdapter); ok {
			m.serverAdapters = append(m.serverAdapters, sa)
		}
	case KindRoutingStrategy:
		if rs, ok := p.(RoutingStrategy); ok {
			m.routingStrategies = append(m.routingStrategies, rs)
		}
	}
	return true
}

// Shutdown calls Shutdown on every installed plugin.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.byName {
		p.Shutdown()
	}
}

// Get returns the plugin registered under name, if any.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byName[name]
	return p, ok
}

// All returns every installed plugin, sorted by name for stable output.
func (m *Manager) All() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Plugin, 0, len(m.byName))
	for _, p := range m.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RouterExtensions returns installed Router Extension plugins, sorted by
// name so interception order is deterministic.
func (m *Manager) RouterExtensions() []RouterExtension {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]RouterExtension(nil), m.routerExtensions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ServerAdapters returns installed Server Adapter plugins.
func (m *Manager) ServerAdapters() []ServerAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]ServerAdapter(nil), m.serverAdapters...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RoutingStrategies returns every installed Routing Strategy plugin, sorted
// by name. It does not choose one: the Router calls each at query time and
// keeps the highest-confidence result (ties broken by name).
func (m *Manager) RoutingStrategies() []RoutingStrategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]RoutingStrategy(nil), m.routingStrategies...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Config returns the per-plugin config store, exposed so the Router Facade
// can implement get_plugin/set config pass-through operations.
func (m *Manager) Config() *ConfigStore { return m.config }
