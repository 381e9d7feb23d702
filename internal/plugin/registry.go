package plugin

import "sync"

var (
	constructorsMu sync.RWMutex
	constructors   = map[Kind]map[string]Constructor{}
)

// Register records a Constructor for (kind, name). Intended to be called
// from a plugin package's init(), so the set of available plugins is fixed
// at compile time even though discovery (which of them actually get
// instantiated) stays file-driven.
//
// Register panics on a duplicate (kind, name) pair: that is a build-time
// programming error, not a runtime condition.
func Register(kind Kind, name string, ctor Constructor) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()
	if constructors[kind] == nil {
		constructors[kind] = map[string]Constructor{}
	}
	if _, exists := constructors[kind][name]; exists {
		panic("plugin: duplicate constructor registered for " + string(kind) + "/" + name)
	}
	constructors[kind][name] = ctor
}

// lookup returns the registered constructor for (kind, name), if any.
func lookup(kind Kind, name string) (Constructor, bool) {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()
	ctor, ok := constructors[kind][name]
	return ctor, ok
}

// registeredNames returns every name registered under kind, for diagnostics.
func registeredNames(kind Kind) []string {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()
	names := make([]string, 0, len(constructors[kind]))
	for name := range constructors[kind] {
		names = append(names, name)
	}
	return names
}
