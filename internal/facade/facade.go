// Package facade implements the Router Facade (spec.md §4.8): the single
// public surface composing the Cache Manager, Server Registry, Metadata
// Store, Adapter Framework, Health Monitor, Intelligent Router, and Plugin
// Manager into the operations a caller actually invokes.
package facade

import (
	"context"

	"mcprouter/internal/adapter"
	"mcprouter/internal/cache"
	"mcprouter/internal/health"
	"mcprouter/internal/metadata"
	"mcprouter/internal/plugin"
	"mcprouter/internal/registry"
	"mcprouter/internal/router"
	"mcprouter/pkg/logging"
)

// Facade composes C1-C7 behind the operations spec.md §4.8 names.
type Facade struct {
	Registry *registry.Registry
	Metadata *metadata.Store
	Cache    *cache.Manager
	Adapters *adapter.Manager
	Monitor  *health.Monitor
	Router   *router.Router
	Plugins  *plugin.Manager

	pluginDirs []string
}

// Config gathers what New needs beyond the already-constructed components:
// each is built independently (its own persistence path, its own options)
// by the caller (typically cmd/routerd) and handed in fully formed, since
// each one's construction is itself fallible in ways the Facade shouldn't
// have to know about (e.g. opening the metadata database).
type Config struct {
	Registry   *registry.Registry
	Metadata   *metadata.Store
	Cache      *cache.Manager
	Adapters   *adapter.Manager
	Monitor    *health.Monitor
	Router     *router.Router
	Plugins    *plugin.Manager
	PluginDirs []string
}

// New assembles a Facade from already-constructed components.
func New(cfg Config) *Facade {
	return &Facade{
		Registry:   cfg.Registry,
		Metadata:   cfg.Metadata,
		Cache:      cfg.Cache,
		Adapters:   cfg.Adapters,
		Monitor:    cfg.Monitor,
		Router:     cfg.Router,
		Plugins:    cfg.Plugins,
		pluginDirs: cfg.PluginDirs,
	}
}

// Initialize brings every component online in the order spec.md §4.8
// prescribes: cache sweeps, plugin discovery, adapter discovery (a no-op
// for the shipped stdio adapter, which needs no startup scan), connecting
// preconfigured servers, then starting the health monitor.
func (f *Facade) Initialize(ctx context.Context, preconfigured []ServerSpec) error {
	f.Cache.Start(ctx)

	if f.Plugins != nil {
		if err := f.Plugins.Discover(f.pluginDirs); err != nil {
			return err
		}
		// Server Adapter plugins are equivalent to a C4 adapter and are
		// registered into the Adapter Manager at startup (spec.md §4.7), so
		// their launch specs become handle-able the same way the built-in
		// stdio adapter's are.
		for _, sa := range f.Plugins.ServerAdapters() {
			f.Adapters.Register(sa)
		}
	}

	for _, spec := range preconfigured {
		if _, err := f.RegisterServer(ctx, spec.ID, spec.LaunchSpec, spec.Capabilities, spec.Tags, spec.DisplayName, spec.Description); err != nil {
			logging.Warn("Facade", "failed to register preconfigured server %q: %v", spec.ID, err)
		}
	}

	f.Monitor.Start(ctx)
	return nil
}

// Shutdown stops every component in reverse order: health probing first (so
// no new probes race the adapter disconnects below), then adapters, then
// plugins, then the cache's background sweeps.
func (f *Facade) Shutdown(ctx context.Context) error {
	f.Monitor.Stop()

	for _, id := range f.Registry.OnlineIDs() {
		if err := f.Adapters.Disconnect(id); err != nil {
			logging.Warn("Facade", "failed to disconnect %q during shutdown: %v", id, err)
		}
	}

	if f.Plugins != nil {
		f.Plugins.Shutdown()
	}

	return f.Cache.Shutdown(ctx)
}

// ServerSpec is a preconfigured server entry (spec.md §6's config.json
// "servers" map, transport-neutral).
type ServerSpec struct {
	ID           string
	LaunchSpec   registry.LaunchSpec
	Capabilities []string
	Tags         []string
	DisplayName  string
	Description  string
}
