package facade

import (
	"context"

	"mcprouter/internal/adapter"
	"mcprouter/internal/cache"
	"mcprouter/internal/metadata"
	"mcprouter/internal/plugin"
	"mcprouter/internal/registry"
	"mcprouter/internal/rerr"
	"mcprouter/internal/router"
)

// GetServerHealth returns the current health snapshot for one server.
func (f *Facade) GetServerHealth(id string) (registry.HealthSnapshot, error) {
	s, ok := f.Registry.Lookup(id)
	if !ok {
		return registry.HealthSnapshot{}, rerr.Validation("GetServerHealth", "unknown server id %q", id)
	}
	return s.Health, nil
}

// GetAllServerHealth returns every registered server's health snapshot,
// keyed by id.
func (f *Facade) GetAllServerHealth() map[string]registry.HealthSnapshot {
	out := map[string]registry.HealthSnapshot{}
	for _, s := range f.Registry.ListAll() {
		out[s.ID] = s.Health
	}
	return out
}

// GetServerMetadata returns the full durable C3 record for a server.
func (f *Facade) GetServerMetadata(ctx context.Context, id string) (*metadata.ServerRow, error) {
	return f.Metadata.ReadServer(ctx, id)
}

// GetServersByCapability returns online servers advertising cap.
func (f *Facade) GetServersByCapability(cap string) []registry.Server {
	return f.Registry.ByCapability(cap)
}

// GetServersByTag returns the ids of servers tagged with tag.
func (f *Facade) GetServersByTag(ctx context.Context, tag string) ([]string, error) {
	return f.Metadata.ByTag(ctx, tag)
}

// GetAllCapabilities returns every known capability with its server count.
func (f *Facade) GetAllCapabilities(ctx context.Context) ([]metadata.CapabilityCount, error) {
	return f.Metadata.AllCapabilities(ctx)
}

// GetAllTags returns every known tag.
func (f *Facade) GetAllTags(ctx context.Context) ([]string, error) {
	return f.Metadata.AllTags(ctx)
}

// GetTools returns the tools a server advertises.
func (f *Facade) GetTools(ctx context.Context, serverID string) ([]adapter.ToolDescriptor, error) {
	return f.Adapters.ListTools(ctx, serverID)
}

// CacheStats is the combined memory/disk view for get_cache_stats.
type CacheStats struct {
	Memory cache.Stats
	Disk   cache.Stats
}

// GetCacheStats returns the cache's memory and disk tier statistics.
func (f *Facade) GetCacheStats() CacheStats {
	return CacheStats{Memory: f.Cache.MemoryStats(), Disk: f.Cache.DiskStats()}
}

// ClearCache drops every cached entry.
func (f *Facade) ClearCache() {
	f.Cache.Clear()
}

// SystemStats is the aggregate view returned by GetSystemStats: cache
// stats plus registry online/offline counts plus plugin counts, mirroring
// the original_source/ stats() endpoint (spec.md §7).
type SystemStats struct {
	Cache          CacheStats
	ServersOnline  int
	ServersOffline int
	ServersTotal   int
	Plugins        int
}

// GetSystemStats combines cache, registry, and plugin counts into a single
// aggregate snapshot.
func (f *Facade) GetSystemStats() SystemStats {
	stats := SystemStats{
		Cache:          f.GetCacheStats(),
		ServersOnline:  len(f.Registry.OnlineIDs()),
		ServersOffline: len(f.Registry.OfflineIDs()),
		ServersTotal:   len(f.Registry.ListAll()),
	}
	if f.Plugins != nil {
		stats.Plugins = len(f.Plugins.All())
	}
	return stats
}

// GetPlugin returns the plugin registered under name, if any.
func (f *Facade) GetPlugin(name string) (plugin.Plugin, bool) {
	return f.Plugins.Get(name)
}

// GetAllPlugins returns every installed plugin.
func (f *Facade) GetAllPlugins() []plugin.Plugin {
	return f.Plugins.All()
}

// GetAdapter returns the installed adapter for a transport kind, if any.
func (f *Facade) GetAdapter(kind registry.TransportKind) (adapter.Adapter, bool) {
	return f.Adapters.AdapterByKind(kind)
}

// GetAllAdapters returns every installed adapter.
func (f *Facade) GetAllAdapters() []adapter.Adapter {
	return f.Adapters.Adapters()
}

// AnalyzeQuery exposes the Intelligent Router's capability-analysis step
// without running the rest of server selection.
func (f *Facade) AnalyzeQuery(ctx context.Context, query string) router.Analysis {
	return f.Router.AnalyzeQuery(ctx, query)
}
