package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mcprouter/internal/adapter"
	"mcprouter/internal/cache"
	"mcprouter/internal/config"
	"mcprouter/internal/facade"
	"mcprouter/internal/health"
	"mcprouter/internal/metadata"
	"mcprouter/internal/plugin"
	"mcprouter/internal/registry"
	"mcprouter/internal/router"
	"mcprouter/pkg/logging"
)

// shutdownGrace bounds how long Shutdown gets to drain before serve returns
// regardless, once an interrupt has been received.
const shutdownGrace = 5 * time.Second

// dataDir is where routerd keeps its own state: the registry's
// server_registry.json, the metadata.db SQLite file, the disk cache tier,
// and discovered plugin descriptors. The internal/config loader reads
// config.json from the same directory.
var dataDir string

// debug enables verbose logging across every command, mirroring the
// teacher's serveDebug flag.
var debug bool

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for routerd's persisted state (default: OS user config dir + /mcprouter)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level logging")
}

func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	return config.DefaultDir()
}

// engine is every long-lived component the façade composes, kept together
// so callers (serve, stats, health, plugins) can build one and defer its
// cleanup in a single place.
type engine struct {
	facade *facade.Facade
	store  *metadata.Store
}

// buildEngine constructs C1-C8 against dir and returns the config loaded
// from it. It does not register cfg's preconfigured servers; serve passes
// them to Facade.Initialize. cfg's API keys are not used: no LLMAnalyzer is
// wired in, so the Intelligent Router uses keyword matching unless a Routing
// Strategy plugin overrides it.
func buildEngine(cmd *cobra.Command, dir string) (*engine, *config.Config, error) {
	if debug {
		logging.Init(logging.LevelDebug, os.Stderr)
	} else {
		logging.Init(logging.LevelInfo, os.Stderr)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}

	persister := registry.NewPersister(filepath.Join(dir, "server_registry.json"))
	reg := registry.New(persister.Func())
	if servers, err := registry.Load(filepath.Join(dir, "server_registry.json")); err == nil {
		for _, s := range servers {
			caps := make([]string, 0, len(s.Capabilities))
			for c := range s.Capabilities {
				caps = append(caps, c)
			}
			tags := make([]string, 0, len(s.Tags))
			for t := range s.Tags {
				tags = append(tags, t)
			}
			if _, err := reg.Register(s.ID, s.LaunchSpec, caps, tags, s.DisplayName, s.Description); err != nil {
				logging.Warn("routerd", "failed to restore server %q from disk: %v", s.ID, err)
				continue
			}
			_ = reg.UpdateHealth(s.ID, s.Health.Status, &s.Health.EWMAResponseTime)
		}
	} else {
		logging.Warn("routerd", "failed to load persisted registry: %v", err)
	}

	store, err := metadata.Open(filepath.Join(dir, "metadata.db"))
	if err != nil {
		return nil, nil, err
	}

	cacheMgr := cache.New(cache.Options{DiskDir: filepath.Join(dir, "cache")})
	adapters := adapter.NewManager(adapter.NewStdioAdapter())
	monitor := health.New(reg, adapters)
	rtr := router.New(reg, store)

	pluginDirs := []string{filepath.Join(dir, "plugins")}

	f := facade.New(facade.Config{
		Registry:   reg,
		Metadata:   store,
		Cache:      cacheMgr,
		Adapters:   adapters,
		Monitor:    monitor,
		Router:     rtr,
		PluginDirs: pluginDirs,
	})
	// The Plugin Manager needs the façade itself as its RouterHandle, which
	// can only be constructed once the façade exists (plugin.RouterHandle
	// is satisfied structurally by *facade.Facade's RouteQuery/ExecuteTool).
	// The Router, in turn, needs that same Plugin Manager to let an
	// installed Routing Strategy or Router Extension plugin take over —
	// SetPlugins closes that cycle once both sides exist.
	f.Plugins = plugin.New(f, filepath.Join(dir, "plugin-config"))
	rtr.SetPlugins(f.Plugins)

	return &engine{facade: f, store: store}, cfg, nil
}

func (e *engine) close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func preconfiguredServers(cfg *config.Config) []facade.ServerSpec {
	specs := make([]facade.ServerSpec, 0, len(cfg.Servers))
	for id, s := range cfg.Servers {
		kind := registry.TransportStdio
		if s.TransportKind != "" {
			kind = registry.TransportKind(s.TransportKind)
		}
		specs = append(specs, facade.ServerSpec{
			ID: id,
			LaunchSpec: registry.LaunchSpec{
				Kind:    kind,
				Command: s.Command,
				Args:    s.Args,
				Env:     s.Env,
			},
			Capabilities: s.Capabilities,
			Tags:         s.Tags,
			DisplayName:  s.Name,
			Description:  s.Description,
		})
	}
	return specs
}
