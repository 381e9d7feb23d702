package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"mcprouter/internal/rerr"
)

// ConfigStore holds per-plugin configuration on disk as {plugin_name}.json
// under a single directory, per spec.md §4.7. Writes are best-effort: a
// failed Save logs nothing itself (callers decide what to do with the
// error) but never corrupts the existing file, since it's written to a temp
// path and renamed into place.
type ConfigStore struct {
	dir string
	mu  sync.Mutex
}

// NewConfigStore targets dir (created on first write if missing).
func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (c *ConfigStore) path(name string) string {
	return filepath.Join(c.dir, name+".json")
}

// Load reads the full config document for a plugin. A plugin with no config
// file yet gets an empty map, not an error.
func (c *ConfigStore) Load(name string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(name)
}

func (c *ConfigStore) loadLocked(name string) (map[string]any, error) {
	data, err := os.ReadFile(c.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, rerr.Config("Load", err, "failed to read config for plugin %q", name)
	}
	cfg := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, rerr.Config("Load", err, "malformed config for plugin %q", name)
		}
	}
	return cfg, nil
}

// Save atomically overwrites a plugin's entire config document.
func (c *ConfigStore) Save(name string, cfg map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(name, cfg)
}

func (c *ConfigStore) saveLocked(name string, cfg map[string]any) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return rerr.Config("Save", err, "failed to create plugin config dir %s", c.dir)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return rerr.Config("Save", err, "failed to marshal config for plugin %q", name)
	}
	tmp, err := os.CreateTemp(c.dir, "."+name+"-*.tmp")
	if err != nil {
		return rerr.Config("Save", err, "failed to create temp file for plugin %q", name)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return rerr.Config("Save", err, "failed to write config for plugin %q", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return rerr.Config("Save", err, "failed to close temp file for plugin %q", name)
	}
	if err := os.Rename(tmpPath, c.path(name)); err != nil {
		os.Remove(tmpPath)
		return rerr.Config("Save", err, "failed to install config for plugin %q", name)
	}
	return nil
}

// Get reads a single key from a plugin's config.
func (c *ConfigStore) Get(name, key string) (any, bool, error) {
	cfg, err := c.Load(name)
	if err != nil {
		return nil, false, err
	}
	v, ok := cfg[key]
	return v, ok, nil
}

// Set writes a single key into a plugin's config, read-modify-write.
func (c *ConfigStore) Set(name, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, err := c.loadLocked(name)
	if err != nil {
		return err
	}
	cfg[key] = value
	return c.saveLocked(name, cfg)
}

// Delete removes a single key from a plugin's config. Deleting a key that
// isn't set is not an error.
func (c *ConfigStore) Delete(name, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, err := c.loadLocked(name)
	if err != nil {
		return err
	}
	delete(cfg, key)
	return c.saveLocked(name, cfg)
}
