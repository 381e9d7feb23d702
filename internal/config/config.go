// Package config loads the router's JSON configuration file (spec.md §6):
// LLM provider API keys and the set of preconfigured servers to register at
// startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mcprouter/internal/rerr"
)

const fileName = "config.json"

// ServerSpec is one entry of the "servers" map in config.json.
type ServerSpec struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	TransportKind  string            `json:"transport_kind"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	Capabilities   []string          `json:"capabilities"`
	Tags           []string          `json:"tags"`
}

// Config is the top-level shape of config.json.
type Config struct {
	OpenRouterAPIKey string                `json:"openrouter_api_key"`
	OpenAIAPIKey     string                `json:"openai_api_key"`
	AnthropicAPIKey  string                `json:"anthropic_api_key"`
	Servers          map[string]ServerSpec `json:"servers"`
}

// DefaultDir returns the user-config-dir-relative default location of
// config.json (spec.md §6: "user-config dir + /config.json").
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", rerr.Config("DefaultDir", err, "could not determine user config directory")
	}
	return filepath.Join(dir, "mcprouter"), nil
}

// Load reads and parses config.json from dir (or the default directory when
// dir is empty), then applies environment variable overrides. A missing
// file is not an error: Load returns an empty Config so a fresh install can
// register servers purely through the programmatic API.
func Load(dir string) (*Config, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dir, fileName)
	cfg := &Config{Servers: map[string]ServerSpec{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, rerr.Config("Load", err, "failed to read %s", path)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, rerr.Config("Load", err, "malformed config at %s", path)
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]ServerSpec{}
	}

	if err := Validate(cfg); err != nil {
		return nil, rerr.Config("Load", err, "invalid config at %s", path)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets OPENROUTER_API_KEY / OPENAI_API_KEY /
// ANTHROPIC_API_KEY win over whatever config.json specified (spec.md §6).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OpenRouterAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
}

// Validate checks structural requirements on every server entry.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	for id, spec := range cfg.Servers {
		if id == "" {
			errs.Add("servers", "server id must not be empty")
			continue
		}
		switch spec.TransportKind {
		case "", "stdio":
			if spec.Command == "" {
				errs.Add(fmt.Sprintf("servers.%s.command", id), "is required for stdio transport")
			}
		default:
			// Future transport kinds (http, socket) are accepted without a
			// command requirement; the adapter framework decides whether it
			// can handle them at registration time.
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
