package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"mcprouter/internal/rerr"
)

// document is the on-disk shape from spec.md §6: three top-level maps keyed
// by server id, rather than one array of composite records, so a reader that
// only cares about health doesn't have to pick it out of a bigger structure.
type document struct {
	Servers            map[string]documentServer `json:"servers"`
	ServerCapabilities map[string][]string        `json:"server_capabilities"`
	ServerHealth       map[string]documentHealth  `json:"server_health"`
}

type documentServer struct {
	ID          string     `json:"id"`
	LaunchSpec  LaunchSpec `json:"launch_spec"`
	Tags        []string   `json:"tags,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Description string     `json:"description,omitempty"`
}

type documentHealth struct {
	Status            Status  `json:"status"`
	LastProbeAt       string  `json:"last_probe_at,omitempty"`
	LastSuccessAt     string  `json:"last_success_at,omitempty"`
	ConsecutiveErrors int     `json:"consecutive_errors"`
	EWMAResponseTime  float64 `json:"ewma_response_time"`
}

// Persister atomically rewrites a registry document to path on every
// mutation, following the teacher's temp-file-then-rename pattern with a
// .bak fallback for a partially-written file found at startup.
type Persister struct {
	path string
}

// NewPersister targets path (typically <config dir>/server_registry.json).
func NewPersister(path string) *Persister {
	return &Persister{path: path}
}

// Func returns the callback to hand to registry.New.
func (p *Persister) Func() func(Snapshot) error {
	return p.Save
}

// Save atomically writes snap to disk: the document is marshaled, written to
// a temp file in the same directory, and renamed over the target so a reader
// never observes a partially-written file.
func (p *Persister) Save(snap Snapshot) error {
	doc := document{
		Servers:            make(map[string]documentServer, len(snap.Servers)),
		ServerCapabilities: make(map[string][]string, len(snap.Servers)),
		ServerHealth:       make(map[string]documentHealth, len(snap.Servers)),
	}
	for _, s := range snap.Servers {
		doc.Servers[s.ID] = documentServer{
			ID:          s.ID,
			LaunchSpec:  s.LaunchSpec,
			Tags:        s.TagSet(),
			DisplayName: s.DisplayName,
			Description: s.Description,
		}
		doc.ServerCapabilities[s.ID] = s.CapabilitySet()
		doc.ServerHealth[s.ID] = documentHealth{
			Status:            s.Health.Status,
			LastProbeAt:       formatTime(s.Health.LastProbeAt),
			LastSuccessAt:     formatTime(s.Health.LastSuccessAt),
			ConsecutiveErrors: s.Health.ConsecutiveErrors,
			EWMAResponseTime:  s.Health.EWMAResponseTime,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return rerr.Registry("Save", err, "failed to marshal registry document")
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerr.Registry("Save", err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".server_registry-*.tmp")
	if err != nil {
		return rerr.Registry("Save", err, "failed to create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return rerr.Registry("Save", err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return rerr.Registry("Save", err, "failed to close temp file")
	}

	// Keep a copy of the last known-good document before replacing it, so a
	// crash mid-rename still leaves a recoverable .bak behind.
	if _, err := os.Stat(p.path); err == nil {
		_ = copyFile(p.path, p.path+".bak")
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return rerr.Registry("Save", err, "failed to rename temp file over %s", p.path)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Load reads a registry document from path, falling back to path+".bak" if
// the primary file is missing or corrupt. A missing document on both paths
// is not an error: the registry simply starts empty.
func Load(path string) ([]*Server, error) {
	data, err := os.ReadFile(path)
	if err != nil || !json.Valid(data) {
		bakData, bakErr := os.ReadFile(path + ".bak")
		if bakErr != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, rerr.Registry("Load", err, "failed to read %s and no usable .bak", path)
		}
		data = bakData
	}

	var doc document
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, rerr.Registry("Load", err, "failed to parse registry document")
	}

	servers := make([]*Server, 0, len(doc.Servers))
	for id, ds := range doc.Servers {
		health := doc.ServerHealth[id]
		servers = append(servers, &Server{
			ID:           id,
			LaunchSpec:   ds.LaunchSpec,
			Capabilities: toSet(doc.ServerCapabilities[id]),
			Tags:         toSet(ds.Tags),
			DisplayName:  ds.DisplayName,
			Description:  ds.Description,
			Health: HealthSnapshot{
				Status:            health.Status,
				LastProbeAt:       parseTime(health.LastProbeAt),
				LastSuccessAt:     parseTime(health.LastSuccessAt),
				ConsecutiveErrors: health.ConsecutiveErrors,
				EWMAResponseTime:  health.EWMAResponseTime,
			},
		})
	}
	return servers, nil
}
