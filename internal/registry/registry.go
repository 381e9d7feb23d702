package registry

import (
	"sync"
	"time"

	"mcprouter/internal/rerr"
	"mcprouter/pkg/ewma"
	"mcprouter/pkg/logging"
)

// Registry is the in-process authoritative map of server id -> entry,
// eagerly persisted to disk after every mutation (spec.md §4.2).
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*Server

	persist func(snapshot Snapshot) error
}

// Snapshot is the full, serializable state of the registry at a point in
// time, handed to the configured persister after every mutation.
type Snapshot struct {
	Servers []*Server
}

// New constructs an empty Registry. persist is called (outside the
// registry's lock) after every mutation with a consistent snapshot; pass nil
// to disable persistence (useful in tests).
func New(persist func(Snapshot) error) *Registry {
	return &Registry{
		servers: make(map[string]*Server),
		persist: persist,
	}
}

// Register creates a new Server. Per spec.md §3's invariant, a Server is
// created with at least the empty capability set and an Unknown health
// snapshot.
func (r *Registry) Register(id string, spec LaunchSpec, capabilities, tags []string, displayName, description string) (*Server, error) {
	r.mu.Lock()
	if _, exists := r.servers[id]; exists {
		r.mu.Unlock()
		return nil, rerr.Registry("Register", nil, "server %q already registered", id)
	}

	s := &Server{
		ID:           id,
		LaunchSpec:   spec,
		Capabilities: toSet(capabilities),
		Tags:         toSet(tags),
		DisplayName:  displayName,
		Description:  description,
		Health:       HealthSnapshot{Status: StatusUnknown},
	}
	r.servers[id] = s
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persistAsync(snap)
	return s, nil
}

// Unregister removes a Server. Cascading deletion of Tools/UsageRecords is
// the Metadata Store's responsibility (spec.md §4.3); the Registry only
// drops its own in-memory/persisted copy.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	if _, exists := r.servers[id]; !exists {
		r.mu.Unlock()
		return rerr.Registry("Unregister", nil, "server %q not found", id)
	}
	delete(r.servers, id)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persistAsync(snap)
	return nil
}

// Lookup returns a copy of the server with id, if registered.
func (r *Registry) Lookup(id string) (Server, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.servers[id]
	if !ok {
		return Server{}, false
	}
	return cloneServer(s), true
}

// ListAll returns a snapshot copy of every registered server.
func (r *Registry) ListAll() []Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Server, 0, len(r.servers))
	for _, s := range r.servers {
		out = append(out, cloneServer(s))
	}
	return out
}

// ByCapability returns online servers advertising cap.
func (r *Registry) ByCapability(cap string) []Server {
	return r.ByCapabilities([]string{cap}, true)
}

// ByCapabilities returns online servers matching caps: all of them when
// requireAll is true, any of them otherwise.
func (r *Registry) ByCapabilities(caps []string, requireAll bool) []Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Server
	for _, s := range r.servers {
		if s.Health.Status != StatusOnline {
			continue
		}
		if matchesCapabilities(s, caps, requireAll) {
			out = append(out, cloneServer(s))
		}
	}
	return out
}

func matchesCapabilities(s *Server, caps []string, requireAll bool) bool {
	if len(caps) == 0 {
		return false
	}
	matched := 0
	for _, c := range caps {
		if _, ok := s.Capabilities[c]; ok {
			matched++
			if !requireAll {
				return true
			}
		}
	}
	if requireAll {
		return matched == len(caps)
	}
	return false
}

// UpdateCapabilities replaces a server's capability set.
func (r *Registry) UpdateCapabilities(id string, capabilities []string) error {
	r.mu.Lock()
	s, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return rerr.Registry("UpdateCapabilities", nil, "server %q not found", id)
	}
	s.Capabilities = toSet(capabilities)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persistAsync(snap)
	return nil
}

// UpdateTags replaces a server's tag set.
func (r *Registry) UpdateTags(id string, tags []string) error {
	r.mu.Lock()
	s, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return rerr.Registry("UpdateTags", nil, "server %q not found", id)
	}
	s.Tags = toSet(tags)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persistAsync(snap)
	return nil
}

// UpdateHealth applies a new health measurement following the algorithm in
// spec.md §4.2: Online transitions reset the error count, stamp
// last_success_at, and fold responseTime into the EWMA (shared helper in
// pkg/ewma so the Registry and the Metadata Store can never drift apart);
// any other status increments consecutive_errors and leaves last_success_at
// untouched. last_probe_at is always refreshed.
func (r *Registry) UpdateHealth(id string, status Status, responseTime *float64) error {
	r.mu.Lock()
	s, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return rerr.Registry("UpdateHealth", nil, "server %q not found", id)
	}

	now := time.Now()
	h := &s.Health
	h.LastProbeAt = now
	if status == StatusOnline {
		h.ConsecutiveErrors = 0
		h.LastSuccessAt = now
		if responseTime != nil {
			h.EWMAResponseTime = ewma.Next(h.EWMAResponseTime, h.hasResponseTime, *responseTime)
			h.hasResponseTime = true
		}
	} else {
		h.ConsecutiveErrors++
	}
	h.Status = status

	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persistAsync(snap)
	return nil
}

// AllCapabilities returns the distinct capability names advertised by any
// registered server, regardless of health status — the Intelligent Router
// presents this set to an LLM-assisted analysis pass (spec.md §4.6).
func (r *Registry) AllCapabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, s := range r.servers {
		for c := range s.Capabilities {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

// OnlineIDs returns the ids of every server currently Online.
func (r *Registry) OnlineIDs() []string { return r.idsWithStatus(StatusOnline) }

// OfflineIDs returns the ids of every server currently Offline.
func (r *Registry) OfflineIDs() []string { return r.idsWithStatus(StatusOffline) }

func (r *Registry) idsWithStatus(status Status) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, s := range r.servers {
		if s.Health.Status == status {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) snapshotLocked() Snapshot {
	servers := make([]*Server, 0, len(r.servers))
	for _, s := range r.servers {
		cp := cloneServer(s)
		servers = append(servers, &cp)
	}
	return Snapshot{Servers: servers}
}

func (r *Registry) persistAsync(snap Snapshot) {
	if r.persist == nil {
		return
	}
	if err := r.persist(snap); err != nil {
		logging.Warn("Registry", "failed to persist registry: %v", err)
	}
}

func cloneServer(s *Server) Server {
	cp := *s
	cp.Capabilities = cloneSet(s.Capabilities)
	cp.Tags = cloneSet(s.Tags)
	return cp
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, i := range items {
		out[i] = struct{}{}
	}
	return out
}
