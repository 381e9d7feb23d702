// Package cache implements the router's two-tier cache (spec.md §4.1): a
// bounded in-memory LRU tier backed by a bounded on-disk tier, with TTL
// expiry, tag-based bulk invalidation, and per-key striped locking so a
// promotion from disk to memory never races a delete of the same key.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mcprouter/internal/rerr"
	"mcprouter/pkg/logging"
)

// Entry is one cached value together with its bookkeeping.
type Entry struct {
	Value        any
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	LastAccessAt time.Time
	AccessCount  int64
	Tags         []string
}

func (e *Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Options configures a Manager. Zero values fall back to spec.md defaults.
type Options struct {
	MemoryCapacity   int           // default 1000
	DiskCapacity     int           // default 10000
	DiskDir          string        // required for a usable disk tier
	MemorySweep      time.Duration // default 60s
	DiskSweep        time.Duration // default 300s
	StripeSize       int           // default 256
}

func (o Options) withDefaults() Options {
	if o.MemoryCapacity <= 0 {
		o.MemoryCapacity = 1000
	}
	if o.DiskCapacity <= 0 {
		o.DiskCapacity = 10000
	}
	if o.MemorySweep <= 0 {
		o.MemorySweep = 60 * time.Second
	}
	if o.DiskSweep <= 0 {
		o.DiskSweep = 300 * time.Second
	}
	if o.StripeSize <= 0 {
		o.StripeSize = 256
	}
	return o
}

// Manager is the public cache façade used by the rest of the router.
type Manager struct {
	opts Options

	memory *memoryTier
	disk   *diskTier

	tagIdx *tagIndex
	locks  *stripedLocks
	group  singleflight.Group

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Manager. The disk tier is best-effort: if opts.DiskDir is
// empty, the disk tier is disabled and the cache degrades to memory-only,
// which is still spec-compliant (disk I/O errors are always non-fatal).
func New(opts Options) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		opts:   opts,
		memory: newMemoryTier(opts.MemoryCapacity),
		tagIdx: newTagIndex(),
		locks:  newStripedLocks(opts.StripeSize),
	}
	if opts.DiskDir != "" {
		m.disk = newDiskTier(opts.DiskDir, opts.DiskCapacity)
	}
	return m
}

// Start launches the background expiry sweeps. Safe to call once.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.sweepLoop(ctx, m.opts.MemorySweep, func(now time.Time) {
		for _, key := range m.memory.sweepExpired(now) {
			unlock := m.locks.lock(key)
			m.deleteLocked(key)
			unlock()
		}
	})

	if m.disk != nil {
		m.wg.Add(1)
		go m.sweepLoop(ctx, m.opts.DiskSweep, func(now time.Time) {
			for _, key := range m.disk.expiredKeys(now) {
				unlock := m.locks.lock(key)
				m.deleteLocked(key)
				unlock()
			}
		})
	}
}

func (m *Manager) sweepLoop(ctx context.Context, period time.Duration, sweep func(time.Time)) {
	defer m.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweep(now)
		}
	}
}

// Shutdown stops the sweeps and waits for them to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func hashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for key, promoting a disk hit to memory.
func (m *Manager) Get(key string) (any, bool) {
	unlock := m.locks.lock(key)
	defer unlock()

	now := time.Now()
	if e, ok := m.memory.get(key, now); ok {
		return e.Value, true
	}

	if m.disk != nil {
		if e, ok := m.disk.get(key, now); ok {
			m.memory.set(key, e)
			return e.Value, true
		}
	}
	return nil, false
}

// Set writes value to both tiers under ttl (nil = no expiry) tagged with tags.
func (m *Manager) Set(key string, value any, ttl *time.Duration, tags []string) {
	unlock := m.locks.lock(key)
	defer unlock()

	now := time.Now()
	var expires *time.Time
	if ttl != nil {
		t := now.Add(*ttl)
		expires = &t
	}
	entry := &Entry{
		Value:        value,
		CreatedAt:    now,
		ExpiresAt:    expires,
		LastAccessAt: now,
		AccessCount:  0,
		Tags:         append([]string(nil), tags...),
	}

	m.tagIdx.update(key, tags)
	m.memory.set(key, entry)
	if m.disk != nil {
		if err := m.disk.set(key, entry); err != nil {
			logging.Warn("Cache", "disk write failed for key %s: %v", key, rerr.Cache("Set", err, "best-effort disk write"))
		}
	}
}

// Delete removes key from both tiers and the tag index.
func (m *Manager) Delete(key string) {
	unlock := m.locks.lock(key)
	defer unlock()
	m.deleteLocked(key)
}

// deleteLocked assumes the caller already holds the per-key stripe lock.
func (m *Manager) deleteLocked(key string) {
	m.memory.delete(key)
	if m.disk != nil {
		if err := m.disk.delete(key); err != nil {
			logging.Warn("Cache", "disk delete failed for key %s: %v", key, err)
		}
	}
	m.tagIdx.remove(key)
}

// Exists reports whether key is live in either tier, without promoting it.
func (m *Manager) Exists(key string) bool {
	unlock := m.locks.lock(key)
	defer unlock()

	now := time.Now()
	if m.memory.peek(key, now) {
		return true
	}
	if m.disk != nil {
		return m.disk.peek(key, now)
	}
	return false
}

// Clear empties both tiers and the tag index.
func (m *Manager) Clear() {
	m.memory.clear()
	if m.disk != nil {
		m.disk.clear()
	}
	m.tagIdx.clear()
}

// InvalidateTag deletes every live entry tagged with tag and returns the
// count removed.
func (m *Manager) InvalidateTag(tag string) int {
	keys := m.tagIdx.keysForTag(tag)
	for _, key := range keys {
		m.Delete(key)
	}
	return len(keys)
}

// InvalidateTags invalidates each tag in tags and returns the total count of
// distinct keys removed.
func (m *Manager) InvalidateTags(tags []string) int {
	seen := map[string]struct{}{}
	total := 0
	for _, tag := range tags {
		for _, key := range m.tagIdx.keysForTag(tag) {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			m.Delete(key)
			total++
		}
	}
	return total
}

// ComputeFunc produces a value to cache on a miss.
type ComputeFunc func() (any, error)

// Cached returns the cached value for key, or computes it via fn, caches it
// with ttl/tags, and returns it. Concurrent callers requesting the same key
// on a miss collapse into a single fn invocation via singleflight.
func (m *Manager) Cached(key string, fn ComputeFunc, ttl *time.Duration, tags []string) (any, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		val, err := fn()
		if err != nil {
			return nil, err
		}
		m.Set(key, val, ttl, tags)
		return val, nil
	})
	return v, err
}

// Stats reports the running counters for one tier.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Size        int
	Uptime      time.Duration
}

// HitRate returns Hits/(Hits+Misses), or 0 when there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MemoryStats returns the memory tier's statistics.
func (m *Manager) MemoryStats() Stats { return m.memory.stats() }

// DiskStats returns the disk tier's statistics, or a zero Stats if disk is disabled.
func (m *Manager) DiskStats() Stats {
	if m.disk == nil {
		return Stats{}
	}
	return m.disk.stats()
}

// PersistStats writes the combined memory/disk statistics to
// <DiskDir>/stats.json (spec.md §6). A no-op when the disk tier is disabled.
func (m *Manager) PersistStats() error {
	if m.disk == nil {
		return nil
	}
	return m.disk.persistStats(m.MemoryStats(), m.DiskStats())
}
