// Package health implements the Health Monitor (spec.md §4.5): a periodic,
// bounded-concurrency prober that keeps the Server Registry's health
// snapshots fresh.
package health

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mcprouter/internal/adapter"
	"mcprouter/internal/registry"
	"mcprouter/internal/rerr"
	"mcprouter/pkg/logging"
)

// DefaultInterval is the time between probing rounds.
const DefaultInterval = 300 * time.Second

// DefaultProbeTimeout bounds a single server's probe; a probe that exceeds
// this is recorded as Offline and reports the timeout itself as its elapsed
// time. The Registry folds response times into the EWMA only on Online
// updates, so a timed-out probe leaves the EWMA unchanged.
const DefaultProbeTimeout = 10 * time.Second

// Monitor periodically probes every registered server's health.
type Monitor struct {
	registry *registry.Registry
	adapters *adapter.Manager

	interval     time.Duration
	probeTimeout time.Duration
	concurrency  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option { return func(m *Monitor) { m.interval = d } }

// WithProbeTimeout overrides DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) Option { return func(m *Monitor) { m.probeTimeout = d } }

// WithConcurrency overrides the default runtime.NumCPU()*4 probe limit.
func WithConcurrency(n int) Option { return func(m *Monitor) { m.concurrency = n } }

// New constructs a Monitor over reg/adapters. Shaped after the teacher's
// Orchestrator.Stop wait-group idiom (orchestrator.go) but using errgroup so
// a potentially large fleet can be bounded rather than fanned out unbounded.
func New(reg *registry.Registry, adapters *adapter.Manager, opts ...Option) *Monitor {
	m := &Monitor{
		registry:     reg,
		adapters:     adapters,
		interval:     DefaultInterval,
		probeTimeout: DefaultProbeTimeout,
		concurrency:  runtime.NumCPU() * 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.concurrency <= 0 {
		m.concurrency = 1
	}
	return m
}

// Start launches the periodic probing loop. Safe to call once.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunRound(ctx)
			}
		}
	}()
}

// Stop cancels the probing loop and waits for the in-flight round to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// RunRound probes every registered server once, bounding concurrency with
// errgroup.SetLimit(m.concurrency) per spec.md §4.5.
func (m *Monitor) RunRound(ctx context.Context) {
	servers := m.registry.ListAll()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, s := range servers {
		s := s
		g.Go(func() error {
			m.probeOne(gctx, s)
			return nil
		})
	}
	_ = g.Wait()
}

// probeOne records Online on success, Error on a completed-but-unhealthy
// probe, and Offline only when the probe itself exceeded its timeout budget
// (spec.md §4.5's "(Offline, 10.0)" result; spec.md §8's edge case 4 expects
// a merely-unhealthy probe to produce Error, not Offline).
func (m *Monitor) probeOne(ctx context.Context, s registry.Server) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	healthy, elapsed := m.adapters.ProbeHealth(probeCtx, s.ID, s.LaunchSpec)

	status := registry.StatusOnline
	switch {
	case probeCtx.Err() != nil:
		status = registry.StatusOffline
		elapsed = m.probeTimeout.Seconds()
	case !healthy:
		status = registry.StatusError
	}

	if err := m.registry.UpdateHealth(s.ID, status, &elapsed); err != nil {
		logging.Warn("HealthMonitor", "failed to record health for %s: %v", s.ID, err)
	}
}

// Check probes a single server immediately, outside the regular interval,
// and records the result. Useful for an on-demand "health check this
// server now" operation exposed by the Router Facade.
func (m *Monitor) Check(ctx context.Context, serverID string) error {
	s, ok := m.registry.Lookup(serverID)
	if !ok {
		return rerr.Validation("Check", "server %q not found", serverID)
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	m.probeOne(probeCtx, s)
	return nil
}
