package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcprouter/internal/adapter"
	"mcprouter/internal/registry"
)

type probeAdapter struct {
	kind    registry.TransportKind
	healthy bool
	delay   time.Duration
	calls   int32
}

func (p *probeAdapter) CanHandle(spec registry.LaunchSpec) bool { return true }
func (p *probeAdapter) Connect(ctx context.Context, serverID string, spec registry.LaunchSpec) error {
	return nil
}
func (p *probeAdapter) Disconnect(serverID string) error { return nil }
func (p *probeAdapter) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (*adapter.ToolResult, error) {
	return &adapter.ToolResult{}, nil
}
func (p *probeAdapter) ListTools(ctx context.Context, serverID string) ([]adapter.ToolDescriptor, error) {
	return nil, nil
}
func (p *probeAdapter) ProbeHealth(ctx context.Context, serverID string, spec registry.LaunchSpec) (bool, float64) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
		}
	}
	return p.healthy, 0.05
}
func (p *probeAdapter) Kind() registry.TransportKind { return p.kind }
func (p *probeAdapter) Name() string                 { return "probe" }
func (p *probeAdapter) Version() string              { return "0.0.1" }

func TestRunRoundRecordsOnlineForHealthyServer(t *testing.T) {
	reg := registry.New(nil)
	_, err := reg.Register("a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	pa := &probeAdapter{kind: registry.TransportStdio, healthy: true}
	mgr := adapter.NewManager(pa)
	mon := New(reg, mgr, WithProbeTimeout(50*time.Millisecond))

	mon.RunRound(context.Background())

	s, _ := reg.Lookup("a")
	assert.Equal(t, registry.StatusOnline, s.Health.Status)
}

func TestRunRoundRecordsErrorForUnhealthyServer(t *testing.T) {
	reg := registry.New(nil)
	_, err := reg.Register("a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	pa := &probeAdapter{kind: registry.TransportStdio, healthy: false}
	mgr := adapter.NewManager(pa)
	mon := New(reg, mgr, WithProbeTimeout(50*time.Millisecond))

	mon.RunRound(context.Background())

	s, _ := reg.Lookup("a")
	assert.Equal(t, registry.StatusError, s.Health.Status)
}

func TestRunRoundStatusSequenceMatchesEdgeCase(t *testing.T) {
	reg := registry.New(nil)
	_, err := reg.Register("a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	pa := &probeAdapter{kind: registry.TransportStdio, healthy: false}
	mgr := adapter.NewManager(pa)
	mon := New(reg, mgr, WithProbeTimeout(time.Second))

	var statuses []registry.Status
	for i := 0; i < 3; i++ {
		mon.RunRound(context.Background())
		s, _ := reg.Lookup("a")
		statuses = append(statuses, s.Health.Status)
	}
	pa.healthy = true
	mon.RunRound(context.Background())
	s, _ := reg.Lookup("a")
	statuses = append(statuses, s.Health.Status)

	assert.Equal(t, []registry.Status{
		registry.StatusError, registry.StatusError, registry.StatusError, registry.StatusOnline,
	}, statuses)
	assert.Equal(t, 0, s.Health.ConsecutiveErrors)
}

func TestProbeTimeoutRecordsOfflineAndLeavesEWMAUnchanged(t *testing.T) {
	reg := registry.New(nil)
	_, err := reg.Register("a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	pa := &probeAdapter{kind: registry.TransportStdio, healthy: true, delay: 100 * time.Millisecond}
	mgr := adapter.NewManager(pa)
	mon := New(reg, mgr, WithProbeTimeout(10*time.Millisecond))

	mon.RunRound(context.Background())

	s, _ := reg.Lookup("a")
	assert.Equal(t, registry.StatusOffline, s.Health.Status)
	assert.Equal(t, 0.0, s.Health.EWMAResponseTime)
}

func TestRunRoundBoundsConcurrency(t *testing.T) {
	reg := registry.New(nil)
	for i := 0; i < 20; i++ {
		_, err := reg.Register(string(rune('a'+i)), registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
		require.NoError(t, err)
	}

	pa := &probeAdapter{kind: registry.TransportStdio, healthy: true}
	mgr := adapter.NewManager(pa)
	mon := New(reg, mgr, WithConcurrency(4), WithProbeTimeout(time.Second))

	mon.RunRound(context.Background())
	assert.Equal(t, int32(20), atomic.LoadInt32(&pa.calls))
}

func TestCheckProbesSingleServer(t *testing.T) {
	reg := registry.New(nil)
	_, err := reg.Register("a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	pa := &probeAdapter{kind: registry.TransportStdio, healthy: true}
	mgr := adapter.NewManager(pa)
	mon := New(reg, mgr)

	require.NoError(t, mon.Check(context.Background(), "a"))
	s, _ := reg.Lookup("a")
	assert.Equal(t, registry.StatusOnline, s.Health.Status)
}

func TestCheckUnknownServerErrors(t *testing.T) {
	reg := registry.New(nil)
	mgr := adapter.NewManager()
	mon := New(reg, mgr)
	assert.Error(t, mon.Check(context.Background(), "missing"))
}
