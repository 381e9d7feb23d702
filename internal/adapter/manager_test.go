package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcprouter/internal/registry"
)

type fakeAdapter struct {
	kind       registry.TransportKind
	handlesAny bool
	connected  map[string]bool
	connectErr error
	tools      []ToolDescriptor
}

func newFakeAdapter(kind registry.TransportKind) *fakeAdapter {
	return &fakeAdapter{kind: kind, connected: map[string]bool{}}
}

func (f *fakeAdapter) CanHandle(spec registry.LaunchSpec) bool { return f.handlesAny }
func (f *fakeAdapter) Connect(ctx context.Context, serverID string, spec registry.LaunchSpec) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected[serverID] = true
	return nil
}
func (f *fakeAdapter) Disconnect(serverID string) error {
	delete(f.connected, serverID)
	return nil
}
func (f *fakeAdapter) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (*ToolResult, error) {
	return &ToolResult{RawText: "ok"}, nil
}
func (f *fakeAdapter) ListTools(ctx context.Context, serverID string) ([]ToolDescriptor, error) {
	return f.tools, nil
}
func (f *fakeAdapter) ProbeHealth(ctx context.Context, serverID string, spec registry.LaunchSpec) (bool, float64) {
	return f.connected[serverID], 0.01
}
func (f *fakeAdapter) Kind() registry.TransportKind { return f.kind }
func (f *fakeAdapter) Name() string                 { return string(f.kind) }
func (f *fakeAdapter) Version() string              { return "0.0.1" }

func TestManagerSelectsAdapterByKindFirst(t *testing.T) {
	stdio := newFakeAdapter(registry.TransportStdio)
	fallback := newFakeAdapter("socket")
	fallback.handlesAny = true
	m := NewManager(fallback, stdio)

	err := m.Connect(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio})
	require.NoError(t, err)
	assert.True(t, stdio.connected["a"])
	assert.False(t, fallback.connected["a"])
}

func TestManagerFallsBackToCanHandle(t *testing.T) {
	fallback := newFakeAdapter("socket")
	fallback.handlesAny = true
	m := NewManager(fallback)

	err := m.Connect(context.Background(), "a", registry.LaunchSpec{Kind: "unknown"})
	require.NoError(t, err)
	assert.True(t, fallback.connected["a"])
}

func TestManagerReturnsAdapterErrorWhenNoneHandle(t *testing.T) {
	m := NewManager()
	err := m.Connect(context.Background(), "a", registry.LaunchSpec{Kind: "unknown"})
	assert.Error(t, err)
}

func TestManagerRoutesExecuteToolToOwner(t *testing.T) {
	stdio := newFakeAdapter(registry.TransportStdio)
	m := NewManager(stdio)
	require.NoError(t, m.Connect(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio}))

	result, err := m.ExecuteTool(context.Background(), "a", "lookup", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.RawText)
}

func TestManagerExecuteToolWithoutConnectionErrors(t *testing.T) {
	m := NewManager(newFakeAdapter(registry.TransportStdio))
	_, err := m.ExecuteTool(context.Background(), "missing", "lookup", nil)
	assert.Error(t, err)
}

func TestManagerDisconnectIsIdempotent(t *testing.T) {
	stdio := newFakeAdapter(registry.TransportStdio)
	m := NewManager(stdio)
	require.NoError(t, m.Connect(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio}))

	require.NoError(t, m.Disconnect("a"))
	require.NoError(t, m.Disconnect("a"))
	assert.False(t, m.IsConnected("a"))
}

func TestManagerAdaptersAndAdapterByKind(t *testing.T) {
	stdio := newFakeAdapter(registry.TransportStdio)
	m := NewManager(stdio)

	assert.Len(t, m.Adapters(), 1)

	found, ok := m.AdapterByKind(registry.TransportStdio)
	assert.True(t, ok)
	assert.Same(t, stdio, found)

	_, ok = m.AdapterByKind(registry.TransportKind("socket"))
	assert.False(t, ok)
}
