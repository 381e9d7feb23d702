package facade

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcprouter/internal/adapter"
	"mcprouter/internal/cache"
	"mcprouter/internal/health"
	"mcprouter/internal/metadata"
	"mcprouter/internal/plugin"
	"mcprouter/internal/registry"
	"mcprouter/internal/router"
)

type fakeAdapter struct {
	kind       registry.TransportKind
	calls      int32
	schemaJSON string
}

func (f *fakeAdapter) CanHandle(spec registry.LaunchSpec) bool { return true }
func (f *fakeAdapter) Connect(ctx context.Context, serverID string, spec registry.LaunchSpec) error {
	return nil
}
func (f *fakeAdapter) Disconnect(serverID string) error { return nil }
func (f *fakeAdapter) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (*adapter.ToolResult, error) {
	atomic.AddInt32(&f.calls, 1)
	return &adapter.ToolResult{RawText: "ok"}, nil
}
func (f *fakeAdapter) ListTools(ctx context.Context, serverID string) ([]adapter.ToolDescriptor, error) {
	return nil, nil
}
func (f *fakeAdapter) ProbeHealth(ctx context.Context, serverID string, spec registry.LaunchSpec) (bool, float64) {
	return true, 0.01
}
func (f *fakeAdapter) Kind() registry.TransportKind { return f.kind }
func (f *fakeAdapter) Name() string                 { return "fake" }
func (f *fakeAdapter) Version() string              { return "0.0.1" }

func newTestFacade(t *testing.T, fa *fakeAdapter) *Facade {
	t.Helper()
	reg := registry.New(nil)
	store, err := metadata.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cacheMgr := cache.New(cache.Options{})
	adapters := adapter.NewManager(fa)
	mon := health.New(reg, adapters)
	rtr := router.New(reg, store)
	plugins := plugin.New(noopRouterHandle{}, t.TempDir())

	return New(Config{
		Registry: reg,
		Metadata: store,
		Cache:    cacheMgr,
		Adapters: adapters,
		Monitor:  mon,
		Router:   rtr,
		Plugins:  plugins,
	})
}

type noopRouterHandle struct{}

func (noopRouterHandle) RouteQuery(ctx context.Context, query string) ([]string, float64, error) {
	return nil, 0, nil
}
func (noopRouterHandle) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any, noCache bool) (*adapter.ToolResult, error) {
	return nil, nil
}

func TestRegisterServerPersistsAndConnects(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)

	_, err := f.RegisterServer(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio, Command: "echo"}, []string{"search"}, []string{"core"}, "A", "test server")
	require.NoError(t, err)

	s, ok := f.Registry.Lookup("a")
	require.True(t, ok)
	assert.Contains(t, s.Capabilities, "search")

	row, err := f.Metadata.ReadServer(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", row.ID)
}

func TestExecuteToolCachesSecondCall(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)
	_, err := f.RegisterServer(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	result1, err := f.ExecuteTool(context.Background(), "a", "lookup", map[string]any{"q": "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, "ok", result1.RawText)

	result2, err := f.ExecuteTool(context.Background(), "a", "lookup", map[string]any{"q": "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, "ok", result2.RawText)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fa.calls))
}

func TestExecuteToolNoCacheBypassesCache(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)
	_, err := f.RegisterServer(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	_, err = f.ExecuteTool(context.Background(), "a", "lookup", map[string]any{"q": "x"}, true)
	require.NoError(t, err)
	_, err = f.ExecuteTool(context.Background(), "a", "lookup", map[string]any{"q": "x"}, true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fa.calls))
}

func TestExecuteToolUnknownServerIsValidationError(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)

	_, err := f.ExecuteTool(context.Background(), "missing", "lookup", nil, false)
	assert.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fa.calls))
}

func TestExecuteToolMissingRequiredArgumentIsValidationErrorWithoutAdapterCall(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)

	require.NoError(t, f.Metadata.UpsertServer(context.Background(), metadata.ServerInput{
		ID: "a",
		Tools: []metadata.ToolInput{
			{Name: "read_file", Schema: `{"type":"object","required":["path"]}`},
		},
	}))
	_, err := f.Registry.Register("a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)

	_, err = f.ExecuteTool(context.Background(), "a", "read_file", map[string]any{}, false)
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fa.calls))
}

func TestUnregisterServerCascadesAndInvalidatesCache(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)
	_, err := f.RegisterServer(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)
	_, err = f.ExecuteTool(context.Background(), "a", "lookup", map[string]any{}, false)
	require.NoError(t, err)

	require.NoError(t, f.UnregisterServer(context.Background(), "a"))

	_, ok := f.Registry.Lookup("a")
	assert.False(t, ok)
	_, ok = f.Cache.Get("exec:a:lookup:{}")
	assert.False(t, ok)
}

func TestRouteCachesResultAndReflectsRegisteredCapabilities(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)
	_, err := f.RegisterServer(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio}, []string{"search"}, nil, "", "")
	require.NoError(t, err)
	require.NoError(t, f.Registry.UpdateHealth("a", registry.StatusOnline, nil))

	result, err := f.Route(context.Background(), "search please")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.SelectedServers)

	_, cached := f.Cache.Get("route:search please")
	assert.True(t, cached)
}

func TestGetCacheStatsAndClearCache(t *testing.T) {
	fa := &fakeAdapter{kind: registry.TransportStdio}
	f := newTestFacade(t, fa)
	_, err := f.RegisterServer(context.Background(), "a", registry.LaunchSpec{Kind: registry.TransportStdio}, nil, nil, "", "")
	require.NoError(t, err)
	_, err = f.ExecuteTool(context.Background(), "a", "lookup", map[string]any{}, false)
	require.NoError(t, err)

	stats := f.GetCacheStats()
	assert.GreaterOrEqual(t, stats.Memory.Size, 1)

	f.ClearCache()
	stats = f.GetCacheStats()
	assert.Equal(t, 0, stats.Memory.Size)
}
