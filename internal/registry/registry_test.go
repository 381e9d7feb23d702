package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLookupUnregister(t *testing.T) {
	r := New(nil)

	s, err := r.Register("srv1", LaunchSpec{Kind: TransportStdio, Command: "echo"}, []string{"search"}, []string{"prod"}, "Server One", "test server")
	require.NoError(t, err)
	assert.Equal(t, "srv1", s.ID)

	_, err = r.Register("srv1", LaunchSpec{}, nil, nil, "", "")
	assert.Error(t, err)

	got, ok := r.Lookup("srv1")
	require.True(t, ok)
	assert.Equal(t, []string{"search"}, got.CapabilitySet())

	require.NoError(t, r.Unregister("srv1"))
	_, ok = r.Lookup("srv1")
	assert.False(t, ok)
}

func TestByCapabilitiesAllVsAny(t *testing.T) {
	r := New(nil)
	_, _ = r.Register("a", LaunchSpec{}, []string{"search", "fetch"}, nil, "", "")
	_, _ = r.Register("b", LaunchSpec{}, []string{"search"}, nil, "", "")
	require.NoError(t, r.UpdateHealth("a", StatusOnline, nil))
	require.NoError(t, r.UpdateHealth("b", StatusOnline, nil))

	all := r.ByCapabilities([]string{"search", "fetch"}, true)
	assert.Len(t, all, 1)
	assert.Equal(t, "a", all[0].ID)

	anyMatch := r.ByCapabilities([]string{"search", "fetch"}, false)
	assert.Len(t, anyMatch, 2)
}

func TestByCapabilitiesExcludesOfflineServers(t *testing.T) {
	r := New(nil)
	_, _ = r.Register("a", LaunchSpec{}, []string{"search"}, nil, "", "")
	// left at StatusUnknown; must not be returned
	matches := r.ByCapability("search")
	assert.Empty(t, matches)
}

func TestUpdateHealthEWMAFoldsResponseTime(t *testing.T) {
	r := New(nil)
	_, _ = r.Register("a", LaunchSpec{}, nil, nil, "", "")

	first := 100.0
	require.NoError(t, r.UpdateHealth("a", StatusOnline, &first))
	got, _ := r.Lookup("a")
	assert.Equal(t, 100.0, got.Health.EWMAResponseTime)
	assert.Equal(t, 0, got.Health.ConsecutiveErrors)

	second := 200.0
	require.NoError(t, r.UpdateHealth("a", StatusOnline, &second))
	got, _ = r.Lookup("a")
	assert.InDelta(t, 0.3*200+0.7*100, got.Health.EWMAResponseTime, 0.0001)
}

func TestUpdateHealthIncrementsConsecutiveErrorsOnFailure(t *testing.T) {
	r := New(nil)
	_, _ = r.Register("a", LaunchSpec{}, nil, nil, "", "")

	require.NoError(t, r.UpdateHealth("a", StatusError, nil))
	require.NoError(t, r.UpdateHealth("a", StatusError, nil))
	got, _ := r.Lookup("a")
	assert.Equal(t, 2, got.Health.ConsecutiveErrors)
	assert.True(t, got.Health.LastSuccessAt.IsZero())

	rt := 50.0
	require.NoError(t, r.UpdateHealth("a", StatusOnline, &rt))
	got, _ = r.Lookup("a")
	assert.Equal(t, 0, got.Health.ConsecutiveErrors)
	assert.False(t, got.Health.LastSuccessAt.IsZero())
}

func TestOnlineOfflineIDs(t *testing.T) {
	r := New(nil)
	_, _ = r.Register("a", LaunchSpec{}, nil, nil, "", "")
	_, _ = r.Register("b", LaunchSpec{}, nil, nil, "", "")
	require.NoError(t, r.UpdateHealth("a", StatusOnline, nil))
	require.NoError(t, r.UpdateHealth("b", StatusOffline, nil))

	assert.Equal(t, []string{"a"}, r.OnlineIDs())
	assert.Equal(t, []string{"b"}, r.OfflineIDs())
}

func TestAllCapabilitiesIsDistinctAcrossServers(t *testing.T) {
	r := New(nil)
	_, _ = r.Register("a", LaunchSpec{}, []string{"fs", "search"}, nil, "", "")
	_, _ = r.Register("b", LaunchSpec{}, []string{"search", "shell"}, nil, "", "")

	caps := r.AllCapabilities()
	assert.ElementsMatch(t, []string{"fs", "search", "shell"}, caps)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server_registry.json")
	p := NewPersister(path)

	r := New(p.Func())
	_, err := r.Register("a", LaunchSpec{Kind: TransportStdio, Command: "mcp-fs", Args: []string{"--root", "/tmp"}}, []string{"fs.read"}, []string{"core"}, "Filesystem", "reads files")
	require.NoError(t, err)
	rt := 42.5
	require.NoError(t, r.UpdateHealth("a", StatusOnline, &rt))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "a", loaded[0].ID)
	assert.Equal(t, "mcp-fs", loaded[0].LaunchSpec.Command)
	assert.Contains(t, loaded[0].Capabilities, "fs.read")
	assert.Equal(t, StatusOnline, loaded[0].Health.Status)
	assert.Equal(t, 42.5, loaded[0].Health.EWMAResponseTime)
}

func TestLoadMissingDocumentReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	loaded, err := Load(filepath.Join(dir, "does-not-exist.json"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadFallsBackToBakOnCorruptPrimary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server_registry.json")
	p := NewPersister(path)

	r := New(p.Func())
	_, err := r.Register("a", LaunchSpec{Kind: TransportStdio, Command: "mcp-fs"}, nil, nil, "", "")
	require.NoError(t, err)

	// Corrupt the primary file; .bak was written on the prior save attempt's
	// predecessor, so a second mutation corrupting the primary should still
	// leave Load able to recover from .bak.
	_, err = r.Register("b", LaunchSpec{Kind: TransportStdio, Command: "mcp-net"}, nil, nil, "", "")
	require.NoError(t, err)

	writeCorrupt(t, path)
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, loaded)
}

func writeCorrupt(t *testing.T, path string) {
	t.Helper()
	err := os.WriteFile(path, []byte("{not valid json"), 0o644)
	require.NoError(t, err)
}
