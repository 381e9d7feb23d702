package plugin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreLoadMissingFileReturnsEmptyMap(t *testing.T) {
	cs := NewConfigStore(t.TempDir())
	cfg, err := cs.Load("unknown")
	require.NoError(t, err)
	assert.Empty(t, cfg)
}

func TestConfigStoreSetGetDeleteRoundTrip(t *testing.T) {
	cs := NewConfigStore(t.TempDir())

	require.NoError(t, cs.Set("alpha", "timeout_ms", float64(500)))
	v, ok, err := cs.Get("alpha", "timeout_ms")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(500), v)

	require.NoError(t, cs.Delete("alpha", "timeout_ms"))
	_, ok, err = cs.Get("alpha", "timeout_ms")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigStoreSaveWritesSeparateFilePerPlugin(t *testing.T) {
	dir := t.TempDir()
	cs := NewConfigStore(dir)
	require.NoError(t, cs.Save("alpha", map[string]any{"k": "v"}))
	require.NoError(t, cs.Save("beta", map[string]any{"k": "w"}))

	assert.FileExists(t, filepath.Join(dir, "alpha.json"))
	assert.FileExists(t, filepath.Join(dir, "beta.json"))

	cfg, err := cs.Load("alpha")
	require.NoError(t, err)
	assert.Equal(t, "v", cfg["k"])
}
