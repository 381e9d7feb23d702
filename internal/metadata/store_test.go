package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedServer(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.UpsertServer(context.Background(), ServerInput{
		ID:            id,
		Name:          id,
		Description:   "a test server",
		TransportKind: "stdio",
		Command:       "mcp-" + id,
		Capabilities:  []CapabilityInput{{Name: "search", Description: "search things"}},
		Tools:         []ToolInput{{Name: "lookup", Description: "looks up widgets in a catalog", Schema: `{"type":"object"}`}},
		Tags:          []string{"core"},
	})
	require.NoError(t, err)
}

func TestUpsertServerIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")
	seedServer(t, s, "a")

	row, err := s.ReadServer(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, row.Capabilities, 1)
	assert.Len(t, row.Tools, 1)
	assert.Equal(t, []string{"core"}, row.Tags)
}

func TestReadServerUnknownReturnsValidationError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadServer(context.Background(), "missing")
	assert.Error(t, err)
}

func TestDeleteServerCascades(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")
	require.NoError(t, s.AppendUsage(context.Background(), "a", "lookup", 12.5, true))

	require.NoError(t, s.DeleteServer(context.Background(), "a"))
	_, err := s.ReadServer(context.Background(), "a")
	assert.Error(t, err)

	stats, err := s.UsageStats(context.Background(), "a", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalCalls)
}

func TestFindServersForTaskMatchesCapabilityOrToolDescription(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")
	require.NoError(t, s.UpdateHealth(context.Background(), "a", "online", nil))

	ids, err := s.FindServersForTask(context.Background(), "please search the widget catalog")
	require.NoError(t, err)
	assert.Contains(t, ids, "a")
}

func TestFindServersForTaskExcludesNonOnlineServers(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")
	require.NoError(t, s.UpdateHealth(context.Background(), "a", "error", nil))

	ids, err := s.FindServersForTask(context.Background(), "please search the widget catalog")
	require.NoError(t, err)
	assert.NotContains(t, ids, "a")
}

func TestFindServersForTaskIgnoresShortTokens(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")

	ids, err := s.FindServersForTask(context.Background(), "a is it ok")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestByTagAndByCapability(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")

	tagged, err := s.ByTag(context.Background(), "core")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tagged)

	capable, err := s.ByCapability(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, capable)
}

func TestAllCapabilitiesReportsServerCounts(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")
	seedServer(t, s, "b")

	caps, err := s.AllCapabilities(context.Background())
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "search", caps[0].Name)
	assert.Equal(t, 2, caps[0].ServerCount)
}

func TestUpdateHealthEWMAMatchesRegistryFormula(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")

	first := 100.0
	require.NoError(t, s.UpdateHealth(context.Background(), "a", "online", &first))
	row, err := s.ReadServer(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 100.0, row.Health.AvgResponseTime)

	second := 200.0
	require.NoError(t, s.UpdateHealth(context.Background(), "a", "online", &second))
	row, err = s.ReadServer(context.Background(), "a")
	require.NoError(t, err)
	assert.InDelta(t, 0.3*200+0.7*100, row.Health.AvgResponseTime, 0.0001)
}

func TestUpdateHealthIncrementsErrorCountOnFailure(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")

	require.NoError(t, s.UpdateHealth(context.Background(), "a", "error", nil))
	require.NoError(t, s.UpdateHealth(context.Background(), "a", "error", nil))

	row, err := s.ReadServer(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, row.Health.ErrorCount)
	assert.Nil(t, row.Health.LastSuccessfulConnection)
}

func TestUsageStatsAggregates(t *testing.T) {
	s := newTestStore(t)
	seedServer(t, s, "a")
	require.NoError(t, s.AppendUsage(context.Background(), "a", "lookup", 10, true))
	require.NoError(t, s.AppendUsage(context.Background(), "a", "lookup", 20, false))

	stats, err := s.UsageStats(context.Background(), "a", 30)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCalls)
	assert.Equal(t, 1, stats.SuccessfulCalls)
	assert.Equal(t, 1, stats.FailedCalls)
	assert.Equal(t, 15.0, stats.AvgDuration)
	assert.Equal(t, 2, stats.ByTool["lookup"])
}
