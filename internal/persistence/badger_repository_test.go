package persistence

import (
	"lighter-grid-bot-go/internal/models"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemRepo(t *testing.T) *badgerRepository {
	t.Helper()
	repo, err := openBadger(badger.DefaultOptions("").WithInMemory(true))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndLoadFills(t *testing.T) {
	repo := newMemRepo(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// saved out of order; loaded in detection order
	require.NoError(t, repo.SaveFill(models.FillRecord{RunID: "run1", Price: 91000, DetectedAt: base.Add(2 * time.Second), ClientOrderIndex: 2}))
	require.NoError(t, repo.SaveFill(models.FillRecord{RunID: "run1", Price: 92000, IsAsk: true, DetectedAt: base, ClientOrderIndex: 1}))
	require.NoError(t, repo.SaveFill(models.FillRecord{RunID: "run2", Price: 50000, DetectedAt: base}))

	fills, err := repo.LoadFills("run1")
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, 92000.0, fills[0].Price)
	assert.True(t, fills[0].IsAsk)
	assert.Equal(t, 91000.0, fills[1].Price)

	fills, err = repo.LoadFills("nope")
	require.NoError(t, err)
	assert.Empty(t, fills)

	assert.Error(t, repo.SaveFill(models.FillRecord{}))
}

func TestSummaryRoundTrip(t *testing.T) {
	repo := newMemRepo(t)

	got, err := repo.LoadSummary("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := models.RunSummary{RunID: "run1", Token: "BTC", TradesCount: 3, TotalVolume: 123.5, TotalProfit: 2}
	require.NoError(t, repo.SaveSummary(want))
	want.TradesCount = 4
	require.NoError(t, repo.SaveSummary(want))

	got, err = repo.LoadSummary("run1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.TradesCount)
	assert.Equal(t, "BTC", got.Token)
}
