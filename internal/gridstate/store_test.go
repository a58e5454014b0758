package gridstate

import (
	"lighter-grid-bot-go/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAtMostOneOrderPerLevel(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(models.TrackedOrder{Price: 91000, PriceInt: 910000, IsAsk: true, BaseAmount: 10}))

	err := s.Insert(models.TrackedOrder{Price: 91000, PriceInt: 910000, IsAsk: false, BaseAmount: 11})
	assert.ErrorIs(t, err, ErrLevelOccupied)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get(910000)
	require.True(t, ok)
	assert.True(t, got.IsAsk)
	assert.Equal(t, int64(10), got.BaseAmount)
}

func TestStoreRemove(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(models.TrackedOrder{PriceInt: 900000}))

	s.Remove(123) // absent key
	assert.Equal(t, 1, s.Len())

	s.Remove(900000)
	assert.False(t, s.Has(900000))
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Insert(models.TrackedOrder{PriceInt: 900000, IsAsk: true}))
	assert.True(t, s.Has(900000))
}

func TestStoreSnapshotSorted(t *testing.T) {
	s := NewStore()
	for _, k := range []int64{920000, 900000, 910000} {
		require.NoError(t, s.Insert(models.TrackedOrder{PriceInt: k, IsAsk: k >= 910000}))
	}

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(900000), snap[0].PriceInt)
	assert.Equal(t, int64(910000), snap[1].PriceInt)
	assert.Equal(t, int64(920000), snap[2].PriceInt)

	// mutating the snapshot does not touch the store
	snap[0].BaseAmount = 99
	got, _ := s.Get(900000)
	assert.Zero(t, got.BaseAmount)

	buys, sells := s.Counts()
	assert.Equal(t, 1, buys)
	assert.Equal(t, 2, sells)
}

func TestTotalsRecordFill(t *testing.T) {
	var totals Totals

	volume, profit := totals.RecordFill(true, 92000, 0.0005, 90000)
	assert.InDelta(t, 46.0, volume, 1e-9)
	assert.InDelta(t, 2.0, profit, 1e-9)

	volume, profit = totals.RecordFill(false, 91000, 0.001, 90000)
	assert.InDelta(t, 91.0, volume, 1e-9)
	assert.Zero(t, profit)

	assert.Equal(t, 2, totals.TradesCount)
	assert.InDelta(t, 137.0, totals.TotalVolume, 1e-9)
	assert.InDelta(t, 2.0, totals.TotalProfit, 1e-9)
}
