package planner

import (
	"lighter-grid-bot-go/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLevelsThreeGrids(t *testing.T) {
	levels, err := ComputeLevels(90000, 92000, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{90000, 91000, 92000}, levels)
	assert.Equal(t, 1000.0, Spacing(90000, 92000, 3))
}

func TestComputeLevelsProperties(t *testing.T) {
	cases := []struct {
		lower, upper float64
		count        int
	}{
		{90000, 110000, 20},
		{0.1, 0.3, 7},
		{3000, 3600, 13},
		{1, 2, 2},
	}
	for _, c := range cases {
		levels, err := ComputeLevels(c.lower, c.upper, c.count)
		require.NoError(t, err)
		require.Len(t, levels, c.count)
		assert.Equal(t, c.lower, levels[0])
		assert.Equal(t, c.upper, levels[len(levels)-1])
		for i := 1; i < len(levels); i++ {
			assert.Greater(t, levels[i], levels[i-1])
			assert.LessOrEqual(t, levels[i], c.upper)
		}
	}
}

func TestComputeLevelsRejectsBadInput(t *testing.T) {
	_, err := ComputeLevels(90000, 92000, 1)
	assert.Error(t, err)
	_, err = ComputeLevels(92000, 90000, 3)
	assert.Error(t, err)
	_, err = ComputeLevels(90000, 90000, 3)
	assert.Error(t, err)
	_, err = ComputeLevels(0, 10, 3)
	assert.Error(t, err)
}

func TestClassifyNeutral(t *testing.T) {
	isAsk, keep := Classify(90000, 91000, models.Neutral)
	assert.False(t, isAsk)
	assert.True(t, keep)

	isAsk, keep = Classify(92000, 91000, models.Neutral)
	assert.True(t, isAsk)
	assert.True(t, keep)

	// a level exactly at mid is a sell
	isAsk, keep = Classify(91000, 91000, models.Neutral)
	assert.True(t, isAsk)
	assert.True(t, keep)
}

func TestClassifyDirectional(t *testing.T) {
	_, keep := Classify(92000, 91000, models.Long)
	assert.False(t, keep)
	_, keep = Classify(90000, 91000, models.Long)
	assert.True(t, keep)

	_, keep = Classify(90000, 91000, models.Short)
	assert.False(t, keep)
	_, keep = Classify(91000, 91000, models.Short)
	assert.True(t, keep)
}

func TestPlan(t *testing.T) {
	g := models.GridConfig{Token: "BTC", Leverage: 10, GridCount: 3, Investment: 30, LowerPrice: 90000, UpperPrice: 92000}

	t.Run("neutral", func(t *testing.T) {
		g := g
		g.Direction = models.Neutral
		orders, err := Plan(g, 91000)
		require.NoError(t, err)
		assert.Equal(t, []PlannedOrder{
			{Index: 0, Price: 90000, IsAsk: false},
			{Index: 1, Price: 91000, IsAsk: true},
			{Index: 2, Price: 92000, IsAsk: true},
		}, orders)
	})

	t.Run("long drops sells", func(t *testing.T) {
		g := g
		g.Direction = models.Long
		orders, err := Plan(g, 91000)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, 90000.0, orders[0].Price)
		assert.False(t, orders[0].IsAsk)
	})

	t.Run("short drops buys", func(t *testing.T) {
		g := g
		g.Direction = models.Short
		orders, err := Plan(g, 91000)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		for _, o := range orders {
			assert.True(t, o.IsAsk)
		}
	})

	t.Run("invalid grid", func(t *testing.T) {
		g := g
		g.GridCount = 1
		_, err := Plan(g, 91000)
		assert.Error(t, err)
	})
}
