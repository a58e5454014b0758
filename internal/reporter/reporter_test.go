package reporter

import (
	"bytes"
	"lighter-grid-bot-go/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	PrintSummary(&buf, models.RunSummary{
		RunID:       "abc123",
		Token:       "BTC",
		StartedAt:   start,
		StoppedAt:   start.Add(90 * time.Minute),
		TradesCount: 7,
		TotalVolume: 1234.5,
		TotalProfit: 12.25,
		OpenOrders:  19,
	})

	out := buf.String()
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "1h30m0s")
	assert.Contains(t, out, "$1234.50")
	assert.Contains(t, out, "$12.25")
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintStatus(&buf, Status{Token: "ETH", MidPrice: 3024.5, ActiveOrders: 12, Buys: 6, Sells: 6, TradesCount: 2, TotalVolume: 40, Time: time.Now()})

	out := buf.String()
	assert.Contains(t, out, "ETH")
	assert.Contains(t, out, "$3024.50")
	assert.Contains(t, out, "$40.00")
}

func TestPrintPlanAndFills(t *testing.T) {
	var buf bytes.Buffer
	PrintPlan(&buf, GridPlan{Token: "BTC", Direction: models.Long, MidPrice: 91000, LowerPrice: 90000, UpperPrice: 92000, GridCount: 3, Spacing: 1000, USDPerGrid: 10, Leverage: 10})
	assert.Contains(t, buf.String(), "$1000.0000")
	assert.Contains(t, buf.String(), "LONG")

	buf.Reset()
	PrintFills(&buf, []models.FillRecord{
		{Price: 92000, IsAsk: true, BaseAmount: 50, VolumeUSD: 46, EstimatedProfit: 2, DetectedAt: time.Now()},
		{Price: 91000, BaseAmount: 50, VolumeUSD: 45.5, DetectedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "SELL")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "$91.50")
}
