package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(replacements.WithLabelValues("replaced"))
	IncReplacement("replaced")
	IncReplacement("replaced")
	assert.Equal(t, before+2, testutil.ToFloat64(replacements.WithLabelValues("replaced")))

	beforeVol := testutil.ToFloat64(volume)
	beforeFills := testutil.ToFloat64(fills.WithLabelValues("SELL"))
	ObserveFill("SELL", 46)
	assert.Equal(t, beforeVol+46, testutil.ToFloat64(volume))
	assert.Equal(t, beforeFills+1, testutil.ToFloat64(fills.WithLabelValues("SELL")))
}

func TestGauges(t *testing.T) {
	SetTrackedOrders(3, 5)
	assert.Equal(t, 3.0, testutil.ToFloat64(trackedOrders.WithLabelValues("BUY")))
	assert.Equal(t, 5.0, testutil.ToFloat64(trackedOrders.WithLabelValues("SELL")))

	SetMidPrice(91000)
	assert.Equal(t, 91000.0, testutil.ToFloat64(midPrice))

	SetEstimatedProfit(2.5)
	assert.Equal(t, 2.5, testutil.ToFloat64(estimatedProfit))
}
