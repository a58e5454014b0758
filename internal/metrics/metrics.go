// Package metrics – Prometheus metrics for the grid bot.
//
// Exposes:
//   • grid_orders_placed_total{side}        – Orders accepted by the exchange
//   • grid_orders_failed_total{side}        – Submissions that failed after retry
//   • grid_fills_total{side}                – Detected fills
//   • grid_replacements_total{outcome}      – replaced|closed|skipped|failed
//   • grid_nonce_resyncs_total{reason}      – periodic|conflict
//   • grid_cycles_skipped_total{reason}     – book|orders|safety_valve
//   • grid_volume_usd_total                 – Accumulated fill volume
//   • grid_estimated_profit_usd             – Profit estimate (gauge)
//   • grid_tracked_orders{side}             – Orders in the local grid state
//   • grid_mid_price                        – Last observed mid price
//
// These are registered in init() and served by Serve at /metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_orders_placed_total",
			Help: "Orders accepted by the exchange",
		},
		[]string{"side"},
	)

	ordersFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_orders_failed_total",
			Help: "Order submissions that failed, including the retry",
		},
		[]string{"side"},
	)

	fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_fills_total",
			Help: "Fills detected by order absence",
		},
		[]string{"side"},
	)

	replacements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_replacements_total",
			Help: "Outcome of each replacement attempt",
		},
		[]string{"outcome"},
	)

	nonceResyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_nonce_resyncs_total",
			Help: "Sequence counter refreshes from the exchange",
		},
		[]string{"reason"},
	)

	cyclesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_cycles_skipped_total",
			Help: "Reconciliation cycles aborted before fill detection",
		},
		[]string{"reason"},
	)

	volume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_volume_usd_total",
			Help: "Accumulated fill volume in USD",
		},
	)

	// the profit figure is a heuristic, not paired PnL
	estimatedProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_estimated_profit_usd",
			Help: "Estimated profit in USD",
		},
	)

	trackedOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grid_tracked_orders",
			Help: "Orders in the local grid state",
		},
		[]string{"side"},
	)

	midPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_mid_price",
			Help: "Last observed mid price",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced, ordersFailed, fills, replacements)
	prometheus.MustRegister(nonceResyncs, cyclesSkipped)
	prometheus.MustRegister(volume, estimatedProfit, trackedOrders, midPrice)
}

func IncOrderPlaced(side string)    { ordersPlaced.WithLabelValues(side).Inc() }
func IncOrderFailed(side string)    { ordersFailed.WithLabelValues(side).Inc() }
func IncReplacement(outcome string) { replacements.WithLabelValues(outcome).Inc() }
func IncNonceResync(reason string)  { nonceResyncs.WithLabelValues(reason).Inc() }
func IncCycleSkipped(reason string) { cyclesSkipped.WithLabelValues(reason).Inc() }
func SetEstimatedProfit(v float64)  { estimatedProfit.Set(v) }
func SetMidPrice(v float64)         { midPrice.Set(v) }

// ObserveFill counts one fill and its volume.
func ObserveFill(side string, volumeUSD float64) {
	fills.WithLabelValues(side).Inc()
	volume.Add(volumeUSD)
}

// SetTrackedOrders reports the local grid state per side.
func SetTrackedOrders(buys, sells int) {
	trackedOrders.WithLabelValues("BUY").Set(float64(buys))
	trackedOrders.WithLabelValues("SELL").Set(float64(sells))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
