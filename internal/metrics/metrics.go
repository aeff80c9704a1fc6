// Package metrics defines the Prometheus collectors exported by the market
// maker, mounted on the dashboard's HTTP server via promhttp.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// FillsTotal counts processed fills by side/action.
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btcmm_fills_total",
			Help: "Total fills processed, by side and action.",
		},
		[]string{"side", "action"},
	)

	// SignalsTotal counts signals emitted by kind.
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btcmm_signals_total",
			Help: "Total signals generated, by kind.",
		},
		[]string{"kind"},
	)

	// UpdatesDroppedTotal counts updates dropped at a full channel, by reason.
	UpdatesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btcmm_updates_dropped_total",
			Help: "Updates dropped due to a full downstream channel, by reason.",
		},
		[]string{"reason"},
	)

	// PositionYes is the current signed yes_position, by ticker.
	PositionYes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "btcmm_position_yes",
			Help: "Current signed YES position, by ticker.",
		},
		[]string{"ticker"},
	)

	// RealizedPnL is the cumulative realized P&L, by ticker.
	RealizedPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "btcmm_realized_pnl",
			Help: "Cumulative realized P&L in dollars, by ticker.",
		},
		[]string{"ticker"},
	)

	// ExchangeCount is the number of spot venues currently contributing to
	// the aggregate mean.
	ExchangeCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "btcmm_exchange_count",
			Help: "Number of spot venues currently populated in the aggregator state.",
		},
	)

	// UpdateProcessingDuration observes how long a single orderbook update
	// takes to process.
	UpdateProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "btcmm_update_processing_seconds",
			Help:    "Time to process a single orderbook update.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Registry is the collector registry the dashboard's /metrics endpoint serves.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		FillsTotal,
		SignalsTotal,
		UpdatesDroppedTotal,
		PositionYes,
		RealizedPnL,
		ExchangeCount,
		UpdateProcessingDuration,
	)
}
