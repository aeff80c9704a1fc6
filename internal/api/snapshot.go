package api

import (
	"time"

	"btc-option-mm/internal/config"
)

// MarketSnapshotProvider is the read-only view the dashboard server needs
// from the running engine.
type MarketSnapshotProvider interface {
	MarketsSnapshot() []MarketStatus
	DashboardEvents() <-chan DashboardEvent
}

// BuildSnapshot aggregates every ticker's state into one dashboard snapshot.
func BuildSnapshot(provider MarketSnapshotProvider, cfg config.Config) DashboardSnapshot {
	markets := provider.MarketsSnapshot()

	var totalRealized, totalUnrealized float64
	for _, m := range markets {
		totalRealized += m.Position.RealizedPnL
		totalUnrealized += m.Position.UnrealizedPnL
	}

	return DashboardSnapshot{
		Timestamp:       time.Now(),
		Markets:         markets,
		TotalRealized:   totalRealized,
		TotalUnrealized: totalUnrealized,
		TotalPnL:        totalRealized + totalUnrealized,
		Config:          NewConfigSummary(cfg),
	}
}
