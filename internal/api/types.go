package api

import (
	"time"

	"btc-option-mm/internal/config"
	"btc-option-mm/pkg/types"
)

// DashboardSnapshot represents the complete dashboard state.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Markets []MarketStatus `json:"markets"`

	TotalRealized   float64 `json:"total_realized"`
	TotalUnrealized float64 `json:"total_unrealized"`
	TotalPnL        float64 `json:"total_pnl"`

	Config ConfigSummary `json:"config"`
}

// MarketStatus represents one ticker's current state.
type MarketStatus struct {
	Ticker string `json:"ticker"`

	Snapshot     types.StateSnapshot `json:"snapshot"`
	HaveSnapshot bool                `json:"have_snapshot"`

	Position     PositionSnapshot `json:"position"`
	ActiveOrders []types.Order    `json:"active_orders"`
	MaxLoss      float64          `json:"max_loss"`
}

// PositionSnapshot represents position and P&L for a ticker.
type PositionSnapshot struct {
	YesPosition   int     `json:"yes_position"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CostBasis     float64 `json:"cost_basis"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// NewPositionSnapshot converts a maker's PositionState plus its already
// computed unrealized P&L into the dashboard's wire shape.
func NewPositionSnapshot(pos types.PositionState, unrealizedPnL float64) PositionSnapshot {
	return PositionSnapshot{
		YesPosition:   pos.YesPosition,
		AvgEntryPrice: pos.AvgEntryPrice.InexactFloat64(),
		CostBasis:     pos.CostBasis.InexactFloat64(),
		RealizedPnL:   pos.RealizedPnL.InexactFloat64(),
		UnrealizedPnL: unrealizedPnL,
	}
}

// ConfigSummary represents the operationally relevant configuration knobs.
type ConfigSummary struct {
	Env    string `json:"env"`
	DryRun bool   `json:"dry_run"`

	MaxLossPerMarket        float64 `json:"max_loss_per_market"`
	BaseSpread              float64 `json:"base_spread"`
	MinEdgeToQuote          float64 `json:"min_edge_to_quote"`
	AggressiveTakeThreshold float64 `json:"aggressive_take_threshold"`
	InventorySkewFactor     float64 `json:"inventory_skew_factor"`
	MaxInventory            int     `json:"max_inventory"`
	MinHoursToExpiry        float64 `json:"min_hours_to_expiry"`
	Confidence              float64 `json:"confidence"`
}

// NewConfigSummary builds a ConfigSummary from the full configuration.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		Env:                     cfg.Env,
		DryRun:                  cfg.DryRun,
		MaxLossPerMarket:        cfg.Market.MaxLossPerMarket,
		BaseSpread:              cfg.Market.BaseSpread,
		MinEdgeToQuote:          cfg.Market.MinEdgeToQuote,
		AggressiveTakeThreshold: cfg.Market.AggressiveTakeThreshold,
		InventorySkewFactor:     cfg.Market.InventorySkewFactor,
		MaxInventory:            cfg.Market.MaxInventory,
		MinHoursToExpiry:        cfg.Market.MinHoursToExpiry,
		Confidence:              cfg.Market.Confidence,
	}
}
