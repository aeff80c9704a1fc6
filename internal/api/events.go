package api

import (
	"time"

	"btc-option-mm/pkg/types"
)

// DashboardEvent is the wrapper for every event pushed to connected dashboard
// clients over the WebSocket hub.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot" or "fill"
	Timestamp time.Time   `json:"timestamp"`
	Ticker    string      `json:"ticker"`
	Data      interface{} `json:"data"`
}

// FillEvent is the dashboard payload for a single venue fill.
type FillEvent struct {
	OrderID    string `json:"order_id"`
	Side       string `json:"side"`
	Action     string `json:"action"`
	PriceCents int    `json:"price_cents"`
	Count      int    `json:"count"`
}

// NewSnapshotEvent wraps a calculator snapshot for broadcast.
func NewSnapshotEvent(snap types.StateSnapshot) DashboardEvent {
	return DashboardEvent{
		Type:      "snapshot",
		Timestamp: snap.Timestamp,
		Ticker:    snap.Ticker,
		Data:      snap,
	}
}

// NewFillEvent wraps a venue fill for broadcast.
func NewFillEvent(f types.FillUpdate) DashboardEvent {
	return DashboardEvent{
		Type:      "fill",
		Timestamp: f.Timestamp,
		Ticker:    f.Ticker,
		Data: FillEvent{
			OrderID:    f.OrderID,
			Side:       string(f.Side),
			Action:     string(f.Action),
			PriceCents: f.PriceCents,
			Count:      f.Count,
		},
	}
}
