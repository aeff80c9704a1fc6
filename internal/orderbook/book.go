// Package orderbook maintains a per-market snapshot+delta orderbook and the
// WebSocket monitor goroutine that keeps it synchronized with the prediction
// venue.
package orderbook

import (
	"time"

	"btc-option-mm/pkg/types"
)

// Level is a single (price, qty) pair as the venue sends it.
type Level struct {
	PriceCents int
	Qty        float64
}

// Snapshot is the venue's orderbook_snapshot payload: full replacement image
// of both sides.
type Snapshot struct {
	Yes []Level
	No  []Level
	Seq int64
}

// Delta is the venue's orderbook_delta payload: one incremental change.
type Delta struct {
	Side       types.Side
	PriceCents int
	Qty        float64 // signed delta
	Seq        int64
}

// ApplySnapshot clears both sides and inserts every level with price > 1 and
// qty > 0, then refreshes the cache and returns the resulting ProbabilityUpdate.
func ApplySnapshot(b *types.OrderbookState, snap Snapshot, now time.Time) types.ProbabilityUpdate {
	b.Yes.Clear()
	b.No.Clear()

	for _, lvl := range snap.Yes {
		if lvl.PriceCents > 1 && lvl.Qty > 0 {
			b.Yes.Set(lvl.PriceCents, lvl.Qty)
		}
	}
	for _, lvl := range snap.No {
		if lvl.PriceCents > 1 && lvl.Qty > 0 {
			b.No.Set(lvl.PriceCents, lvl.Qty)
		}
	}

	b.LastSeq = snap.Seq
	b.RefreshCache()
	b.LastUpdated = now
	return types.ProbabilityUpdateFromBook(b, now)
}

// ApplyDelta applies book[price] += delta, erasing the entry if the result is
// <= 0, dropping deltas at price <= 1. It returns (update, changed) where
// changed reports whether the cached best on either side moved — an update
// should only be emitted downstream when changed is true.
func ApplyDelta(b *types.OrderbookState, d Delta, now time.Time) (types.ProbabilityUpdate, bool) {
	prevYesBid, prevNoBid := b.BestYesBid, b.BestNoBid

	side := b.Yes
	if d.Side == types.No {
		side = b.No
	}
	side.Apply(d.PriceCents, d.Qty)

	b.LastSeq = d.Seq
	b.RefreshCache()
	b.LastUpdated = now

	changed := b.BestYesBid != prevYesBid || b.BestNoBid != prevNoBid
	return types.ProbabilityUpdateFromBook(b, now), changed
}

// SeqGapDetected reports whether seq skips ahead by more than 1 from the
// book's last observed sequence number. A gap greater than 1 must force a
// resubscribe (which begins with a fresh snapshot).
func SeqGapDetected(b *types.OrderbookState, seq int64) bool {
	if b.LastSeq == 0 {
		return false
	}
	return seq-b.LastSeq > 1
}
