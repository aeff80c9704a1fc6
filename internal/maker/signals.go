package maker

import (
	"time"

	"github.com/shopspring/decimal"

	"btc-option-mm/pkg/types"
)

// Config is the set of market-maker tuning parameters applied to one ticker.
type Config struct {
	MaxLossPerMarket        float64
	BaseSpread              float64
	MinEdgeToQuote          float64
	AggressiveTakeThreshold float64
	InventorySkewFactor     float64
	MaxInventory            int
	MinHoursToExpiry        float64
	IsIndexNasdaq100        bool
	MarketChargesMakerFee   bool
}

const maxQuoteSize = 100

// GenerateSignals runs, in order: safety gates, position-limit observation,
// aggressive take, passive quoting, quote-side rules, falling back to Hold if
// nothing else fired.
func GenerateSignals(snap types.StateSnapshot, spec types.MarketSpec, pos types.PositionState, cfg Config, now time.Time) []types.Signal {
	// 1. Safety gates: each short-circuits the whole batch.
	if snap.HoursToExpiry < cfg.MinHoursToExpiry {
		return []types.Signal{{Kind: types.SignalCancelAll, Ticker: snap.Ticker, Reason: "too close to expiry"}}
	}
	if !now.Before(spec.ExpiryUTC) {
		return []types.Signal{{Kind: types.SignalCancelAll, Ticker: snap.Ticker, Reason: "expired"}}
	}

	var signals []types.Signal

	// 2. Position-limit observation: appended, does not short-circuit.
	maxLoss := MaxLoss(pos)
	positionLimited := abs(pos.YesPosition) >= cfg.MaxInventory ||
		maxLoss.GreaterThanOrEqual(decimal.NewFromFloat(cfg.MaxLossPerMarket))
	if positionLimited {
		signals = append(signals, types.Signal{Kind: types.SignalHold, Ticker: snap.Ticker, Reason: "position or loss limit reached"})
	}

	edges := ComputeEdges(snap.BlendedFairProb, snap.YesBid, snap.NoBid, cfg.IsIndexNasdaq100, cfg.MarketChargesMakerFee)

	// 3. Aggressive take.
	if !positionLimited {
		if take := aggressiveTakeSignal(snap, edges, pos, cfg); take != nil {
			signals = append(signals, *take)
		}
	}

	// 4. Passive quoting.
	produced := passiveQuoteSignals(snap, edges, pos, cfg, positionLimited)
	signals = append(signals, produced...)

	if len(signals) == 0 {
		signals = append(signals, types.Signal{Kind: types.SignalHold, Ticker: snap.Ticker, Reason: "no profitable opportunities"})
	}

	return signals
}

func aggressiveTakeSignal(snap types.StateSnapshot, edges Edges, pos types.PositionState, cfg Config) *types.Signal {
	best := edges.BestTaker()
	if best.Edge <= cfg.AggressiveTakeThreshold {
		return nil
	}

	price := priceForAction(edges, best.Side, best.IsBuy)
	isClosing := isClosingAction(best.Side, best.IsBuy, pos)
	budgetSize := MaxContractsToAdd(price, isClosing, pos, cfg.MaxLossPerMarket)
	headroom := cfg.MaxInventory - abs(pos.YesPosition)
	size := min(budgetSize, headroom)
	if size <= 0 {
		return nil
	}

	return &types.Signal{
		Kind:       types.SignalTake,
		Ticker:     snap.Ticker,
		Side:       sideFromString(best.Side),
		IsBuy:      best.IsBuy,
		PriceCents: centsFromProb(price),
		Contracts:  size,
		Edge:       best.Edge,
	}
}

// passiveQuoteSignals applies the exact quote-side rules for all four quote
// prices.
func passiveQuoteSignals(snap types.StateSnapshot, edges Edges, pos types.PositionState, cfg Config, positionLimited bool) []types.Signal {
	s := Spread(cfg.BaseSpread, pos.YesPosition, cfg.InventorySkewFactor, snap.HoursToExpiry)
	skew := Skew(pos.YesPosition, cfg.InventorySkewFactor)
	q := Quotes(snap.BlendedFairProb, s, skew)

	var out []types.Signal

	// YES bid: posted only if yes_position < max_inventory.
	if !positionLimited && pos.YesPosition < cfg.MaxInventory && inBand(q.YesBid) && edges.YesBuyNetMaker >= cfg.MinEdgeToQuote {
		size := min(MaxContractsToAdd(q.YesBid, false, pos, cfg.MaxLossPerMarket), maxQuoteSize)
		if size > 0 {
			out = append(out, quoteSignal(snap.Ticker, types.Yes, true, q.YesBid, size, edges.YesBuyNetMaker))
		}
	}

	// YES ask: requires yes_position > -max_inventory.
	if pos.YesPosition > -cfg.MaxInventory && inBand(q.YesAsk) && edges.YesSellNetMaker >= cfg.MinEdgeToQuote {
		var size int
		if pos.YesPosition > 0 {
			size = min(pos.YesPosition, maxQuoteSize)
		} else if !positionLimited {
			size = min(MaxContractsToAdd(q.YesAsk, false, pos, cfg.MaxLossPerMarket), maxQuoteSize)
		}
		if size > 0 {
			out = append(out, quoteSignal(snap.Ticker, types.Yes, false, q.YesAsk, size, edges.YesSellNetMaker))
		}
	}

	// NO bid (= short YES): posted only if yes_position > -max_inventory.
	if !positionLimited && pos.YesPosition > -cfg.MaxInventory && inBand(q.NoBid) && edges.NoBuyNetMaker >= cfg.MinEdgeToQuote {
		size := min(MaxContractsToAdd(q.NoBid, false, pos, cfg.MaxLossPerMarket), maxQuoteSize)
		if size > 0 {
			out = append(out, quoteSignal(snap.Ticker, types.No, true, q.NoBid, size, edges.NoBuyNetMaker))
		}
	}

	// NO ask: posted only if yes_position < 0 (closing an existing short).
	if pos.YesPosition < 0 && inBand(q.NoAsk) && edges.NoSellNetMaker >= cfg.MinEdgeToQuote {
		size := min(abs(pos.YesPosition), maxQuoteSize)
		if size > 0 {
			out = append(out, quoteSignal(snap.Ticker, types.No, false, q.NoAsk, size, edges.NoSellNetMaker))
		}
	}

	return out
}

func quoteSignal(ticker string, side types.Side, isBuy bool, price float64, size int, edge float64) types.Signal {
	return types.Signal{
		Kind:       types.SignalQuote,
		Ticker:     ticker,
		Side:       side,
		IsBuy:      isBuy,
		PriceCents: centsFromProb(price),
		Contracts:  size,
		Edge:       edge,
	}
}

func inBand(price float64) bool {
	return price > 0.02 && price < 0.98
}

func isClosingAction(side string, isBuy bool, pos types.PositionState) bool {
	if side == "yes" {
		return !isBuy && pos.YesPosition > 0
	}
	return !isBuy && pos.YesPosition < 0
}

func priceForAction(e Edges, side string, isBuy bool) float64 {
	switch {
	case side == "yes" && isBuy:
		return e.MarketYesAsk
	case side == "yes" && !isBuy:
		return e.MarketYesBid
	case side == "no" && isBuy:
		return e.MarketNoAsk
	default:
		return e.MarketNoBid
	}
}

func sideFromString(s string) types.Side {
	if s == "no" {
		return types.No
	}
	return types.Yes
}

func centsFromProb(p float64) int {
	return int(p*100 + 0.5)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
