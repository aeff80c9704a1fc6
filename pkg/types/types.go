// Package types defines the shared data model for the aggregation, orderbook,
// calculator, fair-value, and market-making components.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies a quoted side of a binary YES/NO market.
type Side string

const (
	Yes Side = "yes"
	No  Side = "no"
)

// Action identifies a fill direction.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// MarketKind identifies the shape of the binary condition a market settles against.
type MarketKind string

const (
	Above MarketKind = "above"
	Below MarketKind = "below"
	Range MarketKind = "range"
)

// OrderbookSide is an unordered mapping price_cents -> quantity, quantity > 0.
// Valid prices are in [2, 99]; price <= 1 is dropped as a synthetic level.
type OrderbookSide struct {
	levels map[int]float64
}

// NewOrderbookSide returns an empty side.
func NewOrderbookSide() *OrderbookSide {
	return &OrderbookSide{levels: make(map[int]float64)}
}

// Clear removes every level.
func (s *OrderbookSide) Clear() {
	s.levels = make(map[int]float64)
}

// Set inserts or overwrites a level. Levels with price <= 1 or qty <= 0 are dropped.
func (s *OrderbookSide) Set(priceCents int, qty float64) {
	if priceCents <= 1 || qty <= 0 {
		delete(s.levels, priceCents)
		return
	}
	s.levels[priceCents] = qty
}

// Apply adds delta to the existing quantity at priceCents, erasing the level
// if the result is <= 0. Deltas at price <= 1 are dropped.
func (s *OrderbookSide) Apply(priceCents int, delta float64) {
	if priceCents <= 1 {
		return
	}
	newQty := s.levels[priceCents] + delta
	if newQty <= 0 {
		delete(s.levels, priceCents)
		return
	}
	s.levels[priceCents] = newQty
}

// Best returns the max-key level with positive quantity, or (0, 0) if empty.
func (s *OrderbookSide) Best() (priceCents int, qty float64) {
	best := 0
	for p, q := range s.levels {
		if q > 0 && p > best {
			best = p
			qty = q
		}
	}
	return best, qty
}

// Qty returns the quantity resting at priceCents.
func (s *OrderbookSide) Qty(priceCents int) float64 {
	return s.levels[priceCents]
}

// Len returns the number of resting levels.
func (s *OrderbookSide) Len() int {
	return len(s.levels)
}

// OrderbookState is a pair of OrderbookSides plus a cache of the best level on
// each side. The cache must equal the true best after every mutation.
type OrderbookState struct {
	Ticker string

	Yes *OrderbookSide
	No  *OrderbookSide

	BestYesBid int
	YesQty     float64
	BestNoBid  int
	NoQty      float64

	LastSeq     int64
	LastUpdated time.Time
}

// NewOrderbookState returns an empty book for ticker.
func NewOrderbookState(ticker string) *OrderbookState {
	return &OrderbookState{
		Ticker: ticker,
		Yes:    NewOrderbookSide(),
		No:     NewOrderbookSide(),
	}
}

// RefreshCache recomputes the cached best bid/qty from the underlying sides.
// Called after every mutation so the invariant holds unconditionally.
func (b *OrderbookState) RefreshCache() {
	b.BestYesBid, b.YesQty = b.Yes.Best()
	b.BestNoBid, b.NoQty = b.No.Best()
}

// ProbabilityUpdate is emitted by the orderbook monitor on top-of-book change.
type ProbabilityUpdate struct {
	Ticker    string
	YesProb   float64
	NoProb    float64
	YesBid    int
	NoBid     int
	YesQty    float64
	NoQty     float64
	Timestamp time.Time
}

// ProbabilityUpdateFromBook derives an update from a book's cached state:
// yes_prob = best_yes_bid/100, no_prob = best_no_bid/100.
func ProbabilityUpdateFromBook(b *OrderbookState, ts time.Time) ProbabilityUpdate {
	return ProbabilityUpdate{
		Ticker:    b.Ticker,
		YesProb:   float64(b.BestYesBid) / 100,
		NoProb:    float64(b.BestNoBid) / 100,
		YesBid:    b.BestYesBid,
		NoBid:     b.BestNoBid,
		YesQty:    b.YesQty,
		NoQty:     b.NoQty,
		Timestamp: ts,
	}
}

// Exchange identifies one of the four spot venues.
type Exchange string

const (
	Binance   Exchange = "binance"
	Coinbase  Exchange = "coinbase"
	Kraken    Exchange = "kraken"
	CryptoCom Exchange = "crypto_com"
)

// ExchangePrice is the normalized best bid/ask a spot connector emits.
type ExchangePrice struct {
	Venue     Exchange
	Bid       float64
	Ask       float64
	Mid       float64
	Timestamp time.Time
}

// NewExchangePrice computes Mid = (bid+ask)/2.
func NewExchangePrice(venue Exchange, bid, ask float64, ts time.Time) ExchangePrice {
	return ExchangePrice{Venue: venue, Bid: bid, Ask: ask, Mid: (bid + ask) / 2, Timestamp: ts}
}

// AggregatorState holds the latest ExchangePrice per venue. Derived means use
// exactly the venues currently populated.
type AggregatorState struct {
	Prices map[Exchange]ExchangePrice
}

// NewAggregatorState returns an empty aggregator state.
func NewAggregatorState() *AggregatorState {
	return &AggregatorState{Prices: make(map[Exchange]ExchangePrice)}
}

// Update overwrites the venue's entry.
func (a *AggregatorState) Update(p ExchangePrice) {
	a.Prices[p.Venue] = p
}

// Remove drops a venue's entry (used on disconnect so it stops contributing
// to the mean).
func (a *AggregatorState) Remove(venue Exchange) {
	delete(a.Prices, venue)
}

// MeanMid returns the arithmetic mean of Mid over populated venues.
func (a *AggregatorState) MeanMid() float64 {
	return a.mean(func(p ExchangePrice) float64 { return p.Mid })
}

// MeanBid returns the arithmetic mean of Bid over populated venues.
func (a *AggregatorState) MeanBid() float64 {
	return a.mean(func(p ExchangePrice) float64 { return p.Bid })
}

// MeanAsk returns the arithmetic mean of Ask over populated venues.
func (a *AggregatorState) MeanAsk() float64 {
	return a.mean(func(p ExchangePrice) float64 { return p.Ask })
}

// ExchangeCount is the honest denominator behind the means.
func (a *AggregatorState) ExchangeCount() int { return len(a.Prices) }

func (a *AggregatorState) mean(f func(ExchangePrice) float64) float64 {
	if len(a.Prices) == 0 {
		return 0
	}
	var sum float64
	for _, p := range a.Prices {
		sum += f(p)
	}
	return sum / float64(len(a.Prices))
}

// AggregatedPriceUpdate is emitted by the aggregator loop on each venue update.
type AggregatedPriceUpdate struct {
	MeanMid       float64
	MeanBid       float64
	MeanAsk       float64
	ExchangeCount int
	TriggeredBy   Exchange
	PerVenueMids  map[Exchange]float64
	Timestamp     time.Time
}

// MarketSpec is immutable for the life of a market.
type MarketSpec struct {
	Ticker    string
	Strike    float64
	Ceiling   float64 // only meaningful when Kind == Range
	ExpiryUTC time.Time
	Kind      MarketKind
}

// StateSnapshot is the atomic view the calculator emits.
type StateSnapshot struct {
	Ticker          string
	BTCMid          float64
	BTCBid          float64
	BTCAsk          float64
	ExchangeCount   int
	YesBid          int
	NoBid           int
	YesQty          float64
	NoQty           float64
	ModelFairProb   float64
	BlendedFairProb float64
	HoursToExpiry   float64
	Timestamp       time.Time
}

// PositionState tracks a single ticker's signed position and realized P&L.
// yes_position > 0 is long YES, < 0 is long NO (short YES). Money fields use
// decimal.Decimal: realized_pnl and cost_basis accumulate across many fills
// over a market's lifetime, and float64 drift in a ledger is unacceptable
// where plain probability math elsewhere in this package is not.
type PositionState struct {
	YesPosition   int
	AvgEntryPrice decimal.Decimal // in [0, 1]
	CostBasis     decimal.Decimal // dollars, signed negative when short
	RealizedPnL   decimal.Decimal
}

// FillUpdate is a single execution reported by the venue's private fill stream.
type FillUpdate struct {
	OrderID    string
	Ticker     string
	Side       Side
	Action     Action
	PriceCents int
	Count      int
	Timestamp  time.Time
}

// SignalKind discriminates the tagged Signal variant.
type SignalKind string

const (
	SignalQuote     SignalKind = "quote"
	SignalTake      SignalKind = "take"
	SignalAmend     SignalKind = "amend"
	SignalCancel    SignalKind = "cancel"
	SignalCancelAll SignalKind = "cancel_all"
	SignalHold      SignalKind = "hold"
)

// Signal is the tagged variant the market maker emits. Fields not relevant to
// Kind are zero-valued.
type Signal struct {
	Kind SignalKind

	// Quote / Take
	Ticker     string
	Side       Side
	IsBuy      bool
	PriceCents int
	Contracts  int
	Edge       float64

	// Amend
	OrderID  string
	NewPrice int
	NewCount int

	// Cancel
	CancelID string

	// CancelAll / Hold
	Reason string
}

// OrderStatus is the per-order state machine: Pending -> Resting -> {Executed|Canceled}.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderResting  OrderStatus = "resting"
	OrderExecuted OrderStatus = "executed"
	OrderCanceled OrderStatus = "canceled"
)

// Order is a single resting or terminal order tracked by the executor.
type Order struct {
	OrderID    string
	Ticker     string
	Side       Side
	IsBuy      bool
	PriceCents int
	Count      int
	Status     OrderStatus
	CreatedAt  time.Time
}
