// Package spotfeed maintains one long-lived connection per spot venue,
// normalizes each venue's best bid/ask into types.ExchangePrice, and
// aggregates them into a consensus mean mid/bid/ask.
package spotfeed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"btc-option-mm/internal/metrics"
	"btc-option-mm/pkg/types"
)

// minPriceChange is the dollar threshold below which a connector suppresses
// an update. Preserved exactly per the documented design decision.
const minPriceChange = 0.50

// internalUpdate is the unified message each connector emits onto the shared
// internal channel the aggregator loop consumes.
type internalUpdate struct {
	kind  updateKind
	venue types.Exchange
	price types.ExchangePrice
}

type updateKind int

const (
	kindPrice updateKind = iota
	kindConnected
	kindDisconnected
)

// Connector is implemented by each venue-specific connector.
type Connector interface {
	Venue() types.Exchange
	Run(ctx context.Context, out chan<- internalUpdate)
}

// Aggregator runs the single-threaded aggregation loop that owns
// AggregatorState exclusively (confined to this goroutine) and fans out
// AggregatedPriceUpdate downstream.
type Aggregator struct {
	connectors []Connector
	state      *types.AggregatorState
	logger     *zap.Logger

	internal chan internalUpdate
	out      chan<- types.AggregatedPriceUpdate
}

// NewAggregator builds an aggregator over the given connectors. out is the
// downstream channel of AggregatedPriceUpdate consumed by the calculator.
func NewAggregator(connectors []Connector, out chan<- types.AggregatedPriceUpdate, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		connectors: connectors,
		state:      types.NewAggregatorState(),
		logger:     logger.With(zap.String("component", "spot_aggregator")),
		internal:   make(chan internalUpdate, 100),
		out:        out,
	}
}

// Run starts every connector and the aggregation loop, blocking until ctx is
// cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	for _, c := range a.connectors {
		go c.Run(ctx, a.internal)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-a.internal:
			a.handle(upd)
		}
	}
}

func (a *Aggregator) handle(upd internalUpdate) {
	switch upd.kind {
	case kindConnected:
		a.logger.Info("venue connected", zap.String("venue", string(upd.venue)))
	case kindDisconnected:
		a.logger.Warn("venue disconnected", zap.String("venue", string(upd.venue)))
		a.state.Remove(upd.venue)
		a.emit(upd.venue)
	case kindPrice:
		a.state.Update(upd.price)
		a.emit(upd.venue)
	}
}

func (a *Aggregator) emit(triggeredBy types.Exchange) {
	perVenue := make(map[types.Exchange]float64, len(a.state.Prices))
	for v, p := range a.state.Prices {
		perVenue[v] = p.Mid
	}

	metrics.ExchangeCount.Set(float64(a.state.ExchangeCount()))

	aggUpd := types.AggregatedPriceUpdate{
		MeanMid:       a.state.MeanMid(),
		MeanBid:       a.state.MeanBid(),
		MeanAsk:       a.state.MeanAsk(),
		ExchangeCount: a.state.ExchangeCount(),
		TriggeredBy:   triggeredBy,
		PerVenueMids:  perVenue,
		Timestamp:     time.Now(),
	}

	select {
	case a.out <- aggUpd:
	default:
		metrics.UpdatesDroppedTotal.WithLabelValues("aggregated_price_channel_full").Inc()
	}
}
