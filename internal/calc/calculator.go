// Package calc fuses the spot aggregator and orderbook monitor into a
// per-ticker CalculatorState, derives model fair probability, blends it with
// the venue's live market mid, and emits StateSnapshot.
package calc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"btc-option-mm/internal/fairvalue"
	"btc-option-mm/internal/metrics"
	"btc-option-mm/pkg/types"
)

// publishProbThreshold and publishSpotThreshold gate external-sink publishes.
const (
	publishProbThreshold = 0.001
	publishSpotThreshold = 1.0
)

// MonitorUpdate is the multiplexed input to the calculator: either side of
// the market's view (the venue orderbook) or the spot side (the aggregated
// consensus price).
type MonitorUpdate struct {
	Kalshi *types.ProbabilityUpdate
	Spot   *types.AggregatedPriceUpdate
}

// CalculatorState is the task-local state owned exclusively by one
// Calculator goroutine — never shared across tickers or tasks.
type CalculatorState struct {
	Spec       types.MarketSpec
	Volatility float64
	Confidence float64

	YesBid, NoBid  int
	YesQty, NoQty  float64
	haveKalshi     bool
	BTCMid         float64
	BTCBid, BTCAsk float64
	ExchangeCount  int
	haveSpot       bool

	ModelFairProb   float64
	BlendedFairProb float64

	lastPublishedKalshi float64
	lastPublishedBTC    float64
	havePublished       bool
}

// Sink publishes a JSON state blob to an external collector. Publishing is
// fire-and-forget; failures are logged, never surfaced to the caller.
type Sink interface {
	Publish(ctx context.Context, payload []byte)
}

// RedisSink publishes to a Redis pub/sub channel. A nil client makes Publish
// a no-op, matching the "sink disabled" configuration case.
type RedisSink struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisSink builds a sink over an already-connected client. client may be
// nil when the sink is disabled.
func NewRedisSink(client *redis.Client, channel string, logger *zap.Logger) *RedisSink {
	return &RedisSink{client: client, channel: channel, logger: logger.With(zap.String("component", "state_sink"))}
}

// Publish fires the publish in its own goroutine per the fire-and-forget
// back-pressure policy for this edge.
func (s *RedisSink) Publish(ctx context.Context, payload []byte) {
	if s.client == nil {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.client.Publish(pctx, s.channel, payload).Err(); err != nil {
			s.logger.Warn("sink publish failed", zap.Error(err))
		}
	}()
}

// Calculator owns one ticker's CalculatorState and is driven entirely by
// messages on its input channels; no field is ever touched from another
// goroutine.
type Calculator struct {
	state  *CalculatorState
	sink   Sink
	logger *zap.Logger

	snapshots chan<- types.StateSnapshot // try-send, drop-on-full
}

// New builds a calculator for one market, seeded with its spec, a
// volatility placeholder, and a blend confidence.
func New(spec types.MarketSpec, volatility, confidence float64, snapshots chan<- types.StateSnapshot, sink Sink, logger *zap.Logger) *Calculator {
	return &Calculator{
		state: &CalculatorState{
			Spec:       spec,
			Volatility: volatility,
			Confidence: confidence,
		},
		sink:      sink,
		snapshots: snapshots,
		logger:    logger.With(zap.String("component", "calculator"), zap.String("ticker", spec.Ticker)),
	}
}

// Run consumes the multiplexed update stream until ctx is cancelled.
func (c *Calculator) Run(ctx context.Context, updates <-chan MonitorUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-updates:
			c.handle(ctx, upd)
		}
	}
}

func (c *Calculator) handle(ctx context.Context, upd MonitorUpdate) {
	switch {
	case upd.Kalshi != nil:
		c.applyKalshi(*upd.Kalshi)
	case upd.Spot != nil:
		c.applySpot(*upd.Spot)
	default:
		return
	}

	c.recomputeBlended()
	c.maybeEmitSnapshot()
	c.maybePublish(ctx)
}

func (c *Calculator) applyKalshi(upd types.ProbabilityUpdate) {
	s := c.state
	s.YesBid, s.NoBid = upd.YesBid, upd.NoBid
	s.YesQty, s.NoQty = upd.YesQty, upd.NoQty
	s.haveKalshi = true
}

func (c *Calculator) applySpot(upd types.AggregatedPriceUpdate) {
	s := c.state
	s.BTCMid, s.BTCBid, s.BTCAsk = upd.MeanMid, upd.MeanBid, upd.MeanAsk
	s.ExchangeCount = upd.ExchangeCount
	s.haveSpot = true

	tYears := fairvalue.SecondsToYears(time.Until(s.Spec.ExpiryUTC).Seconds())
	s.ModelFairProb = fairvalue.Price(s.BTCMid, s.Spec.Strike, s.Spec.Ceiling, tYears, s.Volatility, 0, s.Spec.Kind)
}

// recomputeBlended implements blended = confidence*model_fair +
// (1-confidence)*venue_market_mid, where venue_market_mid is the midpoint of
// the best YES bid and the implied YES ask (1 - best NO bid).
func (c *Calculator) recomputeBlended() {
	s := c.state
	venueMid := (float64(s.YesBid)/100 + (1 - float64(s.NoBid)/100)) / 2
	s.BlendedFairProb = s.Confidence*s.ModelFairProb + (1-s.Confidence)*venueMid
}

func (c *Calculator) maybeEmitSnapshot() {
	s := c.state
	if !s.haveSpot || !s.haveKalshi {
		return
	}

	snap := types.StateSnapshot{
		Ticker:          s.Spec.Ticker,
		BTCMid:          s.BTCMid,
		BTCBid:          s.BTCBid,
		BTCAsk:          s.BTCAsk,
		ExchangeCount:   s.ExchangeCount,
		YesBid:          s.YesBid,
		NoBid:           s.NoBid,
		YesQty:          s.YesQty,
		NoQty:           s.NoQty,
		ModelFairProb:   s.ModelFairProb,
		BlendedFairProb: s.BlendedFairProb,
		HoursToExpiry:   fairvalue.HoursToExpiry(s.Spec, time.Now()),
		Timestamp:       time.Now(),
	}

	select {
	case c.snapshots <- snap:
	default:
		metrics.UpdatesDroppedTotal.WithLabelValues("state_snapshot_channel_full").Inc()
	}
}

// maybePublish publishes to the external sink iff the YES probability or the
// spot mid moved by at least the configured threshold since the last publish.
func (c *Calculator) maybePublish(ctx context.Context) {
	s := c.state
	kalshiProb := float64(s.YesBid) / 100

	shouldPublish := !s.havePublished ||
		absFloat(kalshiProb-s.lastPublishedKalshi) >= publishProbThreshold ||
		absFloat(s.BTCMid-s.lastPublishedBTC) >= publishSpotThreshold
	if !shouldPublish {
		return
	}

	payload, err := json.Marshal(struct {
		Ticker          string  `json:"ticker"`
		KalshiProb      float64 `json:"kalshi_prob"`
		BTCMid          float64 `json:"btc_mid"`
		ModelFairProb   float64 `json:"model_fair_prob"`
		BlendedFairProb float64 `json:"blended_fair_prob"`
		Timestamp       int64   `json:"timestamp"`
	}{
		Ticker:          s.Spec.Ticker,
		KalshiProb:      kalshiProb,
		BTCMid:          s.BTCMid,
		ModelFairProb:   s.ModelFairProb,
		BlendedFairProb: s.BlendedFairProb,
		Timestamp:       time.Now().Unix(),
	})
	if err != nil {
		c.logger.Warn("marshal state blob failed", zap.Error(err))
		return
	}

	c.sink.Publish(ctx, payload)
	s.lastPublishedKalshi = kalshiProb
	s.lastPublishedBTC = s.BTCMid
	s.havePublished = true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
