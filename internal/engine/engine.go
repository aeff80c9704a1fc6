// Package engine wires every component into a running market maker.
//
// One pipeline runs per configured ticker: an orderbook monitor feeds a
// calculator, whose snapshots drive a market maker, whose signals reach an
// executor. A single spot aggregator and a single private fill stream are
// shared across all pipelines and fanned out/routed by engine-owned
// goroutines, since neither is naturally scoped to one ticker.
//
// Lifecycle: New() -> Start(ctx) [blocks until ctx is cancelled] -> Stop(ctx)
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"btc-option-mm/internal/api"
	"btc-option-mm/internal/calc"
	"btc-option-mm/internal/config"
	"btc-option-mm/internal/fairvalue"
	"btc-option-mm/internal/maker"
	"btc-option-mm/internal/metrics"
	"btc-option-mm/internal/orderbook"
	"btc-option-mm/internal/spotfeed"
	"btc-option-mm/internal/venue"
	"btc-option-mm/pkg/types"
)

const channelBuffer = 100

// pipeline is one ticker's full chain plus the channels wiring it together.
type pipeline struct {
	spec     types.MarketSpec
	monitor  *orderbook.Monitor
	calc     *calc.Calculator
	maker    *maker.Maker
	executor *venue.Executor

	probs    chan types.ProbabilityUpdate      // Monitor -> forwardProbs, blocking
	calcIn   chan calc.MonitorUpdate            // forwardProbs/fanOutSpot -> Calculator
	rawSnaps chan types.StateSnapshot           // Calculator -> forwardSnapshots
	snaps    chan types.StateSnapshot           // forwardSnapshots -> Maker
	signals  chan types.Signal                  // Maker -> Executor
	fills    chan types.FillUpdate              // fanOutFills -> Maker, blocking

	mu             sync.RWMutex
	latestSnapshot types.StateSnapshot
	haveSnapshot   bool
}

// Engine owns every per-ticker pipeline, the shared spot aggregator, and the
// shared private fill stream, and routes messages between them.
type Engine struct {
	cfg    config.Config
	auth   *venue.Auth
	client *venue.Client
	logger *zap.Logger

	aggregator *spotfeed.Aggregator
	spotOut    chan types.AggregatedPriceUpdate

	fillStream *venue.FillStream
	rawFills   chan types.FillUpdate

	pipelines map[string]*pipeline

	dashboardEvents chan api.DashboardEvent
}

// New wires every component per the configured ticker list. Each ticker's
// MarketSpec is derived from its own name via fairvalue.ParseTicker.
func New(cfg config.Config, logger *zap.Logger) (*Engine, error) {
	auth, err := venue.LoadAuth(cfg.Venue.APIKeyID, cfg.Venue.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load venue auth: %w", err)
	}

	client := venue.NewClient(cfg.Venue.RESTBaseURL, auth, cfg.DryRun, logger)

	tickers, err := config.LoadTickers(cfg.Market.TickersFile)
	if err != nil {
		return nil, err
	}

	var dashEvents chan api.DashboardEvent
	if cfg.Dashboard.Enabled {
		dashEvents = make(chan api.DashboardEvent, channelBuffer)
	}

	sink, err := buildSink(cfg.Sink, logger)
	if err != nil {
		return nil, err
	}

	spotOut := make(chan types.AggregatedPriceUpdate, channelBuffer)
	aggregator := spotfeed.NewAggregator(buildConnectors(cfg.SpotFeed, logger), spotOut, logger)

	rawFills := make(chan types.FillUpdate, channelBuffer)
	fillStream := venue.NewFillStream(cfg.Venue.WSURL, auth, cfg.Venue.ReconnectDelay, rawFills, logger)

	e := &Engine{
		cfg:             cfg,
		auth:            auth,
		client:          client,
		logger:          logger.With(zap.String("component", "engine")),
		aggregator:      aggregator,
		spotOut:         spotOut,
		fillStream:      fillStream,
		rawFills:        rawFills,
		pipelines:       make(map[string]*pipeline, len(tickers)),
		dashboardEvents: dashEvents,
	}

	for _, ticker := range tickers {
		spec, err := fairvalue.ParseTicker(ticker)
		if err != nil {
			return nil, fmt.Errorf("parse ticker %q: %w", ticker, err)
		}
		e.pipelines[ticker] = e.newPipeline(spec, sink)
	}

	return e, nil
}

func buildSink(cfg config.SinkConfig, logger *zap.Logger) (calc.Sink, error) {
	if !cfg.Enabled {
		return calc.NewRedisSink(nil, "btcmm:state", logger), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse sink.redis_url: %w", err)
	}
	return calc.NewRedisSink(redis.NewClient(opts), "btcmm:state", logger), nil
}

func buildConnectors(cfg config.SpotFeedConfig, logger *zap.Logger) []spotfeed.Connector {
	var connectors []spotfeed.Connector
	if cfg.EnableBinance {
		connectors = append(connectors, spotfeed.NewV1Connector(cfg.BinanceURL, cfg.BinanceSymbol, cfg.ReconnectDelay, logger))
	}
	if cfg.EnableCoinbase {
		connectors = append(connectors, spotfeed.NewV2Connector(cfg.CoinbaseURL, cfg.CoinbaseProductID, cfg.ReconnectDelay, logger))
	}
	if cfg.EnableKraken {
		connectors = append(connectors, spotfeed.NewV3Connector(cfg.KrakenURL, cfg.KrakenPair, cfg.ReconnectDelay, logger))
	}
	if cfg.EnableCryptoCom {
		connectors = append(connectors, spotfeed.NewV4Connector(cfg.CryptoComURL, cfg.CryptoComInstrument, cfg.ReconnectDelay, logger))
	}
	return connectors
}

func (e *Engine) newPipeline(spec types.MarketSpec, sink calc.Sink) *pipeline {
	probs := make(chan types.ProbabilityUpdate, channelBuffer)
	calcIn := make(chan calc.MonitorUpdate, channelBuffer)
	rawSnaps := make(chan types.StateSnapshot, channelBuffer)
	snaps := make(chan types.StateSnapshot, channelBuffer)
	signals := make(chan types.Signal, channelBuffer)
	fills := make(chan types.FillUpdate, channelBuffer)

	monitor := orderbook.NewMonitor(spec.Ticker, e.cfg.Venue.WSURL, e.auth, e.cfg.Venue.ReconnectDelay, probs, e.logger)
	calculator := calc.New(spec, e.cfg.SpotFeed.VolatilityPlaceholder, e.cfg.Market.Confidence, rawSnaps, sink, e.logger)

	mkCfg := maker.Config{
		MaxLossPerMarket:        e.cfg.Market.MaxLossPerMarket,
		BaseSpread:              e.cfg.Market.BaseSpread,
		MinEdgeToQuote:          e.cfg.Market.MinEdgeToQuote,
		AggressiveTakeThreshold: e.cfg.Market.AggressiveTakeThreshold,
		InventorySkewFactor:     e.cfg.Market.InventorySkewFactor,
		MaxInventory:            e.cfg.Market.MaxInventory,
		MinHoursToExpiry:        e.cfg.Market.MinHoursToExpiry,
		IsIndexNasdaq100:        e.cfg.Market.IsIndexNasdaq100,
		MarketChargesMakerFee:   e.cfg.Market.MarketChargesMakerFee,
	}
	mk := maker.New(mkCfg, spec, signals, e.logger)
	executor := venue.NewExecutor(e.client, spec.Ticker, e.logger)

	return &pipeline{
		spec:     spec,
		monitor:  monitor,
		calc:     calculator,
		maker:    mk,
		executor: executor,
		probs:    probs,
		calcIn:   calcIn,
		rawSnaps: rawSnaps,
		snaps:    snaps,
		signals:  signals,
		fills:    fills,
	}
}

// Start launches every goroutine and blocks until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { e.aggregator.Run(ctx); return nil })
	g.Go(func() error { e.fanOutSpot(ctx); return nil })
	g.Go(func() error { e.fillStream.Run(ctx); return nil })
	g.Go(func() error { e.fanOutFills(ctx); return nil })

	for _, p := range e.pipelines {
		p := p
		g.Go(func() error { p.monitor.Run(ctx); return nil })
		g.Go(func() error { e.forwardProbs(ctx, p); return nil })
		g.Go(func() error { p.calc.Run(ctx, p.calcIn); return nil })
		g.Go(func() error { e.forwardSnapshots(ctx, p); return nil })
		g.Go(func() error { p.maker.Run(ctx, p.snaps, p.fills); return nil })
		g.Go(func() error { p.executor.Run(ctx, p.signals); return nil })
	}

	e.logger.Info("engine started", zap.Int("tickers", len(e.pipelines)))
	return g.Wait()
}

// Stop cancels all resting orders on every ticker as a shutdown safety net.
// Callers are expected to have already cancelled the context passed to
// Start; no position state is persisted across restarts.
func (e *Engine) Stop(ctx context.Context) {
	for ticker := range e.pipelines {
		if err := e.client.CancelAllOrders(ctx, ticker); err != nil {
			e.logger.Error("failed to cancel all orders on shutdown", zap.String("ticker", ticker), zap.Error(err))
		}
	}
}

// fanOutSpot broadcasts every aggregated spot update to each pipeline's
// calculator input. Try-send with drop-on-full: a missed tick is caught by
// the next one, matching the aggregator's own back-pressure policy.
func (e *Engine) fanOutSpot(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-e.spotOut:
			if !ok {
				return
			}
			upd := u
			for _, p := range e.pipelines {
				select {
				case p.calcIn <- calc.MonitorUpdate{Spot: &upd}:
				default:
					metrics.UpdatesDroppedTotal.WithLabelValues("calculator_input_channel_full").Inc()
				}
			}
		}
	}
}

// forwardProbs relays one pipeline's orderbook updates into its calculator
// input with a blocking send, preserving the Monitor->Calculator critical
// edge across the type conversion.
func (e *Engine) forwardProbs(ctx context.Context, p *pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-p.probs:
			if !ok {
				return
			}
			upd := u
			select {
			case p.calcIn <- calc.MonitorUpdate{Kalshi: &upd}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// forwardSnapshots caches the latest snapshot for the dashboard's read path
// before relaying it on to the market maker.
func (e *Engine) forwardSnapshots(ctx context.Context, p *pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-p.rawSnaps:
			if !ok {
				return
			}
			p.mu.Lock()
			p.latestSnapshot = snap
			p.haveSnapshot = true
			p.mu.Unlock()

			e.emitDashboardEvent(api.NewSnapshotEvent(snap))

			select {
			case p.snaps <- snap:
			case <-ctx.Done():
				return
			}
		}
	}
}

// fanOutFills routes the single private fill stream to the pipeline whose
// ticker it names: the executor's order book first (non-blocking, in-process
// map update), then the maker's position accounting (blocking, per the
// Fills->MarketMaker critical edge).
func (e *Engine) fanOutFills(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-e.rawFills:
			if !ok {
				return
			}
			p, ok := e.pipelines[f.Ticker]
			if !ok {
				e.logger.Warn("fill for unrecognized ticker, dropping", zap.String("ticker", f.Ticker))
				continue
			}

			p.executor.ApplyFill(f)
			e.emitDashboardEvent(api.NewFillEvent(f))

			select {
			case p.fills <- f:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (e *Engine) emitDashboardEvent(evt api.DashboardEvent) {
	if e.dashboardEvents == nil {
		return
	}
	select {
	case e.dashboardEvents <- evt:
	default:
		e.logger.Warn("dashboard event channel full, dropping event")
	}
}

// DashboardEvents returns the dashboard event channel (nil if disabled).
func (e *Engine) DashboardEvents() <-chan api.DashboardEvent {
	return e.dashboardEvents
}

// MarketsSnapshot returns the current state of every ticker for the
// dashboard's REST/WS reporting path.
func (e *Engine) MarketsSnapshot() []api.MarketStatus {
	result := make([]api.MarketStatus, 0, len(e.pipelines))
	for ticker, p := range e.pipelines {
		p.mu.RLock()
		snap := p.latestSnapshot
		haveSnap := p.haveSnapshot
		p.mu.RUnlock()

		pos := p.maker.Position()
		orders := p.executor.ActiveOrders()

		var unrealized float64
		if haveSnap {
			unrealized = maker.UnrealizedPnL(pos, snap.BlendedFairProb).InexactFloat64()
		}

		result = append(result, api.MarketStatus{
			Ticker:       ticker,
			Snapshot:     snap,
			HaveSnapshot: haveSnap,
			Position:     api.NewPositionSnapshot(pos, unrealized),
			ActiveOrders: orders,
			MaxLoss:      maker.MaxLoss(pos).InexactFloat64(),
		})
	}
	return result
}
