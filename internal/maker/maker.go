// Package maker implements the fee model, edge calculation, inventory-aware
// quoting, and position/PnL accounting that translate a ticker's
// StateSnapshot and FillUpdate streams into Signals.
package maker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"btc-option-mm/internal/errs"
	"btc-option-mm/internal/metrics"
	"btc-option-mm/pkg/types"
)

// Maker owns one ticker's PositionState exclusively: task-local with no
// cross-task mutable sharing. The RWMutex guards only the position snapshot
// exposed to the dashboard's read-only reporting path.
type Maker struct {
	cfg    Config
	spec   types.MarketSpec
	logger *zap.Logger

	mu  sync.RWMutex
	pos types.PositionState

	signalsCh chan<- types.Signal
}

// New creates a market maker for one ticker. signalsCh is the per-ticker
// channel the signal executor consumes from.
func New(cfg Config, spec types.MarketSpec, signalsCh chan<- types.Signal, logger *zap.Logger) *Maker {
	return &Maker{
		cfg:       cfg,
		spec:      spec,
		signalsCh: signalsCh,
		logger:    logger.With(zap.String("component", "maker"), zap.String("ticker", spec.Ticker)),
	}
}

// Run consumes snapshots and fills until ctx is cancelled. Fills arrive via a
// blocking send from upstream so none are dropped; signals are dispatched
// sequentially to signalsCh.
func (m *Maker) Run(ctx context.Context, snapshots <-chan types.StateSnapshot, fills <-chan types.FillUpdate) {
	m.logger.Info("market maker started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("market maker stopped")
			return

		case fill, ok := <-fills:
			if !ok {
				return
			}
			m.handleFill(fill)

		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			m.handleSnapshot(ctx, snap)
		}
	}
}

func (m *Maker) handleFill(fill types.FillUpdate) {
	if !validFill(fill) {
		m.logger.Warn("discarding invalid fill",
			zap.Error(fmt.Errorf("%w: order_id=%s price_cents=%d count=%d", errs.InvalidFill, fill.OrderID, fill.PriceCents, fill.Count)),
		)
		return
	}

	m.mu.Lock()
	ApplyFill(&m.pos, fill)
	pos := m.pos
	m.mu.Unlock()

	metrics.FillsTotal.WithLabelValues(string(fill.Side), string(fill.Action)).Inc()
	metrics.PositionYes.WithLabelValues(m.spec.Ticker).Set(float64(pos.YesPosition))
	metrics.RealizedPnL.WithLabelValues(m.spec.Ticker).Set(pos.RealizedPnL.InexactFloat64())
}

func validFill(fill types.FillUpdate) bool {
	if fill.Side != types.Yes && fill.Side != types.No {
		return false
	}
	if fill.PriceCents <= 0 || fill.PriceCents >= 100 {
		return false
	}
	if fill.Count <= 0 {
		return false
	}
	return true
}

func (m *Maker) handleSnapshot(ctx context.Context, snap types.StateSnapshot) {
	m.mu.RLock()
	pos := m.pos
	m.mu.RUnlock()

	signals := GenerateSignals(snap, m.spec, pos, m.cfg, time.Now())
	for _, sig := range signals {
		if sig.Kind == types.SignalCancelAll && sig.Reason == "expired" {
			m.logger.Warn("market expired, cancelling all quotes", zap.Error(errs.Expired))
		}
		metrics.SignalsTotal.WithLabelValues(string(sig.Kind)).Inc()
		select {
		case m.signalsCh <- sig:
		case <-ctx.Done():
			return
		}
	}
}

// Position returns a copy of the current position, safe to call from any
// goroutine (used by the dashboard's reporting path).
func (m *Maker) Position() types.PositionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}
