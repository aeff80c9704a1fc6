package orderbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"btc-option-mm/internal/errs"
	"btc-option-mm/pkg/types"
)

// Authenticator supplies the signed headers required to open the venue's
// authenticated WebSocket connection. Signing itself is external to this
// package (see internal/venue).
type Authenticator interface {
	WSAuthHeaders() (http.Header, error)
}

// wireMessage is the venue's generic WS envelope: {type, sid, seq, msg}.
type wireMessage struct {
	Type string          `json:"type"`
	SID  int64           `json:"sid"`
	Seq  int64           `json:"seq"`
	Msg  json.RawMessage `json:"msg"`
}

type wireSnapshotMsg struct {
	MarketTicker string      `json:"market_ticker"`
	Yes          [][]float64 `json:"yes"`
	No           [][]float64 `json:"no"`
}

type wireDeltaMsg struct {
	MarketTicker string  `json:"market_ticker"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Delta        float64 `json:"delta"`
}

// Monitor keeps one market's OrderbookState synchronized with the venue's
// snapshot+delta protocol over an authenticated WebSocket connection,
// reconnecting forever on any error.
type Monitor struct {
	ticker         string
	wsURL          string
	auth           Authenticator
	reconnectDelay time.Duration
	logger         *zap.Logger

	book *types.OrderbookState

	updates chan<- types.ProbabilityUpdate // bounded, blocking send (must not drop)
}

// NewMonitor creates a monitor for one market ticker. updates is the bounded
// channel feeding the calculator; sends to it block, per the back-pressure
// policy for this edge.
func NewMonitor(ticker, wsURL string, auth Authenticator, reconnectDelay time.Duration, updates chan<- types.ProbabilityUpdate, logger *zap.Logger) *Monitor {
	return &Monitor{
		ticker:         ticker,
		wsURL:          wsURL,
		auth:           auth,
		reconnectDelay: reconnectDelay,
		book:           types.NewOrderbookState(ticker),
		updates:        updates,
		logger:         logger.With(zap.String("component", "orderbook_monitor"), zap.String("ticker", ticker)),
	}
}

// Run connects and reconnects forever until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.runOnce(ctx); err != nil {
			m.logger.Warn("monitor connection ended", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.reconnectDelay):
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) error {
	headers, err := m.auth.WSAuthHeaders()
	if err != nil {
		return fmt.Errorf("build ws auth headers: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.wsURL, headers)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	m.logger.Info("connected")

	sub := map[string]any{
		"id":  1,
		"cmd": "subscribe",
		"params": map[string]any{
			"channels":       []string{"orderbook_delta"},
			"market_tickers": []string{m.ticker},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	conn.SetPongHandler(func(string) error { return nil })

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var raw wireMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if err := m.dispatch(raw); err != nil {
			if errors.Is(err, errs.ParseIgnored) {
				m.logger.Debug("ignoring message", zap.Error(err), zap.String("type", raw.Type))
				continue
			}
			// Anything else (most importantly a sequence gap) means the local
			// book can no longer be trusted: surface it so the caller closes
			// the connection and Run reconnects and resubscribes, which is
			// the only way to get a fresh snapshot.
			return err
		}
	}
}

func (m *Monitor) dispatch(raw wireMessage) error {
	switch raw.Type {
	case "subscribed":
		return nil
	case "orderbook_snapshot":
		var s wireSnapshotMsg
		if err := json.Unmarshal(raw.Msg, &s); err != nil {
			return fmt.Errorf("%w: parse snapshot: %v", errs.ParseIgnored, err)
		}
		snap := Snapshot{Yes: toLevels(s.Yes), No: toLevels(s.No), Seq: raw.Seq}
		upd := ApplySnapshot(m.book, snap, time.Now())
		m.send(upd)
		return nil
	case "orderbook_delta":
		var d wireDeltaMsg
		if err := json.Unmarshal(raw.Msg, &d); err != nil {
			return fmt.Errorf("%w: parse delta: %v", errs.ParseIgnored, err)
		}
		if SeqGapDetected(m.book, raw.Seq) {
			return fmt.Errorf("%w: sequence gap detected at seq=%d, last=%d", errs.Transient, raw.Seq, m.book.LastSeq)
		}
		delta := Delta{Side: types.Side(d.Side), PriceCents: int(d.Price), Qty: d.Delta, Seq: raw.Seq}
		if side := m.sideOf(delta.Side); side.Qty(delta.PriceCents)+delta.Qty < 0 {
			m.logger.Warn("orderbook delta drives quantity negative, erasing level",
				zap.Error(errs.ProtocolViolation), zap.String("side", string(delta.Side)), zap.Int("price_cents", delta.PriceCents))
		}
		upd, changed := ApplyDelta(m.book, delta, time.Now())
		if changed {
			m.send(upd)
		}
		return nil
	default:
		return fmt.Errorf("%w: unrecognized message type %q", errs.ParseIgnored, raw.Type)
	}
}

func (m *Monitor) send(upd types.ProbabilityUpdate) {
	m.updates <- upd
}

func (m *Monitor) sideOf(side types.Side) *types.OrderbookSide {
	if side == types.No {
		return m.book.No
	}
	return m.book.Yes
}

func toLevels(raw [][]float64) []Level {
	levels := make([]Level, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		levels = append(levels, Level{PriceCents: int(pair[0]), Qty: pair[1]})
	}
	return levels
}
