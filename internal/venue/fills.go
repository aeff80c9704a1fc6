package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"btc-option-mm/internal/errs"
	"btc-option-mm/pkg/types"
)

type wireMessage struct {
	Type string          `json:"type"`
	SID  int64           `json:"sid"`
	Seq  int64           `json:"seq"`
	Msg  json.RawMessage `json:"msg"`
}

type wireFillMsg struct {
	OrderID    string  `json:"order_id"`
	Ticker     string  `json:"market_ticker"`
	Side       string  `json:"side"`
	Action     string  `json:"action"`
	PriceCents int     `json:"price_cents"`
	Count      int     `json:"count"`
	Timestamp  float64 `json:"timestamp"`
}

// FillStream subscribes to the venue's private fill channel and emits
// FillUpdate on a blocking channel — fills must never be dropped, per the
// back-pressure policy for this edge.
type FillStream struct {
	wsURL          string
	auth           *Auth
	reconnectDelay time.Duration
	logger         *zap.Logger

	fills chan<- types.FillUpdate
}

// NewFillStream builds a fill-stream subscriber. fills is the bounded,
// blocking-send channel the engine's fill fan-out consumes from and routes
// to each ticker's maker.
func NewFillStream(wsURL string, auth *Auth, reconnectDelay time.Duration, fills chan<- types.FillUpdate, logger *zap.Logger) *FillStream {
	return &FillStream{
		wsURL:          wsURL,
		auth:           auth,
		reconnectDelay: reconnectDelay,
		fills:          fills,
		logger:         logger.With(zap.String("component", "fill_stream")),
	}
}

// Run connects and reconnects forever until ctx is cancelled.
func (f *FillStream) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.runOnce(ctx); err != nil {
			f.logger.Warn("fill stream ended", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *FillStream) runOnce(ctx context.Context) error {
	headers, err := f.auth.WSAuthHeaders()
	if err != nil {
		return fmt.Errorf("build ws auth headers: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, headers)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	f.logger.Info("connected")

	sub := map[string]any{
		"id":     1,
		"cmd":    "subscribe",
		"params": map[string]any{"channels": []string{"fill"}},
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

		if raw.Type != "fill" {
			continue
		}

		var m wireFillMsg
		if err := json.Unmarshal(raw.Msg, &m); err != nil {
			f.logger.Debug("ignoring unparseable fill message", zap.Error(fmt.Errorf("%w: %v", errs.ParseIgnored, err)))
			continue
		}

		fill := types.FillUpdate{
			OrderID:    m.OrderID,
			Ticker:     m.Ticker,
			Side:       types.Side(m.Side),
			Action:     types.Action(m.Action),
			PriceCents: m.PriceCents,
			Count:      m.Count,
			Timestamp:  time.Now(),
		}

		// Critical edge: fills must never be dropped, so this send blocks.
		select {
		case f.fills <- fill:
		case <-ctx.Done():
			return nil
		}
	}
}
