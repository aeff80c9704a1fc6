package spotfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"btc-option-mm/pkg/types"
)

// baseConnector holds the reconnect-forever shape shared by all four venue
// connectors: connect, run until the stream errors or closes, emit
// Disconnected, sleep reconnect_delay, loop. Each venue supplies its own
// dial/subscribe/parse behavior through connectorImpl.
type baseConnector struct {
	venue          types.Exchange
	url            string
	reconnectDelay time.Duration
	logger         *zap.Logger

	lastMid float64
	hasMid  bool

	impl connectorImpl
}

// connectorImpl is the venue-specific half of a connector: how to subscribe
// after dialing (if needed) and how to turn one inbound frame into a
// (bid, ask) pair. ok=false means the frame carried no usable quote (ping,
// heartbeat, status message) and must be ignored, not treated as an error.
type connectorImpl interface {
	afterDial(conn *websocket.Conn) error
	parse(raw []byte) (bid, ask float64, ok bool)
}

func (c *baseConnector) Venue() types.Exchange { return c.venue }

func (c *baseConnector) Run(ctx context.Context, out chan<- internalUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.runOnce(ctx, out); err != nil {
			c.logger.Warn("venue stream ended", zap.Error(err))
		}
		out <- internalUpdate{kind: kindDisconnected, venue: c.venue}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *baseConnector) runOnce(ctx context.Context, out chan<- internalUpdate) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := c.impl.afterDial(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	out <- internalUpdate{kind: kindConnected, venue: c.venue}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		bid, ask, ok := c.impl.parse(msg)
		if !ok {
			continue
		}

		mid := (bid + ask) / 2
		if c.hasMid && absFloat(mid-c.lastMid) < minPriceChange {
			continue
		}
		c.hasMid = true
		c.lastMid = mid

		out <- internalUpdate{
			kind:  kindPrice,
			venue: c.venue,
			price: types.NewExchangePrice(c.venue, bid, ask, time.Now()),
		}
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// --- V1: per-symbol stream, stringified numerics {u,s,b,B,a,A} ---

type v1Impl struct {
	symbol string
}

func (v1Impl) afterDial(*websocket.Conn) error { return nil }

func (v1Impl) parse(raw []byte) (bid, ask float64, ok bool) {
	var frame struct {
		U int64  `json:"u"`
		S string `json:"s"`
		B string `json:"b"`
		A string `json:"a"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return 0, 0, false
	}
	if frame.B == "" || frame.A == "" {
		return 0, 0, false
	}
	b, err1 := strconv.ParseFloat(frame.B, 64)
	a, err2 := strconv.ParseFloat(frame.A, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return b, a, true
}

// NewV1Connector builds the per-symbol book-ticker stream connector.
func NewV1Connector(wsURL, symbol string, reconnectDelay time.Duration, logger *zap.Logger) Connector {
	return &baseConnector{
		venue:          types.Binance,
		url:            wsURL,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(zap.String("venue", string(types.Binance))),
		impl:           v1Impl{symbol: symbol},
	}
}

// --- V2: request-subscribe, {channel, events:[{tickers:[{best_bid, best_ask}]}]} ---

type v2Impl struct {
	productID string
}

func (v v2Impl) afterDial(conn *websocket.Conn) error {
	return conn.WriteJSON(map[string]any{
		"type":        "subscribe",
		"product_ids": []string{v.productID},
		"channel":     "ticker",
	})
}

func (v2Impl) parse(raw []byte) (bid, ask float64, ok bool) {
	var frame struct {
		Channel string `json:"channel"`
		Events  []struct {
			Tickers []struct {
				BestBid string `json:"best_bid"`
				BestAsk string `json:"best_ask"`
			} `json:"tickers"`
		} `json:"events"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return 0, 0, false
	}
	if frame.Channel != "ticker" || len(frame.Events) == 0 || len(frame.Events[0].Tickers) == 0 {
		return 0, 0, false
	}
	t := frame.Events[0].Tickers[0]
	if t.BestBid == "" || t.BestAsk == "" {
		return 0, 0, false
	}
	b, err1 := strconv.ParseFloat(t.BestBid, 64)
	a, err2 := strconv.ParseFloat(t.BestAsk, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return b, a, true
}

// NewV2Connector builds the request-subscribe ticker-channel connector.
func NewV2Connector(wsURL, productID string, reconnectDelay time.Duration, logger *zap.Logger) Connector {
	return &baseConnector{
		venue:          types.Coinbase,
		url:            wsURL,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(zap.String("venue", string(types.Coinbase))),
		impl:           v2Impl{productID: productID},
	}
}

// --- V3: array-shaped ticker [channel_id, {b,a,c,v,...}, pair, "ticker"] ---

type v3Impl struct {
	pair string
}

func (v v3Impl) afterDial(conn *websocket.Conn) error {
	return conn.WriteJSON(map[string]any{
		"event": "subscribe",
		"pair":  []string{v.pair},
		"subscription": map[string]string{
			"name": "ticker",
		},
	})
}

func (v3Impl) parse(raw []byte) (bid, ask float64, ok bool) {
	var envelope struct {
		Event string `json:"event"`
	}
	// heartbeat / systemStatus / subscriptionStatus arrive as JSON objects;
	// ticker updates arrive as a JSON array. Try the object shape first so we
	// can cheaply recognize and ignore the non-ticker events.
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Event != "" {
		return 0, 0, false
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 4 {
		return 0, 0, false
	}

	var tag string
	if err := json.Unmarshal(frame[len(frame)-1], &tag); err != nil || tag != "ticker" {
		return 0, 0, false
	}

	var payload struct {
		B []string `json:"b"`
		A []string `json:"a"`
	}
	if err := json.Unmarshal(frame[1], &payload); err != nil {
		return 0, 0, false
	}
	if len(payload.B) == 0 || len(payload.A) == 0 {
		return 0, 0, false
	}
	b, err1 := strconv.ParseFloat(payload.B[0], 64)
	a, err2 := strconv.ParseFloat(payload.A[0], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return b, a, true
}

// NewV3Connector builds the array-shaped ticker connector.
func NewV3Connector(wsURL, pair string, reconnectDelay time.Duration, logger *zap.Logger) Connector {
	return &baseConnector{
		venue:          types.Kraken,
		url:            wsURL,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(zap.String("venue", string(types.Kraken))),
		impl:           v3Impl{pair: pair},
	}
}

// --- V4: subscribe with incrementing nonce, {id,method,code,result:{channel,data:[{b,k,a}]}} ---

type v4Impl struct {
	instrument string
	nonce      int64
}

func (v *v4Impl) nextNonce() int64 {
	v.nonce++
	return v.nonce
}

func (v *v4Impl) afterDial(conn *websocket.Conn) error {
	n := v.nextNonce()
	return conn.WriteJSON(map[string]any{
		"id":     n,
		"method": "subscribe",
		"params": map[string]any{
			"channels": []string{"ticker." + v.instrument},
		},
		"nonce": n,
	})
}

func (v4Impl) parse(raw []byte) (bid, ask float64, ok bool) {
	var frame struct {
		Method string `json:"method"`
		Code   int    `json:"code"`
		Result struct {
			Channel string `json:"channel"`
			Data    []struct {
				B string `json:"b"`
				K string `json:"k"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return 0, 0, false
	}
	if frame.Code != 0 || len(frame.Result.Data) == 0 {
		return 0, 0, false
	}
	d := frame.Result.Data[0]
	if d.B == "" || d.K == "" {
		return 0, 0, false
	}
	b, err1 := strconv.ParseFloat(d.B, 64)
	a, err2 := strconv.ParseFloat(d.K, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return b, a, true
}

// NewV4Connector builds the nonce-subscribe connector.
func NewV4Connector(wsURL, instrument string, reconnectDelay time.Duration, logger *zap.Logger) Connector {
	return &baseConnector{
		venue:          types.CryptoCom,
		url:            wsURL,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(zap.String("venue", string(types.CryptoCom))),
		impl:           &v4Impl{instrument: instrument},
	}
}
