package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"btc-option-mm/pkg/types"
)

// Executor translates Signals into REST calls and tracks each order through
// Pending -> Resting -> {Executed|Canceled}. Order placement failures are
// logged and the signal dropped; the next snapshot produces a fresh signal.
type Executor struct {
	client *Client
	ticker string
	logger *zap.Logger

	mu           sync.RWMutex
	activeOrders map[string]*types.Order // keyed by order ID
}

// NewExecutor builds an executor for one market's signal stream.
func NewExecutor(client *Client, ticker string, logger *zap.Logger) *Executor {
	return &Executor{
		client:       client,
		ticker:       ticker,
		activeOrders: make(map[string]*types.Order),
		logger:       logger.With(zap.String("component", "executor"), zap.String("ticker", ticker)),
	}
}

// Run consumes signals until ctx is cancelled.
func (e *Executor) Run(ctx context.Context, signals <-chan types.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			e.handle(ctx, sig)
		}
	}
}

func (e *Executor) handle(ctx context.Context, sig types.Signal) {
	var err error
	switch sig.Kind {
	case types.SignalQuote, types.SignalTake:
		err = e.place(ctx, sig)
	case types.SignalAmend:
		err = e.amend(ctx, sig)
	case types.SignalCancel:
		err = e.cancel(ctx, sig.CancelID)
	case types.SignalCancelAll:
		err = e.cancelAll(ctx, sig.Reason)
	case types.SignalHold:
		return
	}

	if err != nil {
		e.logger.Warn("signal execution failed, dropping", zap.String("kind", string(sig.Kind)), zap.Error(err))
	}
}

func (e *Executor) place(ctx context.Context, sig types.Signal) error {
	clientID := fmt.Sprintf("%s-%d", e.ticker, time.Now().UnixNano())
	action := types.Buy
	if !sig.IsBuy {
		action = types.Sell
	}

	req := OrderRequest{
		Ticker:     e.ticker,
		Side:       string(sig.Side),
		Action:     string(action),
		Count:      sig.Contracts,
		PriceCents: sig.PriceCents,
		ClientID:   clientID,
	}

	resp, err := e.client.PlaceOrder(ctx, req)
	if err != nil {
		return err
	}

	order := &types.Order{
		OrderID:    resp.OrderID,
		Ticker:     e.ticker,
		Side:       sig.Side,
		IsBuy:      sig.IsBuy,
		PriceCents: sig.PriceCents,
		Count:      sig.Contracts,
		Status:     statusFromWire(resp.Status),
		CreatedAt:  time.Now(),
	}

	e.mu.Lock()
	e.activeOrders[order.OrderID] = order
	e.mu.Unlock()

	return nil
}

func (e *Executor) amend(ctx context.Context, sig types.Signal) error {
	if err := e.client.AmendOrder(ctx, sig.OrderID, sig.NewPrice, sig.NewCount); err != nil {
		return err
	}

	e.mu.Lock()
	if o, ok := e.activeOrders[sig.OrderID]; ok {
		o.PriceCents = sig.NewPrice
		o.Count = sig.NewCount
	}
	e.mu.Unlock()
	return nil
}

func (e *Executor) cancel(ctx context.Context, orderID string) error {
	if err := e.client.CancelOrder(ctx, orderID); err != nil {
		return err
	}

	e.mu.Lock()
	if o, ok := e.activeOrders[orderID]; ok {
		o.Status = types.OrderCanceled
		delete(e.activeOrders, orderID)
	}
	e.mu.Unlock()
	return nil
}

func (e *Executor) cancelAll(ctx context.Context, reason string) error {
	if err := e.client.CancelAllOrders(ctx, e.ticker); err != nil {
		return err
	}

	e.logger.Info("cancelled all orders", zap.String("reason", reason))
	e.mu.Lock()
	for id, o := range e.activeOrders {
		o.Status = types.OrderCanceled
		delete(e.activeOrders, id)
	}
	e.mu.Unlock()
	return nil
}

// ApplyFill marks an order executed (or reduces tracking for a partial fill)
// when the private fill stream reports an execution against it.
func (e *Executor) ApplyFill(fill types.FillUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.activeOrders[fill.OrderID]
	if !ok {
		return
	}
	o.Count -= fill.Count
	if o.Count <= 0 {
		o.Status = types.OrderExecuted
		delete(e.activeOrders, fill.OrderID)
	}
}

// ActiveOrders returns a snapshot copy of currently tracked orders, safe for
// the dashboard's read-only reporting path.
func (e *Executor) ActiveOrders() []types.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := make([]types.Order, 0, len(e.activeOrders))
	for _, o := range e.activeOrders {
		orders = append(orders, *o)
	}
	return orders
}

func statusFromWire(status string) types.OrderStatus {
	switch status {
	case "resting":
		return types.OrderResting
	case "executed":
		return types.OrderExecuted
	case "canceled":
		return types.OrderCanceled
	default:
		return types.OrderPending
	}
}
