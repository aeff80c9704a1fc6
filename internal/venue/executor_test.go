package venue

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"btc-option-mm/pkg/types"
)

func dryRunExecutor(t *testing.T) *Executor {
	t.Helper()
	client := &Client{dryRun: true, rl: NewRateLimiter(), logger: zap.NewNop()}
	return NewExecutor(client, "KXBTC-TEST", zap.NewNop())
}

func TestPlaceOrderTracksActiveOrder(t *testing.T) {
	t.Parallel()
	e := dryRunExecutor(t)

	e.handle(context.Background(), types.Signal{
		Kind: types.SignalQuote, Side: types.Yes, IsBuy: true, PriceCents: 55, Contracts: 10,
	})

	orders := e.ActiveOrders()
	if len(orders) != 1 {
		t.Fatalf("ActiveOrders() = %d, want 1", len(orders))
	}
	if orders[0].Count != 10 || orders[0].PriceCents != 55 {
		t.Errorf("order = %+v", orders[0])
	}
}

func TestCancelRemovesActiveOrder(t *testing.T) {
	t.Parallel()
	e := dryRunExecutor(t)

	e.handle(context.Background(), types.Signal{
		Kind: types.SignalQuote, Side: types.Yes, IsBuy: true, PriceCents: 55, Contracts: 10,
	})
	orderID := e.ActiveOrders()[0].OrderID

	e.handle(context.Background(), types.Signal{Kind: types.SignalCancel, CancelID: orderID})

	if len(e.ActiveOrders()) != 0 {
		t.Errorf("expected no active orders after cancel, got %d", len(e.ActiveOrders()))
	}
}

func TestCancelAllClearsEverything(t *testing.T) {
	t.Parallel()
	e := dryRunExecutor(t)

	for i := 0; i < 3; i++ {
		e.handle(context.Background(), types.Signal{
			Kind: types.SignalQuote, Side: types.Yes, IsBuy: true, PriceCents: 50 + i, Contracts: 1,
		})
	}
	if len(e.ActiveOrders()) != 3 {
		t.Fatalf("expected 3 active orders, got %d", len(e.ActiveOrders()))
	}

	e.handle(context.Background(), types.Signal{Kind: types.SignalCancelAll, Reason: "expired"})

	if len(e.ActiveOrders()) != 0 {
		t.Errorf("expected no active orders after cancel_all, got %d", len(e.ActiveOrders()))
	}
}

func TestApplyFillReducesOrExecutesOrder(t *testing.T) {
	t.Parallel()
	e := dryRunExecutor(t)

	e.handle(context.Background(), types.Signal{
		Kind: types.SignalQuote, Side: types.Yes, IsBuy: true, PriceCents: 55, Contracts: 10,
	})
	orderID := e.ActiveOrders()[0].OrderID

	e.ApplyFill(types.FillUpdate{OrderID: orderID, Side: types.Yes, Action: types.Buy, PriceCents: 55, Count: 4})
	if orders := e.ActiveOrders(); len(orders) != 1 || orders[0].Count != 6 {
		t.Fatalf("orders after partial fill = %+v", orders)
	}

	e.ApplyFill(types.FillUpdate{OrderID: orderID, Side: types.Yes, Action: types.Buy, PriceCents: 55, Count: 6})
	if len(e.ActiveOrders()) != 0 {
		t.Errorf("expected order fully executed and removed, got %d active", len(e.ActiveOrders()))
	}
}

func TestHoldSignalIsANoOp(t *testing.T) {
	t.Parallel()
	e := dryRunExecutor(t)

	e.handle(context.Background(), types.Signal{Kind: types.SignalHold, Reason: "no profitable opportunities"})
	if len(e.ActiveOrders()) != 0 {
		t.Errorf("Hold must not create an order")
	}
}
