package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"btc-option-mm/internal/errs"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(baseURL, testAuth(t), false, zap.NewNop())
}

func TestGetBalanceSucceedsAndPausesAfterRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"balance_cents": 4200}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	start := time.Now()
	bal, err := c.GetBalance(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if bal.BalanceCents != 4200 {
		t.Errorf("BalanceCents = %d, want 4200", bal.BalanceCents)
	}
	if elapsed < postRequestDelay {
		t.Errorf("elapsed = %v, want >= postRequestDelay (%v)", elapsed, postRequestDelay)
	}
}

func TestGetBalanceRetriesOn429ThenSucceeds(t *testing.T) {
	if testing.Short() {
		t.Skip("exercises the real 4s venue backoff before the first retry, skipped in -short")
	}
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"balance_cents": 100}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	start := time.Now()
	_, err := c.GetBalance(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if elapsed < 4*time.Second {
		t.Errorf("elapsed = %v, want >= 4s (2000*2^1 ms backoff before the retry)", elapsed)
	}
}

func TestPlaceOrderWrapsOrderRejectedOnFailureStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	_, err := c.PlaceOrder(context.Background(), OrderRequest{Ticker: "KXBTC-TEST", Side: "yes", Action: "buy", Count: 1, PriceCents: 50})
	if !errors.Is(err, errs.OrderRejected) {
		t.Fatalf("PlaceOrder() error = %v, want errors.Is(err, errs.OrderRejected)", err)
	}
}

func TestPlaceOrderDryRunSkipsNetwork(t *testing.T) {
	t.Parallel()

	c := &Client{dryRun: true, rl: NewRateLimiter(), logger: zap.NewNop()}

	resp, err := c.PlaceOrder(context.Background(), OrderRequest{ClientID: "abc"})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if resp.OrderID != "dry-run-abc" {
		t.Errorf("OrderID = %q, want dry-run-abc", resp.OrderID)
	}
}

func TestCancelOrderDoesNotRetryOn429(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	start := time.Now()
	err := c.CancelOrder(context.Background(), "order-1")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error for 429 response, got nil")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (DELETE requests do not retry on 429)", calls)
	}
	if elapsed > 2*time.Second {
		t.Errorf("elapsed = %v, want a fast single attempt", elapsed)
	}
}
