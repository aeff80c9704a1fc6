package orderbook

import (
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"btc-option-mm/internal/errs"
	"btc-option-mm/pkg/types"
)

func testMonitor(t *testing.T) *Monitor {
	t.Helper()
	updates := make(chan types.ProbabilityUpdate, 16)
	return NewMonitor("KXBTC-TEST", "wss://example.invalid", nil, 0, updates, zap.NewNop())
}

func TestDispatchSequenceGapIsNotParseIgnored(t *testing.T) {
	t.Parallel()
	m := testMonitor(t)
	m.book.LastSeq = 10

	msg := wireMessage{Type: "orderbook_delta", Seq: 15, Msg: json.RawMessage(`{"market_ticker":"KXBTC-TEST","side":"yes","price":50,"delta":1}`)}

	err := m.dispatch(msg)
	if err == nil {
		t.Fatal("expected error for sequence gap, got nil")
	}
	if errors.Is(err, errs.ParseIgnored) {
		t.Errorf("sequence gap must not classify as ParseIgnored (would be silently swallowed forever): %v", err)
	}
	if !errors.Is(err, errs.Transient) {
		t.Errorf("expected errors.Is(err, errs.Transient), got %v", err)
	}
}

func TestDispatchUnparseableMessageIsParseIgnored(t *testing.T) {
	t.Parallel()
	m := testMonitor(t)

	msg := wireMessage{Type: "orderbook_delta", Seq: 1, Msg: json.RawMessage(`not json`)}

	err := m.dispatch(msg)
	if !errors.Is(err, errs.ParseIgnored) {
		t.Fatalf("expected errors.Is(err, errs.ParseIgnored), got %v", err)
	}
}

func TestDispatchUnrecognizedTypeIsParseIgnored(t *testing.T) {
	t.Parallel()
	m := testMonitor(t)

	err := m.dispatch(wireMessage{Type: "something_else"})
	if !errors.Is(err, errs.ParseIgnored) {
		t.Fatalf("expected errors.Is(err, errs.ParseIgnored), got %v", err)
	}
}

func TestDispatchNegativeDeltaStillErasesLevel(t *testing.T) {
	t.Parallel()
	m := testMonitor(t)
	m.book.Yes.Set(50, 3)

	msg := wireMessage{Type: "orderbook_delta", Seq: 1, Msg: json.RawMessage(`{"market_ticker":"KXBTC-TEST","side":"yes","price":50,"delta":-10}`)}

	if err := m.dispatch(msg); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}
	if qty := m.book.Yes.Qty(50); qty != 0 {
		t.Errorf("Qty(50) = %v, want 0 (erased)", qty)
	}
}

func TestDispatchValidDeltaAdvancesLastSeq(t *testing.T) {
	t.Parallel()
	m := testMonitor(t)
	m.book.LastSeq = 5

	msg := wireMessage{Type: "orderbook_delta", Seq: 6, Msg: json.RawMessage(`{"market_ticker":"KXBTC-TEST","side":"yes","price":50,"delta":1}`)}

	if err := m.dispatch(msg); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}
	if m.book.LastSeq != 6 {
		t.Errorf("LastSeq = %d, want 6", m.book.LastSeq)
	}
}
