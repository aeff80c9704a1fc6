package calc

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"btc-option-mm/pkg/types"
)

type recordingSink struct {
	calls int
}

func (r *recordingSink) Publish(ctx context.Context, payload []byte) {
	r.calls++
}

func testSpec() types.MarketSpec {
	return types.MarketSpec{
		Ticker:    "KXBTC-TEST",
		Strike:    100000,
		ExpiryUTC: time.Now().Add(24 * time.Hour),
		Kind:      types.Above,
	}
}

// TestBlendIsBoundedByModelAndMarket is invariant 5: for all confidence in
// [0,1], min(model, market) <= blended <= max(model, market).
func TestBlendIsBoundedByModelAndMarket(t *testing.T) {
	t.Parallel()

	snapshots := make(chan types.StateSnapshot, 1)
	c := New(testSpec(), 0.6, 0.4, snapshots, &recordingSink{}, zap.NewNop())

	c.applyKalshi(types.ProbabilityUpdate{YesBid: 55, NoBid: 42})
	c.applySpot(types.AggregatedPriceUpdate{MeanMid: 100000, ExchangeCount: 3})
	c.recomputeBlended()

	venueMid := (0.55 + (1 - 0.42)) / 2
	model := c.state.ModelFairProb
	lo, hi := model, venueMid
	if lo > hi {
		lo, hi = hi, lo
	}
	if c.state.BlendedFairProb < lo-1e-9 || c.state.BlendedFairProb > hi+1e-9 {
		t.Errorf("blended=%v not within [%v, %v]", c.state.BlendedFairProb, lo, hi)
	}
}

func TestSnapshotOnlyEmittedWhenBothSpotAndKalshiPopulated(t *testing.T) {
	t.Parallel()

	snapshots := make(chan types.StateSnapshot, 1)
	c := New(testSpec(), 0.6, 0.5, snapshots, &recordingSink{}, zap.NewNop())

	c.applyKalshi(types.ProbabilityUpdate{YesBid: 55, NoBid: 42})
	c.recomputeBlended()
	c.maybeEmitSnapshot()

	select {
	case <-snapshots:
		t.Fatal("should not emit before spot is populated")
	default:
	}

	c.applySpot(types.AggregatedPriceUpdate{MeanMid: 100000, ExchangeCount: 2})
	c.recomputeBlended()
	c.maybeEmitSnapshot()

	select {
	case snap := <-snapshots:
		if snap.Ticker != "KXBTC-TEST" {
			t.Errorf("Ticker = %q", snap.Ticker)
		}
	default:
		t.Fatal("expected a snapshot once both spot and kalshi are populated")
	}
}

func TestSnapshotChannelFullIsDroppedNotBlocked(t *testing.T) {
	t.Parallel()

	snapshots := make(chan types.StateSnapshot, 1)
	snapshots <- types.StateSnapshot{Ticker: "stale"}

	c := New(testSpec(), 0.6, 0.5, snapshots, &recordingSink{}, zap.NewNop())
	c.applyKalshi(types.ProbabilityUpdate{YesBid: 55, NoBid: 42})
	c.applySpot(types.AggregatedPriceUpdate{MeanMid: 100000, ExchangeCount: 1})
	c.recomputeBlended()

	done := make(chan struct{})
	go func() {
		c.maybeEmitSnapshot()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("maybeEmitSnapshot blocked on a full channel; it must try-send and drop")
	}
}

func TestPublishGatedByProbAndSpotThresholds(t *testing.T) {
	t.Parallel()

	snapshots := make(chan types.StateSnapshot, 1)
	sink := &recordingSink{}
	c := New(testSpec(), 0.6, 0.5, snapshots, sink, zap.NewNop())

	c.applyKalshi(types.ProbabilityUpdate{YesBid: 55, NoBid: 42})
	c.applySpot(types.AggregatedPriceUpdate{MeanMid: 100000, ExchangeCount: 1})
	c.recomputeBlended()
	c.maybePublish(context.Background())
	if sink.calls != 1 {
		t.Fatalf("calls = %d, want 1 (first publish always fires)", sink.calls)
	}

	// Sub-threshold move: no new publish.
	c.applySpot(types.AggregatedPriceUpdate{MeanMid: 100000.20, ExchangeCount: 1})
	c.recomputeBlended()
	c.maybePublish(context.Background())
	if sink.calls != 1 {
		t.Fatalf("calls = %d, want 1 (sub-threshold move must not publish)", sink.calls)
	}

	// Above-threshold spot move: publishes.
	c.applySpot(types.AggregatedPriceUpdate{MeanMid: 100002, ExchangeCount: 1})
	c.recomputeBlended()
	c.maybePublish(context.Background())
	if sink.calls != 2 {
		t.Fatalf("calls = %d, want 2 (>= $1 spot move must publish)", sink.calls)
	}
}
