package spotfeed

import "testing"

func TestV1ParseExtractsBidAsk(t *testing.T) {
	t.Parallel()

	impl := v1Impl{symbol: "BTCUSDT"}
	bid, ask, ok := impl.parse([]byte(`{"u":400900217,"s":"BTCUSDT","b":"100000.10","B":"1.5","a":"100005.20","A":"2.0"}`))
	if !ok {
		t.Fatal("expected ok=true")
	}
	if bid != 100000.10 || ask != 100005.20 {
		t.Errorf("bid=%v ask=%v", bid, ask)
	}
}

func TestV1ParseIgnoresFrameWithoutBothSides(t *testing.T) {
	t.Parallel()

	impl := v1Impl{symbol: "BTCUSDT"}
	_, _, ok := impl.parse([]byte(`{"u":1,"s":"BTCUSDT"}`))
	if ok {
		t.Error("expected ok=false when bid/ask are missing")
	}
}

func TestV2ParseExtractsBidAsk(t *testing.T) {
	t.Parallel()

	impl := v2Impl{productID: "BTC-USD"}
	raw := []byte(`{"channel":"ticker","events":[{"tickers":[{"best_bid":"100001.00","best_ask":"100003.00"}]}]}`)
	bid, ask, ok := impl.parse(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if bid != 100001.00 || ask != 100003.00 {
		t.Errorf("bid=%v ask=%v", bid, ask)
	}
}

func TestV2ParseIgnoresNonTickerChannel(t *testing.T) {
	t.Parallel()

	impl := v2Impl{productID: "BTC-USD"}
	_, _, ok := impl.parse([]byte(`{"channel":"heartbeats","events":[]}`))
	if ok {
		t.Error("expected ok=false for non-ticker channel")
	}
}

func TestV3ParseExtractsBidAskFromArrayShape(t *testing.T) {
	t.Parallel()

	impl := v3Impl{pair: "XBT/USD"}
	raw := []byte(`[336,{"a":["100010.0","1","1.000"],"b":["100000.0","2","2.000"],"c":["100005.0","0.1"]},"XBT/USD","ticker"]`)
	bid, ask, ok := impl.parse(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if bid != 100000.0 || ask != 100010.0 {
		t.Errorf("bid=%v ask=%v", bid, ask)
	}
}

func TestV3ParseIgnoresHeartbeat(t *testing.T) {
	t.Parallel()

	impl := v3Impl{pair: "XBT/USD"}
	_, _, ok := impl.parse([]byte(`{"event":"heartbeat"}`))
	if ok {
		t.Error("expected ok=false for heartbeat event")
	}
}

func TestV3ParseIgnoresSystemStatus(t *testing.T) {
	t.Parallel()

	impl := v3Impl{pair: "XBT/USD"}
	_, _, ok := impl.parse([]byte(`{"event":"systemStatus","status":"online"}`))
	if ok {
		t.Error("expected ok=false for systemStatus event")
	}
}

func TestV4ParseExtractsBidAsk(t *testing.T) {
	t.Parallel()

	impl := v4Impl{instrument: "BTCUSD-PERP"}
	raw := []byte(`{"id":1,"method":"subscribe","code":0,"result":{"channel":"ticker.BTCUSD-PERP","data":[{"b":"100002.0","k":"100006.0"}]}}`)
	bid, ask, ok := impl.parse(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if bid != 100002.0 || ask != 100006.0 {
		t.Errorf("bid=%v ask=%v", bid, ask)
	}
}

func TestV4ParseIgnoresErrorCode(t *testing.T) {
	t.Parallel()

	impl := v4Impl{instrument: "BTCUSD-PERP"}
	raw := []byte(`{"id":1,"method":"subscribe","code":400,"result":{}}`)
	_, _, ok := impl.parse(raw)
	if ok {
		t.Error("expected ok=false for non-zero code")
	}
}

func TestV4SubscribeUsesIncrementingNonce(t *testing.T) {
	t.Parallel()

	impl := &v4Impl{instrument: "BTCUSD-PERP"}
	first := impl.nextNonce()
	second := impl.nextNonce()
	if second != first+1 {
		t.Errorf("nonce did not increment: first=%d second=%d", first, second)
	}
}
