package fairvalue

import (
	"math"
	"testing"

	"btc-option-mm/pkg/types"
)

func TestPriceBoundedZeroOne(t *testing.T) {
	t.Parallel()

	cases := []struct {
		spot, strike, t, vol float64
	}{
		{100000, 95000, 1.0 / 365, 0.5},
		{50000, 60000, 7.0 / 365, 0.8},
		{1, 1000000, 30.0 / 365, 1.2},
	}
	for _, c := range cases {
		p := Price(c.spot, c.strike, 0, c.t, c.vol, 0, types.Above)
		if p < 0 || p > 1 {
			t.Errorf("Price(%v,%v,%v,%v) = %v, out of [0,1]", c.spot, c.strike, c.t, c.vol, p)
		}
	}
}

func TestPriceLimitsAboveAndBelow(t *testing.T) {
	t.Parallel()

	strike, tYears, vol := 100000.0, 1.0/365, 0.5

	hi := Price(1e12, strike, 0, tYears, vol, 0, types.Above)
	if hi < 0.999 {
		t.Errorf("Above at huge spot = %v, want ~1", hi)
	}
	lo := Price(1e-6, strike, 0, tYears, vol, 0, types.Above)
	if lo > 0.001 {
		t.Errorf("Above at tiny spot = %v, want ~0", lo)
	}

	hiBelow := Price(1e12, strike, 0, tYears, vol, 0, types.Below)
	if hiBelow > 0.001 {
		t.Errorf("Below at huge spot = %v, want ~0", hiBelow)
	}
	loBelow := Price(1e-6, strike, 0, tYears, vol, 0, types.Below)
	if loBelow < 0.999 {
		t.Errorf("Below at tiny spot = %v, want ~1", loBelow)
	}
}

func TestPriceAtTheMoney(t *testing.T) {
	t.Parallel()

	p := Price(100000, 100000, 0, 1.0/365, 0.50, 0, types.Above)
	if p < 0.40 || p > 0.55 {
		t.Errorf("ATM price = %v, want in [0.40, 0.55]", p)
	}
}

func TestPriceDeepITMAndOTM(t *testing.T) {
	t.Parallel()

	itm := Price(100000, 90000, 0, 1.0/365, 0.50, 0, types.Above)
	if itm <= 0.90 {
		t.Errorf("deep ITM price = %v, want > 0.90", itm)
	}

	otm := Price(100000, 110000, 0, 1.0/365, 0.50, 0, types.Above)
	if otm >= 0.10 {
		t.Errorf("deep OTM price = %v, want < 0.10", otm)
	}
}

func TestPriceExpiredStepFunction(t *testing.T) {
	t.Parallel()

	if got := Price(100000, 90000, 0, 0, 0.5, 0, types.Above); got != 1.0 {
		t.Errorf("T=0 spot>=strike = %v, want 1.0", got)
	}
	if got := Price(100000, 110000, 0, 0, 0.5, 0, types.Above); got != 0.0 {
		t.Errorf("T=0 spot<strike = %v, want 0.0", got)
	}
}

func TestPriceDegenerateStrikeOrSpot(t *testing.T) {
	t.Parallel()

	if got := Price(100000, 0, 0, 1.0/365, 0.5, 0, types.Above); got != 0.5 {
		t.Errorf("strike<=0 = %v, want 0.5", got)
	}
	if got := Price(0, 90000, 0, 1.0/365, 0.5, 0, types.Above); got != 0.5 {
		t.Errorf("spot<=0 = %v, want 0.5", got)
	}
}

func TestPriceRangeIsDifferenceOfAboves(t *testing.T) {
	t.Parallel()

	floor, ceiling := 95000.0, 105000.0
	got := Price(100000, floor, ceiling, 1.0/365, 0.5, 0, types.Range)
	if got < 0 || got > 1 {
		t.Errorf("Range price = %v, out of [0,1]", got)
	}
}

func TestNormalCDFMatchesKnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		x, want float64
	}{
		{0, 0.5},
		{1.959963985, 0.975},
	}
	for _, tt := range tests {
		if got := normalCDF(tt.x); math.Abs(got-tt.want) > 1.5e-7 {
			t.Errorf("normalCDF(%v) = %v, want %v within 1.5e-7", tt.x, got, tt.want)
		}
	}
}

func TestParseTickerAbove(t *testing.T) {
	t.Parallel()

	spec, err := ParseTicker("KXBTC-25JUL31-T1500-B100000")
	if err != nil {
		t.Fatalf("ParseTicker() error = %v", err)
	}
	if spec.Strike != 100000 {
		t.Errorf("Strike = %v, want 100000", spec.Strike)
	}
	if spec.Kind != types.Above {
		t.Errorf("Kind = %v, want Above", spec.Kind)
	}
	// 2025-07-31 15:00 ET -> UTC with fixed -5h offset.
	want := "2025-07-31 20:00:00 +0000 UTC"
	if got := spec.ExpiryUTC.UTC().String(); got != want {
		t.Errorf("ExpiryUTC = %v, want %v", got, want)
	}
}

func TestParseTickerRange(t *testing.T) {
	t.Parallel()

	spec, err := ParseTicker("KXBTC-25JUL31-T1500-B95000-105000")
	if err != nil {
		t.Fatalf("ParseTicker() error = %v", err)
	}
	if spec.Kind != types.Range {
		t.Errorf("Kind = %v, want Range", spec.Kind)
	}
	if spec.Strike != 95000 || spec.Ceiling != 105000 {
		t.Errorf("Strike/Ceiling = %v/%v, want 95000/105000", spec.Strike, spec.Ceiling)
	}
}

func TestParseTickerFailureNonFatal(t *testing.T) {
	t.Parallel()

	if _, err := ParseTicker("not-a-ticker"); err == nil {
		t.Error("expected error for malformed ticker")
	}
}
