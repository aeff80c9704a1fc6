// Package fairvalue computes the risk-neutral binary-option probability that
// a reference asset settles above, below, or within a range of a strike at
// expiry. It is a pure function of its inputs and holds no state.
package fairvalue

import (
	"math"

	"btc-option-mm/pkg/types"
)

const secondsPerYear = 365.25 * 86400

// Price returns the YES probability for a market of the given kind, given the
// current spot, strike (and ceiling, used only for Range), time to expiry in
// years, annualized volatility, and the risk-free rate.
//
// Edge cases (must match exactly):
//   - T <= 0 or vol <= 0: step function, 1.0 if spot >= strike else 0.0.
//   - strike <= 0 or spot <= 0: 0.5.
func Price(spot, strike, ceiling, tYears, volAnnual, r float64, kind types.MarketKind) float64 {
	switch kind {
	case types.Range:
		above := binaryCall(spot, strike, tYears, volAnnual, r)
		aboveCeiling := binaryCall(spot, ceiling, tYears, volAnnual, r)
		p := above - aboveCeiling
		return clamp01(p)
	case types.Below:
		return 1 - binaryCall(spot, strike, tYears, volAnnual, r)
	default: // Above
		return binaryCall(spot, strike, tYears, volAnnual, r)
	}
}

// binaryCall is Phi(d2) for the Above case, applying the shared edge-case
// policy for degenerate T/vol/strike/spot before falling back to the normal
// Black-Scholes d2 formula.
func binaryCall(spot, strike, tYears, volAnnual, r float64) float64 {
	if tYears <= 0 || volAnnual <= 0 {
		if spot >= strike {
			return 1.0
		}
		return 0.0
	}
	if strike <= 0 || spot <= 0 {
		return 0.5
	}

	d2 := (math.Log(spot/strike) + (r-volAnnual*volAnnual/2)*tYears) / (volAnnual * math.Sqrt(tYears))
	return normalCDF(d2)
}

// normalCDF is the standard normal cumulative distribution function,
// expressed via the complementary error function: Phi(x) = 0.5*erfc(-x/sqrt2).
// math.Erf/math.Erfc are the Go standard library's own Abramowitz-Stegun
// class rational approximations (absolute error well under the 1.5e-7 bound
// this package is required to hold), so no additional approximation logic is
// implemented here.
func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// SecondsToYears converts a duration in seconds to the T_years input Price expects.
func SecondsToYears(seconds float64) float64 {
	return seconds / secondsPerYear
}
