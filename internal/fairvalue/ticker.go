package fairvalue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"btc-option-mm/pkg/types"
)

// etToUTCOffset is the fixed, intentionally simplified offset applied when
// converting a ticker's embedded Eastern time to UTC. Preserved exactly per
// the documented design decision: US daylight time is not modeled.
const etToUTCOffset = -5 * time.Hour

var monthAbbrev = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// ParseTicker parses a market ticker of the form
// KXBTC-YYMMMDD-THHMM-B<strike>[-<ceiling>] into a MarketSpec, converting the
// embedded Eastern time to UTC with the fixed -5h offset. Parsing failure is
// non-fatal: callers should fall back to an explicitly configured MarketSpec.
func ParseTicker(ticker string) (types.MarketSpec, error) {
	return ParseTickerWithOffset(ticker, etToUTCOffset)
}

// ParseTickerAt parses ticker using loc for the ET->UTC conversion instead of
// the fixed -5h simplification, for callers that want daylight-time-correct
// behavior.
func ParseTickerAt(ticker string, loc *time.Location) (types.MarketSpec, error) {
	parts, err := splitTicker(ticker)
	if err != nil {
		return types.MarketSpec{}, err
	}
	local, err := parseLocalTime(parts.datePart, parts.timePart, loc)
	if err != nil {
		return types.MarketSpec{}, err
	}
	return buildSpec(ticker, parts, local.UTC())
}

// ParseTickerWithOffset parses ticker applying a fixed offset (rather than a
// location) for the ET->UTC conversion.
func ParseTickerWithOffset(ticker string, offset time.Duration) (types.MarketSpec, error) {
	parts, err := splitTicker(ticker)
	if err != nil {
		return types.MarketSpec{}, err
	}
	local, err := parseLocalTime(parts.datePart, parts.timePart, time.UTC)
	if err != nil {
		return types.MarketSpec{}, err
	}
	return buildSpec(ticker, parts, local.Add(-offset))
}

type tickerParts struct {
	datePart   string
	timePart   string
	strikePart string
	ceilPart   string
}

func splitTicker(ticker string) (tickerParts, error) {
	segs := strings.Split(ticker, "-")
	if len(segs) < 4 {
		return tickerParts{}, fmt.Errorf("fairvalue: ticker %q: expected at least 4 '-'-separated segments", ticker)
	}
	if segs[0] != "KXBTC" {
		return tickerParts{}, fmt.Errorf("fairvalue: ticker %q: unrecognized prefix %q", ticker, segs[0])
	}
	p := tickerParts{datePart: segs[1], timePart: segs[2], strikePart: segs[3]}
	if len(segs) >= 5 {
		p.ceilPart = segs[4]
	}
	return p, nil
}

// parseLocalTime parses "YYMMMDD" and "THHMM" into a civil time interpreted
// in loc.
func parseLocalTime(datePart, timePart string, loc *time.Location) (time.Time, error) {
	if len(datePart) < 7 {
		return time.Time{}, fmt.Errorf("fairvalue: malformed date segment %q", datePart)
	}
	yy, err := strconv.Atoi(datePart[0:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("fairvalue: malformed year in %q: %w", datePart, err)
	}
	mon, ok := monthAbbrev[strings.ToUpper(datePart[2:5])]
	if !ok {
		return time.Time{}, fmt.Errorf("fairvalue: unknown month abbreviation in %q", datePart)
	}
	day, err := strconv.Atoi(datePart[5:7])
	if err != nil {
		return time.Time{}, fmt.Errorf("fairvalue: malformed day in %q: %w", datePart, err)
	}

	timePart = strings.TrimPrefix(timePart, "T")
	if len(timePart) < 4 {
		return time.Time{}, fmt.Errorf("fairvalue: malformed time segment %q", timePart)
	}
	hh, err := strconv.Atoi(timePart[0:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("fairvalue: malformed hour in %q: %w", timePart, err)
	}
	mm, err := strconv.Atoi(timePart[2:4])
	if err != nil {
		return time.Time{}, fmt.Errorf("fairvalue: malformed minute in %q: %w", timePart, err)
	}

	year := 2000 + yy
	return time.Date(year, mon, day, hh, mm, 0, 0, loc), nil
}

func buildSpec(ticker string, parts tickerParts, expiryUTC time.Time) (types.MarketSpec, error) {
	strike, kind, err := parseStrikeSegment(parts.strikePart)
	if err != nil {
		return types.MarketSpec{}, err
	}

	spec := types.MarketSpec{
		Ticker:    ticker,
		Strike:    strike,
		ExpiryUTC: expiryUTC,
		Kind:      kind,
	}

	if parts.ceilPart != "" {
		ceiling, err := strconv.ParseFloat(strings.TrimPrefix(parts.ceilPart, "B"), 64)
		if err != nil {
			return types.MarketSpec{}, fmt.Errorf("fairvalue: malformed ceiling segment %q: %w", parts.ceilPart, err)
		}
		spec.Kind = types.Range
		spec.Ceiling = ceiling
	}

	return spec, nil
}

// parseStrikeSegment parses "B<strike>" (Above/Below determined by a leading
// sign the venue encodes elsewhere; this helper defaults to Above, matching
// the common case, and callers that need Below set MarketSpec.Kind after
// parsing).
func parseStrikeSegment(seg string) (float64, types.MarketKind, error) {
	trimmed := strings.TrimPrefix(seg, "B")
	strike, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, "", fmt.Errorf("fairvalue: malformed strike segment %q: %w", seg, err)
	}
	return strike, types.Above, nil
}

// HoursToExpiry returns the (possibly negative) number of hours between now
// and spec.ExpiryUTC.
func HoursToExpiry(spec types.MarketSpec, now time.Time) float64 {
	return spec.ExpiryUTC.Sub(now).Hours()
}
