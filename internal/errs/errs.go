// Package errs defines the closed set of error kinds the system's error
// handling design distinguishes between, as sentinel values so call sites can
// classify an error with errors.Is instead of string matching.
package errs

import "errors"

var (
	// Transient covers socket drops, DNS failures, 5xx responses, and read
	// timeouts. Never fatal: the caller reconnects or retries with delay.
	Transient = errors.New("transient I/O error")

	// RateLimited is an HTTP 429. Callers retry with exponential backoff up
	// to a fixed number of attempts, then surface as Transient.
	RateLimited = errors.New("rate limited")

	// ParseIgnored marks a message that failed to parse or whose type is not
	// understood. Logged and dropped, never propagated as fatal.
	ParseIgnored = errors.New("unparseable or unknown message")

	// ProtocolViolation marks an orderbook update that violates the venue
	// protocol (e.g. a delta driving quantity negative where not permitted).
	// Handled by local erase-and-continue.
	ProtocolViolation = errors.New("orderbook protocol violation")

	// OrderRejected marks a failed order placement, amend, or cancel. Logged
	// and dropped; the next snapshot will produce a new signal.
	OrderRejected = errors.New("order placement failed")

	// InvalidFill marks a fill with missing side, out-of-range price, or
	// non-positive count. Logged and discarded without updating position.
	InvalidFill = errors.New("invalid fill")

	// ConfigFatal marks a configuration error (missing env var, unreadable
	// key, unparseable PEM). Fatal at startup.
	ConfigFatal = errors.New("configuration error")

	// Expired marks that a market's expiry has passed. The owning pipeline
	// emits CancelAll and stops quoting; fills still update position.
	Expired = errors.New("market expired")
)
