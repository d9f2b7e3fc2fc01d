package contracts

import "errors"

// Domain errors shared across the advisor pipeline. Callers classify
// failures with errors.Is; wrapping adds the ticker or date context.
var (
	// ErrInsufficientFunds is returned by Buy when the order cost exceeds free funds
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares is returned by Sell when open shares are fewer than requested
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrMissingPrice aborts a valuation when a held ticker has no quote
	ErrMissingPrice = errors.New("missing price")

	// ErrNoHistory is returned when a profitability query leaves the recorded range
	ErrNoHistory = errors.New("no valuation history available")

	// ErrIncompleteMetricData marks a ticker absent from both metric pulls
	// with nothing to carry forward
	ErrIncompleteMetricData = errors.New("incomplete metric data")
)
