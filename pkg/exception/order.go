package exception

import "github.com/yanun0323/errors"

// Venue order errors. The message text carries the venue's reason code
// because the reconciler and the market-maker loop classify venue
// failures by substring, exactly as the raw venue responses arrive.
var (
	// ErrOrderPostOnlyCross is returned when a post-only order would
	// have crossed the book at submission time.
	ErrOrderPostOnlyCross = errors.New("order rejected: POST_ONLY MUST_NOT_FILL")

	// ErrOrderNotFound is returned when cancelling an order id the
	// venue no longer knows, typically because it filled in flight.
	ErrOrderNotFound = errors.New("order rejected: ORDER_NOT_FOUND")

	// ErrOrderMarginOMF is the venue's open-margin-fraction rejection.
	ErrOrderMarginOMF = errors.New("order rejected: OMF below maintenance")

	// ErrOrderMarginRiskTrade is the venue's risk-engine margin
	// rejection for the whole atomic group.
	ErrOrderMarginRiskTrade = errors.New("order rejected: RISK_TRADE margin check failed")

	// ErrOrderNoReason is a transient venue rejection carrying no
	// reason field at all.
	ErrOrderNoReason = errors.New("order rejected: no reason")
)

var (
	ErrOrderRequestNotSent       = errors.New("order: request did not send")
	ErrOrderEmptyResponseOrderID = errors.New("order: empty response order id")
)
