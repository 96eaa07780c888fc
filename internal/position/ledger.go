// Package position tracks the signed base position of the instrument
// the market-maker quotes, reconciled periodically against the venue's
// authoritative account state.
//
// # Module
//   - ledger: signed base_size, optimistic fill apply, drift-checked sync
//   - backoff: bounded exponential retry for the sync RPC
//
// # Source
//   - fill events (optimistic), periodic venue position query (authoritative)
//
// # Produce
//   - base_size, close-mode predicate, quoting context for the quoter
package position

import (
	"context"
	"math/big"
	"time"

	"github.com/yanun0323/decimal"

	"marketmaker/internal/decimalx"
)

// driftEpsilon is the |local - server| threshold above which the
// ledger adopts the server value instead of trusting its own running
// total.
var driftEpsilon = decimal.NewFromBigInt(big.NewInt(1), -4)

// Side identifies which side of the book a fill landed on.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// AllowedSides restricts quoting to one side (close mode) or both.
type AllowedSides int

const (
	AllowedBoth AllowedSides = iota
	AllowedBidOnly
	AllowedAskOnly
)

// QuotingContext is what the quoter reads from the position ledger on
// every tick.
type QuotingContext struct {
	Fair         decimal.Decimal
	BaseSize     decimal.Decimal
	CloseMode    bool
	AllowedSides AllowedSides
}

// VenuePosition is the minimal capability the ledger needs from the
// venue SDK (an external collaborator per spec, consumed only through
// this interface).
type VenuePosition interface {
	FetchPosition(ctx context.Context) (decimal.Decimal, error)
}

// DriftLogger receives a log line whenever a sync adopts a server
// value that disagrees with the local running total.
type DriftLogger interface {
	LogDrift(local, server decimal.Decimal)
}

// Backoff is the bounded exponential-retry policy used for the sync
// RPC. Mirrors the teacher's websocket reconnect backoff shape but is
// reimplemented locally since that package is out of scope here.
type Backoff struct {
	Base    time.Duration
	Factor  float64
	Retries int
}

// DefaultBackoff is base 500ms, factor 2, 3 retries, matching spec.md
// §4.C's sync retry policy.
var DefaultBackoff = Backoff{Base: 500 * time.Millisecond, Factor: 2, Retries: 3}

// Next returns the delay before retry attempt n (0-indexed).
func (b Backoff) Next(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Factor)
	}
	return d
}

// Ledger is the signed position tracker. Not safe for concurrent use;
// owned exclusively by the market-maker loop.
type Ledger struct {
	closeThresholdUSD decimal.Decimal
	baseSize          decimal.Decimal
}

// NewLedger creates an empty ledger with the given close-mode
// notional threshold.
func NewLedger(closeThresholdUSD decimal.Decimal) *Ledger {
	return &Ledger{closeThresholdUSD: closeThresholdUSD}
}

// Seed sets the starting base size directly, without a venue round trip
// (spec.md §4.D seeding). The loop's own startup adopts the venue's
// pre-existing position through Sync rather than Seed.
func (l *Ledger) Seed(baseSize decimal.Decimal) {
	l.baseSize = baseSize
}

// ApplyFill optimistically updates base_size: +size for bid fills,
// -size for ask fills.
func (l *Ledger) ApplyFill(side Side, size decimal.Decimal) {
	switch side {
	case SideBid:
		l.baseSize = l.baseSize.Add(size)
	case SideAsk:
		l.baseSize = l.baseSize.Sub(size)
	}
}

// BaseSize returns the current signed position.
func (l *Ledger) BaseSize() decimal.Decimal {
	return l.baseSize
}

// IsCloseMode reports whether |base_size * fair| >= close_threshold_usd.
func (l *Ledger) IsCloseMode(fair decimal.Decimal) bool {
	notional := decimalx.Abs(l.baseSize.Mul(fair))
	return notional.GreaterThanOrEqual(l.closeThresholdUSD)
}

// QuotingContext builds the struct the quoter consumes this tick.
func (l *Ledger) QuotingContext(fair decimal.Decimal) QuotingContext {
	closeMode := l.IsCloseMode(fair)
	allowed := AllowedBoth
	if closeMode {
		if l.baseSize.IsPositive() {
			allowed = AllowedAskOnly
		} else if l.baseSize.IsNegative() {
			allowed = AllowedBidOnly
		}
	}
	return QuotingContext{
		Fair:         fair,
		BaseSize:     l.baseSize,
		CloseMode:    closeMode,
		AllowedSides: allowed,
	}
}

// Sync queries the venue for its authoritative position, retrying with
// bounded exponential backoff, and adopts the server value (logging
// drift) whenever it disagrees with the local total by more than
// driftEpsilon. Returns the final error if every attempt fails.
func (l *Ledger) Sync(ctx context.Context, venue VenuePosition, drift DriftLogger, backoff Backoff) error {
	var lastErr error
	for attempt := 0; attempt <= backoff.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Next(attempt - 1)):
			}
		}

		server, err := venue.FetchPosition(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		diff := decimalx.Abs(l.baseSize.Sub(server))
		if diff.GreaterThan(driftEpsilon) {
			if drift != nil {
				drift.LogDrift(l.baseSize, server)
			}
			l.baseSize = server
		}
		return nil
	}
	return lastErr
}
