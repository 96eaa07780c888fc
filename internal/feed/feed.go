// Package feed defines the price-event capability the market-maker
// loop consumes, plus the pairing logic that lines the two streams up
// for the fair-price estimator.
//
// # Module
//   - source: one asynchronous stream of {mid, bbo, ts} samples
//   - pairer: matches reference and venue samples within ±1000ms
//
// # Source
//   - reference-exchange websocket, venue book websocket
//
// # Produce
//   - PriceEvent per stream message, paired samples for internal/fairprice
package feed

import (
	"context"

	"github.com/yanun0323/decimal"
)

// PriceEvent is one observation of a stream's top of book.
type PriceEvent struct {
	TsMs    int64
	Mid     decimal.Decimal
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
}

// Source publishes price events until the context is done. The
// returned unsubscribe func is idempotent.
type Source interface {
	Observe(ctx context.Context, handler func(PriceEvent)) (unsubscribe func())
}

// pairWindowMs is the maximum timestamp distance at which a reference
// and a venue sample are considered simultaneous.
const pairWindowMs = 1000

// Paired is one synchronized (venue, reference) mid observation.
type Paired struct {
	TsMs         int64
	VenueMid     decimal.Decimal
	ReferenceMid decimal.Decimal
}

// Pairer holds the latest sample of each stream and emits a Paired
// value whenever the two are within the pairing window. Not safe for
// concurrent use; owned by the market-maker loop.
type Pairer struct {
	ref       PriceEvent
	venue     PriceEvent
	haveRef   bool
	haveVenue bool
}

// OnReference ingests a reference sample and returns a pair if the
// held venue sample is close enough in time.
func (p *Pairer) OnReference(ev PriceEvent) (Paired, bool) {
	p.ref = ev
	p.haveRef = true
	return p.tryPair()
}

// OnVenue ingests a venue sample and returns a pair if the held
// reference sample is close enough in time.
func (p *Pairer) OnVenue(ev PriceEvent) (Paired, bool) {
	p.venue = ev
	p.haveVenue = true
	return p.tryPair()
}

// Reference returns the latest reference sample, if any.
func (p *Pairer) Reference() (PriceEvent, bool) {
	return p.ref, p.haveRef
}

// Venue returns the latest venue sample, if any.
func (p *Pairer) Venue() (PriceEvent, bool) {
	return p.venue, p.haveVenue
}

func (p *Pairer) tryPair() (Paired, bool) {
	if !p.haveRef || !p.haveVenue {
		return Paired{}, false
	}
	delta := p.ref.TsMs - p.venue.TsMs
	if delta < 0 {
		delta = -delta
	}
	if delta > pairWindowMs {
		return Paired{}, false
	}
	ts := p.ref.TsMs
	if p.venue.TsMs > ts {
		ts = p.venue.TsMs
	}
	return Paired{
		TsMs:         ts,
		VenueMid:     p.venue.Mid,
		ReferenceMid: p.ref.Mid,
	}, true
}
