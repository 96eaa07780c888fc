// Package fairprice fuses a reference-exchange mid and a venue's own mid
// into a single drift-corrected fair price.
//
// # Module
//   - offset ring: fixed-capacity store of venue-minus-reference basis
//     samples, at most one per 200ms slot
//   - estimator: reference mid + median(offset window)
//
// # Source
//   - local venue mid, reference mid (paired by caller within the
//     ±1000ms window; pairing itself is the feed layer's job)
//
// # Produce
//   - fair price, or ⊥ when the window is under-populated
package fairprice

import (
	"github.com/yanun0323/decimal"

	"marketmaker/internal/decimalx"
)

const (
	slotMillis = 200
	ringCap    = 2500
)

// Config controls the estimator's window and minimum sample count.
type Config struct {
	WindowMs   int64
	MinSamples int
}

// offsetSample is one venue-minus-reference basis observation.
type offsetSample struct {
	slot   int64
	offset decimal.Decimal
}

// Estimator maintains a fixed-capacity ring of offset samples and
// derives the fair price as reference + median(offset window).
//
// Not safe for concurrent use; owned exclusively by the market-maker
// loop per spec.md §5's single-owner-actor model.
type Estimator struct {
	cfg Config

	ring     [ringCap]offsetSample
	head     int
	count    int
	lastSlot int64
	haveSlot bool
}

// NewEstimator creates an estimator with the given window/min-samples
// config. A zero WindowMs or MinSamples <= 0 is invalid and is
// defaulted defensively to keep fair_price always usable.
func NewEstimator(cfg Config) *Estimator {
	if cfg.WindowMs <= 0 {
		cfg.WindowMs = 8 * 60 * 1000
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 1
	}
	return &Estimator{cfg: cfg}
}

// AddSample appends a {slot, local-reference} offset sample if the
// computed slot is strictly newer than the last stored slot; otherwise
// it is a no-op (P2: at most one sample per 200ms slot).
func (e *Estimator) AddSample(tsMs int64, localMid, referenceMid decimal.Decimal) {
	slot := tsMs / slotMillis
	if e.haveSlot && slot <= e.lastSlot {
		return
	}
	e.lastSlot = slot
	e.haveSlot = true

	e.ring[e.head] = offsetSample{slot: slot, offset: localMid.Sub(referenceMid)}
	e.head = (e.head + 1) % ringCap
	if e.count < ringCap {
		e.count++
	}
}

// FairPrice returns referenceMid + median(valid offsets), or (Zero,
// false) if fewer than MinSamples valid samples exist in the window.
// nowSlot defaults to the most recently observed slot when tsMs<=0.
func (e *Estimator) FairPrice(tsMs int64, referenceMid decimal.Decimal) (decimal.Decimal, bool) {
	valid := e.validOffsets(tsMs)
	if len(valid) < e.cfg.MinSamples {
		return decimalx.Zero, false
	}
	median, ok := decimalx.Median(valid)
	if !ok {
		return decimalx.Zero, false
	}
	return referenceMid.Add(median), true
}

// RawMedianOffset ignores MinSamples; used by status displays that want
// to show the current basis regardless of warmup state.
func (e *Estimator) RawMedianOffset(tsMs int64) (decimal.Decimal, bool) {
	valid := e.validOffsets(tsMs)
	return decimalx.Median(valid)
}

func (e *Estimator) validOffsets(tsMs int64) []decimal.Decimal {
	if e.count == 0 {
		return nil
	}
	nowSlot := e.lastSlot
	if tsMs > 0 {
		nowSlot = tsMs / slotMillis
	}
	cutoff := nowSlot - e.cfg.WindowMs/slotMillis

	out := make([]decimal.Decimal, 0, e.count)
	for i := 0; i < e.count; i++ {
		idx := (e.head - 1 - i + ringCap) % ringCap
		s := e.ring[idx]
		if s.slot <= cutoff {
			// Samples are appended in increasing slot order, so once we
			// hit one outside the window every older one is too.
			break
		}
		out = append(out, s.offset)
	}
	return out
}

// SampleCount returns the number of samples currently retained (for
// diagnostics/status logging only).
func (e *Estimator) SampleCount() int {
	return e.count
}
