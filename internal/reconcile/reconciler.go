// Package reconcile diffs a desired quote set against the venue's
// resting orders and executes the minimal chunked cancel+place batch
// needed to converge, tolerating partial chunk failure.
//
// # Module
//   - diff: exact {side,price,size} match, cancel unmatched, place unmatched
//   - chunking: groups of at most 4 actions, cancels before places
//   - classify: venue error substrings → skip-chunk vs rethrow
//
// # Source
//   - cached orders (F-owned), desired quotes (E's output)
//
// # Produce
//   - new cached-order set, had_chunk_errors flag
package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/yanun0323/decimal"
)

const maxChunkSize = 4

// Side mirrors quoter.Side without importing it, keeping this package
// free to be exercised against any upstream quote producer.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// CachedOrder is a resting order the reconciler believes exists on the
// venue. Owned exclusively by this package; mutated only by successful
// atomic-op results or a periodic sync.
type CachedOrder struct {
	OrderID string
	Side    Side
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// DesiredQuote is one line of the quoter's output ladder.
type DesiredQuote struct {
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal
}

// ActionKind tags a Action as a sum type (place | cancel) rather than
// an untagged record with a discriminator string.
type ActionKind int

const (
	ActionPlace ActionKind = iota
	ActionCancel
)

// Action is one atomic subaction sent to the venue.
type Action struct {
	Kind ActionKind

	// Place fields.
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal

	// Cancel fields.
	CancelOrderID string
}

// ActionResult is the venue's outcome for one submitted Action.
type ActionResult struct {
	OrderID string // set for successful places
	Err     error
}

// Venue is the minimal atomic-operations capability the reconciler
// consumes; satisfied by the venue SDK, which is out of this core's
// scope.
type Venue interface {
	Atomic(ctx context.Context, marketID string, actions []Action) ([]ActionResult, error)
}

// ErrForceSync names the condition in which the caller schedules an
// immediate authoritative sync, e.g. after an ORDER_NOT_FOUND.
// Reconcile reports that condition through Result.ForceSync; it does
// not return this error.
var ErrForceSync = errors.New("reconcile: force sync required")

// Result is what Reconcile returns: the new cache plus error signals.
type Result struct {
	Orders         []CachedOrder
	HadChunkErrors bool
	ForceSync      bool
}

// Reconcile drives current → desired via the minimal cancel+place
// batch, chunked to at most 4 actions per atomic call. Chunk-local
// recoverable errors are absorbed into HadChunkErrors/ForceSync; any
// other venue error is rethrown immediately with a zero Result, so
// orders placed by earlier chunks are not reported; the caller forces
// a sync in that case.
func Reconcile(ctx context.Context, venue Venue, marketID string, current []CachedOrder, desired []DesiredQuote) (Result, error) {
	kept, cancels, places := diff(current, desired)

	actions := make([]Action, 0, len(cancels)+len(places))
	for _, c := range cancels {
		actions = append(actions, Action{Kind: ActionCancel, CancelOrderID: c.OrderID})
	}
	for _, p := range places {
		actions = append(actions, Action{Kind: ActionPlace, Side: p.Side, Price: p.Price, Size: p.Size})
	}

	result := Result{Orders: append([]CachedOrder{}, kept...)}

	for _, chunk := range chunk(actions, maxChunkSize) {
		results, err := venue.Atomic(ctx, marketID, chunk)
		if err != nil {
			switch classify(err) {
			case errSkip:
				result.HadChunkErrors = true
				continue
			case errForceSync:
				result.HadChunkErrors = true
				result.ForceSync = true
				continue
			default:
				return Result{}, err
			}
		}
		result.Orders = append(result.Orders, pairPlacements(chunk, results)...)
	}

	return result, nil
}

// diff separates current orders into kept (exact match to a desired
// quote) and to-cancel, and desired quotes into already-satisfied vs
// to-place. Matching is exact decimal equality on (side, price, size).
func diff(current []CachedOrder, desired []DesiredQuote) (kept []CachedOrder, cancels []CachedOrder, places []DesiredQuote) {
	matchedDesired := make([]bool, len(desired))

	for _, c := range current {
		matchedIdx := -1
		for i, d := range desired {
			if matchedDesired[i] {
				continue
			}
			if c.Side == d.Side && c.Price.Equal(d.Price) && c.Size.Equal(d.Size) {
				matchedIdx = i
				break
			}
		}
		if matchedIdx >= 0 {
			matchedDesired[matchedIdx] = true
			kept = append(kept, c)
		} else {
			cancels = append(cancels, c)
		}
	}

	for i, d := range desired {
		if !matchedDesired[i] {
			places = append(places, d)
		}
	}
	return kept, cancels, places
}

func chunk(actions []Action, size int) [][]Action {
	if len(actions) == 0 {
		return nil
	}
	var out [][]Action
	for i := 0; i < len(actions); i += size {
		end := i + size
		if end > len(actions) {
			end = len(actions)
		}
		out = append(out, actions[i:end])
	}
	return out
}

// pairPlacements positionally pairs a chunk's place actions (in input
// order) with the successful results, to build new cached orders.
func pairPlacements(chunk []Action, results []ActionResult) []CachedOrder {
	var out []CachedOrder
	ri := 0
	for _, a := range chunk {
		if a.Kind != ActionPlace {
			continue
		}
		if ri >= len(results) {
			break
		}
		r := results[ri]
		ri++
		if r.Err != nil || r.OrderID == "" {
			continue
		}
		out = append(out, CachedOrder{OrderID: r.OrderID, Side: a.Side, Price: a.Price, Size: a.Size})
	}
	return out
}

type errClass int

const (
	errRethrow errClass = iota
	errSkip
	errForceSync
)

func classify(err error) errClass {
	msg := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(msg, "POST_ONLY"), strings.Contains(msg, "MUST_NOT_FILL"):
		return errSkip
	case strings.Contains(msg, "ORDER_NOT_FOUND"):
		return errForceSync
	case strings.Contains(msg, "NO REASON"), msg == "":
		return errSkip
	default:
		return errRethrow
	}
}
