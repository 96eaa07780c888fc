// Package venue ships the simulated venue connector: an in-process
// implementation of the loop's Venue capability that enforces
// post-only semantics against a driven BBO and fills resting orders
// when the book trades through them. The production connector for a
// real exchange implements the same interface outside this repository.
package venue

import (
	"context"
	"strconv"
	"sync"

	"github.com/yanun0323/decimal"

	"marketmaker/internal/loop"
	"marketmaker/internal/position"
	"marketmaker/internal/reconcile"
	"marketmaker/pkg/exception"
)

// Sim is the simulated venue. Safe for concurrent use.
type Sim struct {
	mu       sync.Mutex
	marketID string
	nextID   int
	orders   map[string]reconcile.CachedOrder
	pos      decimal.Decimal
	bestBid  decimal.Decimal
	bestAsk  decimal.Decimal
	haveBBO  bool
	onFill   func(loop.FillEvent)
}

// NewSim creates an empty simulated venue for one market.
func NewSim(marketID string) *Sim {
	return &Sim{
		marketID: marketID,
		orders:   make(map[string]reconcile.CachedOrder),
	}
}

// OnFill registers the fill callback; fills are delivered synchronously
// from SetBBO.
func (s *Sim) OnFill(handler func(loop.FillEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFill = handler
}

// SeedPosition sets the venue-side position directly, for tests and
// restart scenarios.
func (s *Sim) SeedPosition(pos decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
}

// Atomic executes one chunk: every action validates first, then all
// apply, so a rejected chunk leaves the book untouched.
func (s *Sim) Atomic(_ context.Context, marketID string, actions []reconcile.Action) ([]reconcile.ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if marketID != s.marketID {
		return nil, exception.ErrInvalidArgument
	}

	for _, a := range actions {
		switch a.Kind {
		case reconcile.ActionCancel:
			if _, ok := s.orders[a.CancelOrderID]; !ok {
				return nil, exception.ErrOrderNotFound
			}
		case reconcile.ActionPlace:
			if s.haveBBO && s.wouldCross(a) {
				return nil, exception.ErrOrderPostOnlyCross
			}
		}
	}

	var results []reconcile.ActionResult
	for _, a := range actions {
		switch a.Kind {
		case reconcile.ActionCancel:
			delete(s.orders, a.CancelOrderID)
		case reconcile.ActionPlace:
			s.nextID++
			id := "sim-" + strconv.Itoa(s.nextID)
			s.orders[id] = reconcile.CachedOrder{
				OrderID: id,
				Side:    a.Side,
				Price:   a.Price,
				Size:    a.Size,
			}
			results = append(results, reconcile.ActionResult{OrderID: id})
		}
	}
	return results, nil
}

func (s *Sim) wouldCross(a reconcile.Action) bool {
	if a.Side == reconcile.SideBid {
		return a.Price.GreaterThanOrEqual(s.bestAsk)
	}
	return a.Price.LessThanOrEqual(s.bestBid)
}

// FetchInfo returns the authoritative open orders and position.
func (s *Sim) FetchInfo(context.Context) (loop.VenueInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]reconcile.CachedOrder, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	return loop.VenueInfo{Orders: orders, Position: s.pos}, nil
}

// SetBBO moves the book and fills any resting order it traded through:
// a best ask at or below a resting bid fills the bid, a best bid at or
// above a resting ask fills the ask.
func (s *Sim) SetBBO(tsMs int64, bestBid, bestAsk decimal.Decimal) {
	s.mu.Lock()
	s.bestBid = bestBid
	s.bestAsk = bestAsk
	s.haveBBO = true

	var fills []loop.FillEvent
	for id, o := range s.orders {
		filled := false
		side := position.SideBid
		if o.Side == reconcile.SideBid && bestAsk.LessThanOrEqual(o.Price) {
			filled = true
		}
		if o.Side == reconcile.SideAsk && bestBid.GreaterThanOrEqual(o.Price) {
			filled = true
			side = position.SideAsk
		}
		if !filled {
			continue
		}
		delete(s.orders, id)
		if side == position.SideBid {
			s.pos = s.pos.Add(o.Size)
		} else {
			s.pos = s.pos.Sub(o.Size)
		}
		fills = append(fills, loop.FillEvent{
			MarketID: s.marketID,
			Side:     side,
			Price:    o.Price,
			Size:     o.Size,
			TsMs:     tsMs,
		})
	}
	handler := s.onFill
	s.mu.Unlock()

	if handler != nil {
		for _, f := range fills {
			handler(f)
		}
	}
}

// OpenOrderCount reports the resting order count, for tests and status
// displays.
func (s *Sim) OpenOrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}
