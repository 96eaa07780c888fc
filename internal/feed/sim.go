package feed

import (
	"context"
	"sync"
)

// Sim is an in-process Source fed by Push calls, used by the paper
// runner and the loop tests.
type Sim struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(PriceEvent)
}

// NewSim creates an empty simulated source.
func NewSim() *Sim {
	return &Sim{handlers: make(map[int]func(PriceEvent))}
}

// Observe registers a handler; it is invoked synchronously from Push.
func (s *Sim) Observe(ctx context.Context, handler func(PriceEvent)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	stop := func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	return stop
}

// Push delivers one event to every registered handler.
func (s *Sim) Push(ev PriceEvent) {
	s.mu.Lock()
	handlers := make([]func(PriceEvent), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
