package loop

import (
	"sync"
	"time"
)

// Throttle is a leading+trailing rate limiter for quote ticks: the
// first trigger of a burst fires immediately, triggers inside the
// period coalesce into exactly one trailing fire at the period
// boundary. Fires are delivered on C as non-blocking signals.
type Throttle struct {
	period time.Duration

	mu      sync.Mutex
	last    time.Time
	timer   *time.Timer
	pending bool
	stopped bool

	c chan struct{}
}

// NewThrottle creates a throttle with the given minimum period between
// fires.
func NewThrottle(period time.Duration) *Throttle {
	if period <= 0 {
		period = time.Millisecond
	}
	return &Throttle{
		period: period,
		c:      make(chan struct{}, 1),
	}
}

// C delivers at most one pending fire; consumers must drain it.
func (t *Throttle) C() <-chan struct{} {
	return t.c
}

// Trigger requests a fire. Returns true when the trigger fired
// immediately (leading edge) rather than being deferred.
func (t *Throttle) Trigger() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}

	now := time.Now()
	elapsed := now.Sub(t.last)
	if t.last.IsZero() || elapsed >= t.period {
		t.last = now
		t.signal()
		return true
	}

	if !t.pending {
		t.pending = true
		t.timer = time.AfterFunc(t.period-elapsed, t.fireTrailing)
	}
	return false
}

func (t *Throttle) fireTrailing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || !t.pending {
		return
	}
	t.pending = false
	t.last = time.Now()
	t.signal()
}

// signal is called with t.mu held.
func (t *Throttle) signal() {
	select {
	case t.c <- struct{}{}:
	default:
	}
}

// Stop cancels any pending trailing fire. The throttle is unusable
// afterwards.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
	}
}
