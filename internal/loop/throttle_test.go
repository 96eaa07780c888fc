package loop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *Throttle) int {
	n := 0
	for {
		select {
		case <-t.C():
			n++
		default:
			return n
		}
	}
}

func TestThrottleLeadingEdge(t *testing.T) {
	th := NewThrottle(50 * time.Millisecond)
	defer th.Stop()

	assert.True(t, th.Trigger(), "first trigger fires immediately")
	assert.Equal(t, 1, drain(th))
}

func TestThrottleTrailingEdge(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	defer th.Stop()

	require.True(t, th.Trigger())
	// Burst inside the period: all coalesce into one trailing fire.
	assert.False(t, th.Trigger())
	assert.False(t, th.Trigger())
	assert.False(t, th.Trigger())

	select {
	case <-th.C():
	case <-time.After(time.Second):
		t.Fatal("leading fire not delivered")
	}

	select {
	case <-th.C():
	case <-time.After(time.Second):
		t.Fatal("trailing fire not delivered")
	}

	// No further fire without a new trigger.
	select {
	case <-th.C():
		t.Fatal("unexpected extra fire")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestThrottleStopCancelsPending(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	require.True(t, th.Trigger())
	require.False(t, th.Trigger())
	drain(th)
	th.Stop()

	select {
	case <-th.C():
		t.Fatal("fire after Stop")
	case <-time.After(60 * time.Millisecond):
	}
}
