package volatility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolatilityUnderfilled(t *testing.T) {
	tr := NewTracker(Config{WindowSeconds: 60, MinSamples: 5})
	tr.AddSample(0, 100)
	tr.AddSample(1, 100.1)

	_, ok := tr.Volatility(1)
	assert.False(t, ok)
}

func TestVolatilityComputesBesselStddev(t *testing.T) {
	tr := NewTracker(Config{WindowSeconds: 60, MinSamples: 2})
	mids := []float64{100, 100.1, 99.9, 100.2, 100.0}
	for i, m := range mids {
		tr.AddSample(int64(i), m)
	}

	vol, ok := tr.Volatility(int64(len(mids) - 1))
	assert.True(t, ok)
	assert.True(t, vol > 0)
	assert.False(t, math.IsNaN(vol))
}

func TestMomentumSeedsThenUpdates(t *testing.T) {
	tr := NewTracker(Config{PeriodSeconds: 9, StrongThresholdBps: 5})

	_, _, ok := tr.Momentum()
	assert.False(t, ok)

	tr.AddSample(0, 100)
	_, _, ok = tr.Momentum()
	assert.False(t, ok, "first sample only seeds lastMid, no return yet")

	tr.AddSample(1, 101) // bp return = 100
	ema, strong, ok := tr.Momentum()
	assert.True(t, ok)
	assert.InDelta(t, 100.0, ema, 1e-9)
	assert.True(t, strong)

	tr.AddSample(2, 101) // bp return = 0, EMA decays toward 0
	ema2, _, _ := tr.Momentum()
	assert.True(t, ema2 < ema)
}

func TestAddSampleDedupsWithinSecond(t *testing.T) {
	tr := NewTracker(Config{})
	tr.AddSample(0, 100)
	tr.AddSample(0, 999) // same second, ignored
	tr.AddSample(1, 100.5)
	assert.Equal(t, 1, tr.SampleCount())
}
