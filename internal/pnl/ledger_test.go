package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yanun0323/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOpenAndCloseLongZeroSkew(t *testing.T) {
	l := NewLedger(Config{})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	l.ApplyFill(now, SideBuy, dec("99.95"), dec("0.1"))
	l.ApplyFill(now, SideSell, dec("100.05"), dec("0.1"))

	st := l.GetState(now, dec("100"))
	assert.True(t, dec("0.01").Equal(st.RealizedPnL))
	assert.True(t, st.PositionBase.IsZero())
	assert.Equal(t, int64(1), st.WinCount)
}

func TestOvershootClose(t *testing.T) {
	l := NewLedger(Config{})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Seed(dec("0.1"), dec("100"))

	l.ApplyFill(now, SideSell, dec("101"), dec("0.15"))

	st := l.GetState(now, dec("101"))
	assert.True(t, dec("0.10").Equal(st.RealizedPnL))
	assert.True(t, dec("-0.05").Equal(st.PositionBase))
	assert.True(t, dec("5.05").Equal(st.CostBasis))
}

func TestHaltOnDrawdown(t *testing.T) {
	l := NewLedger(Config{MaxDrawdownUSD: dec("5")})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Seed so that fair $103 makes unrealized +$3 (peak), then fair $97.5
	// makes unrealized -$2.5, i.e. a $5.5 drawdown off the peak.
	l.Seed(dec("1"), dec("100"))
	st := l.GetState(now, dec("103"))
	assert.True(t, dec("3").Equal(st.PeakPnL))

	st = l.GetState(now, dec("97.5"))
	assert.True(t, st.Halted)
	assert.Contains(t, st.HaltReason, "drawdown")
	assert.True(t, dec("5.5").Equal(st.Drawdown))
}

func TestDailyRolloverClearsDailyLossHalt(t *testing.T) {
	l := NewLedger(Config{DailyLossLimitUSD: dec("2")})
	day1 := time.Date(2026, 1, 1, 23, 59, 59, 0, time.UTC)

	// Realize a -$2 day with a flat book at the end of it.
	l.ApplyFill(day1, SideBuy, dec("100"), dec("1"))
	l.ApplyFill(day1, SideSell, dec("98"), dec("1"))
	st := l.GetState(day1, dec("98"))
	assert.True(t, st.Halted)
	assert.Equal(t, ReasonDailyLoss, st.HaltReason)
	priorRealized := st.RealizedPnL

	day2 := time.Date(2026, 1, 2, 0, 0, 1, 0, time.UTC)
	st = l.GetState(day2, dec("98"))
	assert.False(t, st.Halted)
	assert.True(t, st.DailyPnL.IsZero())
	assert.True(t, priorRealized.Equal(st.RealizedPnL))
}

func TestPeakMonotoneAcrossCalls(t *testing.T) {
	l := NewLedger(Config{})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Seed(dec("1"), dec("100"))

	var lastPeak decimal.Decimal
	for _, f := range []string{"101", "99", "105", "95", "103"} {
		st := l.GetState(now, dec(f))
		assert.True(t, st.PeakPnL.GreaterThanOrEqual(lastPeak))
		lastPeak = st.PeakPnL
		assert.False(t, st.Drawdown.IsNegative())
	}
}

func TestManualResetClearsNonDailyHalt(t *testing.T) {
	l := NewLedger(Config{MaxPositionUSD: dec("100")})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Seed(dec("2"), dec("100"))

	st := l.GetState(now, dec("100"))
	assert.True(t, st.Halted)

	l.Reset()
	assert.False(t, l.halted, "Reset clears a non-daily halt")
	assert.Empty(t, l.haltReason)
	st = l.GetState(now, dec("100"))
	assert.True(t, st.Halted, "position limit is still breached so evaluateHalt re-halts")
}
