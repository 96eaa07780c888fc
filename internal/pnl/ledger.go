// Package pnl maintains the FIFO cost-basis PnL ledger and the
// post-fill risk halt evaluation layered on top of it.
//
// # Module
//   - ledger: realized/unrealized PnL, peak, drawdown, daily rollover
//   - risk: drawdown/position/daily-loss halt evaluation
//
// # Source
//   - fill events, periodic get_state(fair) calls from the loop
//
// # Produce
//   - PnL snapshot, halted flag + reason
package pnl

import (
	"time"

	"github.com/yanun0323/decimal"

	"marketmaker/internal/decimalx"
)

// Side identifies which side of the book a fill landed on.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// Config holds the risk thresholds evaluated after every fill and on
// every get_state call.
type Config struct {
	MaxDrawdownUSD    decimal.Decimal
	MaxPositionUSD    decimal.Decimal
	DailyLossLimitUSD decimal.Decimal
}

// ReasonDailyLoss is the sentinel halt reason the daily UTC rollover is
// allowed to auto-clear; every other reason requires a manual reset.
const ReasonDailyLoss = "daily loss limit"

// State is the externally observable snapshot produced by GetState.
type State struct {
	PositionBase   decimal.Decimal
	CostBasis      decimal.Decimal
	RealizedPnL    decimal.Decimal
	UnrealizedPnL  decimal.Decimal
	TotalPnL       decimal.Decimal
	PeakPnL        decimal.Decimal
	Drawdown       decimal.Decimal
	DailyPnL       decimal.Decimal
	DailyStartDate string
	WinCount       int64
	LossCount      int64
	TradeCount     int64
	VolumeUSD      decimal.Decimal
	Halted         bool
	HaltReason     string
}

// Ledger is the FIFO cost-basis PnL tracker. Not safe for concurrent
// use; owned exclusively by the market-maker loop.
type Ledger struct {
	cfg Config

	positionBase decimal.Decimal
	costBasis    decimal.Decimal
	realizedPnL  decimal.Decimal
	peakPnL      decimal.Decimal

	dailyPnL       decimal.Decimal
	dailyStartDate string

	winCount   int64
	lossCount  int64
	tradeCount int64
	volumeUSD  decimal.Decimal

	halted     bool
	haltReason string

	seeded bool
}

// NewLedger creates an empty ledger for the given risk config.
func NewLedger(cfg Config) *Ledger {
	return &Ledger{cfg: cfg, dailyStartDate: utcDate(time.Now())}
}

// Seed primes the ledger from a pre-existing venue position the first
// time a fair price becomes known, so initial unrealized PnL is ~0.
func (l *Ledger) Seed(serverPos, entryPrice decimal.Decimal) {
	if l.seeded {
		return
	}
	l.seeded = true
	l.positionBase = serverPos
	l.costBasis = decimalx.Abs(serverPos).Mul(entryPrice)
}

// ApplyFill runs the FIFO cost-basis accounting for one fill, rolling
// the day over first if the UTC date has changed. Returns the PnL
// realized by this fill (zero for a pure open).
func (l *Ledger) ApplyFill(now time.Time, side Side, price, size decimal.Decimal) decimal.Decimal {
	l.rolloverIfNeeded(now)

	signedSize := size
	if side == SideSell {
		signedSize = size.Neg()
	}

	sameSignOrFlat := l.positionBase.IsZero() ||
		(l.positionBase.IsPositive() && side == SideBuy) ||
		(l.positionBase.IsNegative() && side == SideSell)

	var realizedFill decimal.Decimal
	if sameSignOrFlat {
		l.costBasis = l.costBasis.Add(size.Mul(price))
		l.positionBase = l.positionBase.Add(signedSize)
	} else {
		absPos := decimalx.Abs(l.positionBase)
		avgEntry := decimalx.Zero
		if !absPos.IsZero() {
			avgEntry = l.costBasis.Div(absPos)
		}
		closing := decimalx.Min(size, absPos)

		if l.positionBase.IsPositive() {
			realizedFill = closing.Mul(price.Sub(avgEntry))
		} else {
			realizedFill = closing.Mul(avgEntry.Sub(price))
		}

		if l.positionBase.IsPositive() {
			l.positionBase = l.positionBase.Sub(closing)
		} else {
			l.positionBase = l.positionBase.Add(closing)
		}
		l.costBasis = decimalx.Abs(l.positionBase).Mul(avgEntry)

		remainder := size.Sub(closing)
		if remainder.IsPositive() {
			remainderSigned := remainder
			if side == SideSell {
				remainderSigned = remainder.Neg()
			}
			l.positionBase = l.positionBase.Add(remainderSigned)
			l.costBasis = decimalx.Abs(l.positionBase).Mul(price)
		}

		l.realizedPnL = l.realizedPnL.Add(realizedFill)
		l.dailyPnL = l.dailyPnL.Add(realizedFill)
		if realizedFill.IsPositive() {
			l.winCount++
		} else if realizedFill.IsNegative() {
			l.lossCount++
		}
	}

	l.tradeCount++
	l.volumeUSD = l.volumeUSD.Add(size.Mul(price))
	return realizedFill
}

// UnrealizedPnL computes mark-to-market PnL at the given fair price.
func (l *Ledger) UnrealizedPnL(fair decimal.Decimal) decimal.Decimal {
	if l.positionBase.IsZero() {
		return decimalx.Zero
	}
	absPos := decimalx.Abs(l.positionBase)
	avgEntry := l.costBasis.Div(absPos)
	if l.positionBase.IsPositive() {
		return absPos.Mul(fair.Sub(avgEntry))
	}
	return absPos.Mul(avgEntry.Sub(fair))
}

// GetState rolls the day over if needed, recomputes peak/drawdown and
// the halt flag, and returns the resulting snapshot.
func (l *Ledger) GetState(now time.Time, fair decimal.Decimal) State {
	l.rolloverIfNeeded(now)

	unrealized := l.UnrealizedPnL(fair)
	total := l.realizedPnL.Add(unrealized)
	if total.GreaterThan(l.peakPnL) {
		l.peakPnL = total
	}
	drawdown := l.peakPnL.Sub(total)
	if drawdown.IsNegative() {
		drawdown = decimalx.Zero
	}

	l.evaluateHalt(drawdown, fair, unrealized)

	return State{
		PositionBase:   l.positionBase,
		CostBasis:      l.costBasis,
		RealizedPnL:    l.realizedPnL,
		UnrealizedPnL:  unrealized,
		TotalPnL:       total,
		PeakPnL:        l.peakPnL,
		Drawdown:       drawdown,
		DailyPnL:       l.dailyPnL,
		DailyStartDate: l.dailyStartDate,
		WinCount:       l.winCount,
		LossCount:      l.lossCount,
		TradeCount:     l.tradeCount,
		VolumeUSD:      l.volumeUSD,
		Halted:         l.halted,
		HaltReason:     l.haltReason,
	}
}

func (l *Ledger) evaluateHalt(drawdown, fair, unrealized decimal.Decimal) {
	if !l.cfg.MaxDrawdownUSD.IsZero() && drawdown.GreaterThanOrEqual(l.cfg.MaxDrawdownUSD) {
		l.halted = true
		l.haltReason = "Max drawdown exceeded"
		return
	}
	notional := decimalx.Abs(l.positionBase.Mul(fair))
	if !l.cfg.MaxPositionUSD.IsZero() && notional.GreaterThanOrEqual(l.cfg.MaxPositionUSD) {
		l.halted = true
		l.haltReason = "Max position exceeded"
		return
	}
	if !l.cfg.DailyLossLimitUSD.IsZero() {
		dailyTotal := l.dailyPnL.Add(unrealized)
		if dailyTotal.LessThanOrEqual(l.cfg.DailyLossLimitUSD.Neg()) {
			l.halted = true
			l.haltReason = ReasonDailyLoss
		}
	}
}

// Reset manually clears a halt regardless of reason.
func (l *Ledger) Reset() {
	l.halted = false
	l.haltReason = ""
}

func (l *Ledger) rolloverIfNeeded(now time.Time) {
	today := utcDate(now)
	if today == l.dailyStartDate {
		return
	}
	l.dailyStartDate = today
	l.dailyPnL = decimalx.Zero
	if l.halted && l.haltReason == ReasonDailyLoss {
		l.halted = false
		l.haltReason = ""
	}
}

func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
