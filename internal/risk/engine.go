// Package risk is the loop's pre-trade guard: kill switch, order rate
// limit, size/notional/price-band checks applied to one desired quote
// at a time before it is handed to the reconciler. It is a distinct
// layer from the PnL ledger's post-fill halt (internal/pnl) — this one
// can deny a single order without halting the whole engine.
package risk

import (
	"time"

	"github.com/yanun0323/decimal"
	"golang.org/x/time/rate"

	"marketmaker/internal/decimalx"
	"marketmaker/internal/schema"
)

// Side mirrors the quote side without importing the quoter.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// Config defines simple pre-trade limits. Zero-valued limits are
// disabled.
type Config struct {
	KillSwitch           bool
	MaxOrderSize         decimal.Decimal
	MaxOrderNotionalUSD  decimal.Decimal
	MaxPositionBase      decimal.Decimal
	OrderRateLimit       int
	OrderRateWindow      time.Duration
	MaxPriceDeviationBps int64
}

// Intent is one desired quote about to be placed.
type Intent struct {
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal
}

// StateView provides the current position snapshot.
type StateView struct {
	PositionBase   decimal.Decimal
	ReferencePrice decimal.Decimal
	Now            int64
}

// Decision is the outcome of evaluating one intent.
type Decision struct {
	Action schema.RiskAction
	Reason schema.RiskReason
}

// Allowed reports whether the intent may proceed.
func (d Decision) Allowed() bool {
	return d.Action == schema.RiskActionAllow
}

// Engine evaluates pre-trade decisions.
type Engine struct {
	cfg     Config
	limiter *rate.Limiter
}

// NewEngine creates a risk engine with static limits. The order rate
// limit is expressed as a token bucket refilling at OrderRateLimit
// tokens per OrderRateWindow, burst-capped at OrderRateLimit.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	if cfg.OrderRateLimit > 0 && cfg.OrderRateWindow > 0 {
		perSecond := float64(cfg.OrderRateLimit) / cfg.OrderRateWindow.Seconds()
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), cfg.OrderRateLimit)
	}
	return e
}

// Evaluate applies the configured checks to one intent.
func (e *Engine) Evaluate(intent Intent, state StateView) Decision {
	now := state.Now
	if now == 0 {
		now = time.Now().UTC().UnixNano()
	}

	if e.cfg.KillSwitch {
		return deny(schema.RiskReasonKillSwitch)
	}

	if e.limiter != nil && !e.limiter.AllowN(time.Unix(0, now), 1) {
		return deny(schema.RiskReasonRateLimit)
	}

	if !e.cfg.MaxOrderSize.IsZero() && intent.Size.GreaterThan(e.cfg.MaxOrderSize) {
		return deny(schema.RiskReasonMaxQty)
	}

	if e.cfg.MaxPriceDeviationBps > 0 && state.ReferencePrice.IsPositive() {
		diffBps := decimalx.Abs(intent.Price.Sub(state.ReferencePrice)).
			Div(state.ReferencePrice).
			Mul(decimal.NewFromInt(10000))
		if diffBps.GreaterThan(decimal.NewFromInt(e.cfg.MaxPriceDeviationBps)) {
			return deny(schema.RiskReasonPriceBand)
		}
	}

	if !e.cfg.MaxOrderNotionalUSD.IsZero() {
		notional := intent.Price.Mul(intent.Size)
		if notional.GreaterThan(e.cfg.MaxOrderNotionalUSD) {
			return deny(schema.RiskReasonMaxNotional)
		}
	}

	if !e.cfg.MaxPositionBase.IsZero() {
		nextPos := state.PositionBase
		switch intent.Side {
		case SideBid:
			nextPos = nextPos.Add(intent.Size)
		case SideAsk:
			nextPos = nextPos.Sub(intent.Size)
		}
		if decimalx.Abs(nextPos).GreaterThan(e.cfg.MaxPositionBase) {
			return deny(schema.RiskReasonPositionLimit)
		}
	}

	return Decision{Action: schema.RiskActionAllow, Reason: schema.RiskReasonNone}
}

func deny(reason schema.RiskReason) Decision {
	return Decision{Action: schema.RiskActionDeny, Reason: reason}
}
