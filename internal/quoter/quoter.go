// Package quoter produces an inventory-aware, volatility-widened
// ladder of bid/ask quotes from the fair price, position, and the
// volatility/momentum trackers.
//
// # Module
//   - skew: position-ratio-weighted mid shift
//   - spread: volatility-widened, momentum-penalized half-spreads
//   - size shaping: adding/reducing side multipliers, level weights
//   - BBO clamp: never cross the venue's resting best bid/ask
//
// # Source
//   - fair price (A), volatility/momentum (B), position (C)
//
// # Produce
//   - a ladder of {side, price, size} quotes, possibly empty
package quoter

import (
	"github.com/yanun0323/decimal"

	"marketmaker/internal/decimalx"
)

// Side is which side of the book a quote rests on.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// Levels is the number of price levels to quote per side, 1 to 3.
type Levels int

var levelWeights = map[Levels][]decimal.Decimal{
	1: {decimal.NewFromFloat(1.0)},
	2: {decimal.NewFromFloat(0.65), decimal.NewFromFloat(0.35)},
	3: {decimal.NewFromFloat(0.55), decimal.NewFromFloat(0.30), decimal.NewFromFloat(0.15)},
}

// Config holds every tunable the quoter reads per spec.md §4.E.
type Config struct {
	BaseSpreadBps      decimal.Decimal
	MaxSpreadBps       decimal.Decimal
	VolMultiplier      decimal.Decimal
	SkewFactor         decimal.Decimal
	MaxPositionUSD     decimal.Decimal
	SizeReductionStart decimal.Decimal
	CloseThresholdUSD  decimal.Decimal
	Levels             Levels
	LevelSpacingBps    decimal.Decimal
	MomentumPenaltyBps decimal.Decimal
	MinSkewBps         decimal.Decimal
	OrderSizeUSD       decimal.Decimal
	TickSize           decimal.Decimal
	LotSize            decimal.Decimal
	MakerFeeBps        decimal.Decimal
}

// BBO is the venue's current best bid/ask, when known.
type BBO struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
	Known   bool
}

// Inputs bundles everything the quoter needs for one tick.
type Inputs struct {
	Fair          decimal.Decimal
	PositionUSD   decimal.Decimal
	VolatilityBps decimal.Decimal
	HasVolatility bool
	MomentumBps   decimal.Decimal
	BBO           BBO
	AllowBid      bool
	AllowAsk      bool
}

// Quote is one emitted price/size on one side of the book.
type Quote struct {
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal
}

var ten000 = decimal.NewFromInt(10000)

// Diagnostics are the derived per-tick quantities shared by every
// level of the ladder, exposed for the reprice check and status/trade
// logging.
type Diagnostics struct {
	PositionRatio decimal.Decimal
	VolEff        decimal.Decimal
	SkewBps       decimal.Decimal
	SkewedMid     decimal.Decimal
	SpreadBps     decimal.Decimal
	BidSpreadBps  decimal.Decimal
	AskSpreadBps  decimal.Decimal
}

// Derive computes the skewed mid and side spreads for one tick without
// building the ladder.
func Derive(cfg Config, in Inputs) Diagnostics {
	positionRatio := decimalx.Clamp(ratio(in.PositionUSD, cfg.MaxPositionUSD), decimal.NewFromInt(-1), decimal.NewFromInt(1))

	volEff := cfg.BaseSpreadBps
	if in.HasVolatility {
		volEff = in.VolatilityBps
	}
	volEff = decimalx.Max(volEff, cfg.MinSkewBps)

	skewBps := cfg.SkewFactor.Mul(positionRatio).Mul(volEff)
	skewedMid := in.Fair.Mul(decimal.NewFromInt(1).Sub(skewBps.Div(ten000)))

	spreadBps := decimalx.Clamp(
		cfg.BaseSpreadBps.Add(cfg.VolMultiplier.Mul(volEff)),
		decimalx.Max(cfg.BaseSpreadBps, cfg.MakerFeeBps.Mul(decimal.NewFromInt(2))),
		cfg.MaxSpreadBps,
	)

	bidSpread, askSpread := spreadBps, spreadBps
	if absFloat(in.MomentumBps) > 1.5 {
		penalty := cfg.MomentumPenaltyBps.Mul(decimal.NewFromFloat(absFloat(in.MomentumBps) / 5))
		if in.MomentumBps.IsPositive() {
			bidSpread = bidSpread.Add(penalty)
		} else {
			askSpread = askSpread.Add(penalty)
		}
	}

	return Diagnostics{
		PositionRatio: positionRatio,
		VolEff:        volEff,
		SkewBps:       skewBps,
		SkewedMid:     skewedMid,
		SpreadBps:     spreadBps,
		BidSpreadBps:  bidSpread,
		AskSpreadBps:  askSpread,
	}
}

// Compute computes the full quote ladder for one tick. The result may be
// empty (e.g. both sides disallowed, or every level fails the BBO
// clamp / positivity check).
func Compute(cfg Config, in Inputs) []Quote {
	if in.Fair.IsZero() || in.Fair.IsNegative() {
		return nil
	}

	diag := Derive(cfg, in)
	positionRatio := diag.PositionRatio
	skewedMid := diag.SkewedMid
	bidSpread, askSpread := diag.BidSpreadBps, diag.AskSpreadBps

	bidMult, askMult := sizeMultipliers(positionRatio, cfg.SizeReductionStart)
	if decimalx.Abs(in.PositionUSD).GreaterThanOrEqual(cfg.CloseThresholdUSD) {
		if in.PositionUSD.IsPositive() {
			bidMult = decimalx.Zero
		} else if in.PositionUSD.IsNegative() {
			askMult = decimalx.Zero
		}
	}

	baseSize := decimalx.FloorToLot(cfg.OrderSizeUSD.Div(in.Fair), cfg.LotSize)
	weights := levelWeights[cfg.Levels]
	if weights == nil {
		weights = levelWeights[1]
	}

	var quotes []Quote
	if in.AllowBid {
		quotes = append(quotes, buildLevels(cfg, SideBid, skewedMid, bidSpread, baseSize, bidMult, weights, in.BBO)...)
	}
	if in.AllowAsk {
		quotes = append(quotes, buildLevels(cfg, SideAsk, skewedMid, askSpread, baseSize, askMult, weights, in.BBO)...)
	}
	return quotes
}

func buildLevels(cfg Config, side Side, skewedMid, spreadBps, baseSize, sideMult decimal.Decimal, weights []decimal.Decimal, bbo BBO) []Quote {
	var out []Quote
	for i, w := range weights {
		// Spacing and weight share the 0-based level index: the tightest
		// level sits exactly at the computed half-spread.
		level := decimal.NewFromInt(int64(i))
		levelSpreadBps := spreadBps.Add(level.Mul(cfg.LevelSpacingBps))

		var rawPrice decimal.Decimal
		if side == SideBid {
			rawPrice = skewedMid.Mul(decimal.NewFromInt(1).Sub(levelSpreadBps.Div(ten000)))
			rawPrice = decimalx.FloorToTick(rawPrice, cfg.TickSize)
		} else {
			rawPrice = skewedMid.Mul(decimal.NewFromInt(1).Add(levelSpreadBps.Div(ten000)))
			rawPrice = decimalx.CeilToTick(rawPrice, cfg.TickSize)
		}

		price := clampBBO(side, rawPrice, bbo, cfg.TickSize)
		size := decimalx.FloorToLot(baseSize.Mul(sideMult).Mul(w), cfg.LotSize)

		if price.IsZero() || price.IsNegative() || size.IsZero() || size.IsNegative() {
			continue
		}
		out = append(out, Quote{Side: side, Price: price, Size: size})
	}
	return out
}

func clampBBO(side Side, price decimal.Decimal, bbo BBO, tick decimal.Decimal) decimal.Decimal {
	if !bbo.Known {
		return price
	}
	if side == SideBid && price.GreaterThanOrEqual(bbo.BestAsk) {
		return decimalx.FloorToTick(bbo.BestAsk.Sub(tick), tick)
	}
	if side == SideAsk && price.LessThanOrEqual(bbo.BestBid) {
		return decimalx.CeilToTick(bbo.BestBid.Add(tick), tick)
	}
	return price
}

// sizeMultipliers implements the adding/reducing-side ramp and returns
// it as (bidMult, askMult). It resolves which side is "adding" from the
// sign of positionRatio (bid is adding when long, ask is adding when
// short); a flat position returns 1 for both sides.
func sizeMultipliers(positionRatio, start decimal.Decimal) (bidMult, askMult decimal.Decimal) {
	r := decimalx.Abs(positionRatio)
	one := decimal.NewFromInt(1)

	addingMult := one
	reducingMult := one

	if r.GreaterThan(start) && r.LessThanOrEqual(one) {
		rho := r.Sub(start).Div(one.Sub(start))
		addingMult = decimalx.Max(decimalx.Zero, one.Sub(decimal.NewFromFloat(0.8).Mul(rho)))
		reducingMult = one.Add(decimal.NewFromFloat(0.3).Mul(rho))
	}
	if r.GreaterThan(decimal.NewFromFloat(0.9)) {
		addingMult = decimalx.Zero
	}

	if positionRatio.IsPositive() {
		// Long: bid adds to the position, ask reduces it.
		return addingMult, reducingMult
	}
	if positionRatio.IsNegative() {
		// Short: ask adds to the position, bid reduces it.
		return reducingMult, addingMult
	}
	return one, one
}

func ratio(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimalx.Zero
	}
	return numerator.Div(denominator)
}

func absFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	if f < 0 {
		return -f
	}
	return f
}
