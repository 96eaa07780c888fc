// Package decimalx holds small decimal helpers shared by the pricing,
// quoting, PnL and reconciliation packages. All core price/size math in
// this repository goes through decimal.Decimal rather than float64 —
// floats are reserved for volatility, momentum and ratio computation,
// where the teacher's own code tolerates approximation.
package decimalx

import (
	"sort"

	"github.com/yanun0323/decimal"
)

// Zero is the canonical zero decimal value.
var Zero = decimal.NewFromInt(0)

// FloorToTick rounds price down to the nearest multiple of tick.
func FloorToTick(price, tick decimal.Decimal) decimal.Decimal {
	return floorToStep(price, tick)
}

// CeilToTick rounds price up to the nearest multiple of tick.
func CeilToTick(price, tick decimal.Decimal) decimal.Decimal {
	return ceilToStep(price, tick)
}

// FloorToLot rounds size down to the nearest multiple of lot.
func FloorToLot(size, lot decimal.Decimal) decimal.Decimal {
	return floorToStep(size, lot)
}

func floorToStep(v, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	units := v.Div(step).Truncate(0)
	// Truncate rounds toward zero; for negative values that is a ceil,
	// so nudge down by one unit when the division wasn't exact.
	if v.IsNegative() && !units.Mul(step).Equal(v) {
		units = units.Sub(decimal.NewFromInt(1))
	}
	return units.Mul(step)
}

func ceilToStep(v, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	units := v.Div(step).Truncate(0)
	if v.IsPositive() && !units.Mul(step).Equal(v) {
		units = units.Add(decimal.NewFromInt(1))
	}
	return units.Mul(step)
}

// Clamp restricts v to the inclusive range [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// ClampFloat is Clamp for the float64 ratio/volatility math the spec
// explicitly sanctions outside price/size.
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Median returns the median of a decimal slice. The slice is not
// mutated; an internal copy is sorted. Returns (Zero, false) on an
// empty slice.
func Median(values []decimal.Decimal) (decimal.Decimal, bool) {
	n := len(values)
	if n == 0 {
		return Zero, false
	}
	sorted := make([]decimal.Decimal, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid], true
	}
	sum := sorted[mid-1].Add(sorted[mid])
	return sum.Div(decimal.NewFromInt(2)), true
}

// Abs returns the absolute value of v.
func Abs(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return v.Neg()
	}
	return v
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
