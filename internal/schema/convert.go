package schema

import (
	"math/big"

	"github.com/yanun0323/decimal"
)

// The wire layer carries scaled integers; the core computes in
// decimal. ScaleSpec owns the conversion in both directions so every
// boundary crossing uses one definition of the scale.

// PriceFromDecimal converts a decimal price into its scaled form,
// truncating sub-scale digits.
func (s ScaleSpec) PriceFromDecimal(d decimal.Decimal) Price {
	return Price(scaleDown(d, s.PriceScale))
}

// PriceToDecimal converts a scaled price back into a decimal.
func (s ScaleSpec) PriceToDecimal(p Price) decimal.Decimal {
	return decimal.NewFromBigInt(big.NewInt(int64(p)), -int(s.PriceScale))
}

// QuantityFromDecimal converts a decimal size into its scaled form,
// truncating sub-scale digits.
func (s ScaleSpec) QuantityFromDecimal(d decimal.Decimal) Quantity {
	return Quantity(scaleDown(d, s.QuantityScale))
}

// QuantityToDecimal converts a scaled size back into a decimal.
func (s ScaleSpec) QuantityToDecimal(q Quantity) decimal.Decimal {
	return decimal.NewFromBigInt(big.NewInt(int64(q)), -int(s.QuantityScale))
}

// FeeFromDecimal converts a decimal fee into its scaled form.
func (s ScaleSpec) FeeFromDecimal(d decimal.Decimal) Fee {
	return Fee(scaleDown(d, s.FeeScale))
}

// FeeToDecimal converts a scaled fee back into a decimal.
func (s ScaleSpec) FeeToDecimal(f Fee) decimal.Decimal {
	return decimal.NewFromBigInt(big.NewInt(int64(f)), -int(s.FeeScale))
}

func scaleDown(d decimal.Decimal, scale Scale) int64 {
	return d.Mul(decimal.NewFromBigInt(big.NewInt(1), int(scale))).Truncate(0).IntPart()
}
