package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yanun0323/decimal"
)

func TestScaleSpecRoundTrip(t *testing.T) {
	scale := ScaleSpec{PriceScale: 8, QuantityScale: 8, FeeScale: 8}

	price, err := decimal.NewFromString("99.95")
	assert.NoError(t, err)
	assert.True(t, scale.PriceToDecimal(scale.PriceFromDecimal(price)).Equal(price))

	qty, err := decimal.NewFromString("0.001")
	assert.NoError(t, err)
	assert.True(t, scale.QuantityToDecimal(scale.QuantityFromDecimal(qty)).Equal(qty))
}

func TestScaleSpecTruncatesSubScaleDigits(t *testing.T) {
	scale := ScaleSpec{PriceScale: 2}

	price, err := decimal.NewFromString("100.129")
	assert.NoError(t, err)
	assert.Equal(t, Price(10012), scale.PriceFromDecimal(price))

	expected, err := decimal.NewFromString("100.12")
	assert.NoError(t, err)
	assert.True(t, scale.PriceToDecimal(Price(10012)).Equal(expected))
}
