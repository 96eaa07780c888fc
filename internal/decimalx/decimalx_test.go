package decimalx

import (
	"testing"

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

func TestFloorToTick(t *testing.T) {
	assert.True(t, dec("100.10").Equal(FloorToTick(dec("100.14"), dec("0.10"))))
	assert.True(t, dec("100.10").Equal(FloorToTick(dec("100.10"), dec("0.10"))))
}

func TestCeilToTick(t *testing.T) {
	assert.True(t, dec("100.20").Equal(CeilToTick(dec("100.14"), dec("0.10"))))
	assert.True(t, dec("100.10").Equal(CeilToTick(dec("100.10"), dec("0.10"))))
}

func TestFloorToLot(t *testing.T) {
	assert.True(t, dec("0.01").Equal(FloorToLot(dec("0.017"), dec("0.01"))))
}

func TestClamp(t *testing.T) {
	assert.True(t, dec("1").Equal(Clamp(dec("5"), dec("-1"), dec("1"))))
	assert.True(t, dec("-1").Equal(Clamp(dec("-5"), dec("-1"), dec("1"))))
	assert.True(t, dec("0").Equal(Clamp(dec("0"), dec("-1"), dec("1"))))
}

func TestMedianOdd(t *testing.T) {
	m, ok := Median([]decimal.Decimal{dec("3"), dec("1"), dec("2")})
	assert.True(t, ok)
	assert.True(t, dec("2").Equal(m))
}

func TestMedianEven(t *testing.T) {
	m, ok := Median([]decimal.Decimal{dec("1"), dec("2"), dec("3"), dec("4")})
	assert.True(t, ok)
	assert.True(t, dec("2.5").Equal(m))
}

func TestMedianEmpty(t *testing.T) {
	_, ok := Median(nil)
	assert.False(t, ok)
}
