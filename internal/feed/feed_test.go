package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"
)

func TestPairerWithinWindow(t *testing.T) {
	var p Pairer

	_, ok := p.OnReference(PriceEvent{TsMs: 1_000, Mid: decimal.NewFromInt(100)})
	assert.False(t, ok, "no venue sample yet")

	paired, ok := p.OnVenue(PriceEvent{TsMs: 1_400, Mid: decimal.NewFromInt(101)})
	require.True(t, ok)
	assert.Equal(t, int64(1_400), paired.TsMs)
	assert.True(t, paired.VenueMid.Equal(decimal.NewFromInt(101)))
	assert.True(t, paired.ReferenceMid.Equal(decimal.NewFromInt(100)))
}

func TestPairerOutsideWindow(t *testing.T) {
	var p Pairer

	p.OnReference(PriceEvent{TsMs: 1_000, Mid: decimal.NewFromInt(100)})
	_, ok := p.OnVenue(PriceEvent{TsMs: 2_100, Mid: decimal.NewFromInt(101)})
	assert.False(t, ok, "samples 1100ms apart must not pair")

	// A fresher reference sample closes the gap again.
	paired, ok := p.OnReference(PriceEvent{TsMs: 2_200, Mid: decimal.NewFromInt(100)})
	require.True(t, ok)
	assert.Equal(t, int64(2_200), paired.TsMs)
}

func TestSimFanout(t *testing.T) {
	s := NewSim()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []PriceEvent
	unsubscribe := s.Observe(ctx, func(ev PriceEvent) {
		got = append(got, ev)
	})

	s.Push(PriceEvent{TsMs: 1, Mid: decimal.NewFromInt(5)})
	require.Len(t, got, 1)

	unsubscribe()
	s.Push(PriceEvent{TsMs: 2, Mid: decimal.NewFromInt(6)})
	assert.Len(t, got, 1, "no delivery after unsubscribe")
}
