package venue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"

	"marketmaker/internal/loop"
	"marketmaker/internal/position"
	"marketmaker/internal/reconcile"
	"marketmaker/pkg/exception"
)

func place(side reconcile.Side, price, size string) reconcile.Action {
	p, _ := decimal.NewFromString(price)
	s, _ := decimal.NewFromString(size)
	return reconcile.Action{Kind: reconcile.ActionPlace, Side: side, Price: p, Size: s}
}

func TestAtomicPlaceAndCancel(t *testing.T) {
	s := NewSim("BTC-PERP")
	ctx := context.Background()

	results, err := s.Atomic(ctx, "BTC-PERP", []reconcile.Action{
		place(reconcile.SideBid, "99", "1"),
		place(reconcile.SideAsk, "101", "1"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, s.OpenOrderCount())

	_, err = s.Atomic(ctx, "BTC-PERP", []reconcile.Action{
		{Kind: reconcile.ActionCancel, CancelOrderID: results[0].OrderID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.OpenOrderCount())

	_, err = s.Atomic(ctx, "BTC-PERP", []reconcile.Action{
		{Kind: reconcile.ActionCancel, CancelOrderID: "nope"},
	})
	assert.ErrorIs(t, err, exception.ErrOrderNotFound)
}

func TestAtomicRejectsPostOnlyCross(t *testing.T) {
	s := NewSim("BTC-PERP")
	s.SetBBO(1, mustDec("100"), mustDec("100.5"))

	_, err := s.Atomic(context.Background(), "BTC-PERP", []reconcile.Action{
		place(reconcile.SideBid, "100.5", "1"),
	})
	assert.ErrorIs(t, err, exception.ErrOrderPostOnlyCross)
	assert.Equal(t, 0, s.OpenOrderCount(), "rejected chunk leaves the book untouched")
}

func TestSetBBOFillsRestingOrders(t *testing.T) {
	s := NewSim("BTC-PERP")
	s.SetBBO(1, mustDec("99.5"), mustDec("100.5"))

	var fills []loop.FillEvent
	s.OnFill(func(f loop.FillEvent) { fills = append(fills, f) })

	_, err := s.Atomic(context.Background(), "BTC-PERP", []reconcile.Action{
		place(reconcile.SideBid, "99", "0.5"),
		place(reconcile.SideAsk, "101", "0.5"),
	})
	require.NoError(t, err)

	// The book trades down through the resting bid.
	s.SetBBO(2, mustDec("98.5"), mustDec("99"))
	require.Len(t, fills, 1)
	assert.Equal(t, position.SideBid, fills[0].Side)
	assert.True(t, fills[0].Price.Equal(mustDec("99")))
	assert.Equal(t, 1, s.OpenOrderCount())

	info, err := s.FetchInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Position.Equal(mustDec("0.5")))
	require.Len(t, info.Orders, 1)
	assert.Equal(t, reconcile.SideAsk, info.Orders[0].Side)
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
