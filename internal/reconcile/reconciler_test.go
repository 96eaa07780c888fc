package reconcile

import (
	"context"
	"errors"
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

type fakeVenue struct {
	calls       [][]Action
	results     [][]ActionResult
	errs        []error
	nextOrderID int
}

func (f *fakeVenue) Atomic(ctx context.Context, marketID string, actions []Action) ([]ActionResult, error) {
	f.calls = append(f.calls, actions)
	idx := len(f.calls) - 1
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	var out []ActionResult
	for _, a := range actions {
		if a.Kind == ActionPlace {
			f.nextOrderID++
			out = append(out, ActionResult{OrderID: "o" + itoa(f.nextOrderID)})
		}
	}
	return out, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestReconcileMinimalDiff(t *testing.T) {
	current := []CachedOrder{
		{OrderID: "A", Side: SideBid, Price: dec("100"), Size: dec("1")},
		{OrderID: "B", Side: SideAsk, Price: dec("101"), Size: dec("1")},
	}
	desired := []DesiredQuote{
		{Side: SideBid, Price: dec("100"), Size: dec("1")},
		{Side: SideAsk, Price: dec("102"), Size: dec("1")},
	}

	venue := &fakeVenue{}
	res, err := Reconcile(context.Background(), venue, "BTC-PERP", current, desired)
	assert.NoError(t, err)
	assert.False(t, res.HadChunkErrors)

	assert.Len(t, venue.calls, 1)
	assert.Len(t, venue.calls[0], 2) // one cancel (B), one place (ask 102)

	hasKeptBid := false
	hasNewAsk := false
	for _, o := range res.Orders {
		if o.OrderID == "A" {
			hasKeptBid = true
		}
		if o.Side == SideAsk && o.Price.Equal(dec("102")) {
			hasNewAsk = true
		}
	}
	assert.True(t, hasKeptBid)
	assert.True(t, hasNewAsk)
}

func TestReconcileIdempotent(t *testing.T) {
	desired := []DesiredQuote{
		{Side: SideBid, Price: dec("100"), Size: dec("1")},
		{Side: SideAsk, Price: dec("101"), Size: dec("1")},
	}

	venue := &fakeVenue{}
	res1, err := Reconcile(context.Background(), venue, "BTC-PERP", nil, desired)
	assert.NoError(t, err)
	assert.Len(t, res1.Orders, 2)

	venue2 := &fakeVenue{}
	res2, err := Reconcile(context.Background(), venue2, "BTC-PERP", res1.Orders, desired)
	assert.NoError(t, err)
	assert.Empty(t, venue2.calls, "second reconcile with the same desired set issues zero actions")
	assert.Len(t, res2.Orders, 2)
}

func TestReconcileChunksAtFour(t *testing.T) {
	var desired []DesiredQuote
	for i := 0; i < 6; i++ {
		desired = append(desired, DesiredQuote{Side: SideBid, Price: dec("100").Sub(decimal.NewFromInt(int64(i))), Size: dec("1")})
	}

	venue := &fakeVenue{}
	_, err := Reconcile(context.Background(), venue, "BTC-PERP", nil, desired)
	assert.NoError(t, err)
	assert.Len(t, venue.calls, 2)
	assert.Len(t, venue.calls[0], 4)
	assert.Len(t, venue.calls[1], 2)
}

func TestReconcilePostOnlySkipsChunk(t *testing.T) {
	desired := []DesiredQuote{{Side: SideBid, Price: dec("100"), Size: dec("1")}}
	venue := &fakeVenue{errs: []error{errors.New("POST_ONLY would cross BBO")}}

	res, err := Reconcile(context.Background(), venue, "BTC-PERP", nil, desired)
	assert.NoError(t, err)
	assert.True(t, res.HadChunkErrors)
	assert.False(t, res.ForceSync)
}

func TestReconcileOrderNotFoundForcesSync(t *testing.T) {
	current := []CachedOrder{{OrderID: "stale", Side: SideBid, Price: dec("99"), Size: dec("1")}}
	venue := &fakeVenue{errs: []error{errors.New("ORDER_NOT_FOUND: stale")}}

	res, err := Reconcile(context.Background(), venue, "BTC-PERP", current, nil)
	assert.NoError(t, err)
	assert.True(t, res.HadChunkErrors)
	assert.True(t, res.ForceSync)
}

func TestReconcileOtherErrorRethrows(t *testing.T) {
	desired := []DesiredQuote{{Side: SideBid, Price: dec("100"), Size: dec("1")}}
	venue := &fakeVenue{errs: []error{errors.New("INSUFFICIENT_BALANCE")}}

	_, err := Reconcile(context.Background(), venue, "BTC-PERP", nil, desired)
	assert.Error(t, err)
}
