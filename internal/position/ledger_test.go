package position

import (
	"context"
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

func TestApplyFillMovesSignedPosition(t *testing.T) {
	l := NewLedger(dec("100000"))
	l.ApplyFill(SideBid, dec("0.1"))
	assert.True(t, dec("0.1").Equal(l.BaseSize()))

	l.ApplyFill(SideAsk, dec("0.15"))
	assert.True(t, dec("-0.05").Equal(l.BaseSize()))
}

func TestCloseModeRestrictsAllowedSide(t *testing.T) {
	l := NewLedger(dec("1000"))
	l.Seed(dec("20"))

	ctx := l.QuotingContext(dec("100"))
	assert.True(t, ctx.CloseMode)
	assert.Equal(t, AllowedAskOnly, ctx.AllowedSides)

	l.Seed(dec("-20"))
	ctx = l.QuotingContext(dec("100"))
	assert.True(t, ctx.CloseMode)
	assert.Equal(t, AllowedBidOnly, ctx.AllowedSides)
}

func TestQuotingContextBothSidesWhenFarFromThreshold(t *testing.T) {
	l := NewLedger(dec("1000000"))
	l.Seed(dec("1"))

	ctx := l.QuotingContext(dec("100"))
	assert.False(t, ctx.CloseMode)
	assert.Equal(t, AllowedBoth, ctx.AllowedSides)
}

type fakeVenue struct {
	pos decimal.Decimal
	err error
}

func (f fakeVenue) FetchPosition(ctx context.Context) (decimal.Decimal, error) {
	return f.pos, f.err
}

type capturedDrift struct {
	called bool
	local  decimal.Decimal
	server decimal.Decimal
}

func (c *capturedDrift) LogDrift(local, server decimal.Decimal) {
	c.called = true
	c.local = local
	c.server = server
}

func TestSyncAdoptsServerOnDrift(t *testing.T) {
	l := NewLedger(dec("1000"))
	l.Seed(dec("0.10"))

	drift := &capturedDrift{}
	err := l.Sync(context.Background(), fakeVenue{pos: dec("0.12")}, drift, Backoff{Base: 0, Factor: 1, Retries: 0})
	assert.NoError(t, err)
	assert.True(t, drift.called)
	assert.True(t, dec("0.12").Equal(l.BaseSize()))
}

func TestSyncIgnoresSubEpsilonDrift(t *testing.T) {
	l := NewLedger(dec("1000"))
	l.Seed(dec("0.10"))

	drift := &capturedDrift{}
	err := l.Sync(context.Background(), fakeVenue{pos: dec("0.100001")}, drift, Backoff{Base: 0, Factor: 1, Retries: 0})
	assert.NoError(t, err)
	assert.False(t, drift.called)
	assert.True(t, dec("0.10").Equal(l.BaseSize()))
}

func TestSyncRetriesThenFails(t *testing.T) {
	l := NewLedger(dec("1000"))
	attempts := 0
	v := fakeVenueFunc(func(ctx context.Context) (decimal.Decimal, error) {
		attempts++
		return decimal.Decimal(""), assertErr
	})
	err := l.Sync(context.Background(), v, nil, Backoff{Base: 0, Factor: 1, Retries: 3})
	assert.Error(t, err)
	assert.Equal(t, 4, attempts)
}

type fakeVenueFunc func(ctx context.Context) (decimal.Decimal, error)

func (f fakeVenueFunc) FetchPosition(ctx context.Context) (decimal.Decimal, error) {
	return f(ctx)
}

var assertErr = errTest{}

type errTest struct{}

func (errTest) Error() string { return "fetch failed" }
