package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"

	"marketmaker/internal/codec"
	"marketmaker/internal/obs"
	"marketmaker/internal/recorder"
	"marketmaker/internal/schema"
)

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	scale := schema.ScaleSpec{PriceScale: 8, QuantityScale: 8, NotionalScale: 8, FeeScale: 8}
	metrics := obs.NewMetrics()

	j, err := New(Config{Dir: dir, SymbolID: 1, Scale: scale}, metrics)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, j.Start(ctx))

	j.RecordMarketData(1_700_000_000_000, schema.SourceVenue,
		decimal.NewFromFloat(100.5), decimal.NewFromInt(100), decimal.NewFromInt(101))
	j.RecordFill(1_700_000_000_000_000_000, schema.OrderSideBuy,
		decimal.NewFromFloat(99.95), decimal.NewFromFloat(0.1), decimal.NewFromInt(0))

	require.NoError(t, j.Close())

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	var fills []schema.Fill
	var mds []schema.MarketData
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		switch header.Type {
		case schema.EventFill:
			fill, ok := codec.DecodeFill(payload)
			require.True(t, ok)
			fills = append(fills, fill)
		case schema.EventMarketData:
			md, ok := codec.DecodeMarketData(payload)
			require.True(t, ok)
			mds = append(mds, md)
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, fills, 1)
	require.Len(t, mds, 1)

	assert.Equal(t, schema.OrderSideBuy, fills[0].Side)
	assert.True(t, scale.PriceToDecimal(fills[0].Price).Equal(decimal.NewFromFloat(99.95)))
	assert.True(t, scale.QuantityToDecimal(fills[0].Qty).Equal(decimal.NewFromFloat(0.1)))

	assert.Equal(t, uint16(schema.SourceVenue), mds[0].Flags)
	assert.True(t, scale.PriceToDecimal(mds[0].BidPrice).Equal(decimal.NewFromInt(100)))

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.EventCounts[schema.EventFill])
	assert.Equal(t, uint64(1), snap.EventCounts[schema.EventMarketData])
}
