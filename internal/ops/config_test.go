package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"
)

const testConfig = `{
  "registry": {
    "venues": [{"name": "SIM"}],
    "symbols": [{
      "name": "BTC-PERP",
      "venue": "SIM",
      "scale": {"PriceScale": 8, "QuantityScale": 8, "NotionalScale": 8, "FeeScale": 8},
      "tickSize": "0.1",
      "lotSize": "0.001"
    }]
  },
  "market": {"symbol": "BTC-PERP", "referenceSymbol": "BTCUSDT"},
  "quoter": {
    "baseSpreadBps": "10",
    "maxSpreadBps": "60",
    "volMultiplier": "1.5",
    "skewFactor": "0.8",
    "maxPositionUsd": "10000",
    "sizeReductionStart": "0.5",
    "closeThresholdUsd": "9000",
    "levels": 2,
    "levelSpacingBps": "4",
    "momentumPenaltyBps": "3",
    "minSkewBps": "2",
    "orderSizeUsd": "100",
    "makerFeeBps": "1"
  },
  "risk": {"maxDrawdownUsd": "500", "maxPositionUsd": "12000", "dailyLossLimitUsd": "300"},
  "guard": {
    "maxOrderSize": "1",
    "maxOrderNotionalUsd": "5000",
    "orderRateLimit": 60,
    "orderRateWindowMs": 10000,
    "maxPriceDeviationBps": 200
  },
  "fairPrice": {"minSamples": 10},
  "volatility": {"windowSeconds": 60, "minSamples": 10, "periodSeconds": 30, "strongThresholdBps": 1.5},
  "timing": {
    "warmupSeconds": 30,
    "updateThrottleMs": 250,
    "orderSyncIntervalMs": 5000,
    "statusIntervalMs": 10000,
    "fairPriceWindowMs": 60000,
    "positionSyncIntervalMs": 7000,
    "repriceThresholdBps": "0.5"
  },
  "storage": {"walDir": "testdata/wal", "tradeLogDir": "testdata/trades"}
}`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	loaded, err := Load(writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "BTC-PERP", loaded.Symbol.Name)
	assert.Equal(t, "BTCUSDT", loaded.ReferenceSymbol)

	assert.True(t, loaded.Quoter.BaseSpreadBps.Equal(decimal.NewFromInt(10)))
	assert.True(t, loaded.Quoter.TickSize.Equal(decimal.NewFromFloat(0.1)))
	assert.True(t, loaded.Quoter.LotSize.Equal(decimal.NewFromFloat(0.001)))
	assert.Equal(t, 2, int(loaded.Quoter.Levels))

	assert.True(t, loaded.Risk.MaxDrawdownUSD.Equal(decimal.NewFromInt(500)))
	assert.True(t, loaded.Guard.MaxOrderSize.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 10*time.Second, loaded.Guard.OrderRateWindow)

	assert.Equal(t, 250*time.Millisecond, loaded.Timing.UpdateThrottle)
	assert.Equal(t, int64(60000), loaded.Timing.FairPriceWindowMs)
	assert.True(t, loaded.Timing.HasRepriceThreshold)
	assert.True(t, loaded.Timing.RepriceThresholdBps.Equal(decimal.NewFromFloat(0.5)))

	assert.Equal(t, 10, loaded.FairPrice.MinSamples)
	assert.Equal(t, int64(60000), loaded.FairPrice.WindowMs)
	assert.Equal(t, 60, loaded.Volatility.WindowSeconds)

	_, hasPg := loaded.PostgresOption()
	assert.False(t, hasPg)
}

func TestLoadRejectsMissingSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"market":{"symbol":"NOPE"}}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadDecimal(t *testing.T) {
	bad := []byte(`{
	  "registry": {"venues": [{"name":"SIM"}], "symbols": [{"name":"X","venue":"SIM","tickSize":"0.1","lotSize":"0.001"}]},
	  "market": {"symbol": "X"},
	  "quoter": {"baseSpreadBps": "not-a-number", "maxSpreadBps": "60", "volMultiplier": "1",
	             "skewFactor": "1", "maxPositionUsd": "1", "sizeReductionStart": "0.5",
	             "closeThresholdUsd": "1", "levels": 1, "orderSizeUsd": "1"}
	}`)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, bad, 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
