package tradelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAppendsJSONL(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Dir: dir})

	require.NoError(t, l.LogFill(FillRecord{
		Timestamp: "2026-08-05T00:00:00Z",
		Epoch:     1,
		Symbol:    "BTC-PERP",
		Side:      "bid",
		Price:     "99.95",
		Size:      "0.1",
		Mode:      "normal",
	}))
	require.NoError(t, l.LogFill(FillRecord{
		Timestamp: "2026-08-05T00:00:01Z",
		Epoch:     2,
		Symbol:    "BTC-PERP",
		Side:      "ask",
		Price:     "100.05",
		Size:      "0.1",
		Mode:      "close",
	}))
	require.NoError(t, l.LogSnapshot(SnapshotRecord{
		Timestamp:    "2026-08-05T00:01:00Z",
		Symbol:       "BTC-PERP",
		PositionBase: "0",
		RealizedPnL:  "0.01",
		WinCount:     1,
		TradeCount:   2,
	}))
	require.NoError(t, l.Close())

	f, err := os.Open(filepath.Join(dir, "trades.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var fills []FillRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec FillRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		fills = append(fills, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, fills, 2)
	assert.Equal(t, "bid", fills[0].Side)
	assert.Equal(t, "close", fills[1].Mode)

	snapData, err := os.ReadFile(filepath.Join(dir, "snapshots.jsonl"))
	require.NoError(t, err)
	var snap SnapshotRecord
	require.NoError(t, json.Unmarshal(snapData[:len(snapData)-1], &snap))
	assert.Equal(t, int64(1), snap.WinCount)
}
