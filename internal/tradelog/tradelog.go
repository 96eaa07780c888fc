// Package tradelog appends fill and snapshot records as JSONL, one
// file per log kind, rotated by size only; rotated backups older than
// MaxAgeDays are removed. A new file is not started at each day boundary.
//
// # Module
//   - writer: append-only JSONL encoder over a rotating file
//
// # Source
//   - fill records and periodic PnL snapshots from the loop
//
// # Produce
//   - trades.jsonl / snapshots.jsonl under the configured directory
package tradelog

import (
	"encoding/json"
	"io"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FillRecord is one line of the trade log.
type FillRecord struct {
	Timestamp             string `json:"timestamp"`
	Epoch                 int64  `json:"epoch"`
	Symbol                string `json:"symbol"`
	Side                  string `json:"side"`
	Price                 string `json:"price"`
	Size                  string `json:"size"`
	SizeUSD               string `json:"size_usd"`
	PositionAfter         string `json:"position_after"`
	PositionUSDAfter      string `json:"position_usd_after"`
	RealizedPnL           string `json:"realized_pnl"`
	CumulativeRealizedPnL string `json:"cumulative_realized_pnl"`
	UnrealizedPnL         string `json:"unrealized_pnl"`
	FairPrice             string `json:"fair_price"`
	Mode                  string `json:"mode"`
	SpreadBps             string `json:"spread_bps"`
}

// SnapshotRecord is one line of the snapshot log.
type SnapshotRecord struct {
	Timestamp      string `json:"timestamp"`
	Epoch          int64  `json:"epoch"`
	Symbol         string `json:"symbol"`
	PositionBase   string `json:"position_base"`
	PositionUSD    string `json:"position_usd"`
	RealizedPnL    string `json:"realized_pnl"`
	UnrealizedPnL  string `json:"unrealized_pnl"`
	TotalPnL       string `json:"total_pnl"`
	PeakPnL        string `json:"peak_pnl"`
	Drawdown       string `json:"drawdown"`
	DailyPnL       string `json:"daily_pnl"`
	DailyStartDate string `json:"daily_start_date"`
	WinCount       int64  `json:"win_count"`
	LossCount      int64  `json:"loss_count"`
	TradeCount     int64  `json:"trade_count"`
	VolumeUSD      string `json:"volume_usd"`
	Halted         bool   `json:"halted"`
	HaltReason     string `json:"halt_reason,omitempty"`
}

// Config controls file placement and rotation.
type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// Logger writes fill and snapshot records. Safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	trades    io.WriteCloser
	snapshots io.WriteCloser
}

// New creates a logger writing trades.jsonl and snapshots.jsonl under
// cfg.Dir. Defaults: a file rotates once it exceeds 100MB, and rotated
// backups are kept for one day.
func New(cfg Config) *Logger {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 1
	}
	return &Logger{
		trades:    newRotated(filepath.Join(cfg.Dir, "trades.jsonl"), cfg),
		snapshots: newRotated(filepath.Join(cfg.Dir, "snapshots.jsonl"), cfg),
	}
}

func newRotated(path string, cfg Config) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
	}
}

// LogFill appends one fill record.
func (l *Logger) LogFill(rec FillRecord) error {
	return l.append(l.trades, rec)
}

// LogSnapshot appends one snapshot record.
func (l *Logger) LogSnapshot(rec SnapshotRecord) error {
	return l.append(l.snapshots, rec)
}

func (l *Logger) append(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = w.Write(data)
	return err
}

// Close flushes and closes both files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.trades.Close()
	if err2 := l.snapshots.Close(); err == nil {
		err = err2
	}
	return err
}
