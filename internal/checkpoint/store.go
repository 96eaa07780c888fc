// Package checkpoint persists periodic position/PnL checkpoints to
// postgres so a restarted engine can cross-check its recovered state
// against the last known good snapshot.
package checkpoint

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"marketmaker/pkg/conn"
)

// Record is one persisted checkpoint row. Decimal fields are stored as
// strings to keep full precision through the database round trip.
type Record struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol         string `gorm:"index:idx_checkpoint_symbol_created"`
	PositionBase   string
	CostBasis      string
	RealizedPnL    string
	PeakPnL        string
	DailyPnL       string
	DailyStartDate string
	WinCount       int64
	LossCount      int64
	TradeCount     int64
	VolumeUSD      string
	Halted         bool
	HaltReason     string
	CreatedAt      time.Time `gorm:"index:idx_checkpoint_symbol_created"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (Record) TableName() string { return "checkpoints" }

// Store reads and writes checkpoint rows.
type Store struct {
	client *conn.Client
}

// New migrates the checkpoint table and returns a store.
func New(client *conn.Client) (*Store, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.New("nil postgres client")
	}
	if err := client.DB().AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "migrate checkpoints")
	}
	return &Store{client: client}, nil
}

// Save inserts one checkpoint row.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.client.DB().WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrap(err, "save checkpoint")
	}
	return nil
}

// Latest returns the most recent checkpoint for a symbol; ok is false
// when none exists yet.
func (s *Store) Latest(ctx context.Context, symbol string) (Record, bool, error) {
	var rec Record
	err := s.client.DB().WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, errors.Wrap(err, "load checkpoint")
	}
	return rec, true, nil
}

// Prune deletes checkpoints older than the retention window.
func (s *Store) Prune(ctx context.Context, symbol string, keep time.Duration) error {
	cutoff := time.Now().UTC().Add(-keep)
	err := s.client.DB().WithContext(ctx).
		Where("symbol = ? AND created_at < ?", symbol, cutoff).
		Delete(&Record{}).Error
	if err != nil {
		return errors.Wrap(err, "prune checkpoints")
	}
	return nil
}
