// Package journal records the engine's market-data and fill events into
// the binary WAL, for offline replay and position-reconciliation
// verification.
//
// # Module
//   - queue: bounded in-memory hop between the hot path and the writer
//   - encode: fixed-size payload encoding per event type
//
// # Source
//   - price events from internal/feed, fills from the account stream
//
// # Produce
//   - WAL segments under the configured directory
package journal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"marketmaker/internal/bus"
	"marketmaker/internal/codec"
	"marketmaker/internal/obs"
	"marketmaker/internal/recorder"
	"marketmaker/internal/schema"
)

// Config wires a journal to one symbol's scale and a WAL directory.
type Config struct {
	Dir      string
	SymbolID schema.SymbolID
	Scale    schema.ScaleSpec
	Queue    int
}

// Journal encodes events and hands them to the WAL writer through a
// bounded queue, so a slow disk never blocks the market-maker loop.
// Dropped events only cost replay fidelity and are counted in metrics.
type Journal struct {
	cfg     Config
	queue   *bus.Queue
	writer  *recorder.Writer
	metrics *obs.Metrics
	trace   *obs.TraceGenerator
	seq     uint64
	wg      sync.WaitGroup
}

// New builds a journal writing WAL segments under cfg.Dir.
func New(cfg Config, metrics *obs.Metrics) (*Journal, error) {
	if cfg.Queue <= 0 {
		cfg.Queue = 1024
	}
	w, err := recorder.NewWriter(recorder.DefaultConfig(cfg.Dir))
	if err != nil {
		return nil, errors.Wrap(err, "new wal writer")
	}
	return &Journal{
		cfg:     cfg,
		queue:   bus.NewQueue(cfg.Queue),
		writer:  w,
		metrics: metrics,
		trace:   obs.NewTraceGenerator(0),
	}, nil
}

// Start launches the WAL writer and the queue drain goroutine.
func (j *Journal) Start(ctx context.Context) error {
	if err := j.writer.Start(ctx); err != nil {
		return errors.Wrap(err, "start wal writer")
	}

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.queue.Run(ctx, func(e bus.Event) {
			if err := j.writer.TryAppend(e.Header, e.Payload); err != nil {
				j.metrics.IncQueueDrop()
			}
		})
	}()

	return nil
}

// Close stops accepting events, drains the queue and closes the WAL.
func (j *Journal) Close() error {
	j.queue.Close()
	j.wg.Wait()
	return j.writer.Close()
}

// RecordMarketData journals one price sample from either stream.
func (j *Journal) RecordMarketData(tsMs int64, source schema.MarketDataSource, mid, bid, ask decimal.Decimal) {
	md := schema.MarketData{
		SymbolID: uint32(j.cfg.SymbolID),
		Kind:     schema.MarketDataQuote,
		Flags:    uint16(source),
		Price:    j.cfg.Scale.PriceFromDecimal(mid),
		BidPrice: j.cfg.Scale.PriceFromDecimal(bid),
		AskPrice: j.cfg.Scale.PriceFromDecimal(ask),
	}
	j.publish(schema.EventMarketData, tsMs*1_000_000, codec.EncodeMarketData(nil, md))
}

// RecordFill journals one fill event.
func (j *Journal) RecordFill(tsNano int64, side schema.OrderSide, price, size, fee decimal.Decimal) {
	fill := schema.Fill{
		SymbolID: uint32(j.cfg.SymbolID),
		Side:     side,
		Price:    j.cfg.Scale.PriceFromDecimal(price),
		Qty:      j.cfg.Scale.QuantityFromDecimal(size),
		Fee:      j.cfg.Scale.FeeFromDecimal(fee),
	}
	j.publish(schema.EventFill, tsNano, codec.EncodeFill(nil, fill))
}

func (j *Journal) publish(eventType schema.EventType, ts int64, payload []byte) {
	seq := atomic.AddUint64(&j.seq, 1)
	header := schema.NewHeader(eventType, 1, seq, ts, ts)
	header.TraceID = j.trace.Next()

	switch err := j.queue.TryPublish(bus.Event{Header: header, Payload: payload}); err {
	case nil:
		j.metrics.ObserveEvent(header)
	case bus.ErrQueueFull:
		j.metrics.IncQueueDrop()
	case bus.ErrQueueClosed:
		j.metrics.IncQueueClosed()
	}
}
