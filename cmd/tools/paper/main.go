// Command paper drives the full market-making loop against a simulated
// reference feed and the simulated venue connector: a forward-running
// smoke test of quoting, reconciliation, fills and PnL without any
// real exchange.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/yanun0323/decimal"

	"marketmaker/internal/feed"
	"marketmaker/internal/journal"
	"marketmaker/internal/loop"
	"marketmaker/internal/obs"
	"marketmaker/internal/ops"
	"marketmaker/internal/tradelog"
	"marketmaker/internal/venue"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config (required)")
	duration := flag.Duration("duration", 30*time.Second, "How long to run")
	tickEvery := flag.Duration("tick-every", 50*time.Millisecond, "Simulated feed tick interval")
	startPrice := flag.Float64("start-price", 100, "Initial mid price")
	volPerTick := flag.Float64("vol-per-tick", 0.02, "Random-walk step stddev in price units")
	seed := flag.Int64("seed", 1, "Random walk seed")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("-config is required")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	metrics := obs.NewMetrics()
	var jnl *journal.Journal
	if loaded.Storage.WALDir != "" {
		jnl, err = journal.New(journal.Config{
			Dir:      loaded.Storage.WALDir,
			SymbolID: loaded.Symbol.ID,
			Scale:    loaded.Symbol.Scale,
		}, metrics)
		if err != nil {
			log.Fatalf("journal init failed: %v", err)
		}
		if err := jnl.Start(ctx); err != nil {
			log.Fatalf("journal start failed: %v", err)
		}
	}

	tradeLog := tradelog.New(tradelog.Config{Dir: loaded.Storage.TradeLogDir})

	refFeed := feed.NewSim()
	venueBook := feed.NewSim()
	simVenue := venue.NewSim(loaded.Symbol.Name)

	cfg := loop.Config{
		MarketID:   loaded.Symbol.Name,
		Quoter:     loaded.Quoter,
		Risk:       loaded.Risk,
		Guard:      loaded.Guard,
		FairPrice:  loaded.FairPrice,
		Volatility: loaded.Volatility,

		UpdateThrottle:       loaded.Timing.UpdateThrottle,
		OrderSyncInterval:    loaded.Timing.OrderSyncInterval,
		PositionSyncInterval: loaded.Timing.PositionSyncInterval,
		StatusInterval:       loaded.Timing.StatusInterval,
		SnapshotInterval:     loaded.Timing.SnapshotInterval,
		RepriceThresholdBps:  loaded.Timing.RepriceThresholdBps,
		HasRepriceThreshold:  loaded.Timing.HasRepriceThreshold,
	}

	deps := loop.Deps{
		Venue:     simVenue,
		Reference: refFeed,
		VenueBook: venueBook,
		TradeLog:  tradeLog,
		Metrics:   metrics,
	}
	if jnl != nil {
		deps.Journal = jnl
	}
	engine := loop.NewEngine(cfg, deps)
	simVenue.OnFill(engine.OnFill)

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	rng := rand.New(rand.NewSource(*seed))
	mid := *startPrice
	half := mid * 0.0003
	ticker := time.NewTicker(*tickEvery)
	defer ticker.Stop()

drive:
	for {
		select {
		case <-ctx.Done():
			break drive
		case <-ticker.C:
			mid += rng.NormFloat64() * *volPerTick
			now := time.Now().UnixMilli()

			refEv := priceEvent(now, mid, half)
			refFeed.Push(refEv)

			// Venue book mirrors the reference with its own noise.
			venueMid := mid + rng.NormFloat64()*(*volPerTick)*0.5
			venueEv := priceEvent(now, venueMid, half)
			simVenue.SetBBO(now, venueEv.BestBid, venueEv.BestAsk)
			venueBook.Push(venueEv)
		}
	}

	<-done

	stats := engine.Stats()
	log.Printf("paper run finished: ticks=%d reconciles=%d fills=%d chunk_errors=%d guard_denies=%d pnl=%.4f drawdown=%.4f pos=%.6f halted=%t",
		stats.Ticks, stats.Reconciles, stats.Fills, stats.ChunkErrors, stats.GuardDenies,
		stats.TotalPnL, stats.Drawdown, stats.PositionBase, stats.Halted)
	log.Printf("open orders left on venue: %d", simVenue.OpenOrderCount())

	if jnl != nil {
		if err := jnl.Close(); err != nil {
			log.Printf("journal close failed: %v", err)
		}
	}
	if err := tradeLog.Close(); err != nil {
		log.Printf("trade log close failed: %v", err)
	}
	snap := metrics.Snapshot()
	log.Printf("journal: events=%v drops=%d", snap.EventCounts, snap.QueueDrops)
}

func priceEvent(tsMs int64, mid, half float64) feed.PriceEvent {
	bid := decimal.NewFromFloat(round2(mid - half))
	ask := decimal.NewFromFloat(round2(mid + half))
	return feed.PriceEvent{
		TsMs:    tsMs,
		Mid:     decimal.NewFromFloat(round2(mid)),
		BestBid: bid,
		BestAsk: ask,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
