package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"

	"marketmaker/internal/checkpoint"
	"marketmaker/internal/feed"
	"marketmaker/internal/journal"
	"marketmaker/internal/loop"
	"marketmaker/internal/obs"
	"marketmaker/internal/ops"
	"marketmaker/internal/tradelog"
	"marketmaker/internal/venue"
	"marketmaker/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config (required)")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics and /healthz on this address (empty=disable)")
	pyroscopeAddr := flag.String("pyroscope-addr", "", "Pyroscope server address (empty=disable)")
	watchConfig := flag.Bool("watch-config", true, "Hot-reload pre-trade guard limits on config change")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("-config is required")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "marketmaker",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

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
		defer func() { _ = jnl.Close() }()
	}

	tradeLog := tradelog.New(tradelog.Config{Dir: loaded.Storage.TradeLogDir})
	defer func() { _ = tradeLog.Close() }()

	var logger loop.TradeLogger = tradeLog
	if pgOpt, ok := loaded.PostgresOption(); ok {
		client, err := conn.New(pgOpt)
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		defer func() { _ = client.Close() }()
		store, err := checkpoint.New(client)
		if err != nil {
			log.Fatalf("checkpoint init failed: %v", err)
		}
		logger = &checkpointingLogger{Logger: tradeLog, store: store, symbol: loaded.Symbol.Name}
	}

	// The reference stream is the live exchange feed; the venue side is
	// this repository's simulated connector mirroring the reference
	// book. A production deployment swaps in its own loop.Venue.
	reference := feed.NewBinance(ctx, loaded.ReferenceSymbol)
	if err := reference.Start(ctx); err != nil {
		log.Fatalf("reference feed start failed: %v", err)
	}
	defer reference.Close()

	simVenue := venue.NewSim(loaded.Symbol.Name)
	venueBook := feed.NewSim()
	reference.Observe(ctx, func(ev feed.PriceEvent) {
		simVenue.SetBBO(ev.TsMs, ev.BestBid, ev.BestAsk)
		venueBook.Push(ev)
	})

	engine := loop.NewEngine(loop.Config{
		MarketID:   loaded.Symbol.Name,
		Quoter:     loaded.Quoter,
		Risk:       loaded.Risk,
		Guard:      loaded.Guard,
		FairPrice:  loaded.FairPrice,
		Volatility: loaded.Volatility,

		Warmup:               loaded.Timing.Warmup,
		UpdateThrottle:       loaded.Timing.UpdateThrottle,
		OrderSyncInterval:    loaded.Timing.OrderSyncInterval,
		PositionSyncInterval: loaded.Timing.PositionSyncInterval,
		StatusInterval:       loaded.Timing.StatusInterval,
		SnapshotInterval:     loaded.Timing.SnapshotInterval,
		RepriceThresholdBps:  loaded.Timing.RepriceThresholdBps,
		HasRepriceThreshold:  loaded.Timing.HasRepriceThreshold,
	}, loop.Deps{
		Venue:     simVenue,
		Reference: reference,
		VenueBook: venueBook,
		TradeLog:  logger,
		Journal:   journalOrNil(jnl),
		Metrics:   metrics,
	})
	simVenue.OnFill(engine.OnFill)

	if *watchConfig {
		go func() {
			err := ops.Watch(ctx, *configPath, func(next ops.Loaded) {
				engine.UpdateGuard(next.Guard)
			})
			if err != nil && ctx.Err() == nil {
				logs.Warnf("config watch stopped: %v", err)
			}
		}()
	}

	if *metricsAddr != "" {
		prometheus.MustRegister(obs.NewPromCollector(metrics, engine.Stats))
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok\n"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logs.Info("serving metrics on ", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("metrics server: %v", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("engine stopped: %v", err)
	}
}

// journalOrNil avoids handing the engine a typed-nil interface.
func journalOrNil(j *journal.Journal) loop.Journal {
	if j == nil {
		return nil
	}
	return j
}

// checkpointingLogger tees snapshots into the checkpoint database.
type checkpointingLogger struct {
	*tradelog.Logger
	store  *checkpoint.Store
	symbol string
}

func (l *checkpointingLogger) LogSnapshot(rec tradelog.SnapshotRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.store.Save(ctx, checkpoint.Record{
		Symbol:         l.symbol,
		PositionBase:   rec.PositionBase,
		RealizedPnL:    rec.RealizedPnL,
		PeakPnL:        rec.PeakPnL,
		DailyPnL:       rec.DailyPnL,
		DailyStartDate: rec.DailyStartDate,
		WinCount:       rec.WinCount,
		LossCount:      rec.LossCount,
		TradeCount:     rec.TradeCount,
		VolumeUSD:      rec.VolumeUSD,
		Halted:         rec.Halted,
		HaltReason:     rec.HaltReason,
	})
	if err != nil {
		logs.Warnf("checkpoint save failed: %v", err)
	}
	return l.Logger.LogSnapshot(rec)
}
