// Package loop is the market-maker's single-owner actor: it consumes
// the two price streams and the venue's fill events, drives the fair
// price, volatility, position and PnL ledgers, and converges the
// venue's resting orders onto the quoter's output once per throttled
// tick.
//
// # Module
//   - engine: per-tick quote/reconcile procedure, fill handling
//   - throttle: leading+trailing tick pacing
//   - syncs: periodic authoritative order/position reconciliation
//
// # Source
//   - reference feed, venue book feed, venue account stream
//
// # Produce
//   - venue order mutations, trade/snapshot records, status logs
package loop

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/logs"

	"marketmaker/internal/decimalx"
	"marketmaker/internal/fairprice"
	"marketmaker/internal/feed"
	"marketmaker/internal/obs"
	"marketmaker/internal/pnl"
	"marketmaker/internal/position"
	"marketmaker/internal/quoter"
	"marketmaker/internal/reconcile"
	"marketmaker/internal/risk"
	"marketmaker/internal/schema"
	"marketmaker/internal/tradelog"
	"marketmaker/internal/volatility"
)

const (
	priceEventBuf = 256
	fillEventBuf  = 64

	// marginWarnAfter is how many consecutive margin rejections trigger
	// the operator warning.
	marginWarnAfter = 5
)

// Config bundles every knob the engine reads. Component configs are
// passed through to their packages untouched.
type Config struct {
	MarketID string

	Quoter     quoter.Config
	Risk       pnl.Config
	Guard      risk.Config
	FairPrice  fairprice.Config
	Volatility volatility.Config

	Warmup               time.Duration
	UpdateThrottle       time.Duration
	OrderSyncInterval    time.Duration
	PositionSyncInterval time.Duration
	StatusInterval       time.Duration
	SnapshotInterval     time.Duration

	// RepriceThresholdBps suppresses a reconcile when the skewed mid
	// has moved less than this many bps since the last quoted tick.
	// The threshold applies to the skewed mid, not per-side prices,
	// which is the stricter of the two readings of this knob.
	RepriceThresholdBps decimal.Decimal
	HasRepriceThreshold bool
}

// VenueInfo is the venue's authoritative open-order and position state
// for this market.
type VenueInfo struct {
	Orders   []reconcile.CachedOrder
	Position decimal.Decimal
}

// Venue is the full capability set the engine consumes from the venue
// SDK: atomic order ops plus the authoritative state fetch.
type Venue interface {
	reconcile.Venue
	FetchInfo(ctx context.Context) (VenueInfo, error)
}

// TradeLogger receives fill and snapshot records.
type TradeLogger interface {
	LogFill(tradelog.FillRecord) error
	LogSnapshot(tradelog.SnapshotRecord) error
}

// Journal receives raw events for WAL recording. Optional.
type Journal interface {
	RecordMarketData(tsMs int64, source schema.MarketDataSource, mid, bid, ask decimal.Decimal)
	RecordFill(tsNano int64, side schema.OrderSide, price, size, fee decimal.Decimal)
}

// Deps are the engine's external collaborators. Metrics may be nil;
// every obs.Metrics method is nil-safe.
type Deps struct {
	Venue     Venue
	Reference feed.Source
	VenueBook feed.Source
	TradeLog  TradeLogger
	Journal   Journal
	Metrics   *obs.Metrics
}

// FillEvent is one fill from the venue account stream.
type FillEvent struct {
	MarketID string
	Side     position.Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	Fee      decimal.Decimal
	TsMs     int64
}

// Engine owns every ledger and cache; all mutation happens on the Run
// goroutine. External goroutines only enqueue events.
type Engine struct {
	cfg  Config
	deps Deps

	pairer feed.Pairer
	est    *fairprice.Estimator
	vol    *volatility.Tracker
	pos    *position.Ledger
	ledger *pnl.Ledger
	guard  *risk.Engine

	throttle     *Throttle
	refEvents    chan feed.PriceEvent
	venueEvents  chan feed.PriceEvent
	fills        chan FillEvent
	syncNow      chan struct{}
	guardUpdates chan risk.Config

	orders        []reconcile.CachedOrder
	lastFair      decimal.Decimal
	haveFair      bool
	lastSkewedMid decimal.Decimal
	haveSkewedMid bool
	lastDiag      quoter.Diagnostics
	seeded        bool
	updating      bool
	closeMode     bool
	soloAskNext   bool
	epoch         int64
	start         time.Time
	lastWarmupLog time.Time

	marginRejections int

	ticks       uint64
	reconciles  uint64
	chunkErrors uint64
	fillCount   uint64
	guardDenies uint64
	statsView   atomic.Value
}

// NewEngine wires the component graph but starts nothing.
func NewEngine(cfg Config, deps Deps) *Engine {
	e := &Engine{
		cfg:  cfg,
		deps: deps,

		est:    fairprice.NewEstimator(cfg.FairPrice),
		vol:    volatility.NewTracker(cfg.Volatility),
		pos:    position.NewLedger(cfg.Quoter.CloseThresholdUSD),
		ledger: pnl.NewLedger(cfg.Risk),
		guard:  risk.NewEngine(cfg.Guard),

		throttle:     NewThrottle(cfg.UpdateThrottle),
		refEvents:    make(chan feed.PriceEvent, priceEventBuf),
		venueEvents:  make(chan feed.PriceEvent, priceEventBuf),
		fills:        make(chan FillEvent, fillEventBuf),
		syncNow:      make(chan struct{}, 1),
		guardUpdates: make(chan risk.Config, 1),
	}
	e.statsView.Store(obs.EngineStats{})
	return e
}

// OnFill enqueues a fill event from the account stream.
func (e *Engine) OnFill(ev FillEvent) {
	select {
	case e.fills <- ev:
	default:
		logs.Errorf("fill queue full, forcing sync")
		e.RequestSync()
	}
}

// RequestSync schedules an immediate order sync on the loop.
func (e *Engine) RequestSync() {
	select {
	case e.syncNow <- struct{}{}:
	default:
	}
}

// UpdateGuard swaps the pre-trade guard limits on the loop, used by
// config hot reload. Only the guard is swappable at runtime; every
// other knob requires a restart.
func (e *Engine) UpdateGuard(cfg risk.Config) {
	select {
	case e.guardUpdates <- cfg:
	default:
	}
}

// Stats returns the last published counter/gauge view; safe to call
// from any goroutine.
func (e *Engine) Stats() obs.EngineStats {
	return e.statsView.Load().(obs.EngineStats)
}

// Run drives the actor until the context is done, then cancels every
// resting order in a final cleanup pass.
func (e *Engine) Run(ctx context.Context) error {
	e.start = time.Now()
	e.logConfigBanner()

	unsubRef := e.deps.Reference.Observe(ctx, func(ev feed.PriceEvent) {
		select {
		case e.refEvents <- ev:
		default:
		}
	})
	defer unsubRef()

	unsubVenue := e.deps.VenueBook.Observe(ctx, func(ev feed.PriceEvent) {
		select {
		case e.venueEvents <- ev:
		default:
		}
	})
	defer unsubVenue()

	// First authoritative position before any quoting.
	if err := e.syncPosition(ctx); err != nil {
		logs.Warnf("initial position sync failed: %v", err)
	}

	orderSync := time.NewTicker(e.cfg.OrderSyncInterval)
	defer orderSync.Stop()
	posSync := time.NewTicker(e.cfg.PositionSyncInterval)
	defer posSync.Stop()
	status := time.NewTicker(e.cfg.StatusInterval)
	defer status.Stop()
	snapshot := time.NewTicker(e.cfg.SnapshotInterval)
	defer snapshot.Stop()

	defer e.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.refEvents:
			e.handleReference(ev)
		case ev := <-e.venueEvents:
			e.handleVenue(ev)
		case fill := <-e.fills:
			e.handleFill(ctx, fill)
		case <-e.throttle.C():
			e.tick(ctx)
		case <-e.syncNow:
			e.syncOrders(ctx)
		case cfg := <-e.guardUpdates:
			e.guard = risk.NewEngine(cfg)
			logs.Info("pre-trade guard limits reloaded")
		case <-orderSync.C:
			e.syncOrders(ctx)
		case <-posSync.C:
			if err := e.syncPosition(ctx); err != nil {
				logs.Warnf("position sync failed: %v", err)
			}
		case <-status.C:
			e.logStatus()
		case <-snapshot.C:
			e.writeSnapshot()
		}
	}
}

func (e *Engine) handleReference(ev feed.PriceEvent) {
	if paired, ok := e.pairer.OnReference(ev); ok {
		e.est.AddSample(paired.TsMs, paired.VenueMid, paired.ReferenceMid)
	}
	if e.deps.Journal != nil {
		e.deps.Journal.RecordMarketData(ev.TsMs, schema.SourceReference, ev.Mid, ev.BestBid, ev.BestAsk)
	}
	e.throttle.Trigger()
}

func (e *Engine) handleVenue(ev feed.PriceEvent) {
	if paired, ok := e.pairer.OnVenue(ev); ok {
		e.est.AddSample(paired.TsMs, paired.VenueMid, paired.ReferenceMid)
	}
	mid, _ := ev.Mid.Float64()
	e.vol.AddSample(ev.TsMs/1000, mid)
	if e.deps.Journal != nil {
		e.deps.Journal.RecordMarketData(ev.TsMs, schema.SourceVenue, ev.Mid, ev.BestBid, ev.BestAsk)
	}
}

// tick runs the per-tick procedure. The re-entrancy guard drops a tick
// that arrives while a reconcile is still in flight; the trailing
// throttle will reissue.
func (e *Engine) tick(ctx context.Context) {
	if e.updating {
		return
	}
	e.updating = true
	defer func() { e.updating = false }()

	atomic.AddUint64(&e.ticks, 1)
	defer e.publishStats()

	now := time.Now()
	if elapsed := now.Sub(e.start); elapsed < e.cfg.Warmup {
		if now.Sub(e.lastWarmupLog) >= time.Second {
			e.lastWarmupLog = now
			logs.Infof("warmup %.0fs/%.0fs samples=%d",
				elapsed.Seconds(), e.cfg.Warmup.Seconds(), e.est.SampleCount())
		}
		return
	}

	ref, ok := e.pairer.Reference()
	if !ok {
		return
	}
	fair, ok := e.est.FairPrice(now.UnixMilli(), ref.Mid)
	if !ok {
		return
	}
	e.lastFair = fair
	e.haveFair = true

	if !e.seeded {
		e.ledger.Seed(e.pos.BaseSize(), fair)
		e.seeded = true
		logs.Infof("PNL seeded position=%s entry=%s", e.pos.BaseSize(), fair)
	}

	state := e.ledger.GetState(now, fair)
	if state.Halted {
		if len(e.orders) > 0 {
			logs.Errorf("RISK HALT active (%s), cancelling %d orders", state.HaltReason, len(e.orders))
			e.cancelAllOrders(ctx)
		}
		return
	}

	quotes, diag := e.buildQuotes(fair)
	e.lastDiag = diag

	if e.shouldSkipReprice(diag.SkewedMid) {
		return
	}
	if len(quotes) == 0 {
		return
	}

	desired := make([]reconcile.DesiredQuote, 0, len(quotes))
	for _, q := range quotes {
		desired = append(desired, reconcile.DesiredQuote{
			Side:  reconcile.Side(q.Side),
			Price: q.Price,
			Size:  q.Size,
		})
	}

	atomic.AddUint64(&e.reconciles, 1)
	flowStart := time.Now()
	result, err := reconcile.Reconcile(ctx, e.deps.Venue, e.cfg.MarketID, e.orders, desired)
	if err != nil {
		e.handleReconcileError(err)
		return
	}
	e.deps.Metrics.ObserveOrderFlow(time.Since(flowStart))

	e.orders = result.Orders
	e.marginRejections = 0
	e.lastSkewedMid = diag.SkewedMid
	e.haveSkewedMid = true

	if result.HadChunkErrors {
		atomic.AddUint64(&e.chunkErrors, 1)
		e.RequestSync()
	}
}

// buildQuotes runs the quoter, applies the margin fallback and the
// pre-trade guard, and returns the surviving ladder.
func (e *Engine) buildQuotes(fair decimal.Decimal) ([]quoter.Quote, quoter.Diagnostics) {
	qctx := e.pos.QuotingContext(fair)
	if qctx.CloseMode && !e.closeMode {
		logs.Infof("close mode entered, position=%s", e.pos.BaseSize())
	}
	e.closeMode = qctx.CloseMode

	volBps, hasVol := e.vol.Volatility(time.Now().Unix())
	momBps, _, _ := e.vol.Momentum()

	venueBBO := quoter.BBO{}
	if ev, ok := e.pairer.Venue(); ok {
		venueBBO = quoter.BBO{BestBid: ev.BestBid, BestAsk: ev.BestAsk, Known: true}
	}

	in := quoter.Inputs{
		Fair:          fair,
		PositionUSD:   e.pos.BaseSize().Mul(fair),
		VolatilityBps: decimal.NewFromFloat(volBps),
		HasVolatility: hasVol,
		MomentumBps:   decimal.NewFromFloat(momBps),
		BBO:           venueBBO,
		AllowBid:      qctx.AllowedSides == position.AllowedBoth || qctx.AllowedSides == position.AllowedBidOnly,
		AllowAsk:      qctx.AllowedSides == position.AllowedBoth || qctx.AllowedSides == position.AllowedAskOnly,
	}

	quotes := quoter.Compute(e.cfg.Quoter, in)
	diag := quoter.Derive(e.cfg.Quoter, in)

	quotes = e.applyMarginFallback(quotes)
	quotes = e.applyGuard(quotes, fair)
	return quotes, diag
}

// applyMarginFallback degrades the quote set while the venue rejects
// on margin: first one level per side, then a single order on the
// reducing side (alternating sides when flat).
func (e *Engine) applyMarginFallback(quotes []quoter.Quote) []quoter.Quote {
	if e.marginRejections == 0 || len(quotes) == 0 {
		return quotes
	}

	bestBid, haveBid := bestOfSide(quotes, quoter.SideBid)
	bestAsk, haveAsk := bestOfSide(quotes, quoter.SideAsk)

	if e.marginRejections == 1 {
		out := make([]quoter.Quote, 0, 2)
		if haveBid {
			out = append(out, bestBid)
		}
		if haveAsk {
			out = append(out, bestAsk)
		}
		return out
	}

	// Two or more consecutive rejections: a single order, on the
	// reducing side when a position exists.
	base := e.pos.BaseSize()
	switch {
	case base.IsPositive() && haveAsk:
		return []quoter.Quote{bestAsk}
	case base.IsNegative() && haveBid:
		return []quoter.Quote{bestBid}
	}

	e.soloAskNext = !e.soloAskNext
	if e.soloAskNext && haveAsk {
		return []quoter.Quote{bestAsk}
	}
	if haveBid {
		return []quoter.Quote{bestBid}
	}
	if haveAsk {
		return []quoter.Quote{bestAsk}
	}
	return nil
}

func bestOfSide(quotes []quoter.Quote, side quoter.Side) (quoter.Quote, bool) {
	var best quoter.Quote
	found := false
	for _, q := range quotes {
		if q.Side != side {
			continue
		}
		if !found {
			best = q
			found = true
			continue
		}
		if side == quoter.SideBid && q.Price.GreaterThan(best.Price) {
			best = q
		}
		if side == quoter.SideAsk && q.Price.LessThan(best.Price) {
			best = q
		}
	}
	return best, found
}

func (e *Engine) applyGuard(quotes []quoter.Quote, fair decimal.Decimal) []quoter.Quote {
	out := quotes[:0]
	for _, q := range quotes {
		side := risk.SideBid
		if q.Side == quoter.SideAsk {
			side = risk.SideAsk
		}
		evalStart := time.Now()
		decision := e.guard.Evaluate(risk.Intent{Side: side, Price: q.Price, Size: q.Size}, risk.StateView{
			PositionBase:   e.pos.BaseSize(),
			ReferencePrice: fair,
		})
		e.deps.Metrics.ObserveRiskEval(time.Since(evalStart))
		if !decision.Allowed() {
			atomic.AddUint64(&e.guardDenies, 1)
			e.deps.Metrics.IncRiskReason(decision.Reason)
			logs.Warnf("guard denied quote side=%d price=%s size=%s reason=%d",
				q.Side, q.Price, q.Size, decision.Reason)
			continue
		}
		out = append(out, q)
	}
	return out
}

// shouldSkipReprice implements the reprice_threshold_bps no-op skip on
// the skewed mid.
func (e *Engine) shouldSkipReprice(skewedMid decimal.Decimal) bool {
	if !e.cfg.HasRepriceThreshold || !e.haveSkewedMid || len(e.orders) == 0 {
		return false
	}
	if e.lastSkewedMid.IsZero() {
		return false
	}
	driftBps := decimalx.Abs(skewedMid.Sub(e.lastSkewedMid)).
		Div(e.lastSkewedMid).
		Mul(decimal.NewFromInt(10000))
	return driftBps.LessThan(e.cfg.RepriceThresholdBps)
}

func (e *Engine) handleReconcileError(err error) {
	msg := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(msg, "OMF"), strings.Contains(msg, "RISK_TRADE"), strings.Contains(msg, "MARGIN"):
		// Keep the order cache: the venue rejected the batch without
		// mutating the book.
		e.marginRejections++
		if e.marginRejections >= marginWarnAfter {
			logs.Errorf("margin rejected %d consecutive updates, operator attention required: %v",
				e.marginRejections, err)
		} else {
			logs.Warnf("margin rejection %d: %v", e.marginRejections, err)
		}
	case strings.Contains(msg, "POST_ONLY"), strings.Contains(msg, "MUST_NOT_FILL"):
		// Crossed after submission; next tick reprices.
		logs.Warnf("post-only cross: %v", err)
	case strings.Contains(msg, "ORDER_NOT_FOUND"):
		logs.Warnf("stale order id: %v", err)
		e.RequestSync()
	default:
		logs.Errorf("reconcile failed: %v", err)
		e.RequestSync()
	}
}

// handleFill applies one fill to the ledgers, journals it, and reacts
// to any halt or close-mode transition it causes.
func (e *Engine) handleFill(ctx context.Context, fill FillEvent) {
	if fill.MarketID != e.cfg.MarketID {
		return
	}
	atomic.AddUint64(&e.fillCount, 1)
	defer e.publishStats()

	now := time.Now()

	e.pos.ApplyFill(fill.Side, fill.Size)

	// The filled order's id is stale on the venue now.
	e.RequestSync()

	pnlSide := pnl.SideBuy
	schemaSide := schema.OrderSideBuy
	sideName := "bid"
	if fill.Side == position.SideAsk {
		pnlSide = pnl.SideSell
		schemaSide = schema.OrderSideSell
		sideName = "ask"
	}
	realized := e.ledger.ApplyFill(now, pnlSide, fill.Price, fill.Size)

	if e.deps.Journal != nil {
		e.deps.Journal.RecordFill(now.UnixNano(), schemaSide, fill.Price, fill.Size, fill.Fee)
	}

	fair := e.lastFair
	if !e.haveFair {
		fair = fill.Price
	}
	state := e.ledger.GetState(now, fair)

	e.epoch++
	mode := "normal"
	if e.pos.IsCloseMode(fair) {
		mode = "close"
	}
	logs.Infof("FILL %s %s %s@%s realized=%s position=%s",
		e.cfg.MarketID, sideName, fill.Size, fill.Price, realized, state.PositionBase)

	if e.deps.TradeLog != nil {
		rec := tradelog.FillRecord{
			Timestamp:             now.UTC().Format(time.RFC3339Nano),
			Epoch:                 e.epoch,
			Symbol:                e.cfg.MarketID,
			Side:                  sideName,
			Price:                 fill.Price.String(),
			Size:                  fill.Size.String(),
			SizeUSD:               fill.Size.Mul(fill.Price).String(),
			PositionAfter:         state.PositionBase.String(),
			PositionUSDAfter:      state.PositionBase.Mul(fair).String(),
			RealizedPnL:           realized.String(),
			CumulativeRealizedPnL: state.RealizedPnL.String(),
			UnrealizedPnL:         state.UnrealizedPnL.String(),
			FairPrice:             fair.String(),
			Mode:                  mode,
			SpreadBps:             e.lastDiag.SpreadBps.String(),
		}
		if err := e.deps.TradeLog.LogFill(rec); err != nil {
			logs.Warnf("trade log append failed: %v", err)
		}
	}

	if state.Halted {
		logs.Errorf("RISK HALT %s", state.HaltReason)
		e.cancelAllOrders(ctx)
		return
	}

	// Entering close mode invalidates the adding-side quotes; cancel
	// everything and let the next tick re-quote the reducing side.
	closeMode := e.pos.IsCloseMode(fair)
	if closeMode && !e.closeMode {
		e.closeMode = true
		logs.Infof("close mode entered on fill, position=%s", state.PositionBase)
		e.cancelAllOrders(ctx)
	}
}

func (e *Engine) syncOrders(ctx context.Context) {
	info, err := e.deps.Venue.FetchInfo(ctx)
	if err != nil {
		logs.Warnf("order sync failed: %v", err)
		return
	}
	e.orders = info.Orders
}

func (e *Engine) syncPosition(ctx context.Context) error {
	return e.pos.Sync(ctx, positionFetcher{e.deps.Venue}, driftLogger{}, position.DefaultBackoff)
}

func (e *Engine) cancelAllOrders(ctx context.Context) {
	if len(e.orders) == 0 {
		return
	}
	actions := make([]reconcile.Action, 0, len(e.orders))
	for _, o := range e.orders {
		actions = append(actions, reconcile.Action{Kind: reconcile.ActionCancel, CancelOrderID: o.OrderID})
	}
	for start := 0; start < len(actions); start += 4 {
		end := start + 4
		if end > len(actions) {
			end = len(actions)
		}
		if _, err := e.deps.Venue.Atomic(ctx, e.cfg.MarketID, actions[start:end]); err != nil {
			logs.Warnf("cancel-all chunk failed: %v", err)
		}
	}
	e.orders = nil
	e.RequestSync()
}

// shutdown cancels every resting order in a final cleanup pass with a
// fresh context, since Run's context is already done.
func (e *Engine) shutdown() {
	e.throttle.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.cancelAllOrders(ctx)
}

func (e *Engine) logConfigBanner() {
	logs.Infof("marketmaker %s levels=%d spread=%s..%s bps order=%s USD maxpos=%s USD throttle=%s",
		e.cfg.MarketID, e.cfg.Quoter.Levels,
		e.cfg.Quoter.BaseSpreadBps, e.cfg.Quoter.MaxSpreadBps,
		e.cfg.Quoter.OrderSizeUSD, e.cfg.Quoter.MaxPositionUSD,
		e.cfg.UpdateThrottle)
}

func (e *Engine) logStatus() {
	if !e.haveFair {
		logs.Infof("STATUS warming up, offset samples=%d", e.est.SampleCount())
		return
	}
	state := e.ledger.GetState(time.Now(), e.lastFair)
	offset, _ := e.est.RawMedianOffset(time.Now().UnixMilli())
	volBps, _ := e.vol.Volatility(time.Now().Unix())
	momBps, strong, _ := e.vol.Momentum()
	logs.Infof("STATUS fair=%s offset=%s vol=%.2fbps mom=%.2fbps strong=%t pos=%s pnl=%s dd=%s orders=%d margin_rej=%d",
		e.lastFair, offset, volBps, momBps, strong,
		state.PositionBase, state.TotalPnL, state.Drawdown, len(e.orders), e.marginRejections)
	e.publishStats()
}

func (e *Engine) writeSnapshot() {
	if e.deps.TradeLog == nil || !e.haveFair {
		return
	}
	now := time.Now()
	state := e.ledger.GetState(now, e.lastFair)
	rec := tradelog.SnapshotRecord{
		Timestamp:      now.UTC().Format(time.RFC3339Nano),
		Epoch:          e.epoch,
		Symbol:         e.cfg.MarketID,
		PositionBase:   state.PositionBase.String(),
		PositionUSD:    state.PositionBase.Mul(e.lastFair).String(),
		RealizedPnL:    state.RealizedPnL.String(),
		UnrealizedPnL:  state.UnrealizedPnL.String(),
		TotalPnL:       state.TotalPnL.String(),
		PeakPnL:        state.PeakPnL.String(),
		Drawdown:       state.Drawdown.String(),
		DailyPnL:       state.DailyPnL.String(),
		DailyStartDate: state.DailyStartDate,
		WinCount:       state.WinCount,
		LossCount:      state.LossCount,
		TradeCount:     state.TradeCount,
		VolumeUSD:      state.VolumeUSD.String(),
		Halted:         state.Halted,
		HaltReason:     state.HaltReason,
	}
	if err := e.deps.TradeLog.LogSnapshot(rec); err != nil {
		logs.Warnf("snapshot append failed: %v", err)
	}
}

func (e *Engine) publishStats() {
	stats := obs.EngineStats{
		Ticks:            atomic.LoadUint64(&e.ticks),
		Reconciles:       atomic.LoadUint64(&e.reconciles),
		ChunkErrors:      atomic.LoadUint64(&e.chunkErrors),
		MarginRejections: uint64(e.marginRejections),
		Fills:            atomic.LoadUint64(&e.fillCount),
		GuardDenies:      atomic.LoadUint64(&e.guardDenies),
	}
	if e.haveFair {
		state := e.ledger.GetState(time.Now(), e.lastFair)
		stats.Halted = state.Halted
		stats.PositionBase, _ = state.PositionBase.Float64()
		stats.TotalPnL, _ = state.TotalPnL.Float64()
		stats.Drawdown, _ = state.Drawdown.Float64()
	}
	e.statsView.Store(stats)
}

type positionFetcher struct {
	venue Venue
}

func (f positionFetcher) FetchPosition(ctx context.Context) (decimal.Decimal, error) {
	info, err := f.venue.FetchInfo(ctx)
	if err != nil {
		return decimal.Decimal(""), err
	}
	return info.Position, nil
}

type driftLogger struct{}

func (driftLogger) LogDrift(local, server decimal.Decimal) {
	logs.Warnf("POS drift local=%s server=%s, adopting server", local, server)
}
