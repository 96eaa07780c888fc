package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"marketmaker/internal/schema"
)

// EngineStats is the loop's point-in-time gauge set exported to
// prometheus alongside the event counters.
type EngineStats struct {
	Ticks            uint64
	Reconciles       uint64
	ChunkErrors      uint64
	MarginRejections uint64
	Fills            uint64
	GuardDenies      uint64
	Halted           bool
	PositionBase     float64
	TotalPnL         float64
	Drawdown         float64
}

// PromCollector adapts Metrics plus an engine stats callback into a
// prometheus.Collector, so dashboards scrape the same counters the
// status log prints.
type PromCollector struct {
	metrics *Metrics
	engine  func() EngineStats

	eventsDesc      *prometheus.Desc
	riskReasonDesc  *prometheus.Desc
	queueDropsDesc  *prometheus.Desc
	queueClosedDesc *prometheus.Desc
	engineDesc      *prometheus.Desc
	stateDesc       *prometheus.Desc
}

// NewPromCollector builds a collector. engine may be nil when only the
// event metrics should be exported.
func NewPromCollector(metrics *Metrics, engine func() EngineStats) *PromCollector {
	return &PromCollector{
		metrics: metrics,
		engine:  engine,
		eventsDesc: prometheus.NewDesc(
			"marketmaker_events_total", "Journaled events by type.", []string{"type"}, nil),
		riskReasonDesc: prometheus.NewDesc(
			"marketmaker_risk_denies_total", "Pre-trade guard denials by reason.", []string{"reason"}, nil),
		queueDropsDesc: prometheus.NewDesc(
			"marketmaker_queue_drops_total", "Events dropped on a full journal queue.", nil, nil),
		queueClosedDesc: prometheus.NewDesc(
			"marketmaker_queue_closed_total", "Publish attempts on a closed journal queue.", nil, nil),
		engineDesc: prometheus.NewDesc(
			"marketmaker_engine_counter", "Engine lifecycle counters.", []string{"counter"}, nil),
		stateDesc: prometheus.NewDesc(
			"marketmaker_engine_state", "Engine state gauges.", []string{"gauge"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.eventsDesc
	ch <- c.riskReasonDesc
	ch <- c.queueDropsDesc
	ch <- c.queueClosedDesc
	ch <- c.engineDesc
	ch <- c.stateDesc
}

// Collect implements prometheus.Collector.
func (c *PromCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	for eventType, count := range snap.EventCounts {
		ch <- prometheus.MustNewConstMetric(
			c.eventsDesc, prometheus.CounterValue, float64(count), eventTypeName(eventType))
	}
	for reason, count := range snap.RiskReasonCounts {
		ch <- prometheus.MustNewConstMetric(
			c.riskReasonDesc, prometheus.CounterValue, float64(count), riskReasonName(reason))
	}
	ch <- prometheus.MustNewConstMetric(c.queueDropsDesc, prometheus.CounterValue, float64(snap.QueueDrops))
	ch <- prometheus.MustNewConstMetric(c.queueClosedDesc, prometheus.CounterValue, float64(snap.QueueClosed))

	if c.engine == nil {
		return
	}
	stats := c.engine()
	counters := []struct {
		name  string
		value uint64
	}{
		{"ticks", stats.Ticks},
		{"reconciles", stats.Reconciles},
		{"chunk_errors", stats.ChunkErrors},
		{"margin_rejections", stats.MarginRejections},
		{"fills", stats.Fills},
		{"guard_denies", stats.GuardDenies},
	}
	for _, counter := range counters {
		ch <- prometheus.MustNewConstMetric(
			c.engineDesc, prometheus.CounterValue, float64(counter.value), counter.name)
	}

	halted := 0.0
	if stats.Halted {
		halted = 1.0
	}
	gauges := []struct {
		name  string
		value float64
	}{
		{"halted", halted},
		{"position_base", stats.PositionBase},
		{"total_pnl", stats.TotalPnL},
		{"drawdown", stats.Drawdown},
	}
	for _, gauge := range gauges {
		ch <- prometheus.MustNewConstMetric(
			c.stateDesc, prometheus.GaugeValue, gauge.value, gauge.name)
	}
}

func eventTypeName(t schema.EventType) string {
	switch t {
	case schema.EventMarketData:
		return "market_data"
	case schema.EventFill:
		return "fill"
	case schema.EventRiskDecision:
		return "risk_decision"
	case schema.EventSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

func riskReasonName(r schema.RiskReason) string {
	switch r {
	case schema.RiskReasonKillSwitch:
		return "kill_switch"
	case schema.RiskReasonMaxQty:
		return "max_qty"
	case schema.RiskReasonMaxNotional:
		return "max_notional"
	case schema.RiskReasonRateLimit:
		return "rate_limit"
	case schema.RiskReasonPriceBand:
		return "price_band"
	case schema.RiskReasonPositionLimit:
		return "position_limit"
	default:
		return "none"
	}
}
