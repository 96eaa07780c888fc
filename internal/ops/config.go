// Package ops loads and hot-reloads the engine's JSON configuration:
// the venue/symbol registry, quoter knobs, risk limits and timing
// intervals, resolved into the strongly-typed configs each component
// consumes.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/yanun0323/decimal"

	"marketmaker/internal/fairprice"
	"marketmaker/internal/pnl"
	"marketmaker/internal/quoter"
	"marketmaker/internal/risk"
	"marketmaker/internal/schema"
	"marketmaker/internal/volatility"
	"marketmaker/pkg/conn"
)

// FileConfig mirrors the JSON config layout. Price/size knobs are JSON
// strings parsed into decimals, never floats.
type FileConfig struct {
	Registry   RegistryConfig   `json:"registry"`
	Market     MarketConfig     `json:"market"`
	Quoter     QuoterConfig     `json:"quoter"`
	Risk       RiskConfig       `json:"risk"`
	Guard      GuardConfig      `json:"guard"`
	FairPrice  FairPriceConfig  `json:"fairPrice"`
	Volatility VolatilityConfig `json:"volatility"`
	Timing     TimingConfig     `json:"timing"`
	Storage    StorageConfig    `json:"storage"`
}

// RegistryConfig defines venue and symbol mappings.
type RegistryConfig struct {
	Venues  []VenueConfig  `json:"venues"`
	Symbols []SymbolConfig `json:"symbols"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// SymbolConfig describes a symbol entry.
type SymbolConfig struct {
	Name     string           `json:"name"`
	Venue    string           `json:"venue"`
	Scale    schema.ScaleSpec `json:"scale"`
	TickSize string           `json:"tickSize"`
	LotSize  string           `json:"lotSize"`
}

// MarketConfig names the quoted instrument and its reference stream.
type MarketConfig struct {
	Symbol          string `json:"symbol"`
	ReferenceSymbol string `json:"referenceSymbol"`
}

// QuoterConfig holds the §4.E pricing knobs as decimal strings.
type QuoterConfig struct {
	BaseSpreadBps      string `json:"baseSpreadBps"`
	MaxSpreadBps       string `json:"maxSpreadBps"`
	VolMultiplier      string `json:"volMultiplier"`
	SkewFactor         string `json:"skewFactor"`
	MaxPositionUSD     string `json:"maxPositionUsd"`
	SizeReductionStart string `json:"sizeReductionStart"`
	CloseThresholdUSD  string `json:"closeThresholdUsd"`
	Levels             int    `json:"levels"`
	LevelSpacingBps    string `json:"levelSpacingBps"`
	MomentumPenaltyBps string `json:"momentumPenaltyBps"`
	MinSkewBps         string `json:"minSkewBps"`
	OrderSizeUSD       string `json:"orderSizeUsd"`
	MakerFeeBps        string `json:"makerFeeBps"`
}

// RiskConfig holds the PnL ledger's halt thresholds.
type RiskConfig struct {
	MaxDrawdownUSD    string `json:"maxDrawdownUsd"`
	MaxPositionUSD    string `json:"maxPositionUsd"`
	DailyLossLimitUSD string `json:"dailyLossLimitUsd"`
}

// GuardConfig holds the pre-trade guard limits.
type GuardConfig struct {
	KillSwitch           bool   `json:"killSwitch"`
	MaxOrderSize         string `json:"maxOrderSize"`
	MaxOrderNotionalUSD  string `json:"maxOrderNotionalUsd"`
	MaxPositionBase      string `json:"maxPositionBase"`
	OrderRateLimit       int    `json:"orderRateLimit"`
	OrderRateWindowMs    int64  `json:"orderRateWindowMs"`
	MaxPriceDeviationBps int64  `json:"maxPriceDeviationBps"`
}

// FairPriceConfig tunes the estimator.
type FairPriceConfig struct {
	MinSamples int `json:"minSamples"`
}

// VolatilityConfig tunes the volatility/momentum trackers.
type VolatilityConfig struct {
	WindowSeconds      int     `json:"windowSeconds"`
	MinSamples         int     `json:"minSamples"`
	PeriodSeconds      int     `json:"periodSeconds"`
	StrongThresholdBps float64 `json:"strongThresholdBps"`
}

// TimingConfig holds the §6 timing knobs. Intervals are in
// milliseconds; warmup is in seconds and the reprice threshold in bps.
type TimingConfig struct {
	WarmupSeconds          int    `json:"warmupSeconds"`
	UpdateThrottleMs       int64  `json:"updateThrottleMs"`
	OrderSyncIntervalMs    int64  `json:"orderSyncIntervalMs"`
	StatusIntervalMs       int64  `json:"statusIntervalMs"`
	FairPriceWindowMs      int64  `json:"fairPriceWindowMs"`
	PositionSyncIntervalMs int64  `json:"positionSyncIntervalMs"`
	SnapshotIntervalMs     int64  `json:"snapshotIntervalMs"`
	RepriceThresholdBps    string `json:"repriceThresholdBps"`
}

// StorageConfig wires the WAL, the trade log and the optional
// checkpoint database.
type StorageConfig struct {
	WALDir      string          `json:"walDir"`
	TradeLogDir string          `json:"tradeLogDir"`
	Postgres    *PostgresConfig `json:"postgres"`
}

// PostgresConfig holds checkpoint database connection settings.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// Timing is the resolved timing knob set.
type Timing struct {
	Warmup               time.Duration
	UpdateThrottle       time.Duration
	OrderSyncInterval    time.Duration
	StatusInterval       time.Duration
	FairPriceWindowMs    int64
	PositionSyncInterval time.Duration
	SnapshotInterval     time.Duration
	RepriceThresholdBps  decimal.Decimal
	HasRepriceThreshold  bool
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry        *schema.Registry
	Symbol          schema.Symbol
	ReferenceSymbol string
	Quoter          quoter.Config
	Risk            pnl.Config
	Guard           risk.Config
	FairPrice       fairprice.Config
	Volatility      volatility.Config
	Timing          Timing
	Storage         StorageConfig
}

// PostgresOption converts the optional postgres block into a pkg/conn
// option; second return is false when checkpointing is disabled.
func (l Loaded) PostgresOption() (conn.Option, bool) {
	pg := l.Storage.Postgres
	if pg == nil {
		return conn.Option{}, false
	}
	return conn.Option{
		Host:     pg.Host,
		Port:     pg.Port,
		User:     pg.User,
		Password: pg.Password,
		Database: pg.Database,
		SSLMode:  pg.SSLMode,
	}, true
}

// Load reads a JSON config file and resolves every component config.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}

	if cfg.Market.Symbol == "" {
		return Loaded{}, fmt.Errorf("market symbol is empty")
	}
	symbolID, ok := registry.SymbolIDByName(cfg.Market.Symbol)
	if !ok {
		return Loaded{}, fmt.Errorf("market symbol not found: %s", cfg.Market.Symbol)
	}
	symbol, _ := registry.Symbol(symbolID)

	var symCfg SymbolConfig
	for _, s := range cfg.Registry.Symbols {
		if s.Name == cfg.Market.Symbol {
			symCfg = s
			break
		}
	}

	quoterCfg, err := resolveQuoter(cfg.Quoter, symCfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("quoter config: %w", err)
	}
	riskCfg, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, fmt.Errorf("risk config: %w", err)
	}
	guardCfg, err := resolveGuard(cfg.Guard)
	if err != nil {
		return Loaded{}, fmt.Errorf("guard config: %w", err)
	}
	timing, err := resolveTiming(cfg.Timing)
	if err != nil {
		return Loaded{}, fmt.Errorf("timing config: %w", err)
	}

	return Loaded{
		Registry:        registry,
		Symbol:          symbol,
		ReferenceSymbol: cfg.Market.ReferenceSymbol,
		Quoter:          quoterCfg,
		Risk:            riskCfg,
		Guard:           guardCfg,
		FairPrice: fairprice.Config{
			WindowMs:   timing.FairPriceWindowMs,
			MinSamples: cfg.FairPrice.MinSamples,
		},
		Volatility: volatility.Config{
			WindowSeconds:      cfg.Volatility.WindowSeconds,
			MinSamples:         cfg.Volatility.MinSamples,
			PeriodSeconds:      cfg.Volatility.PeriodSeconds,
			StrongThresholdBps: cfg.Volatility.StrongThresholdBps,
		},
		Timing:  timing,
		Storage: cfg.Storage,
	}, nil
}

func resolveQuoter(cfg QuoterConfig, sym SymbolConfig) (quoter.Config, error) {
	out := quoter.Config{Levels: quoter.Levels(cfg.Levels)}
	if out.Levels < 1 || out.Levels > 3 {
		return quoter.Config{}, fmt.Errorf("levels must be 1..3, got %d", cfg.Levels)
	}

	fields := []struct {
		dst      *decimal.Decimal
		name     string
		raw      string
		required bool
	}{
		{&out.BaseSpreadBps, "baseSpreadBps", cfg.BaseSpreadBps, true},
		{&out.MaxSpreadBps, "maxSpreadBps", cfg.MaxSpreadBps, true},
		{&out.VolMultiplier, "volMultiplier", cfg.VolMultiplier, true},
		{&out.SkewFactor, "skewFactor", cfg.SkewFactor, true},
		{&out.MaxPositionUSD, "maxPositionUsd", cfg.MaxPositionUSD, true},
		{&out.SizeReductionStart, "sizeReductionStart", cfg.SizeReductionStart, true},
		{&out.CloseThresholdUSD, "closeThresholdUsd", cfg.CloseThresholdUSD, true},
		{&out.LevelSpacingBps, "levelSpacingBps", cfg.LevelSpacingBps, false},
		{&out.MomentumPenaltyBps, "momentumPenaltyBps", cfg.MomentumPenaltyBps, false},
		{&out.MinSkewBps, "minSkewBps", cfg.MinSkewBps, false},
		{&out.OrderSizeUSD, "orderSizeUsd", cfg.OrderSizeUSD, true},
		{&out.TickSize, "tickSize", sym.TickSize, true},
		{&out.LotSize, "lotSize", sym.LotSize, true},
		{&out.MakerFeeBps, "makerFeeBps", cfg.MakerFeeBps, false},
	}
	for _, f := range fields {
		d, err := parseDecimal(f.name, f.raw, f.required)
		if err != nil {
			return quoter.Config{}, err
		}
		*f.dst = d
	}
	return out, nil
}

func resolveRisk(cfg RiskConfig) (pnl.Config, error) {
	var out pnl.Config
	var err error
	if out.MaxDrawdownUSD, err = parseDecimal("maxDrawdownUsd", cfg.MaxDrawdownUSD, false); err != nil {
		return pnl.Config{}, err
	}
	if out.MaxPositionUSD, err = parseDecimal("maxPositionUsd", cfg.MaxPositionUSD, false); err != nil {
		return pnl.Config{}, err
	}
	if out.DailyLossLimitUSD, err = parseDecimal("dailyLossLimitUsd", cfg.DailyLossLimitUSD, false); err != nil {
		return pnl.Config{}, err
	}
	return out, nil
}

func resolveGuard(cfg GuardConfig) (risk.Config, error) {
	out := risk.Config{
		KillSwitch:           cfg.KillSwitch,
		OrderRateLimit:       cfg.OrderRateLimit,
		OrderRateWindow:      time.Duration(cfg.OrderRateWindowMs) * time.Millisecond,
		MaxPriceDeviationBps: cfg.MaxPriceDeviationBps,
	}
	var err error
	if out.MaxOrderSize, err = parseDecimal("maxOrderSize", cfg.MaxOrderSize, false); err != nil {
		return risk.Config{}, err
	}
	if out.MaxOrderNotionalUSD, err = parseDecimal("maxOrderNotionalUsd", cfg.MaxOrderNotionalUSD, false); err != nil {
		return risk.Config{}, err
	}
	if out.MaxPositionBase, err = parseDecimal("maxPositionBase", cfg.MaxPositionBase, false); err != nil {
		return risk.Config{}, err
	}
	return out, nil
}

func resolveTiming(cfg TimingConfig) (Timing, error) {
	out := Timing{
		Warmup:               time.Duration(cfg.WarmupSeconds) * time.Second,
		UpdateThrottle:       msOrDefault(cfg.UpdateThrottleMs, 200),
		OrderSyncInterval:    msOrDefault(cfg.OrderSyncIntervalMs, 5_000),
		StatusInterval:       msOrDefault(cfg.StatusIntervalMs, 10_000),
		FairPriceWindowMs:    cfg.FairPriceWindowMs,
		PositionSyncInterval: msOrDefault(cfg.PositionSyncIntervalMs, 7_000),
		SnapshotInterval:     msOrDefault(cfg.SnapshotIntervalMs, 60_000),
	}
	if cfg.RepriceThresholdBps != "" {
		d, err := parseDecimal("repriceThresholdBps", cfg.RepriceThresholdBps, true)
		if err != nil {
			return Timing{}, err
		}
		out.RepriceThresholdBps = d
		out.HasRepriceThreshold = true
	}
	return out, nil
}

func msOrDefault(ms int64, fallback int64) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func parseDecimal(name, raw string, required bool) (decimal.Decimal, error) {
	if raw == "" {
		if required {
			return decimal.Decimal(""), fmt.Errorf("%s is required", name)
		}
		return decimal.NewFromInt(0), nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal(""), fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, sym := range cfg.Symbols {
		venueID, ok := reg.VenueIDByName(sym.Venue)
		if !ok {
			return nil, fmt.Errorf("venue not found: %s", sym.Venue)
		}
		if err := validateScale(sym.Scale); err != nil {
			return nil, fmt.Errorf("invalid scale for %s: %w", sym.Name, err)
		}
		if _, err := reg.AddSymbol(sym.Name, venueID, sym.Scale); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 || scale.NotionalScale < 0 || scale.FeeScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}
