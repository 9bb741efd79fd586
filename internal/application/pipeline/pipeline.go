// Package pipeline orchestrates one full level derivation cycle per ticker:
// option chain to gamma levels, dark pool scans to zones, sticky level
// memory and multi-day accumulation detection.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Bullnettraders/levelcast/internal/application/sources"
	"github.com/Bullnettraders/levelcast/internal/config"
	"github.com/Bullnettraders/levelcast/internal/data/feeds"
	"github.com/Bullnettraders/levelcast/internal/domain/accumulation"
	"github.com/Bullnettraders/levelcast/internal/domain/darkpool"
	"github.com/Bullnettraders/levelcast/internal/domain/gex"
	"github.com/Bullnettraders/levelcast/internal/domain/memory"
	"github.com/Bullnettraders/levelcast/internal/domain/options"
	"github.com/Bullnettraders/levelcast/internal/metrics"
	"github.com/Bullnettraders/levelcast/internal/persistence"
)

// Report is the complete output of one derivation cycle for one ticker.
type Report struct {
	CycleID     string                  `json:"cycle_id"`
	Ticker      string                  `json:"ticker"`
	CFDRatio    float64                 `json:"cfd_ratio,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
	Levels      gex.KeyLevels           `json:"levels"`
	Strikes     []gex.StrikeAggregate   `json:"strikes,omitempty"`
	Zones       []darkpool.Zone         `json:"zones"`
	Memory      []memory.Level          `json:"memory"`
	Signals     []accumulation.Signal   `json:"accumulation"`
	ShortVolume *feeds.ShortVolume      `json:"short_volume,omitempty"`
	Rejections  options.Rejections      `json:"rejections,omitempty"`
	Sources     map[string]string       `json:"sources"`
	Degraded    bool                    `json:"degraded"`
}

// Engine wires the data chains, domain logic and persistence together.
type Engine struct {
	chains *sources.Chain[*feeds.ChainSnapshot]
	scans  *sources.Chain[*feeds.ScanSnapshot]
	prints *sources.Chain[*feeds.PrintsSnapshot]
	shorts *sources.Chain[*feeds.ShortVolume]
	store  persistence.Store

	normalizer *options.Normalizer
	gexEngine  *gex.Engine
	aggregator *darkpool.Aggregator
	tracker    *memory.Tracker
	detector   *accumulation.Detector

	registry *metrics.Registry

	mu     sync.RWMutex
	latest map[string]*Report
}

// Chains bundles the four data source fallback chains the engine reads from.
type Chains struct {
	Chain  *sources.Chain[*feeds.ChainSnapshot]
	Scan   *sources.Chain[*feeds.ScanSnapshot]
	Prints *sources.Chain[*feeds.PrintsSnapshot]
	Shorts *sources.Chain[*feeds.ShortVolume]
}

// NewEngine creates an engine with reference domain configuration.
// registry may be nil in tests.
func NewEngine(ch Chains, store persistence.Store, registry *metrics.Registry) *Engine {
	return &Engine{
		chains:     ch.Chain,
		scans:      ch.Scan,
		prints:     ch.Prints,
		shorts:     ch.Shorts,
		store:      store,
		normalizer: options.NewNormalizer(options.DefaultNormalizerConfig()),
		gexEngine:  gex.NewEngine(gex.DefaultConfig()),
		aggregator: darkpool.NewAggregator(darkpool.DefaultConfig()),
		tracker:    memory.NewTracker(memory.DefaultConfig()),
		detector:   accumulation.NewDetector(accumulation.DefaultConfig()),
		registry:   registry,
		latest:     make(map[string]*Report),
	}
}

// RunCycle derives all levels for one ticker. The chain snapshot is
// mandatory; scan, print and short volume data degrade gracefully.
func (e *Engine) RunCycle(ctx context.Context, ticker config.TickerConfig) (*Report, error) {
	now := time.Now().UTC()
	symbol := ticker.Symbol

	var timer *metrics.CycleTimer
	if e.registry != nil {
		timer = e.registry.StartCycle(symbol)
	}

	report, err := e.runCycle(ctx, ticker, now)
	if timer != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		timer.Stop(result)
	}
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.latest[symbol] = report
	e.mu.Unlock()
	return report, nil
}

func (e *Engine) runCycle(ctx context.Context, ticker config.TickerConfig, now time.Time) (*Report, error) {
	symbol := ticker.Symbol
	report := &Report{
		CycleID:     uuid.NewString(),
		Ticker:      symbol,
		CFDRatio:    ticker.CFDRatio,
		GeneratedAt: now,
		Sources:     make(map[string]string),
	}

	// Option chain drives everything else. No chain, no cycle.
	chainOut := e.chains.Resolve(ctx, symbol)
	if chainOut.Status == sources.StatusError {
		return nil, fmt.Errorf("chain data unavailable for %s: %w", symbol, chainOut.Err)
	}
	snap := chainOut.Data
	report.Sources["chain"] = chainOut.Source

	contracts, rejections := e.normalizer.Normalize(snap.Spot, snap.Options, now)
	report.Rejections = rejections
	if e.registry != nil {
		e.registry.RecordRejections(symbol, rejections)
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("no viable contracts for %s after normalization (%d rejected)",
			symbol, rejections.Total())
	}

	rows := e.gexEngine.Aggregate(snap.Spot, contracts)
	report.Levels = e.gexEngine.FindKeyLevels(snap.Spot, rows)
	report.Strikes = rows
	if e.registry != nil {
		e.registry.SetGammaRegime(symbol, report.Levels.Regime == gex.RegimePositive)
	}

	e.deriveZones(ctx, report, snap.Spot, rows)
	e.enrichAndAccumulate(ctx, report, now)
	e.updateMemory(ctx, report, snap.Spot, now)

	// Short volume is a supplemental datum; absence never degrades the cycle.
	if shortOut := e.shorts.Resolve(ctx, symbol); shortOut.Status == sources.StatusOK && shortOut.Data != nil {
		report.ShortVolume = shortOut.Data
		report.Sources["short_volume"] = shortOut.Source
	}

	log.Info().
		Str("ticker", symbol).
		Str("cycle_id", report.CycleID).
		Float64("spot", report.Levels.Spot).
		Str("regime", string(report.Levels.Regime)).
		Int("zones", len(report.Zones)).
		Int("memory_levels", len(report.Memory)).
		Int("accumulation_signals", len(report.Signals)).
		Bool("degraded", report.Degraded).
		Msg("derivation cycle complete")

	return report, nil
}

// deriveZones clusters scan observations, falling back to options-derived
// zones when the scan surface is too thin.
func (e *Engine) deriveZones(ctx context.Context, report *Report, spot float64, rows []gex.StrikeAggregate) {
	scanOut := e.scans.Resolve(ctx, report.Ticker)
	if scanOut.Status != sources.StatusError && scanOut.Data != nil {
		report.Zones = e.aggregator.Aggregate(spot, scanOut.Data.Observations)
		report.Sources["darkpool"] = scanOut.Source
	}

	if !e.aggregator.Sufficient(report.Zones) {
		derived := e.aggregator.DeriveFromStrikes(spot, rows)
		if len(derived) > len(report.Zones) {
			log.Info().Str("ticker", report.Ticker).
				Int("scan_zones", len(report.Zones)).
				Int("derived_zones", len(derived)).
				Msg("scan zones insufficient, using options-derived zones")
			report.Zones = derived
			report.Sources["darkpool"] = "options_derived"
			report.Degraded = true
		}
	}

	if e.registry != nil {
		derived := "false"
		if report.Degraded {
			derived = "true"
		}
		e.registry.DarkPoolZones.WithLabelValues(report.Ticker, derived).Set(float64(len(report.Zones)))
	}
}

// enrichAndAccumulate folds today's prints into the zone side bias and the
// rolling accumulation archive.
func (e *Engine) enrichAndAccumulate(ctx context.Context, report *Report, now time.Time) {
	printsOut := e.prints.Resolve(ctx, report.Ticker)
	var prints []darkpool.Print
	if printsOut.Status == sources.StatusOK && printsOut.Data != nil {
		prints = printsOut.Data.Prints
		report.Sources["prints"] = printsOut.Source
		report.Zones = e.aggregator.Enrich(report.Zones, prints)
	}

	history, err := e.store.LoadHistory(ctx, report.Ticker)
	if err != nil {
		log.Warn().Str("ticker", report.Ticker).Err(err).Msg("print history unavailable, starting empty")
		history = accumulation.History{}
	}

	if len(prints) > 0 {
		todays := make([]accumulation.Print, 0, len(prints))
		for _, p := range prints {
			todays = append(todays, accumulation.Print{Price: p.Price, Shares: p.Size, Side: p.Side})
		}
		history = e.detector.Record(history, now, todays)
		if err := e.store.SaveHistory(ctx, report.Ticker, history); err != nil {
			log.Error().Str("ticker", report.Ticker).Err(err).Msg("failed to persist print history")
		}
	}

	report.Signals = e.detector.Detect(history, now)
	if e.registry != nil {
		e.registry.AccumulationHits.WithLabelValues(report.Ticker).Set(float64(len(report.Signals)))
	}
}

// updateMemory runs the sticky level lifecycle against the fresh zones.
func (e *Engine) updateMemory(ctx context.Context, report *Report, spot float64, now time.Time) {
	existing, err := e.store.LoadLevels(ctx, report.Ticker)
	if err != nil {
		log.Warn().Str("ticker", report.Ticker).Err(err).Msg("sticky levels unavailable, starting empty")
	}

	result := e.tracker.Update(existing, report.Zones, spot, now)
	report.Memory = result.Active

	if err := e.store.SaveLevels(ctx, report.Ticker, result.Active); err != nil {
		log.Error().Str("ticker", report.Ticker).Err(err).Msg("failed to persist sticky levels")
	}

	if result.Hit > 0 || result.Expired > 0 || result.Added > 0 {
		log.Info().Str("ticker", report.Ticker).
			Int("hit", result.Hit).Int("expired", result.Expired).
			Int("added", result.Added).Int("merged", result.Merged).
			Int("active", len(result.Active)).
			Msg("sticky level memory updated")
	}
	if e.registry != nil {
		e.registry.ActiveStickyLevels.WithLabelValues(report.Ticker).Set(float64(len(result.Active)))
	}
}

// RunAll runs a cycle for every enabled ticker. Per-ticker failures are
// logged and do not stop the remaining tickers.
func (e *Engine) RunAll(ctx context.Context, tickers []config.TickerConfig) []*Report {
	reports := make([]*Report, 0, len(tickers))
	for _, t := range tickers {
		report, err := e.RunCycle(ctx, t)
		if err != nil {
			log.Error().Str("ticker", t.Symbol).Err(err).Msg("derivation cycle failed")
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// Latest returns the most recent report for ticker, or nil.
func (e *Engine) Latest(ticker string) *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest[ticker]
}
