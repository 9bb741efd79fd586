package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics for the level engine.
type Registry struct {
	// Cycle metrics
	CycleDuration *prometheus.HistogramVec
	CyclesTotal   *prometheus.CounterVec

	// Source chain metrics
	SourceResolutions *prometheus.CounterVec
	FallbackDepth     *prometheus.HistogramVec

	// Chain normalization metrics
	ContractsRejected *prometheus.CounterVec

	// Level metrics
	ActiveStickyLevels *prometheus.GaugeVec
	DarkPoolZones      *prometheus.GaugeVec
	AccumulationHits   *prometheus.GaugeVec
	GammaRegime        *prometheus.GaugeVec
}

// NewRegistry creates and registers all metrics.
func NewRegistry() *Registry {
	r := &Registry{
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "levelcast_cycle_duration_seconds",
				Help:    "Duration of a full level derivation cycle per ticker",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"ticker", "result"},
		),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelcast_cycles_total",
				Help: "Total number of derivation cycles by ticker and result",
			},
			[]string{"ticker", "result"},
		),

		SourceResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelcast_source_resolutions_total",
				Help: "Which source satisfied each data request",
			},
			[]string{"kind", "source"},
		),

		FallbackDepth: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "levelcast_fallback_depth",
				Help:    "How far down the fallback chain a request traveled",
				Buckets: []float64{0, 1, 2, 3, 4},
			},
			[]string{"kind"},
		),

		ContractsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelcast_contracts_rejected_total",
				Help: "Option contracts dropped during normalization by reason",
			},
			[]string{"ticker", "reason"},
		),

		ActiveStickyLevels: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levelcast_sticky_levels_active",
				Help: "Number of active sticky levels in memory per ticker",
			},
			[]string{"ticker"},
		),

		DarkPoolZones: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levelcast_darkpool_zones",
				Help: "Dark pool zones emitted in the latest cycle per ticker",
			},
			[]string{"ticker", "derived"},
		),

		AccumulationHits: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levelcast_accumulation_signals",
				Help: "Accumulation signals detected in the latest cycle per ticker",
			},
			[]string{"ticker"},
		),

		GammaRegime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "levelcast_gamma_regime",
				Help: "Current gamma regime per ticker (1=positive, -1=negative)",
			},
			[]string{"ticker"},
		),
	}

	prometheus.MustRegister(
		r.CycleDuration,
		r.CyclesTotal,
		r.SourceResolutions,
		r.FallbackDepth,
		r.ContractsRejected,
		r.ActiveStickyLevels,
		r.DarkPoolZones,
		r.AccumulationHits,
		r.GammaRegime,
	)

	return r
}

// CycleTimer tracks execution time of one derivation cycle.
type CycleTimer struct {
	registry *Registry
	ticker   string
	start    time.Time
}

// StartCycle begins timing a derivation cycle for one ticker.
func (r *Registry) StartCycle(ticker string) *CycleTimer {
	return &CycleTimer{registry: r, ticker: ticker, start: time.Now()}
}

// Stop completes the cycle timing and records the result.
func (ct *CycleTimer) Stop(result string) {
	duration := time.Since(ct.start)
	ct.registry.CycleDuration.WithLabelValues(ct.ticker, result).Observe(duration.Seconds())
	ct.registry.CyclesTotal.WithLabelValues(ct.ticker, result).Inc()

	log.Debug().
		Str("ticker", ct.ticker).
		Str("result", result).
		Dur("duration", duration).
		Msg("Derivation cycle completed")
}

// RecordRejections records normalization drop counters for one ticker.
func (r *Registry) RecordRejections(ticker string, reasons map[string]int) {
	for reason, n := range reasons {
		r.ContractsRejected.WithLabelValues(ticker, reason).Add(float64(n))
	}
}

// SetGammaRegime updates the regime gauge for one ticker.
func (r *Registry) SetGammaRegime(ticker string, positive bool) {
	v := -1.0
	if positive {
		v = 1.0
	}
	r.GammaRegime.WithLabelValues(ticker).Set(v)
}

// Default is the process-wide registry instance.
var Default *Registry

// Initialize sets up the process-wide registry.
func Initialize() {
	Default = NewRegistry()
	log.Info().Msg("Prometheus metrics registry initialized")
}

// SourceResolved records which source satisfied a request and at what depth.
func SourceResolved(kind, source string, depth int) {
	if Default == nil {
		return
	}
	Default.SourceResolutions.WithLabelValues(kind, source).Inc()
	Default.FallbackDepth.WithLabelValues(kind).Observe(float64(depth))
}
