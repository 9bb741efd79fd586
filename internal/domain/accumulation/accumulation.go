package accumulation

import (
	"math"
	"sort"
	"time"
)

// DayKey formats a timestamp as the archive's day key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Print is one archived trade from a day's scan.
type Print struct {
	Price  float64 `json:"price"`
	Shares int64   `json:"shares"`
	Side   string  `json:"side"` // "Bid", "Ask" or "?"
}

// History is a day-keyed archive of a ticker's top prints.
type History map[string][]Print

// Bias is the directional read on a cluster. Deliberately binary: near-equal
// bid/ask volume still resolves to one side.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
)

// Signal is a price zone with sustained multi-day volume.
type Signal struct {
	Price       float64 `json:"price"`
	DaysActive  int     `json:"days_active"`
	TotalVolume int64   `json:"total_volume"`
	BidVolume   int64   `json:"bid_volume"`
	AskVolume   int64   `json:"ask_volume"`
	Trades      int     `json:"trades"`
	Bias        Bias    `json:"bias"`
	Strength    float64 `json:"strength"`
}

// Config bounds archiving and detection.
type Config struct {
	// ClusterTolerancePct grows a cluster while a trade's price stays within
	// this fraction of the running volume-weighted reference price.
	ClusterTolerancePct float64 `yaml:"cluster_tolerance_pct"`
	// MinDays and MinVolume define accumulation versus one-off prints.
	MinDays   int   `yaml:"min_days"`
	MinVolume int64 `yaml:"min_volume"`
	// WindowDays is the rolling archive span.
	WindowDays int `yaml:"window_days"`
	// MaxPrintsPerDay caps what one day's scan contributes to the archive.
	MaxPrintsPerDay int `yaml:"max_prints_per_day"`
	// TopSignals caps the report.
	TopSignals int `yaml:"top_signals"`
}

// DefaultConfig returns the reference detection bounds.
func DefaultConfig() Config {
	return Config{
		ClusterTolerancePct: 0.003,
		MinDays:             2,
		MinVolume:           100000,
		WindowDays:          7,
		MaxPrintsPerDay:     20,
		TopSignals:          5,
	}
}

// Detector archives daily prints and flags multi-day accumulation zones.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector.
func NewDetector(cfg Config) *Detector {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultConfig().WindowDays
	}
	return &Detector{cfg: cfg}
}

// Record stores a day's top prints into the history and prunes entries older
// than the rolling window. It returns the updated history; the input map is
// modified in place when non-nil.
func (d *Detector) Record(history History, day time.Time, prints []Print) History {
	if history == nil {
		history = History{}
	}
	if len(prints) > 0 {
		kept := prints
		if d.cfg.MaxPrintsPerDay > 0 && len(kept) > d.cfg.MaxPrintsPerDay {
			sorted := make([]Print, len(kept))
			copy(sorted, kept)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Shares > sorted[j].Shares })
			kept = sorted[:d.cfg.MaxPrintsPerDay]
		}
		history[DayKey(day)] = kept
	}

	cutoff := DayKey(day.AddDate(0, 0, -d.cfg.WindowDays))
	for k := range history {
		if k < cutoff {
			delete(history, k)
		}
	}
	return history
}

type datedPrint struct {
	Print
	day string
}

type cluster struct {
	ref      float64
	weighted float64
	shares   int64
	trades   []datedPrint
}

func (c *cluster) add(p datedPrint) {
	c.trades = append(c.trades, p)
	c.shares += p.Shares
	c.weighted += p.Price * float64(p.Shares)
	if c.shares > 0 {
		c.ref = c.weighted / float64(c.shares)
	}
}

// Detect pools the retained window, clusters trades by price and returns the
// strongest multi-day zones. Clusters active on fewer than MinDays distinct
// days never appear, regardless of volume.
func (d *Detector) Detect(history History, now time.Time) []Signal {
	if len(history) == 0 {
		return nil
	}
	cutoff := DayKey(now.AddDate(0, 0, -d.cfg.WindowDays))

	var all []datedPrint
	for day, prints := range history {
		if day < cutoff {
			continue
		}
		for _, p := range prints {
			all = append(all, datedPrint{Print: p, day: day})
		}
	}
	if len(all) == 0 {
		return nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Price < all[j].Price })

	var clusters []*cluster
	for _, tr := range all {
		placed := false
		for _, c := range clusters {
			if math.Abs(tr.Price-c.ref)/c.ref <= d.cfg.ClusterTolerancePct {
				c.add(tr)
				placed = true
				break
			}
		}
		if !placed {
			c := &cluster{ref: tr.Price}
			c.add(tr)
			clusters = append(clusters, c)
		}
	}

	signals := make([]Signal, 0, len(clusters))
	for _, c := range clusters {
		days := map[string]struct{}{}
		var bidVol, askVol int64
		for _, tr := range c.trades {
			days[tr.day] = struct{}{}
			switch tr.Side {
			case "Bid", "bid":
				bidVol += tr.Shares
			case "Ask", "ask":
				askVol += tr.Shares
			}
		}
		if len(days) < d.cfg.MinDays || c.shares < d.cfg.MinVolume {
			continue
		}

		bias := BiasBearish
		if bidVol > askVol {
			bias = BiasBullish
		}

		signals = append(signals, Signal{
			Price:       math.Round(c.ref*100) / 100,
			DaysActive:  len(days),
			TotalVolume: c.shares,
			BidVolume:   bidVol,
			AskVolume:   askVol,
			Trades:      len(c.trades),
			Bias:        bias,
			Strength:    float64(len(days)) * (float64(c.shares) / 100000.0),
		})
	}

	sort.Slice(signals, func(i, j int) bool { return signals[i].Strength > signals[j].Strength })
	if len(signals) > d.cfg.TopSignals {
		signals = signals[:d.cfg.TopSignals]
	}
	return signals
}
