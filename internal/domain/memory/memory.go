package memory

import (
	"math"
	"sort"
	"time"

	"github.com/Bullnettraders/levelcast/internal/domain/darkpool"
)

// Level is a remembered dark-pool zone that stays published until price
// trades through it or it ages out. Noisy daily scans come and go; a level
// backed by a genuinely large print should not vanish just because today's
// scan missed it.
type Level struct {
	Price     float64       `json:"price"`
	Volume    int64         `json:"volume"` // max volume observed across sightings
	Trades    int           `json:"trades"`
	Kind      darkpool.Kind `json:"kind"`
	Added     time.Time     `json:"added"`
	LastSeen  time.Time     `json:"last_seen"`
	SeenCount int           `json:"seen_count"`
}

// Config bounds the level lifecycle.
type Config struct {
	// HitTolerance is how close price must come, as a fraction of itself,
	// to count a level as traded through.
	HitTolerance float64 `yaml:"hit_tolerance"`
	// MaxAgeDays expires a level that was never hit.
	MaxAgeDays int `yaml:"max_age_days"`
	// MinVolume keeps small prints out of memory entirely.
	MinVolume int64 `yaml:"min_volume"`
	// MaxNewPerCycle caps fresh inserts per update.
	MaxNewPerCycle int `yaml:"max_new_per_cycle"`
	// MaxLevels caps retained levels per ticker, highest volume first.
	MaxLevels int `yaml:"max_levels"`
}

// DefaultConfig returns the reference lifecycle bounds.
func DefaultConfig() Config {
	return Config{
		HitTolerance:   0.0015,
		MaxAgeDays:     14,
		MinVolume:      250000,
		MaxNewPerCycle: 3,
		MaxLevels:      20,
	}
}

// UpdateResult reports what one update cycle did.
type UpdateResult struct {
	Active  []Level
	Hit     int
	Expired int
	Added   int
	Merged  int
}

// Tracker applies update cycles to a ticker's level set. It is pure over its
// inputs; persistence is the caller's concern.
type Tracker struct {
	cfg Config
}

// NewTracker creates a tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.MaxLevels <= 0 {
		cfg.MaxLevels = DefaultConfig().MaxLevels
	}
	return &Tracker{cfg: cfg}
}

// Update ages and hit-checks existing levels, then folds in today's zones.
// Two levels are the same when their prices match at 2-decimal rounding; a
// re-sighting keeps the max volume and bumps the repeat counter instead of
// duplicating. The returned active set is volume-sorted and capped.
func (t *Tracker) Update(existing []Level, zones []darkpool.Zone, currentPrice float64, now time.Time) UpdateResult {
	res := UpdateResult{}

	active := make([]Level, 0, len(existing))
	for _, lvl := range existing {
		age := int(now.Sub(lvl.Added).Hours() / 24)
		if age > t.cfg.MaxAgeDays {
			res.Expired++
			continue
		}
		if currentPrice > 0 {
			if math.Abs(currentPrice-lvl.Price)/currentPrice < t.cfg.HitTolerance {
				res.Hit++
				continue
			}
		}
		active = append(active, lvl)
	}

	// Biggest prints first so the per-cycle budget goes to what matters.
	candidates := make([]darkpool.Zone, len(zones))
	copy(candidates, zones)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Volume > candidates[j].Volume })

	for _, zone := range candidates {
		if zone.Volume < t.cfg.MinVolume {
			continue
		}
		key := roundKey(zone.Price)

		if idx := findLevel(active, key); idx >= 0 {
			if zone.Volume > active[idx].Volume {
				active[idx].Volume = zone.Volume
			}
			active[idx].SeenCount++
			active[idx].LastSeen = now
			res.Merged++
			continue
		}

		if res.Added >= t.cfg.MaxNewPerCycle {
			continue
		}
		active = append(active, Level{
			Price:     zone.Price,
			Volume:    zone.Volume,
			Trades:    zone.Trades,
			Kind:      zone.Kind,
			Added:     now,
			LastSeen:  now,
			SeenCount: 1,
		})
		res.Added++
	}

	sort.Slice(active, func(i, j int) bool { return active[i].Volume > active[j].Volume })
	if len(active) > t.cfg.MaxLevels {
		active = active[:t.cfg.MaxLevels]
	}

	res.Active = active
	return res
}

// Filter returns the levels price has not yet reached.
func (t *Tracker) Filter(levels []Level, currentPrice float64) []Level {
	if currentPrice <= 0 {
		return levels
	}
	out := make([]Level, 0, len(levels))
	for _, lvl := range levels {
		if math.Abs(currentPrice-lvl.Price)/currentPrice >= t.cfg.HitTolerance {
			out = append(out, lvl)
		}
	}
	return out
}

// TopZones returns the n highest-volume unvisited levels re-sorted by price
// ascending, the ordering the chart feed wants.
func (t *Tracker) TopZones(levels []Level, n int, currentPrice float64) []Level {
	active := t.Filter(levels, currentPrice)
	sort.Slice(active, func(i, j int) bool { return active[i].Volume > active[j].Volume })
	if len(active) > n {
		active = active[:n]
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Price < active[j].Price })
	return active
}

func roundKey(price float64) float64 {
	return math.Round(price*100) / 100
}

func findLevel(levels []Level, key float64) int {
	for i := range levels {
		if roundKey(levels[i].Price) == key {
			return i
		}
	}
	return -1
}
