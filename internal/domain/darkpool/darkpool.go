package darkpool

import (
	"math"
	"sort"
	"strings"

	"github.com/Bullnettraders/levelcast/internal/domain/gex"
)

// Observation is one raw aggregated data point from a scan source.
type Observation struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	Trades int     `json:"trades"`
}

// Print is a single off-exchange trade with its labeled side.
type Print struct {
	Price  float64 `json:"price"`
	Size   int64   `json:"size"`
	Side   string  `json:"side"` // "Bid", "Ask" or vendor-specific
	Time   string  `json:"time,omitempty"`
	Venue  string  `json:"venue,omitempty"`
	Dollar float64 `json:"dollar_volume,omitempty"`
}

// Kind classifies a zone relative to spot.
type Kind string

const (
	KindSupport    Kind = "support"
	KindResistance Kind = "resistance"
	KindHighVolume Kind = "high_volume"
	KindBlockTrade Kind = "block_trade"
)

// Side is the optional buy/sell bias from print enrichment.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideNeutral Side = "neutral"
)

// Zone is a clustered price level. Price is the volume-weighted centroid of
// the merged observations.
type Zone struct {
	Price   float64 `json:"price"`
	Volume  int64   `json:"volume"`
	Trades  int     `json:"trades"`
	Members int     `json:"members"`
	Kind    Kind    `json:"kind"`
	Side    Side    `json:"side,omitempty"`
	// Derived marks zones synthesized from options flow when the scan
	// sources came up short. A weaker, lower-confidence signal.
	Derived bool `json:"derived,omitempty"`
}

// Config bounds the aggregation pipeline.
type Config struct {
	// SanityBoundPct discards observations this far from spot.
	SanityBoundPct float64 `yaml:"sanity_bound_pct"`
	// ClusterTolerancePct grows a cluster while the next price stays within
	// this fraction of the running volume-weighted centroid. Centroids drift
	// as they absorb volume; that is intentional versus fixed-width bins.
	ClusterTolerancePct float64 `yaml:"cluster_tolerance_pct"`
	// BandPct separates support/resistance from the at-spot band.
	BandPct float64 `yaml:"band_pct"`
	// BlockVolume re-tags any zone above this volume as a block trade.
	BlockVolume int64 `yaml:"block_volume"`
	// TopZones caps the published zone count.
	TopZones int `yaml:"top_zones"`
	// MinZones is the floor under which the caller should fall back to
	// options-derived pseudo-zones.
	MinZones int `yaml:"min_zones"`
	// EnrichImbalance is the fractional one-sided excess required before a
	// zone is tagged buy or sell.
	EnrichImbalance float64 `yaml:"enrich_imbalance"`
}

// DefaultConfig returns the reference aggregation bounds.
func DefaultConfig() Config {
	return Config{
		SanityBoundPct:      0.20,
		ClusterTolerancePct: 0.0015,
		BandPct:             0.005,
		BlockVolume:         50000,
		TopZones:            8,
		MinZones:            3,
		EnrichImbalance:     0.20,
	}
}

// Aggregator clusters raw observations into classified zones.
type Aggregator struct {
	cfg Config
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg Config) *Aggregator {
	if cfg.TopZones <= 0 {
		cfg.TopZones = DefaultConfig().TopZones
	}
	return &Aggregator{cfg: cfg}
}

// Config returns the aggregator's bounds.
func (a *Aggregator) Config() Config { return a.cfg }

type cluster struct {
	centroid float64
	volume   int64
	trades   int
	members  int
	weighted float64 // sum(price*volume) for the centroid
}

func (c *cluster) add(o Observation) {
	c.volume += o.Volume
	c.trades += o.Trades
	c.members++
	c.weighted += o.Price * float64(o.Volume)
	if c.volume > 0 {
		c.centroid = c.weighted / float64(c.volume)
	} else {
		c.centroid = o.Price
	}
}

// Aggregate filters, clusters and classifies observations against spot,
// returning at most TopZones zones sorted by price ascending.
func (a *Aggregator) Aggregate(spot float64, obs []Observation) []Zone {
	filtered := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.Price <= 0 || o.Volume <= 0 {
			continue
		}
		if spot > 0 && math.Abs(o.Price-spot)/spot > a.cfg.SanityBoundPct {
			continue
		}
		filtered = append(filtered, o)
	}
	if len(filtered) == 0 {
		return nil
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Price < filtered[j].Price })

	var clusters []*cluster
	var cur *cluster
	for _, o := range filtered {
		if cur != nil && math.Abs(o.Price-cur.centroid)/cur.centroid <= a.cfg.ClusterTolerancePct {
			cur.add(o)
			continue
		}
		cur = &cluster{}
		cur.add(o)
		clusters = append(clusters, cur)
	}

	zones := make([]Zone, 0, len(clusters))
	for _, c := range clusters {
		zones = append(zones, Zone{
			Price:   c.centroid,
			Volume:  c.volume,
			Trades:  c.trades,
			Members: c.members,
			Kind:    a.classify(spot, c.centroid, c.volume),
		})
	}

	// Top K by volume, re-sorted by price for presentation.
	sort.Slice(zones, func(i, j int) bool { return zones[i].Volume > zones[j].Volume })
	if len(zones) > a.cfg.TopZones {
		zones = zones[:a.cfg.TopZones]
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Price < zones[j].Price })
	return zones
}

func (a *Aggregator) classify(spot, price float64, volume int64) Kind {
	kind := KindHighVolume
	if spot > 0 {
		switch {
		case price > spot*(1+a.cfg.BandPct):
			kind = KindResistance
		case price < spot*(1-a.cfg.BandPct):
			kind = KindSupport
		}
	}
	// Block-trade status overrides the directional tag.
	if a.cfg.BlockVolume > 0 && volume > a.cfg.BlockVolume {
		kind = KindBlockTrade
	}
	return kind
}

// Enrich tags zones with a buy/sell bias from individual prints. Prints within
// the cluster tolerance of a zone's price contribute their labeled side; a
// one-sided excess beyond EnrichImbalance decides the tag. Zones stay
// untagged when no prints land near them.
func (a *Aggregator) Enrich(zones []Zone, prints []Print) []Zone {
	if len(prints) == 0 {
		return zones
	}
	out := make([]Zone, len(zones))
	copy(out, zones)

	for i := range out {
		var bidVol, askVol int64
		for _, p := range prints {
			if out[i].Price <= 0 || math.Abs(p.Price-out[i].Price)/out[i].Price > a.cfg.ClusterTolerancePct {
				continue
			}
			switch {
			case strings.EqualFold(p.Side, "bid"):
				bidVol += p.Size
			case strings.EqualFold(p.Side, "ask"):
				askVol += p.Size
			}
		}
		if bidVol == 0 && askVol == 0 {
			continue
		}
		switch {
		case float64(bidVol) > float64(askVol)*(1+a.cfg.EnrichImbalance):
			out[i].Side = SideBuy
		case float64(askVol) > float64(bidVol)*(1+a.cfg.EnrichImbalance):
			out[i].Side = SideSell
		default:
			out[i].Side = SideNeutral
		}
	}
	return out
}

// Sufficient reports whether the aggregation produced enough zones to stand
// on its own; below this the caller should use DeriveFromStrikes.
func (a *Aggregator) Sufficient(zones []Zone) bool {
	return len(zones) >= a.cfg.MinZones
}

// DeriveFromStrikes synthesizes pseudo-zones from options open interest and
// volume near spot. An explicitly lower-confidence fallback for scan outages,
// not equivalent data.
func (a *Aggregator) DeriveFromStrikes(spot float64, rows []gex.StrikeAggregate) []Zone {
	if len(rows) == 0 || spot <= 0 {
		return nil
	}

	type scored struct {
		row   gex.StrikeAggregate
		score float64
	}

	near := make([]scored, 0, len(rows))
	for _, row := range rows {
		if math.Abs(row.Strike-spot)/spot <= 0.05 {
			near = append(near, scored{row, float64(row.TotalVolume)*2 + float64(row.TotalOI)})
		}
	}
	if len(near) == 0 {
		for _, row := range rows {
			near = append(near, scored{row, float64(row.TotalVolume)*2 + float64(row.TotalOI)})
		}
	}

	// Volume threshold for the block-trade re-tag: 90th percentile across
	// every in-range strike, not just the ones that survive the cut.
	vols := make([]float64, len(near))
	for i, s := range near {
		vols[i] = float64(s.row.TotalVolume)
	}
	blockAt := percentile90(vols)

	sort.Slice(near, func(i, j int) bool { return near[i].score > near[j].score })
	if len(near) > a.cfg.TopZones {
		near = near[:a.cfg.TopZones]
	}

	zones := make([]Zone, 0, len(near))
	for _, s := range near {
		kind := a.classify(spot, s.row.Strike, 0)
		if float64(s.row.TotalVolume) > blockAt {
			kind = KindBlockTrade
		}
		zones = append(zones, Zone{
			Price:   s.row.Strike,
			Volume:  int64(s.row.TotalVolume),
			Members: 1,
			Kind:    kind,
			Derived: true,
		})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Price < zones[j].Price })
	return zones
}

// percentile90 uses linear interpolation between order statistics.
func percentile90(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	pos := 0.9 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
