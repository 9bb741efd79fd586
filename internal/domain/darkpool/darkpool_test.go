package darkpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bullnettraders/levelcast/internal/domain/gex"
)

func TestAggregate_SanityBound(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	zones := agg.Aggregate(460, []Observation{
		{Price: 459.50, Volume: 1000, Trades: 5},
		{Price: 600.00, Volume: 9999, Trades: 50}, // >20% from spot
		{Price: 0, Volume: 100},
	})
	require.Len(t, zones, 1)
	assert.InDelta(t, 459.50, zones[0].Price, 1e-9)
}

func TestAggregate_GapBeyondToleranceDoesNotMerge(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	// 0.67% apart: well beyond the 0.15% tolerance, two zones.
	zones := agg.Aggregate(460, []Observation{
		{Price: 459.27, Volume: 500, Trades: 10},
		{Price: 462.35, Volume: 300, Trades: 8},
	})
	require.Len(t, zones, 2)
	assert.InDelta(t, 459.27, zones[0].Price, 1e-9)
	assert.InDelta(t, 462.35, zones[1].Price, 1e-9)
}

func TestAggregate_GapWithinToleranceMerges(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	// 459.27 vs 459.94 is ~0.146% of the centroid: inside tolerance.
	zones := agg.Aggregate(460, []Observation{
		{Price: 459.27, Volume: 500, Trades: 10},
		{Price: 459.94, Volume: 300, Trades: 8},
	})
	require.Len(t, zones, 1)
	assert.Equal(t, int64(800), zones[0].Volume)
}

func TestAggregate_WeightedCentroid(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	zones := agg.Aggregate(600, []Observation{
		{Price: 600.00, Volume: 3000, Trades: 10},
		{Price: 600.50, Volume: 1000, Trades: 2}, // within 0.15% of centroid
	})
	require.Len(t, zones, 1)
	want := (600.00*3000 + 600.50*1000) / 4000
	assert.InDelta(t, want, zones[0].Price, 1e-9)
	assert.Equal(t, int64(4000), zones[0].Volume)
	assert.Equal(t, 12, zones[0].Trades)
	assert.Equal(t, 2, zones[0].Members)
}

func TestAggregate_ClusteringIdempotent(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	obs := []Observation{
		{Price: 598.10, Volume: 2000, Trades: 4},
		{Price: 598.30, Volume: 500, Trades: 1},
		{Price: 601.00, Volume: 4000, Trades: 9},
		{Price: 605.70, Volume: 800, Trades: 2},
	}
	first := agg.Aggregate(600, obs)

	back := make([]Observation, len(first))
	for i, z := range first {
		back[i] = Observation{Price: z.Price, Volume: z.Volume, Trades: z.Trades}
	}
	second := agg.Aggregate(600, back)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.InDelta(t, first[i].Price, second[i].Price, 1e-9)
		assert.Equal(t, first[i].Volume, second[i].Volume)
	}
}

func TestAggregate_Classification(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockVolume = 50000
	agg := NewAggregator(cfg)

	zones := agg.Aggregate(600, []Observation{
		{Price: 590, Volume: 1000, Trades: 1},   // >0.5% below: support
		{Price: 610, Volume: 1000, Trades: 1},   // >0.5% above: resistance
		{Price: 600.5, Volume: 1000, Trades: 1}, // inside band: high volume
		{Price: 620, Volume: 90000, Trades: 40}, // block trade overrides
	})
	require.Len(t, zones, 4)
	assert.Equal(t, KindSupport, zones[0].Kind)
	assert.Equal(t, KindHighVolume, zones[1].Kind)
	assert.Equal(t, KindResistance, zones[2].Kind)
	assert.Equal(t, KindBlockTrade, zones[3].Kind)
}

func TestAggregate_TopZonesByVolumeSortedByPrice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopZones = 2
	agg := NewAggregator(cfg)

	zones := agg.Aggregate(600, []Observation{
		{Price: 595, Volume: 100, Trades: 1},
		{Price: 600, Volume: 5000, Trades: 1},
		{Price: 605, Volume: 3000, Trades: 1},
	})
	require.Len(t, zones, 2)
	// The low-volume 595 zone is cut; survivors come back price-ascending.
	assert.InDelta(t, 600.0, zones[0].Price, 1e-9)
	assert.InDelta(t, 605.0, zones[1].Price, 1e-9)
}

func TestEnrich_BiasTagging(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	zones := []Zone{
		{Price: 600.00, Volume: 1000, Kind: KindHighVolume},
		{Price: 650.00, Volume: 500, Kind: KindResistance},
	}
	prints := []Print{
		{Price: 600.10, Size: 60000, Side: "Bid"},
		{Price: 599.95, Size: 20000, Side: "Ask"},
	}

	out := agg.Enrich(zones, prints)
	assert.Equal(t, SideBuy, out[0].Side)
	// No prints near 650: stays unenriched.
	assert.Empty(t, out[1].Side)
}

func TestEnrich_NeutralWhenBalanced(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	out := agg.Enrich(
		[]Zone{{Price: 600, Volume: 100}},
		[]Print{
			{Price: 600, Size: 10000, Side: "Bid"},
			{Price: 600, Size: 10500, Side: "Ask"}, // within 20% of each other
		},
	)
	assert.Equal(t, SideNeutral, out[0].Side)
}

func TestEnrich_NoPrintsLeavesZonesUntouched(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	zones := []Zone{{Price: 600, Volume: 100}}
	out := agg.Enrich(zones, nil)
	assert.Equal(t, zones, out)
}

func TestSufficient(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	assert.False(t, agg.Sufficient([]Zone{{}, {}}))
	assert.True(t, agg.Sufficient([]Zone{{}, {}, {}}))
}

func TestDeriveFromStrikes(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	rows := []gex.StrikeAggregate{
		{Strike: 595, TotalVolume: 100, TotalOI: 1000},
		{Strike: 600, TotalVolume: 8000, TotalOI: 4000},
		{Strike: 610, TotalVolume: 2000, TotalOI: 3000},
		{Strike: 700, TotalVolume: 99999, TotalOI: 99999}, // >5% from spot
	}
	zones := agg.DeriveFromStrikes(600, rows)

	require.Len(t, zones, 3)
	for _, z := range zones {
		assert.True(t, z.Derived)
	}
	// Highest-volume strike gets the block-trade tag via the 90th percentile.
	assert.Equal(t, KindBlockTrade, zones[1].Kind)
	assert.Equal(t, KindSupport, zones[0].Kind)
	assert.Equal(t, KindResistance, zones[2].Kind)
}

func TestDeriveFromStrikes_BlockThresholdSpansAllCandidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopZones = 2
	agg := NewAggregator(cfg)

	// Ten thin strikes drag the 90th percentile well below the two heavy
	// ones, so both survivors carry the block tag. A percentile taken after
	// the cut would only tag the heavier of the two.
	rows := make([]gex.StrikeAggregate, 0, 12)
	for i := 0; i < 10; i++ {
		rows = append(rows, gex.StrikeAggregate{Strike: 590 + float64(i), TotalVolume: 10})
	}
	rows = append(rows,
		gex.StrikeAggregate{Strike: 598, TotalVolume: 500},
		gex.StrikeAggregate{Strike: 602, TotalVolume: 600},
	)

	zones := agg.DeriveFromStrikes(600, rows)
	require.Len(t, zones, 2)
	assert.Equal(t, KindBlockTrade, zones[0].Kind)
	assert.Equal(t, KindBlockTrade, zones[1].Kind)
}

func TestDeriveFromStrikes_Empty(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	assert.Nil(t, agg.DeriveFromStrikes(600, nil))
}
