package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbol(t *testing.T) {
	expiry, optType, strike, err := ParseSymbol("QQQ260116C00600000")
	require.NoError(t, err)
	assert.Equal(t, Call, optType)
	assert.Equal(t, 600.0, strike)
	assert.Equal(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), expiry)

	_, optType, strike, err = ParseSymbol("QQQ260116P00587500")
	require.NoError(t, err)
	assert.Equal(t, Put, optType)
	assert.Equal(t, 587.5, strike)

	_, _, _, err = ParseSymbol("not-an-option")
	assert.Error(t, err)
}

func TestNormalize_Filters(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	norm := NewNormalizer(DefaultNormalizerConfig())

	raws := []RawOption{
		{Symbol: "QQQ260116C00600000", OpenInterest: 1000, Volume: 50, IV: 0.25},
		{Symbol: ""},                        // no symbol
		{Symbol: "garbage"},                 // unparseable
		{Symbol: "QQQ260116C00900000", IV: 0.3}, // 50% above spot
		{Symbol: "QQQ250102P00600000", IV: 0.3}, // already expired
		{Symbol: "QQQ260116P00595000"},          // no IV, no quotes
		{Symbol: "QQQ260116P00590000", Bid: 1.2, Ask: 1.4}, // no IV but has quotes
	}

	contracts, rejected := norm.Normalize(600.0, raws, now)

	require.Len(t, contracts, 2)
	assert.Equal(t, 2, rejected[RejectNoSymbol])
	assert.Equal(t, 1, rejected[RejectOutOfRange])
	assert.Equal(t, 1, rejected[RejectExpired])
	assert.Equal(t, 1, rejected[RejectNoIV])
	assert.Equal(t, 5, rejected.Total())

	// Quoted contract without IV gets the documented default, not a reject.
	assert.Equal(t, 0.20, contracts[1].IV)
	assert.Equal(t, Put, contracts[1].Type)
}

func TestNormalize_TimeToExpiryFloor(t *testing.T) {
	now := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	norm := NewNormalizer(DefaultNormalizerConfig())

	// Expires today: DTE 0, T floored to one day.
	contracts, rejected := norm.Normalize(600.0, []RawOption{
		{Symbol: "QQQ260116C00600000", IV: 0.2},
	}, now)
	require.Len(t, contracts, 1)
	assert.Zero(t, rejected.Total())
	assert.Equal(t, 0, contracts[0].DTE)
	assert.InDelta(t, 1.0/365.0, contracts[0].YearsToExp, 1e-12)
}

func TestNormalize_RejectsContractExpiredEarlierToday(t *testing.T) {
	// Hours past expiry midnight floor to DTE -1 rather than truncating to 0.
	now := time.Date(2026, 1, 16, 15, 30, 0, 0, time.UTC)
	norm := NewNormalizer(DefaultNormalizerConfig())

	contracts, rejected := norm.Normalize(600.0, []RawOption{
		{Symbol: "QQQ260116C00600000", IV: 0.2},
	}, now)
	assert.Empty(t, contracts)
	assert.Equal(t, 1, rejected[RejectExpired])
}

func TestNormalize_EmptyChainIsViable(t *testing.T) {
	norm := NewNormalizer(DefaultNormalizerConfig())
	contracts, rejected := norm.Normalize(600.0, nil, time.Now())
	assert.Empty(t, contracts)
	assert.Zero(t, rejected.Total())
}
