package options

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

// symbolRe matches the tail of an OCC-style option symbol:
// six-digit expiry (YYMMDD), C or P, then strike * 1000 as eight digits.
var symbolRe = regexp.MustCompile(`(\d{6})([CP])(\d{8})$`)

// ParseSymbol extracts expiry, type and strike from an option symbol.
func ParseSymbol(symbol string) (time.Time, OptionType, float64, error) {
	m := symbolRe.FindStringSubmatch(symbol)
	if m == nil {
		return time.Time{}, "", 0, fmt.Errorf("unrecognized option symbol %q", symbol)
	}

	expiry, err := time.Parse("060102", m[1])
	if err != nil {
		return time.Time{}, "", 0, fmt.Errorf("bad expiry in symbol %q: %w", symbol, err)
	}

	optType := Put
	if m[2] == "C" {
		optType = Call
	}

	var strikeMils int64
	for _, c := range m[3] {
		strikeMils = strikeMils*10 + int64(c-'0')
	}
	return expiry, optType, float64(strikeMils) / 1000.0, nil
}

// NormalizerConfig bounds which contracts are commercially relevant.
type NormalizerConfig struct {
	// StrikeRangePct drops strikes further than this fraction from spot.
	StrikeRangePct float64 `yaml:"strike_range_pct"`
	// DefaultIV substitutes for missing implied vol when the contract still
	// has a bid or ask quote. A heuristic, not an estimate.
	DefaultIV float64 `yaml:"default_iv"`
}

// DefaultNormalizerConfig returns the reference filter bounds.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		StrikeRangePct: 0.20,
		DefaultIV:      0.20,
	}
}

// Normalizer turns raw feed records into typed contracts.
type Normalizer struct {
	cfg NormalizerConfig
}

// NewNormalizer creates a normalizer with the given bounds.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize filters and types a raw option chain against the current spot.
// It is a pure transform: malformed records are skipped and counted, never
// fatal. An empty result is a valid outcome the caller must handle.
func (n *Normalizer) Normalize(spot float64, raws []RawOption, now time.Time) ([]Contract, Rejections) {
	contracts := make([]Contract, 0, len(raws))
	rejected := Rejections{}

	for _, raw := range raws {
		if raw.Symbol == "" {
			rejected[RejectNoSymbol]++
			continue
		}
		expiry, optType, strike, err := ParseSymbol(raw.Symbol)
		if err != nil {
			rejected[RejectNoSymbol]++
			continue
		}
		if strike <= 0 {
			rejected[RejectNoStrike]++
			continue
		}
		if spot > 0 && abs(strike-spot)/spot > n.cfg.StrikeRangePct {
			rejected[RejectOutOfRange]++
			continue
		}

		// Floor so a contract past its expiry midnight lands at -1, not 0.
		dte := int(math.Floor(expiry.Sub(now).Hours() / 24))
		if dte < 0 {
			rejected[RejectExpired]++
			continue
		}

		iv := raw.IV
		if iv <= 0 {
			if raw.Bid <= 0 && raw.Ask <= 0 {
				rejected[RejectNoIV]++
				continue
			}
			iv = n.cfg.DefaultIV
		}

		contracts = append(contracts, Contract{
			Strike:       strike,
			Type:         optType,
			Expiry:       expiry,
			DTE:          dte,
			YearsToExp:   max(float64(dte)/365.0, 1.0/365.0),
			OpenInterest: int(raw.OpenInterest),
			Volume:       int(raw.Volume),
			IV:           iv,
			Gamma:        raw.Gamma,
			Bid:          raw.Bid,
			Ask:          raw.Ask,
		})
	}

	return contracts, rejected
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
