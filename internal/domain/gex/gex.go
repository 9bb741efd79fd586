package gex

import (
	"math"
	"sort"
	"time"

	"github.com/Bullnettraders/levelcast/internal/domain/options"
)

// Config holds the pricing constants used by the exposure model. The sign
// convention (calls dealer-long, puts dealer-short) and the fixed rates are
// modeling assumptions carried from the reference data set; they are
// configurable but their defaults must not drift.
type Config struct {
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	DividendYield  float64 `yaml:"dividend_yield"`
	MaxExpirations int     `yaml:"max_expirations"`
}

// DefaultConfig returns the reference model constants.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:   0.045,
		DividendYield:  0.005,
		MaxExpirations: 12,
	}
}

// StrikeAggregate is one row of dealer exposure per distinct strike.
// Invariant: NetGEX == CallGEX + PutGEX.
type StrikeAggregate struct {
	Strike      float64 `json:"strike"`
	CallGEX     float64 `json:"call_gex"`
	PutGEX      float64 `json:"put_gex"`
	NetGEX      float64 `json:"net_gex"`
	TotalOI     int     `json:"total_oi"`
	TotalVolume int     `json:"total_volume"`
}

// Regime labels which side of the flip point spot is trading on.
type Regime string

const (
	RegimePositive Regime = "positive"
	RegimeNegative Regime = "negative"
)

// KeyLevels are the derived per-ticker levels for one cycle. Nil fields mean
// "no qualifying strike"; callers must not coerce them to zero.
type KeyLevels struct {
	Spot           float64  `json:"spot"`
	GammaFlip      *float64 `json:"gamma_flip,omitempty"`
	CallWall       *float64 `json:"call_wall,omitempty"`
	PutWall        *float64 `json:"put_wall,omitempty"`
	HVL            *float64 `json:"hvl,omitempty"`
	AbsGammaStrike *float64 `json:"abs_gamma_strike,omitempty"`
	Regime         Regime   `json:"regime,omitempty"`
}

// BlackScholesGamma computes the standard Black-Scholes gamma. Degenerate
// inputs (non-positive T, sigma or spot) yield 0 rather than NaN.
func BlackScholesGamma(spot, strike, t, r, q, sigma float64) float64 {
	if t <= 0 || sigma <= 0 || spot <= 0 {
		return 0
	}
	sqt := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (r-q+0.5*sigma*sigma)*t) / (sigma * sqt)
	pdf := math.Exp(-0.5*d1*d1) / math.Sqrt(2*math.Pi)
	return math.Exp(-q*t) * pdf / (spot * sigma * sqt)
}

// Engine computes dealer gamma exposure aggregates and key levels.
type Engine struct {
	cfg Config
}

// NewEngine creates an exposure engine.
func NewEngine(cfg Config) *Engine {
	if cfg.MaxExpirations <= 0 {
		cfg.MaxExpirations = DefaultConfig().MaxExpirations
	}
	return &Engine{cfg: cfg}
}

// Aggregate computes per-strike dealer exposure across at most the nearest
// MaxExpirations expiries, sorted by strike ascending.
func (e *Engine) Aggregate(spot float64, contracts []options.Contract) []StrikeAggregate {
	if len(contracts) == 0 {
		return nil
	}

	kept := e.nearestExpiries(contracts)

	byStrike := make(map[float64]*StrikeAggregate)
	for _, c := range kept {
		gamma := c.Gamma
		if gamma <= 0 {
			gamma = BlackScholesGamma(spot, c.Strike, c.YearsToExp, e.cfg.RiskFreeRate, e.cfg.DividendYield, c.IV)
		}

		// Exposure per 1% spot move; x100 is the contract multiplier.
		exposure := gamma * float64(c.OpenInterest) * 100 * spot * spot * 0.01
		if c.Type == options.Put {
			exposure = -exposure
		}

		row, ok := byStrike[c.Strike]
		if !ok {
			row = &StrikeAggregate{Strike: c.Strike}
			byStrike[c.Strike] = row
		}
		if c.Type == options.Call {
			row.CallGEX += exposure
		} else {
			row.PutGEX += exposure
		}
		row.NetGEX += exposure
		row.TotalOI += c.OpenInterest
		row.TotalVolume += c.Volume
	}

	rows := make([]StrikeAggregate, 0, len(byStrike))
	for _, row := range byStrike {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })
	return rows
}

// nearestExpiries keeps contracts belonging to the nearest distinct expiries.
func (e *Engine) nearestExpiries(contracts []options.Contract) []options.Contract {
	seen := make(map[time.Time]struct{})
	expiries := make([]time.Time, 0, 16)
	for _, c := range contracts {
		if _, ok := seen[c.Expiry]; !ok {
			seen[c.Expiry] = struct{}{}
			expiries = append(expiries, c.Expiry)
		}
	}
	if len(expiries) <= e.cfg.MaxExpirations {
		return contracts
	}

	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })
	allowed := make(map[time.Time]struct{}, e.cfg.MaxExpirations)
	for _, exp := range expiries[:e.cfg.MaxExpirations] {
		allowed[exp] = struct{}{}
	}

	kept := make([]options.Contract, 0, len(contracts))
	for _, c := range contracts {
		if _, ok := allowed[c.Expiry]; ok {
			kept = append(kept, c)
		}
	}
	return kept
}

// FindKeyLevels derives the flip point, walls and volume levels from a
// strike-sorted aggregate set.
func (e *Engine) FindKeyLevels(spot float64, rows []StrikeAggregate) KeyLevels {
	levels := KeyLevels{Spot: spot}
	if len(rows) == 0 {
		return levels
	}

	// Call wall: strike with the largest positive call-side exposure.
	var maxCall float64
	for _, row := range rows {
		if row.CallGEX > maxCall {
			maxCall = row.CallGEX
			levels.CallWall = ptr(row.Strike)
		}
	}

	// Put wall: strike with the most negative put-side exposure.
	var minPut float64
	for _, row := range rows {
		if row.PutGEX < minPut {
			minPut = row.PutGEX
			levels.PutWall = ptr(row.Strike)
		}
	}

	// Gamma flip: interpolated zero crossing of net exposure. When several
	// crossings exist the one closest to spot wins.
	minDist := math.Inf(1)
	for i := 0; i < len(rows)-1; i++ {
		v1, v2 := rows[i].NetGEX, rows[i+1].NetGEX
		if v1*v2 >= 0 {
			continue
		}
		ratio := math.Abs(v1) / (math.Abs(v1) + math.Abs(v2))
		fp := rows[i].Strike + ratio*(rows[i+1].Strike-rows[i].Strike)
		if dist := math.Abs(fp - spot); dist < minDist {
			minDist = dist
			levels.GammaFlip = ptr(round2(fp))
		}
	}
	if levels.GammaFlip != nil {
		if spot > *levels.GammaFlip {
			levels.Regime = RegimePositive
		} else {
			levels.Regime = RegimeNegative
		}
	}

	// HVL: strike with the largest traded volume, if any traded at all.
	var maxVol int
	for _, row := range rows {
		if row.TotalVolume > maxVol {
			maxVol = row.TotalVolume
			levels.HVL = ptr(row.Strike)
		}
	}

	// Largest combined unsigned exposure.
	var maxAbs float64
	for _, row := range rows {
		if a := math.Abs(row.CallGEX) + math.Abs(row.PutGEX); a > maxAbs {
			maxAbs = a
			levels.AbsGammaStrike = ptr(row.Strike)
		}
	}

	return levels
}

func ptr(v float64) *float64 { return &v }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
