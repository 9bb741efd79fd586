package options

import "time"

// OptionType distinguishes calls from puts
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// RawOption is a single record as delivered by the chain feed, before any
// validation. Numeric fields arrive zero-valued when the feed omits them.
type RawOption struct {
	Symbol       string  `json:"option"`
	OpenInterest float64 `json:"open_interest"`
	Volume       float64 `json:"volume"`
	IV           float64 `json:"iv"`
	Gamma        float64 `json:"gamma"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
}

// Contract is a validated, typed option contract produced by the normalizer.
// Contracts are rebuilt fresh on every fetch cycle and never mutated.
type Contract struct {
	Strike       float64
	Type         OptionType
	Expiry       time.Time
	DTE          int     // calendar days to expiry, >= 0
	YearsToExp   float64 // DTE/365, floored at 1/365
	OpenInterest int
	Volume       int
	IV           float64
	Gamma        float64 // feed-observed gamma, 0 when absent
	Bid          float64
	Ask          float64
}

// Rejection reasons reported by the normalizer.
const (
	RejectNoSymbol   = "no_symbol"
	RejectNoStrike   = "no_strike"
	RejectOutOfRange = "out_of_range"
	RejectExpired    = "expired"
	RejectNoIV       = "no_iv"
)

// Rejections counts skipped records grouped by reason.
type Rejections map[string]int

// Total returns the total number of rejected records.
func (r Rejections) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}
