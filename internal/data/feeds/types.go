package feeds

import (
	"time"

	"github.com/Bullnettraders/levelcast/internal/domain/darkpool"
	"github.com/Bullnettraders/levelcast/internal/domain/options"
)

// ChainSnapshot is one fetch of a ticker's option chain with its spot price.
type ChainSnapshot struct {
	Ticker    string
	Spot      float64
	Options   []options.RawOption
	FetchedAt time.Time
}

// ScanSnapshot is one fetch of aggregated dark-pool observations.
type ScanSnapshot struct {
	Ticker       string
	Observations []darkpool.Observation
	FetchedAt    time.Time
}

// PrintsSnapshot is one fetch of individual dark-pool trade prints.
type PrintsSnapshot struct {
	Ticker    string
	Prints    []darkpool.Print
	FetchedAt time.Time
}

// ShortVolume is the daily off-exchange short volume summary for a ticker.
type ShortVolume struct {
	Date         string  `json:"date"`
	ShortVolume  int64   `json:"short_volume"`
	TotalVolume  int64   `json:"total_volume"`
	ShortPercent float64 `json:"short_percent"`
}
