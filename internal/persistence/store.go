package persistence

import (
	"context"

	"github.com/Bullnettraders/levelcast/internal/domain/accumulation"
	"github.com/Bullnettraders/levelcast/internal/domain/memory"
)

// LevelStore persists sticky level state between derivation cycles.
type LevelStore interface {
	// LoadLevels returns the stored levels for ticker. A ticker with no
	// stored state returns an empty slice, not an error.
	LoadLevels(ctx context.Context, ticker string) ([]memory.Level, error)

	// SaveLevels replaces the stored levels for ticker.
	SaveLevels(ctx context.Context, ticker string, levels []memory.Level) error
}

// PrintArchive persists the rolling dark pool print history used for
// accumulation detection.
type PrintArchive interface {
	// LoadHistory returns the stored print history for ticker. A ticker
	// with no stored state returns an empty history, not an error.
	LoadHistory(ctx context.Context, ticker string) (accumulation.History, error)

	// SaveHistory replaces the stored print history for ticker.
	SaveHistory(ctx context.Context, ticker string, history accumulation.History) error
}

// Store is the combined persistence surface the pipeline depends on.
type Store interface {
	LevelStore
	PrintArchive

	// Close releases any resources held by the backend.
	Close() error
}
