// Package file persists engine state as JSON blobs on local disk.
//
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated store behind. Unreadable state is treated as empty
// with a warning rather than failing the cycle.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Bullnettraders/levelcast/internal/domain/accumulation"
	"github.com/Bullnettraders/levelcast/internal/domain/memory"
	"github.com/Bullnettraders/levelcast/internal/persistence"
)

const (
	levelsFile = "sticky_levels.json"
	printsFile = "print_history.json"
)

// Store keeps all state in two JSON files under a base directory, each
// keyed by ticker.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates the base directory if needed and returns a file store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

var _ persistence.Store = (*Store)(nil)

// LoadLevels returns the stored levels for ticker.
func (s *Store) LoadLevels(_ context.Context, ticker string) ([]memory.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string][]memory.Level)
	s.readInto(levelsFile, &all)
	return all[ticker], nil
}

// SaveLevels replaces the stored levels for ticker.
func (s *Store) SaveLevels(_ context.Context, ticker string, levels []memory.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string][]memory.Level)
	s.readInto(levelsFile, &all)
	all[ticker] = levels
	return s.writeAtomic(levelsFile, all)
}

// LoadHistory returns the stored print history for ticker.
func (s *Store) LoadHistory(_ context.Context, ticker string) (accumulation.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string]accumulation.History)
	s.readInto(printsFile, &all)
	if h, ok := all[ticker]; ok {
		return h, nil
	}
	return accumulation.History{}, nil
}

// SaveHistory replaces the stored print history for ticker.
func (s *Store) SaveHistory(_ context.Context, ticker string, history accumulation.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string]accumulation.History)
	s.readInto(printsFile, &all)
	all[ticker] = history
	return s.writeAtomic(printsFile, all)
}

// Close is a no-op for the file backend.
func (s *Store) Close() error { return nil }

// readInto loads a state file into target. Missing or corrupt files leave
// the target empty so one bad write never wedges the engine.
func (s *Store) readInto(name string, target interface{}) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("path", path).Err(err).Msg("state file unreadable, starting empty")
		}
		return
	}
	if err := json.Unmarshal(data, target); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("state file corrupt, starting empty")
	}
}

func (s *Store) writeAtomic(name string, v interface{}) error {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state for %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file %s: %w", path, err)
	}
	return nil
}
