// Package redis persists engine state as JSON blobs in Redis, one key per
// ticker and concern.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/Bullnettraders/levelcast/internal/domain/accumulation"
	"github.com/Bullnettraders/levelcast/internal/domain/memory"
	"github.com/Bullnettraders/levelcast/internal/persistence"
)

const (
	levelsKeyPrefix = "levelcast:levels:"
	printsKeyPrefix = "levelcast:prints:"
)

// Store implements persistence.Store on Redis.
type Store struct {
	client redis.UniversalClient
}

// NewStore connects to addr and verifies the connection.
func NewStore(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client, used by tests.
func NewStoreWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

var _ persistence.Store = (*Store)(nil)

// LoadLevels returns the stored levels for ticker.
func (s *Store) LoadLevels(ctx context.Context, ticker string) ([]memory.Level, error) {
	raw, err := s.client.Get(ctx, levelsKeyPrefix+ticker).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load levels for %s: %w", ticker, err)
	}

	var levels []memory.Level
	if err := json.Unmarshal(raw, &levels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal levels for %s: %w", ticker, err)
	}
	return levels, nil
}

// SaveLevels replaces the stored levels for ticker.
func (s *Store) SaveLevels(ctx context.Context, ticker string, levels []memory.Level) error {
	raw, err := json.Marshal(levels)
	if err != nil {
		return fmt.Errorf("failed to marshal levels: %w", err)
	}
	if err := s.client.Set(ctx, levelsKeyPrefix+ticker, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save levels for %s: %w", ticker, err)
	}
	return nil
}

// LoadHistory returns the stored print history for ticker.
func (s *Store) LoadHistory(ctx context.Context, ticker string) (accumulation.History, error) {
	raw, err := s.client.Get(ctx, printsKeyPrefix+ticker).Bytes()
	if err == redis.Nil {
		return accumulation.History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load print history for %s: %w", ticker, err)
	}

	var history accumulation.History
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal print history for %s: %w", ticker, err)
	}
	return history, nil
}

// SaveHistory replaces the stored print history for ticker.
func (s *Store) SaveHistory(ctx context.Context, ticker string, history accumulation.History) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal print history: %w", err)
	}
	if err := s.client.Set(ctx, printsKeyPrefix+ticker, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save print history for %s: %w", ticker, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
