// Package postgres persists engine state in PostgreSQL, one row per ticker
// with the state body as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Bullnettraders/levelcast/internal/domain/accumulation"
	"github.com/Bullnettraders/levelcast/internal/domain/memory"
	"github.com/Bullnettraders/levelcast/internal/persistence"
)

const schema = `
CREATE TABLE IF NOT EXISTS sticky_levels (
	ticker     TEXT PRIMARY KEY,
	levels     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS print_history (
	ticker     TEXT PRIMARY KEY,
	history    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store implements persistence.Store on PostgreSQL.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStore connects to dsn, ensures the schema exists and returns the store.
func NewStore(dsn string, timeout time.Duration) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Store{db: db, timeout: timeout}, nil
}

var _ persistence.Store = (*Store)(nil)

// LoadLevels returns the stored levels for ticker.
func (s *Store) LoadLevels(ctx context.Context, ticker string) ([]memory.Level, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT levels FROM sticky_levels WHERE ticker = $1`, ticker).Scan(&raw)
	if err == sql.ErrNoRows {
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
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := json.Marshal(levels)
	if err != nil {
		return fmt.Errorf("failed to marshal levels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sticky_levels (ticker, levels, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (ticker) DO UPDATE SET
			levels = EXCLUDED.levels,
			updated_at = now()`,
		ticker, raw)
	if err != nil {
		return fmt.Errorf("failed to upsert levels for %s: %w", ticker, err)
	}
	return nil
}

// LoadHistory returns the stored print history for ticker.
func (s *Store) LoadHistory(ctx context.Context, ticker string) (accumulation.History, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT history FROM print_history WHERE ticker = $1`, ticker).Scan(&raw)
	if err == sql.ErrNoRows {
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
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal print history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO print_history (ticker, history, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (ticker) DO UPDATE SET
			history = EXCLUDED.history,
			updated_at = now()`,
		ticker, raw)
	if err != nil {
		return fmt.Errorf("failed to upsert print history for %s: %w", ticker, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
