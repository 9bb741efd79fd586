package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bullnettraders/levelcast/internal/domain/accumulation"
	"github.com/Bullnettraders/levelcast/internal/domain/memory"
)

func TestFileStore_LevelsRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	added := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)

	levels := []memory.Level{
		{Price: 601.07, Volume: 1_200_000, Trades: 4, Kind: "support", Added: added, LastSeen: added, SeenCount: 2},
		{Price: 612.50, Volume: 800_000, Trades: 2, Kind: "resistance", Added: added, LastSeen: added, SeenCount: 1},
	}

	require.NoError(t, store.SaveLevels(ctx, "SPY", levels))

	got, err := store.LoadLevels(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 601.07, got[0].Price)
	assert.Equal(t, 2, got[0].SeenCount)
	assert.True(t, got[0].Added.Equal(added))
}

func TestFileStore_TickersAreIndependent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveLevels(ctx, "SPY", []memory.Level{{Price: 600}}))
	require.NoError(t, store.SaveLevels(ctx, "QQQ", []memory.Level{{Price: 540}, {Price: 545}}))

	spy, err := store.LoadLevels(ctx, "SPY")
	require.NoError(t, err)
	assert.Len(t, spy, 1)

	qqq, err := store.LoadLevels(ctx, "QQQ")
	require.NoError(t, err)
	assert.Len(t, qqq, 2)
}

func TestFileStore_UnknownTickerIsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.LoadLevels(context.Background(), "IWM")
	require.NoError(t, err)
	assert.Empty(t, got)

	hist, err := store.LoadHistory(context.Background(), "IWM")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestFileStore_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sticky_levels.json"), []byte("{not json"), 0o644))

	got, err := store.LoadLevels(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Empty(t, got)

	// A save after corruption rewrites the file cleanly.
	require.NoError(t, store.SaveLevels(context.Background(), "SPY", []memory.Level{{Price: 600}}))
	got, err = store.LoadLevels(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileStore_HistoryRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	history := accumulation.History{
		"2025-08-28": {
			{Price: 455.10, Shares: 120_000, Side: "Bid"},
			{Price: 455.20, Shares: 60_000, Side: "Ask"},
		},
		"2025-08-29": {
			{Price: 455.05, Shares: 90_000, Side: "Bid"},
		},
	}

	require.NoError(t, store.SaveHistory(ctx, "QQQ", history))

	got, err := store.LoadHistory(ctx, "QQQ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got["2025-08-28"], 2)
	assert.Equal(t, int64(90_000), got["2025-08-29"][0].Shares)
}
