package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_FirstSourceSatisfies(t *testing.T) {
	calls := 0
	chain := NewChain[int]("test", time.Minute, 100,
		Source[int]{
			Name:  "primary",
			Fetch: func(context.Context, string) (int, error) { calls++; return 42, nil },
		},
		Source[int]{
			Name:  "backup",
			Fetch: func(context.Context, string) (int, error) { t.Fatal("backup should not be called"); return 0, nil },
		},
	)

	out := chain.Resolve(context.Background(), "SPY")
	require.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "primary", out.Source)
	assert.Equal(t, 42, out.Data)
	assert.Equal(t, 1, calls)
}

func TestChain_FallsThroughOnError(t *testing.T) {
	chain := NewChain[int]("test", time.Minute, 100,
		Source[int]{
			Name:  "primary",
			Fetch: func(context.Context, string) (int, error) { return 0, errors.New("boom") },
		},
		Source[int]{
			Name:  "backup",
			Fetch: func(context.Context, string) (int, error) { return 7, nil },
		},
	)

	out := chain.Resolve(context.Background(), "SPY")
	require.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "backup", out.Source)
	assert.Equal(t, 7, out.Data)
}

func TestChain_SkipsNonViableData(t *testing.T) {
	chain := NewChain[[]string]("test", time.Minute, 100,
		Source[[]string]{
			Name:   "thin",
			Fetch:  func(context.Context, string) ([]string, error) { return []string{"a"}, nil },
			Viable: func(v []string) bool { return len(v) >= 3 },
		},
		Source[[]string]{
			Name:  "deep",
			Fetch: func(context.Context, string) ([]string, error) { return []string{"a", "b", "c"}, nil },
		},
	)

	out := chain.Resolve(context.Background(), "QQQ")
	require.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "deep", out.Source)
	assert.Len(t, out.Data, 3)
}

func TestChain_InsufficientWhenNothingBetter(t *testing.T) {
	chain := NewChain[[]string]("test", time.Minute, 100,
		Source[[]string]{
			Name:   "thin",
			Fetch:  func(context.Context, string) ([]string, error) { return []string{"a"}, nil },
			Viable: func(v []string) bool { return len(v) >= 3 },
		},
		Source[[]string]{
			Name:  "broken",
			Fetch: func(context.Context, string) ([]string, error) { return nil, errors.New("down") },
		},
	)

	out := chain.Resolve(context.Background(), "QQQ")
	require.Equal(t, StatusInsufficient, out.Status)
	assert.Equal(t, "thin", out.Source)
	assert.Len(t, out.Data, 1)
}

func TestChain_ErrorWhenAllFail(t *testing.T) {
	chain := NewChain[int]("test", time.Minute, 100,
		Source[int]{
			Name:  "a",
			Fetch: func(context.Context, string) (int, error) { return 0, errors.New("down a") },
		},
		Source[int]{
			Name:  "b",
			Fetch: func(context.Context, string) (int, error) { return 0, errors.New("down b") },
		},
	)

	out := chain.Resolve(context.Background(), "SPY")
	require.Equal(t, StatusError, out.Status)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "down a")
	assert.Contains(t, out.Err.Error(), "down b")
}

func TestChain_CachesOutcome(t *testing.T) {
	calls := 0
	chain := NewChain[int]("test", time.Minute, 100,
		Source[int]{
			Name:  "primary",
			Fetch: func(context.Context, string) (int, error) { calls++; return calls, nil },
		},
	)

	first := chain.Resolve(context.Background(), "SPY")
	second := chain.Resolve(context.Background(), "SPY")
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, 1, calls)

	// Different tickers do not share cache entries.
	chain.Resolve(context.Background(), "QQQ")
	assert.Equal(t, 2, calls)
}

func TestChain_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	chain := NewChain[int]("test", time.Nanosecond, 1000,
		Source[int]{
			Name:  "flaky",
			Fetch: func(context.Context, string) (int, error) { calls++; return 0, errors.New("down") },
		},
	)

	for i := 0; i < 5; i++ {
		out := chain.Resolve(context.Background(), "SPY")
		require.Equal(t, StatusError, out.Status)
		time.Sleep(time.Millisecond)
	}

	// The breaker trips after three consecutive failures, so later attempts
	// never reach the source.
	assert.Equal(t, 3, calls)
}
