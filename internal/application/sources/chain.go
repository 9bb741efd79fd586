package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Bullnettraders/levelcast/internal/data/cache"
	"github.com/Bullnettraders/levelcast/internal/metrics"
)

// Status is the typed outcome of asking a source for data. Degradation is a
// value the orchestrator can branch on, not buried control flow.
type Status string

const (
	// StatusOK means the source returned viable data.
	StatusOK Status = "ok"
	// StatusInsufficient means the source answered but the data carries too
	// little signal to use on its own.
	StatusInsufficient Status = "insufficient"
	// StatusError means every source failed outright.
	StatusError Status = "error"
)

// Outcome carries the resolved data together with which named source
// satisfied the request.
type Outcome[T any] struct {
	Status Status
	Source string
	Data   T
	Err    error
}

// Source is one named strategy in an ordered fallback chain.
type Source[T any] struct {
	Name  string
	Fetch func(ctx context.Context, ticker string) (T, error)
	// Viable reports whether a successful fetch carries enough signal to
	// stop the chain. Nil means any successful fetch is viable.
	Viable func(T) bool
}

// Chain resolves data through an ordered list of sources, stopping at the
// first viable answer. Each source sits behind its own circuit breaker, the
// chain as a whole behind a rate limiter and a TTL cache.
type Chain[T any] struct {
	kind     string
	sources  []Source[T]
	breakers map[string]*gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	cache    *cache.TTLCache
}

// NewChain creates a fallback chain for one kind of data.
func NewChain[T any](kind string, ttl time.Duration, rps float64, srcs ...Source[T]) *Chain[T] {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(srcs))
	for _, s := range srcs {
		name := s.Name
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        fmt.Sprintf("%s/%s", kind, name),
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     120 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(cbName string, from, to gobreaker.State) {
				log.Warn().Str("breaker", cbName).
					Str("from", from.String()).Str("to", to.String()).
					Msg("source circuit state changed")
			},
		})
	}

	return &Chain[T]{
		kind:     kind,
		sources:  srcs,
		breakers: breakers,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		cache:    cache.NewTTLCache(ttl),
	}
}

// Resolve walks the chain for ticker. Outcomes are cached for the chain's
// TTL so bursty callers do not hammer the sources.
func (c *Chain[T]) Resolve(ctx context.Context, ticker string) Outcome[T] {
	key := c.kind + ":" + ticker
	if v, ok := c.cache.Get(key); ok {
		out := v.(Outcome[T])
		log.Debug().Str("kind", c.kind).Str("ticker", ticker).
			Str("source", out.Source).Msg("source cache hit")
		return out
	}

	var (
		lastInsufficient *Outcome[T]
		errs             []error
	)

	for depth, src := range c.sources {
		if err := c.limiter.Wait(ctx); err != nil {
			return Outcome[T]{Status: StatusError, Err: err}
		}

		data, err := c.fetchThroughBreaker(ctx, src, ticker)
		if err != nil {
			log.Warn().Str("kind", c.kind).Str("ticker", ticker).
				Str("source", src.Name).Err(err).Msg("source failed, falling through")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}

		if src.Viable != nil && !src.Viable(data) {
			log.Info().Str("kind", c.kind).Str("ticker", ticker).
				Str("source", src.Name).Msg("source answered with insufficient data")
			lastInsufficient = &Outcome[T]{
				Status: StatusInsufficient,
				Source: src.Name,
				Data:   data,
			}
			continue
		}

		out := Outcome[T]{Status: StatusOK, Source: src.Name, Data: data}
		c.cache.Set(key, out)
		metrics.SourceResolved(c.kind, src.Name, depth)
		log.Info().Str("kind", c.kind).Str("ticker", ticker).
			Str("source", src.Name).Int("depth", depth).Msg("source satisfied request")
		return out
	}

	if lastInsufficient != nil {
		return *lastInsufficient
	}
	return Outcome[T]{
		Status: StatusError,
		Err:    fmt.Errorf("all sources failed for %s %s: %w", c.kind, ticker, errors.Join(errs...)),
	}
}

func (c *Chain[T]) fetchThroughBreaker(ctx context.Context, src Source[T], ticker string) (T, error) {
	var zero T
	result, err := c.breakers[src.Name].Execute(func() (interface{}, error) {
		return src.Fetch(ctx, ticker)
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// CacheStats exposes the chain cache's counters.
func (c *Chain[T]) CacheStats() cache.Stats {
	return c.cache.Stats()
}
