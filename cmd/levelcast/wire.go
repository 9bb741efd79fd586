package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Bullnettraders/levelcast/internal/application/pipeline"
	"github.com/Bullnettraders/levelcast/internal/application/sources"
	"github.com/Bullnettraders/levelcast/internal/config"
	"github.com/Bullnettraders/levelcast/internal/data/feeds"
	"github.com/Bullnettraders/levelcast/internal/domain/darkpool"
	"github.com/Bullnettraders/levelcast/internal/metrics"
	"github.com/Bullnettraders/levelcast/internal/persistence"
	filestore "github.com/Bullnettraders/levelcast/internal/persistence/file"
	pgstore "github.com/Bullnettraders/levelcast/internal/persistence/postgres"
	redisstore "github.com/Bullnettraders/levelcast/internal/persistence/redis"
)

// buildStore selects the persistence backend from config.
func buildStore(ctx context.Context, cfg config.StoreConfig) (persistence.Store, error) {
	switch cfg.Backend {
	case "file":
		return filestore.NewStore(cfg.Dir)
	case "postgres":
		return pgstore.NewStore(cfg.DSN, 10*time.Second)
	case "redis":
		return redisstore.NewStore(ctx, cfg.Redis, cfg.Password, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// buildEngine wires the feed clients, fallback chains and store into a
// pipeline engine.
func buildEngine(ctx context.Context, cfg *config.Config) (*pipeline.Engine, persistence.Store, error) {
	store, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build store: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Sources.Timeout()}
	chainClient := feeds.NewChainClient(cfg.Sources.ChainURL, httpClient)
	quoteClient := feeds.NewQuoteClient(cfg.Sources.QuoteURL, httpClient)
	dpClient := feeds.NewDarkPoolClient(cfg.Sources.DarkPoolURL, httpClient)
	svClient := feeds.NewShortVolumeClient(cfg.Sources.ShortVolumeURL, httpClient)

	chainViable := func(s *feeds.ChainSnapshot) bool {
		return s != nil && s.Spot > 0 && len(s.Options) > 0
	}
	scanViable := func(s *feeds.ScanSnapshot) bool {
		return s != nil && len(s.Observations) > 0
	}

	rps := cfg.Sources.RPS
	chains := pipeline.Chains{
		Chain: sources.NewChain[*feeds.ChainSnapshot]("chain", cfg.Sources.LevelsTTL(), rps,
			sources.Source[*feeds.ChainSnapshot]{
				Name: "cboe",
				Fetch: func(ctx context.Context, ticker string) (*feeds.ChainSnapshot, error) {
					return chainClient.Fetch(ctx, feeds.NormalizeTicker(ticker))
				},
				Viable: chainViable,
			},
			sources.Source[*feeds.ChainSnapshot]{
				Name: "barchart",
				Fetch: func(ctx context.Context, ticker string) (*feeds.ChainSnapshot, error) {
					return quoteClient.Fetch(ctx, feeds.NormalizeTicker(ticker))
				},
				Viable: chainViable,
			}),
		Scan: sources.NewChain[*feeds.ScanSnapshot]("darkpool", cfg.Sources.LevelsTTL(), rps,
			sources.Source[*feeds.ScanSnapshot]{
				Name:   "chartexchange",
				Fetch:  dpClient.FetchLevels,
				Viable: scanViable,
			},
			sources.Source[*feeds.ScanSnapshot]{
				Name:   "prints_aggregate",
				Fetch:  func(ctx context.Context, ticker string) (*feeds.ScanSnapshot, error) {
					return aggregatePrints(ctx, dpClient, ticker)
				},
				Viable: scanViable,
			}),
		Prints: sources.NewChain[*feeds.PrintsSnapshot]("prints", cfg.Sources.PrintsTTL(), rps,
			sources.Source[*feeds.PrintsSnapshot]{
				Name:  "chartexchange",
				Fetch: dpClient.FetchPrints,
			}),
		Shorts: sources.NewChain[*feeds.ShortVolume]("short_volume", cfg.Sources.PrintsTTL(), rps,
			sources.Source[*feeds.ShortVolume]{
				Name: "finra",
				Fetch: func(ctx context.Context, ticker string) (*feeds.ShortVolume, error) {
					return svClient.Fetch(ctx, feeds.NormalizeTicker(ticker), time.Now().UTC())
				},
			}),
	}

	return pipeline.NewEngine(chains, store, metrics.Default), store, nil
}

// aggregatePrints is the secondary scan source: when the level scan is down,
// individual prints stand in as one observation each and let the normal
// clustering do the aggregation.
func aggregatePrints(ctx context.Context, dpClient *feeds.DarkPoolClient, ticker string) (*feeds.ScanSnapshot, error) {
	ps, err := dpClient.FetchPrints(ctx, ticker)
	if err != nil {
		return nil, err
	}
	obs := make([]darkpool.Observation, 0, len(ps.Prints))
	for _, p := range ps.Prints {
		obs = append(obs, darkpool.Observation{Price: p.Price, Volume: p.Size, Trades: 1})
	}
	return &feeds.ScanSnapshot{Ticker: ps.Ticker, Observations: obs, FetchedAt: ps.FetchedAt}, nil
}
