package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Bullnettraders/levelcast/internal/config"
	api "github.com/Bullnettraders/levelcast/internal/interfaces/http"
	"github.com/Bullnettraders/levelcast/internal/publish/seeds"
	"github.com/Bullnettraders/levelcast/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the cycle scheduler",
		Long:  "Serve the latest levels over HTTP and websocket while running derivation cycles at the scheduled UTC hours.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, store, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			server := api.NewServer(cfg.HTTP.Addr, engine)

			var publisher *seeds.Publisher
			if cfg.Seeds.Enabled {
				publisher = seeds.NewPublisher(cfg.Seeds, nil)
			}

			job := func(ctx context.Context) {
				reports := engine.RunAll(ctx, cfg.EnabledTickers())
				for _, r := range reports {
					server.Hub().Broadcast(r)
				}
				if publisher != nil && len(reports) > 0 {
					if err := publisher.Publish(ctx, reports); err != nil {
						log.Error().Err(err).Msg("seed publish failed")
					}
				}
			}

			sched := scheduler.New(cfg.Schedule, job)

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			go func() {
				if runOnStart {
					job(ctx)
				}
				errCh <- sched.Run(ctx)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("shutting down")
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "run one cycle immediately instead of waiting for the first slot")
	return cmd
}
