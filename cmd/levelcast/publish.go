package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Bullnettraders/levelcast/internal/config"
	"github.com/Bullnettraders/levelcast/internal/publish/seeds"
)

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Run one cycle and push seed CSVs",
		Long:  "Derive levels for every enabled ticker and append them to the seed CSV files in the configured repository.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Seeds.Enabled {
				return fmt.Errorf("seed publishing is disabled in config")
			}

			engine, store, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			reports := engine.RunAll(cmd.Context(), cfg.EnabledTickers())
			if len(reports) == 0 {
				return fmt.Errorf("no cycle succeeded, nothing to publish")
			}

			publisher := seeds.NewPublisher(cfg.Seeds, nil)
			if err := publisher.Publish(cmd.Context(), reports); err != nil {
				return err
			}

			log.Info().Int("tickers", len(reports)).Msg("seed files published")
			return nil
		},
	}
}
