package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bullnettraders/levelcast/internal/config"
	"github.com/Bullnettraders/levelcast/internal/domain/accumulation"
)

func newMemoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "memory [ticker]",
		Short: "Show the persisted sticky levels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := buildStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, t := range selectTickers(cfg, args) {
				levels, err := store.LoadLevels(cmd.Context(), t)
				if err != nil {
					return err
				}
				fmt.Printf("\n%s: %d sticky levels\n", t, len(levels))
				for _, l := range levels {
					fmt.Printf("  %.2f  %dk shares  %s  seen %dx  added %s\n",
						l.Price, l.Volume/1000, l.Kind, l.SeenCount, l.Added.Format("2006-01-02"))
				}
			}
			return nil
		},
	}
}

func newAccumulationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accumulation [ticker]",
		Short: "Detect accumulation from the persisted print history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := buildStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			detector := accumulation.NewDetector(accumulation.DefaultConfig())
			now := time.Now().UTC()

			for _, t := range selectTickers(cfg, args) {
				history, err := store.LoadHistory(cmd.Context(), t)
				if err != nil {
					return err
				}
				signals := detector.Detect(history, now)
				fmt.Printf("\n%s: %d accumulation signals (%d archived days)\n", t, len(signals), len(history))
				for _, sig := range signals {
					fmt.Printf("  %.2f  %d days  %dk shares  %s (strength %.1f)\n",
						sig.Price, sig.DaysActive, sig.TotalVolume/1000, sig.Bias, sig.Strength)
				}
			}
			return nil
		},
	}
}

// selectTickers resolves the optional positional ticker argument against the
// configured set.
func selectTickers(cfg *config.Config, args []string) []string {
	if len(args) == 1 {
		return []string{strings.ToUpper(args[0])}
	}
	out := make([]string, 0, len(cfg.Tickers))
	for _, t := range cfg.EnabledTickers() {
		out = append(out, t.Symbol)
	}
	return out
}
