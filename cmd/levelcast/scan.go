package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Bullnettraders/levelcast/internal/config"
)

func newScanCmd() *cobra.Command {
	var tickerFilter string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one derivation cycle now",
		Long:  "Fetch chains and dark pool data for every enabled ticker, derive all levels and print the result.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			engine, store, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			tickers := cfg.EnabledTickers()
			if tickerFilter != "" {
				tickers = filterTickers(tickers, tickerFilter)
				if len(tickers) == 0 {
					return fmt.Errorf("no enabled ticker matches %q", tickerFilter)
				}
			}

			reports := engine.RunAll(cmd.Context(), tickers)
			if len(reports) == 0 {
				return fmt.Errorf("all %d cycles failed", len(tickers))
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}

			for _, r := range reports {
				printSummary(r)
			}
			log.Info().Int("tickers", len(reports)).Msg("scan complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&tickerFilter, "ticker", "t", "", "limit the scan to one ticker")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit full reports as JSON")
	return cmd
}

func filterTickers(tickers []config.TickerConfig, symbol string) []config.TickerConfig {
	symbol = strings.ToUpper(symbol)
	out := tickers[:0]
	for _, t := range tickers {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out
}

func fmtLevel(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
