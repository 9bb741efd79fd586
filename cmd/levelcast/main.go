package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Bullnettraders/levelcast/internal/metrics"
)

const (
	appName = "levelcast"
	version = "v1.2.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	// Secrets come from .env in development; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	metrics.Initialize()

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Options and dark pool level engine",
		Version: version,
		Long: `levelcast derives tradeable price levels for index ETFs and their CFD
proxies: gamma exposure walls and flip points from the option chain, dark
pool zones from off-exchange volume, sticky level memory and multi-day
accumulation detection.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults built in)")

	rootCmd.AddCommand(
		newScanCmd(),
		newServeCmd(),
		newMemoryCmd(),
		newAccumulationCmd(),
		newPublishCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
