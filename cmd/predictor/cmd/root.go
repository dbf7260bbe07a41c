package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"predictor/config"
	"predictor/internal/util"
)

var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "An automated prediction-market trading agent with a safety-first execution core",
	Long: `Predictor is an automated prediction-market trading agent written in Go.

It provides:
  - Per-strategy polling loops producing candidate orders
  - Fractional-Kelly position sizing with stage-indexed caps
  - A single synchronous order gate every order must pass
  - Simulated (paper) and real execution behind one contract
  - A crash-safe safety ledger with soft and hard stops
  - Settlement reconciliation feeding outcomes back into risk state`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return util.NewLogger(cfg.LogLevel)
}
