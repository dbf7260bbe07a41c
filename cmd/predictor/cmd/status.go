package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"predictor/config"
	"predictor/journal"
	"predictor/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger state, counters and per-strategy aggregates",
	RunE:  runStatus,
}

var statusConfigPath string

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusConfigPath, "config", "f", "", "path to config file (required)")
	statusCmd.MarkFlagRequired("config")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(statusConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	for _, pipeline := range []string{ledger.PipelineReal, ledger.PipelineSim} {
		snap, found, err := j.LoadLedgerSnapshot(pipeline)
		if err != nil {
			return err
		}
		fmt.Printf("Pipeline: %s\n", pipeline)
		if !found {
			fmt.Println("  (no persisted ledger state)")
			continue
		}
		fmt.Printf("  Mode:               %s\n", snap.Mode)
		if snap.TripReason != "" {
			fmt.Printf("  Trip reason:        %s\n", snap.TripReason)
		}
		fmt.Printf("  Bankroll:           $%.2f (started $%.2f)\n", snap.Bankroll, snap.StartingBankroll)
		fmt.Printf("  Daily loss:         $%.2f\n", snap.DailyLossUSD)
		fmt.Printf("  Lifetime loss:      $%.2f\n", snap.LifetimeLossUSD)
		fmt.Printf("  Consecutive losses: %d\n", snap.ConsecutiveLosses)
		if !snap.CoolingUntil.IsZero() {
			fmt.Printf("  Cooling until:      %s\n", snap.CoolingUntil.UTC().Format("2006-01-02 15:04:05Z"))
		}
		fmt.Println()
	}

	aggs, err := j.StrategyAggregates()
	if err != nil {
		return fmt.Errorf("query aggregates: %w", err)
	}
	if len(aggs) > 0 {
		fmt.Println("Strategy aggregates (settled trades):")
		for _, a := range aggs {
			pipeline := "real"
			if a.Simulated {
				pipeline = "sim"
			}
			fmt.Printf("  %-16s %-4s trades=%-4d winrate=%.1f%% pnl=$%.2f mse=%.4f\n",
				a.StrategyID, pipeline, a.Settled, 100*a.WinRate, a.PnLUSD, a.CalibrationMSE)
		}
		fmt.Println()
	}

	trips, err := j.ListTrips(10)
	if err != nil {
		return fmt.Errorf("query trips: %w", err)
	}
	if len(trips) > 0 {
		fmt.Println("Recent safety trips:")
		for _, t := range trips {
			fmt.Printf("  %s %-4s %-12s %-14s %s\n",
				t.At.UTC().Format("2006-01-02 15:04:05Z"), t.Pipeline, t.Mode, t.Code, t.Reason)
		}
	}
	return nil
}
