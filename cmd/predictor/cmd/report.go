package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"predictor/config"
	"predictor/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Daily realized P&L report, optionally with a CSV trade export",
	RunE:  runReport,
}

var (
	reportConfigPath string
	reportDays       int
	reportCSVPath    string
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportConfigPath, "config", "f", "", "path to config file (required)")
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "number of trailing days to report")
	reportCmd.Flags().StringVar(&reportCSVPath, "csv", "", "write settled trades for the period to a CSV file")
	reportCmd.MarkFlagRequired("config")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(reportConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	until := time.Now().UTC()
	since := until.AddDate(0, 0, -reportDays)

	days, err := j.DailyReport(since, until)
	if err != nil {
		return fmt.Errorf("query daily report: %w", err)
	}
	if len(days) == 0 {
		fmt.Printf("No settled trades in the last %d days.\n", reportDays)
	} else {
		fmt.Printf("Daily P&L, last %d days:\n", reportDays)
		var totalReal, totalSim float64
		for _, d := range days {
			pipeline := "real"
			if d.Simulated {
				pipeline = "sim"
				totalSim += d.PnLUSD
			} else {
				totalReal += d.PnLUSD
			}
			fmt.Printf("  %s %-4s trades=%-4d wins=%-4d pnl=$%.2f fees=$%.2f\n",
				d.Day, pipeline, d.Settled, d.Wins, d.PnLUSD, d.FeesUSD)
		}
		fmt.Printf("Totals: real $%.2f, sim $%.2f\n", totalReal, totalSim)
	}

	if reportCSVPath == "" {
		return nil
	}
	trades, err := j.ListTradesSettledBetween(since, until)
	if err != nil {
		return fmt.Errorf("query settled trades: %w", err)
	}
	f, err := os.Create(reportCSVPath)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()
	if err := journal.WriteSettledCSV(f, trades); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	fmt.Printf("Wrote %d settled trades to %s\n", len(trades), reportCSVPath)
	return nil
}
