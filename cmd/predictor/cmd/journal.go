package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"predictor/config"
	"predictor/exec"
	"predictor/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect recorded trades",
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <order-id>",
	Short: "Show one order and its fill",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades settled today (UTC)",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end := dayBounds(time.Now().UTC())
		return printSettled(start, end)
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades settled on a given UTC day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("bad date %q: %w", args[0], err)
		}
		start, end := dayBounds(d)
		return printSettled(start, end)
	},
}

var journalConfigPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd, journalTodayCmd, journalDayCmd)
	journalCmd.PersistentFlags().StringVarP(&journalConfigPath, "config", "f", "", "path to config file (required)")
	journalCmd.MarkPersistentFlagRequired("config")
}

func openReporter() (*journal.SQLite, error) {
	cfg, err := config.LoadFromFile(journalConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openReporter()
	if err != nil {
		return err
	}
	defer j.Close()

	t, err := j.GetTrade(args[0])
	if err != nil {
		return err
	}
	o := t.Order
	pipeline := "real"
	if o.Simulated {
		pipeline = "sim"
	}
	fmt.Printf("Order %s (%s)\n", o.ID, pipeline)
	fmt.Printf("  Market:    %s %s @ %d¢ limit\n", o.Ticker, o.Side, o.LimitPrice)
	fmt.Printf("  Size:      $%.2f (%d contracts)\n", o.SizeUSD, o.Contracts)
	fmt.Printf("  Strategy:  %s (p_win %.2f)\n", o.StrategyID, t.WinProbability)
	fmt.Printf("  Reason:    %s\n", o.Reason)
	fmt.Printf("  Created:   %s\n", o.CreatedAt.UTC().Format(time.RFC3339))
	if t.Fill.FilledAt.IsZero() {
		fmt.Println("  Fill:      (none)")
	} else {
		fmt.Printf("  Fill:      %d¢ at %s", t.Fill.Price, t.Fill.FilledAt.UTC().Format(time.RFC3339))
		if t.Fill.VenueRef != "" {
			fmt.Printf(" (venue ref %s)", t.Fill.VenueRef)
		}
		fmt.Println()
	}
	return nil
}

// dayBounds returns [midnight, next midnight) in UTC for the given time's day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func printSettled(start, end time.Time) error {
	j, err := openReporter()
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTradesSettledBetween(start, end)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Printf("No trades settled on %s.\n", start.Format("2006-01-02"))
		return nil
	}
	printTrades(trades)
	return nil
}

func printTrades(trades []exec.SettledTrade) {
	var pnl, fees float64
	for _, t := range trades {
		result := "LOSS"
		if t.Won {
			result = "WIN"
		}
		pipeline := "real"
		if t.Order.Simulated {
			pipeline = "sim"
		}
		fmt.Printf("%s %-4s %-20s %-3s fill=%d¢ $%-7.2f %-4s pnl=$%-8.2f fee=$%.2f\n",
			t.SettledAt.UTC().Format("15:04:05"), pipeline, t.Order.Ticker,
			t.Order.Side, t.Fill.Price, t.Order.SizeUSD, result, t.PnLUSD, t.FeeUSD)
		pnl += t.PnLUSD
		fees += t.FeeUSD
	}
	fmt.Printf("%d trades, net pnl $%.2f, fees $%.2f\n", len(trades), pnl, fees)
}
