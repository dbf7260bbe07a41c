package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"predictor/config"
	"predictor/journal"
	"predictor/ledger"
)

var resetStopCmd = &cobra.Command{
	Use:   "reset-stop",
	Short: "Clear a hard stop using the reset code from the stop marker",
	Long: `reset-stop clears a HARD_STOPPED pipeline. It requires the reset code
that was written into the stop marker (and logged) when the stop tripped,
so a restart alone can never resume trading. On success the loss counters
are zeroed and the starting bankroll is re-anchored to the current bankroll.`,
	RunE: runResetStop,
}

var (
	resetConfigPath string
	resetToken      string
	resetSim        bool
)

func init() {
	rootCmd.AddCommand(resetStopCmd)
	resetStopCmd.Flags().StringVarP(&resetConfigPath, "config", "f", "", "path to config file (required)")
	resetStopCmd.Flags().StringVar(&resetToken, "token", "", "reset code from the stop marker (required)")
	resetStopCmd.Flags().BoolVar(&resetSim, "sim", false, "reset the simulated pipeline instead of the real one")
	resetStopCmd.MarkFlagRequired("config")
	resetStopCmd.MarkFlagRequired("token")
}

func runResetStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(resetConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	led := ledger.New(
		ledgerLimits(cfg),
		cfg.Bankroll,
		ledger.NewMarker(filepath.Join(cfg.Ledger.StateDir, "hardstop.real.json")),
		ledger.NewMarker(filepath.Join(cfg.Ledger.StateDir, "hardstop.sim.json")),
		j,
		log,
	)

	pipeline := ledger.PipelineReal
	if resetSim {
		pipeline = ledger.PipelineSim
	}
	if snap, found, err := j.LoadLedgerSnapshot(pipeline); err != nil {
		return err
	} else if found {
		led.Restore(resetSim, snap)
	}

	if err := led.ResetHardStop(resetSim, resetToken); err != nil {
		return err
	}
	if err := j.SaveLedgerSnapshot(pipeline, led.Snapshot(resetSim)); err != nil {
		return fmt.Errorf("persist ledger state: %w", err)
	}

	fmt.Printf("Hard stop cleared for %s pipeline. Mode is now %s.\n",
		pipeline, led.Snapshot(resetSim).Mode)
	return nil
}
