package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"predictor/config"
	"predictor/engine"
	"predictor/exec"
	"predictor/journal"
	"predictor/ledger"
	"predictor/market"
	"predictor/metrics"
	"predictor/risk"
	"predictor/settle"
	"predictor/strategy"
	"predictor/venue"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading agent from a config file",
	Long: `Run the trading agent using settings from a configuration file.

Real execution requires two independent confirmations: live_trading: true in
the config file AND the --live flag on this invocation. Without both, real
orders fail closed while the simulated pipeline keeps running.

Example:
  predictor run --config predictor.yaml
  predictor run --config predictor.yaml --live`,
	RunE: runRun,
}

var (
	runConfigPath  string
	runLive        bool
	runMetricsAddr string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runLive, "live", false, "arm real execution (second of two required confirmations)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "listen address for Prometheus metrics (e.g. :9090)")
	runCmd.MarkFlagRequired("config")
}

// outcomeSource adapts the venue client to the resolver's contract: a
// not-yet-settled market is ok=false, not an error.
type outcomeSource struct {
	c *venue.Client
}

func (s outcomeSource) GetOutcome(ctx context.Context, ticker string) (market.Outcome, bool, error) {
	o, err := s.c.GetOutcome(ctx, ticker)
	if errors.Is(err, venue.ErrNoOutcome) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return o, true, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg)

	token, err := config.VenueToken()
	if err != nil {
		return err
	}
	client := venue.NewClient(token, cfg.Execution.Demo)

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	if err := os.MkdirAll(cfg.Ledger.StateDir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	led := ledger.New(
		ledgerLimits(cfg),
		cfg.Bankroll,
		ledger.NewMarker(filepath.Join(cfg.Ledger.StateDir, "hardstop.real.json")),
		ledger.NewMarker(filepath.Join(cfg.Ledger.StateDir, "hardstop.sim.json")),
		j,
		log,
	)

	simExec := exec.NewSimulated()
	simExec.SlippageTicks = cfg.Execution.SlippageTicks
	realExec := exec.NewVenue(client, cfg.Execution.LiveTrading, runLive)
	if realExec.Armed() {
		log.Warn("REAL EXECUTION ARMED: orders will reach the live venue")
	}

	resolver := settle.NewResolver(j, led, outcomeSource{client},
		simExec, realExec, cfg.Settlement.Interval(), log)

	eng := engine.New(client, j, led,
		risk.Policy{
			BankrollFloorUSD:  cfg.Ledger.BankrollFloorUSD,
			MaxOrderPct:       cfg.Gate.MaxOrderPct,
			MinMinutesToClose: cfg.Gate.MinMinutesToClose,
		},
		risk.Stage{
			MinEdgePct:     cfg.Sizing.MinEdgePct,
			KellyFraction:  cfg.Sizing.KellyFraction,
			MaxBetUSD:      cfg.Sizing.MaxBetUSD,
			MaxBankrollPct: cfg.Sizing.MaxBankrollPct,
			GlobalCapUSD:   cfg.Sizing.GlobalCapUSD,
		},
		simExec, realExec, resolver, cfg.Engine.PollInterval(), log)

	for _, sc := range cfg.Strategies {
		strat, err := strategy.ByName(sc.Name)
		if err != nil {
			return err
		}
		eng.AddLoop(engine.Loop{
			Strategy:  strat,
			Markets:   sc.Markets,
			Simulated: sc.Simulated,
		})
	}

	if runMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(runMetricsAddr, mux); err != nil {
				log.Error("metrics listener failed", "addr", runMetricsAddr, "err", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("agent starting",
		"strategies", len(cfg.Strategies),
		"poll_interval", cfg.Engine.PollInterval().String(),
		"live", realExec.Armed())

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func ledgerLimits(cfg *config.Config) ledger.Limits {
	return ledger.Limits{
		LifetimeLossPct:      cfg.Ledger.LifetimeLossPct,
		BankrollFloorUSD:     cfg.Ledger.BankrollFloorUSD,
		MaxAuthFailures:      cfg.Ledger.MaxAuthFailures,
		DailyLossPct:         cfg.Ledger.DailyLossPct,
		MaxConsecutiveLosses: cfg.Ledger.MaxConsecutiveLosses,
		CoolingDuration:      cfg.Ledger.CoolingDuration(),
	}
}
