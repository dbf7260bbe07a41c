// Package config loads and validates the agent's configuration from YAML or
// JSON, with venue credentials taken from the environment so they never land
// in a config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete agent configuration.
type Config struct {
	Bankroll   float64          `json:"bankroll" yaml:"bankroll"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`
	Sizing     SizingConfig     `json:"sizing" yaml:"sizing"`
	Gate       GateConfig       `json:"gate" yaml:"gate"`
	Execution  ExecutionConfig  `json:"execution" yaml:"execution"`
	Settlement SettlementConfig `json:"settlement" yaml:"settlement"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Strategies []StrategyConfig `json:"strategies" yaml:"strategies"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}

type JournalConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

type LedgerConfig struct {
	StateDir             string  `json:"state_dir" yaml:"state_dir"`
	LifetimeLossPct      float64 `json:"lifetime_loss_pct" yaml:"lifetime_loss_pct"`
	BankrollFloorUSD     float64 `json:"bankroll_floor_usd" yaml:"bankroll_floor_usd"`
	DailyLossPct         float64 `json:"daily_loss_pct" yaml:"daily_loss_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	CoolingMinutes       int     `json:"cooling_minutes" yaml:"cooling_minutes"`
	MaxAuthFailures      int     `json:"max_auth_failures" yaml:"max_auth_failures"`
}

// CoolingDuration returns the loss-streak cooling window.
func (l LedgerConfig) CoolingDuration() time.Duration {
	return time.Duration(l.CoolingMinutes) * time.Minute
}

type SizingConfig struct {
	MinEdgePct     float64 `json:"min_edge_pct" yaml:"min_edge_pct"`
	KellyFraction  float64 `json:"kelly_fraction" yaml:"kelly_fraction"`
	MaxBetUSD      float64 `json:"max_bet_usd" yaml:"max_bet_usd"`
	MaxBankrollPct float64 `json:"max_bankroll_pct" yaml:"max_bankroll_pct"`
	GlobalCapUSD   float64 `json:"global_cap_usd" yaml:"global_cap_usd"`
}

type GateConfig struct {
	MaxOrderPct       float64 `json:"max_order_pct" yaml:"max_order_pct"`
	MinMinutesToClose float64 `json:"min_minutes_to_close" yaml:"min_minutes_to_close"`
}

type ExecutionConfig struct {
	// LiveTrading is the persisted half of the two-flag arm check for real
	// execution; the other half is the --live runtime flag.
	LiveTrading   bool `json:"live_trading" yaml:"live_trading"`
	Demo          bool `json:"demo" yaml:"demo"`
	SlippageTicks int  `json:"slippage_ticks" yaml:"slippage_ticks"`
}

type SettlementConfig struct {
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds"`
}

func (s SettlementConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

type EngineConfig struct {
	PollIntervalSeconds int `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
}

func (e EngineConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSeconds) * time.Second
}

type StrategyConfig struct {
	Name      string   `json:"name" yaml:"name"`
	Simulated bool     `json:"simulated" yaml:"simulated"`
	Markets   []string `json:"markets" yaml:"markets"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Bankroll <= 0 {
		return fmt.Errorf("bankroll must be positive")
	}
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	if c.Ledger.StateDir == "" {
		return fmt.Errorf("ledger.state_dir is required")
	}
	if c.Ledger.LifetimeLossPct <= 0 || c.Ledger.LifetimeLossPct >= 1 {
		return fmt.Errorf("ledger.lifetime_loss_pct must be in (0,1)")
	}
	if c.Ledger.DailyLossPct <= 0 || c.Ledger.DailyLossPct >= 1 {
		return fmt.Errorf("ledger.daily_loss_pct must be in (0,1)")
	}
	if c.Ledger.BankrollFloorUSD < 0 || c.Ledger.BankrollFloorUSD >= c.Bankroll {
		return fmt.Errorf("ledger.bankroll_floor_usd must be in [0, bankroll)")
	}
	if c.Ledger.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("ledger.max_consecutive_losses must be positive")
	}
	if c.Ledger.CoolingMinutes <= 0 {
		return fmt.Errorf("ledger.cooling_minutes must be positive")
	}
	if c.Ledger.MaxAuthFailures <= 0 {
		return fmt.Errorf("ledger.max_auth_failures must be positive")
	}
	if c.Sizing.KellyFraction <= 0 || c.Sizing.KellyFraction > 1 {
		return fmt.Errorf("sizing.kelly_fraction must be in (0,1]")
	}
	if c.Sizing.MaxBetUSD <= 0 || c.Sizing.GlobalCapUSD <= 0 {
		return fmt.Errorf("sizing caps must be positive")
	}
	if c.Sizing.MaxBankrollPct <= 0 || c.Sizing.MaxBankrollPct > 1 {
		return fmt.Errorf("sizing.max_bankroll_pct must be in (0,1]")
	}
	if c.Gate.MaxOrderPct <= 0 || c.Gate.MaxOrderPct > 1 {
		return fmt.Errorf("gate.max_order_pct must be in (0,1]")
	}
	if c.Gate.MinMinutesToClose < 0 {
		return fmt.Errorf("gate.min_minutes_to_close must not be negative")
	}
	if c.Execution.SlippageTicks < 0 {
		return fmt.Errorf("execution.slippage_ticks must not be negative")
	}
	if c.Settlement.IntervalSeconds <= 0 {
		return fmt.Errorf("settlement.interval_seconds must be positive")
	}
	if c.Engine.PollIntervalSeconds <= 0 {
		return fmt.Errorf("engine.poll_interval_seconds must be positive")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d].name is required", i)
		}
		if len(s.Markets) == 0 {
			return fmt.Errorf("strategies[%d].markets is required", i)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Default returns a configuration with conservative defaults: simulated
// only, small caps, stock trip thresholds.
func Default() *Config {
	return &Config{
		Bankroll: 100,
		Journal:  JournalConfig{DBPath: "./predictor.sqlite"},
		Ledger: LedgerConfig{
			StateDir:             "./state",
			LifetimeLossPct:      0.30,
			BankrollFloorUSD:     25,
			DailyLossPct:         0.15,
			MaxConsecutiveLosses: 4,
			CoolingMinutes:       120,
			MaxAuthFailures:      3,
		},
		Sizing: SizingConfig{
			MinEdgePct:     3,
			KellyFraction:  0.25,
			MaxBetUSD:      5,
			MaxBankrollPct: 0.05,
			GlobalCapUSD:   25,
		},
		Gate: GateConfig{
			MaxOrderPct:       0.10,
			MinMinutesToClose: 10,
		},
		Execution: ExecutionConfig{
			LiveTrading:   false,
			Demo:          true,
			SlippageTicks: 1,
		},
		Settlement: SettlementConfig{IntervalSeconds: 60},
		Engine:     EngineConfig{PollIntervalSeconds: 30},
		Strategies: []StrategyConfig{
			{Name: "value", Simulated: true, Markets: []string{"DEMO-MARKET"}},
		},
		LogLevel: "info",
	}
}

// VenueToken reads the venue API token from the environment, loading a
// .env file first if one is present.
func VenueToken() (string, error) {
	_ = godotenv.Load()
	tok := os.Getenv("VENUE_API_TOKEN")
	if tok == "" {
		return "", fmt.Errorf("VENUE_API_TOKEN not set")
	}
	return tok, nil
}
