// Package config provides the immutable process-wide configuration.
// Values are read once at startup and validated before any cycle runs.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"reward-engine/internal/domain"
)

// Config holds every tunable the reward engine reads. It is constructed
// once and passed explicitly into the orchestrator; nothing reads the
// environment after startup.
type Config struct {
	// Reward window
	DelayDays           int `env:"REWARDS_DELAY_DAYS" envDefault:"2"`
	EmissionsPeriodDays int `env:"EMISSIONS_PERIOD_DAYS" envDefault:"7"`

	// Treasury carve-out
	TreasuryPct           float64 `env:"TREASURY_PCT" envDefault:"0.01"`
	TreasuryParticipantID string  `env:"TREASURY_PARTICIPANT_ID"`

	// Scheduling
	CycleInterval    time.Duration `env:"CYCLE_INTERVAL" envDefault:"1h"`
	EvaluatorTimeout time.Duration `env:"EVALUATOR_TIMEOUT" envDefault:"10m"`

	// Emission conversion: total daily USD value of chain emissions,
	// used by the fixed rate source.
	TotalDailyEmissionUSD float64 `env:"TOTAL_DAILY_EMISSION_USD" envDefault:"1"`

	// External endpoints and storage
	CampaignsEndpoint   string `env:"CAMPAIGNS_ENDPOINT"`
	CampaignsWSEndpoint string `env:"CAMPAIGNS_WS_ENDPOINT"`
	PostgresDSN         string `env:"POSTGRES_DSN"`
	ClickhouseDSN       string `env:"CLICKHOUSE_DSN"`

	// Observability
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`
}

// Load parses configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that must never reach a running
// cycle. A treasury percentage outside [0,1] is a fatal startup error.
func (c Config) Validate() error {
	if c.TreasuryPct < 0 || c.TreasuryPct > 1 {
		return fmt.Errorf("treasury percentage %.4f outside [0,1]", c.TreasuryPct)
	}
	if c.TreasuryParticipantID == "" {
		return fmt.Errorf("treasury participant id is required")
	}
	if c.DelayDays < 0 {
		return fmt.Errorf("delay days must be >= 0, got %d", c.DelayDays)
	}
	if c.EmissionsPeriodDays <= 0 {
		return fmt.Errorf("emissions period days must be > 0, got %d", c.EmissionsPeriodDays)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be > 0, got %s", c.CycleInterval)
	}
	if c.EvaluatorTimeout <= 0 {
		return fmt.Errorf("evaluator timeout must be > 0, got %s", c.EvaluatorTimeout)
	}
	if c.TotalDailyEmissionUSD <= 0 {
		return fmt.Errorf("total daily emission USD must be > 0, got %f", c.TotalDailyEmissionUSD)
	}
	return nil
}

// Window returns the reward window derived from the configuration.
func (c Config) Window() domain.RewardWindow {
	return domain.RewardWindow{DelayDays: c.DelayDays, PeriodDays: c.EmissionsPeriodDays}
}
