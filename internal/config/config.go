package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DataDir     string `env:"TAXGEN_DATA_DIR"`
	ProfilesDir string `env:"TAXGEN_PROFILES_DIR" envDefault:"./profiles"`
	TargetsDir  string `env:"TAXGEN_TARGETS_DIR" envDefault:"./targets"`
	RunsDBPath  string `env:"TAXGEN_RUNS_DB" envDefault:"./taxgen-runs.sqlite"`
	OutputDir   string `env:"TAXGEN_OUTPUT_DIR" envDefault:"./out"`
	LogLevel    string `env:"TAXGEN_LOG_LEVEL" envDefault:"info"`
	DefaultMode string `env:"TAXGEN_DEFAULT_MODE" envDefault:"create"`
	BatchSize   int    `env:"TAXGEN_BATCH_SIZE" envDefault:"1000"`
}

// Load reads ./.env when present (process environment wins) and then parses
// the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("config: TAXGEN_BATCH_SIZE must be > 0, got %d", cfg.BatchSize)
	}
	return cfg, nil
}
