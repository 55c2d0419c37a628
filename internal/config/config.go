// Package config loads engine and CLI settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds settings shared by the CLI and embedders. Command-line
// flags override whatever the environment supplies.
type Config struct {
	StrictMode     bool          `env:"POP_STRICT_MODE"`
	JournalPath    string        `env:"POP_JOURNAL_PATH"`
	LogLevel       slog.Level    `env:"POP_LOG_LEVEL"       envDefault:"INFO"`
	MetricsEnabled bool          `env:"POP_METRICS_ENABLED" envDefault:"true"`
	MaxDepth       int           `env:"POP_MAX_DEPTH"       envDefault:"32"`
	StepTimeout    time.Duration `env:"POP_STEP_TIMEOUT"    envDefault:"30s"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.MaxDepth < 0 {
		return Config{}, fmt.Errorf("POP_MAX_DEPTH must not be negative, got %d", cfg.MaxDepth)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
