// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`

	DBPath   string `env:"GAVEL_DB_PATH" envDefault:"gavel.db"`
	BoltPath string `env:"GAVEL_BOLT_PATH" envDefault:"gavel.bolt"`

	// StaffConfig is the staff roles JSON file. Empty disables staff roles.
	StaffConfig string `env:"GAVEL_STAFF_CONFIG"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`

	ConfirmTimeout     time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"30s"`
	PurgeWorkers       int           `env:"PURGE_WORKERS" envDefault:"3"`
	PurgeRatePerSecond float64       `env:"PURGE_RATE_PER_SECOND" envDefault:"5"`
}

// Load reads .env (when present) and then the environment. Variables
// already set in the environment win over .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit .env path
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the env tags cannot express
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	if c.PurgeWorkers < 1 {
		return fmt.Errorf("PURGE_WORKERS must be at least 1")
	}
	if c.PurgeRatePerSecond <= 0 {
		return fmt.Errorf("PURGE_RATE_PER_SECOND must be positive")
	}
	return nil
}
