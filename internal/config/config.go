// Package config holds the server configuration, loaded from the
// environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the listen address of the HTTP API.
	Addr string `env:"RULEGATE_ADDR" envDefault:":8080"`

	// DatabaseDSN is the Postgres connection string for rule set
	// persistence. Empty disables persistence.
	DatabaseDSN string `env:"RULEGATE_DB_DSN"`

	// RulesPath is a directory of YAML rule documents loaded at startup.
	// Empty starts the server with no validators.
	RulesPath string `env:"RULEGATE_RULES_PATH"`

	// ParallelCompile compiles rule sets across cores on publish.
	ParallelCompile bool `env:"RULEGATE_PARALLEL_COMPILE" envDefault:"true"`

	// Prefilter enables the literal prefilter on built validators.
	Prefilter bool `env:"RULEGATE_PREFILTER" envDefault:"true"`

	// LogLevel is a zap level string (debug, info, warn, error).
	LogLevel string `env:"RULEGATE_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
