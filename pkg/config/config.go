// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. EHBO_SEED.
const Prefix = "EHBO"

// Config holds the settings shared by every binary.
type Config struct {
	// Seed fixes the random source; zero means a fresh seed per run.
	Seed             int64   `envconfig:"SEED" default:"0"`
	Adaptive         bool    `envconfig:"ADAPTIVE" default:"false"`
	ChainProbability float64 `envconfig:"CHAIN_PROBABILITY" default:"0.3"`
	MaxRevisits      int     `envconfig:"MAX_REVISITS" default:"2"`
	GenericSubject   string  `envconfig:"GENERIC_SUBJECT" default:"the victim"`

	// ContentDir overrides the embedded catalogue when set.
	ContentDir string `envconfig:"CONTENT_DIR"`
	HistoryDB  string `envconfig:"HISTORY_DB" default:"ehbo.db"`
	TraceFile  string `envconfig:"TRACE_FILE"`
	ProfileID  string `envconfig:"PROFILE" default:"local"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load reads an optional .env file and then the EHBO_* environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.ChainProbability < 0 || c.ChainProbability > 1 {
		errs = append(errs, fmt.Errorf("config: %s_CHAIN_PROBABILITY must be within [0,1], got %v", Prefix, c.ChainProbability))
	}
	if c.MaxRevisits < 1 {
		errs = append(errs, fmt.Errorf("config: %s_MAX_REVISITS must be at least 1, got %d", Prefix, c.MaxRevisits))
	}
	if c.GenericSubject == "" {
		errs = append(errs, fmt.Errorf("config: %s_GENERIC_SUBJECT must not be empty", Prefix))
	}
	return errors.Join(errs...)
}
