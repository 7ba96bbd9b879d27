// Package config defines process configuration and its loading.
package config

import (
	"fmt"
	"strings"
)

// Store drivers.
const (
	DriverNone     = ""
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Input files.
	LedgerPath  string `koanf:"ledger_path"`
	EventsPath  string `koanf:"events_path"`
	PlayersPath string `koanf:"players_path"`

	// OutputDir receives the local exports.
	OutputDir string `koanf:"output_dir"`

	// StoreDriver selects the external store; empty disables sync.
	StoreDriver string `koanf:"store_driver"`
	DatabaseURL string `koanf:"database_url"`
	SQLitePath  string `koanf:"sqlite_path"`
	// SeedReference mirrors the event and player tables into the store
	// before syncing. Only for stores that own those tables.
	SeedReference bool `koanf:"seed_reference"`

	// SyncWorkers is the store writer pool size; one or less writes inline.
	SyncWorkers int `koanf:"sync_workers"`
	// ProgressEvery is the progress log cadence in games and records.
	ProgressEvery int `koanf:"progress_every"`

	// Display transform: ordinal*OrdinalScale + OrdinalOffset.
	OrdinalScale  float64 `koanf:"ordinal_scale"`
	OrdinalOffset float64 `koanf:"ordinal_offset"`

	// Rating model parameters.
	ModelMu    float64 `koanf:"model_mu"`
	ModelSigma float64 `koanf:"model_sigma"`
	ModelBeta  float64 `koanf:"model_beta"`
	ModelTau   float64 `koanf:"model_tau"`
	ModelKappa float64 `koanf:"model_kappa"`
	ModelZ     float64 `koanf:"model_z"`

	// Addr configures the HTTP listen address of serve, e.g. ":9080".
	Addr string `koanf:"addr"`
	// MaxRankingsLimit caps GET /rankings/{pool}?limit.
	MaxRankingsLimit int `koanf:"max_rankings_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		LedgerPath:       "data/ledger.csv",
		EventsPath:       "data/events.csv",
		PlayersPath:      "data/players.csv",
		OutputDir:        "out",
		SQLitePath:       "tourneyrank.db",
		SyncWorkers:      4,
		ProgressEvery:    100,
		OrdinalScale:     24,
		OrdinalOffset:    1200,
		ModelMu:          25,
		ModelSigma:       25.0 / 3,
		ModelBeta:        25.0 / 6,
		ModelTau:         25.0 / 300,
		ModelKappa:       0.0001,
		ModelZ:           3,
		Addr:             ":9080",
		MaxRankingsLimit: 500,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.LedgerPath) == "":
		return fmt.Errorf("%w: ledger_path must not be empty", ErrInvalidConfig)
	case c.OrdinalScale <= 0:
		return fmt.Errorf("%w: ordinal_scale must be positive", ErrInvalidConfig)
	case c.ModelSigma <= 0:
		return fmt.Errorf("%w: model_sigma must be positive", ErrInvalidConfig)
	case c.ModelBeta <= 0:
		return fmt.Errorf("%w: model_beta must be positive", ErrInvalidConfig)
	case c.ProgressEvery < 1:
		return fmt.Errorf("%w: progress_every must be at least 1", ErrInvalidConfig)
	case c.MaxRankingsLimit < 1:
		return fmt.Errorf("%w: max_rankings_limit must be at least 1", ErrInvalidConfig)
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}

	switch c.StoreDriver {
	case DriverNone, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}
