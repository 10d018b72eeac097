// Package config loads healthlog's YAML configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/healthlog/internal/cache"
	"github.com/roach88/healthlog/internal/store"
)

// EnvDB overrides database.path when set.
const EnvDB = "HEALTHLOG_DB"

// Config is the complete configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Retry    RetryConfig    `yaml:"retry"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	// Path is the database file.
	Path string `yaml:"path"`

	// TxTimeout bounds every transaction.
	TxTimeout time.Duration `yaml:"tx_timeout"`

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetryConfig configures retries of transient storage failures.
type RetryConfig struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int `yaml:"max_attempts"`

	// Delay is multiplied by the attempt number between attempts.
	Delay time.Duration `yaml:"delay"`
}

// CacheConfig configures the optimistic cache.
type CacheConfig struct {
	// Rollback is "entity" or "snapshot".
	Rollback string `yaml:"rollback"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// Default returns a configuration that works without a config file.
func Default() *Config {
	so := store.DefaultOptions("healthlog.db")
	return &Config{
		Database: DatabaseConfig{
			Path:        so.Path,
			TxTimeout:   so.TxTimeout,
			BusyTimeout: so.BusyTimeout,
		},
		Retry: RetryConfig{
			MaxAttempts: so.Retry.MaxAttempts,
			Delay:       so.Retry.Delay,
		},
		Cache: CacheConfig{Rollback: cache.RollbackEntity.String()},
		Log:   LogConfig{Level: "warn", Format: "console"},
	}
}

// Load reads the config file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	if db := os.Getenv(EnvDB); db != "" {
		cfg.Database.Path = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decode merges YAML data into cfg.
// Unknown keys are rejected so typos don't silently fall back to defaults.
func (cfg *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate checks that every value is usable.
func (cfg *Config) Validate() error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if cfg.Database.TxTimeout <= 0 {
		return fmt.Errorf("database.tx_timeout must be positive, got %s", cfg.Database.TxTimeout)
	}
	if cfg.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative, got %s", cfg.Database.BusyTimeout)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative, got %s", cfg.Retry.Delay)
	}
	if _, err := cache.ParseRollbackPolicy(cfg.Cache.Rollback); err != nil {
		return fmt.Errorf("cache.rollback: %w", err)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}
	return nil
}

// StoreOptions returns the storage engine options.
func (cfg *Config) StoreOptions() store.Options {
	return store.Options{
		Path:        cfg.Database.Path,
		TxTimeout:   cfg.Database.TxTimeout,
		BusyTimeout: cfg.Database.BusyTimeout,
		Retry: store.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
		},
	}
}

// CacheOptions returns the cache options. The config must be valid.
func (cfg *Config) CacheOptions() cache.Options {
	policy, _ := cache.ParseRollbackPolicy(cfg.Cache.Rollback)
	return cache.Options{Rollback: policy}
}
