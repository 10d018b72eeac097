package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthlog/internal/cache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts := cfg.StoreOptions()
	assert.Equal(t, "healthlog.db", opts.Path)
	assert.Equal(t, 30*time.Second, opts.TxTimeout)
	assert.Equal(t, 3, opts.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, opts.Retry.Delay)
	assert.Equal(t, cache.RollbackEntity, cfg.CacheOptions().Rollback)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvDB, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	t.Setenv(EnvDB, "")

	path := writeConfig(t, `
database:
  path: /tmp/health.db
  tx_timeout: 5s
retry:
  delay: 250ms
cache:
  rollback: snapshot
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/health.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, cache.RollbackSnapshot, cfg.CacheOptions().Rollback)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv(EnvDB, "")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverridesPath(t *testing.T) {
	t.Setenv(EnvDB, "/data/env.db")

	cfg, err := Load(writeConfig(t, "database:\n  path: /tmp/file.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/data/env.db", cfg.Database.Path)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvDB, "")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "database:\n  pth: x.db\n", "field pth not found"},
		{"bad duration", "database:\n  tx_timeout: soon\n", "failed to parse YAML"},
		{"zero timeout", "database:\n  tx_timeout: 0s\n", "tx_timeout must be positive"},
		{"zero attempts", "retry:\n  max_attempts: 0\n", "max_attempts must be at least 1"},
		{"negative delay", "retry:\n  delay: -1s\n", "delay must not be negative"},
		{"bad rollback", "cache:\n  rollback: partial\n", "cache.rollback"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
