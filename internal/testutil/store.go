package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/healthlog/internal/store"
)

// StoreOptions returns store options for a fresh database in a temp dir.
// Retries are fast so failure paths don't slow the suite down.
func StoreOptions(t testing.TB) store.Options {
	t.Helper()

	opts := store.DefaultOptions(filepath.Join(t.TempDir(), "test.db"))
	opts.TxTimeout = 5 * time.Second
	opts.BusyTimeout = 50 * time.Millisecond
	opts.Retry = store.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
	return opts
}

// OpenStore opens a migrated store in a temp dir and closes it on cleanup.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), StoreOptions(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
