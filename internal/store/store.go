package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Options configures the storage engine.
type Options struct {
	// Path is the SQLite database file. Created if it doesn't exist.
	Path string

	// TxTimeout bounds every transaction started by Execute.
	TxTimeout time.Duration

	// BusyTimeout is how long SQLite waits on a lock held by another connection.
	BusyTimeout time.Duration

	// Retry is applied to Open and Execute.
	Retry RetryPolicy
}

// DefaultOptions returns the engine defaults for the database at path.
func DefaultOptions(path string) Options {
	return Options{
		Path:        path,
		TxTimeout:   30 * time.Second,
		BusyTimeout: 5 * time.Second,
		Retry:       DefaultRetryPolicy(),
	}
}

// Store is the storage engine. It owns the only connection to the database.
//
// Store implements prometheus.Collector.
type Store struct {
	*metrics

	opts Options
	l    *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the database at opts.Path, applies pragmas and
// upgrades the schema to CurrentSchemaVersion.
//
// Transient failures are retried per opts.Retry. A database that is blocked
// by another connection or carries a newer schema fails with version_error
// on the first attempt.
//
// This function is idempotent - safe to call multiple times on the same path.
func Open(ctx context.Context, opts Options, l *zap.Logger) (*Store, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = DefaultOptions(opts.Path).TxTimeout
	}
	if opts.BusyTimeout < 0 {
		opts.BusyTimeout = 0
	}

	s := &Store{
		metrics: newMetrics(),
		opts:    opts,
		l:       l.Named("store"),
	}

	err := retry(ctx, opts.Retry, s.l, s.metrics, "open", func(attempt int) error {
		s.l.Debug("Opening database", zap.String("path", opts.Path), zap.Int("attempt", attempt))

		db, err := openDB(ctx, opts)
		if err != nil {
			return err
		}
		s.db = db
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.l.Info("Database ready", zap.String("path", opts.Path), zap.Int("schema_version", CurrentSchemaVersion))
	return s, nil
}

// openDB performs a single open attempt.
func openDB(ctx context.Context, opts Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, Wrap(KindConnectionFailed, "open", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Wrap(KindConnectionFailed, "open", fmt.Errorf("failed to connect to database: %w", err))
	}

	// SQLite only supports one writer at a time; the engine serialises on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db, opts.BusyTimeout); err != nil {
		db.Close()
		return nil, blocked(err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, blocked(err)
	}

	return db, nil
}

// blocked turns lock contention during open into a version_error.
// Another session holding the database during upgrade is not transient from our point of view.
func blocked(err error) error {
	if isBusy(err) {
		return &Error{
			Kind:    KindVersionError,
			Op:      "open",
			Message: "database is blocked by another connection",
			Err:     err,
		}
	}
	return err
}

// applyPragmas sets required SQLite configuration.
// busy_timeout goes first so the remaining pragmas honour it.
func applyPragmas(ctx context.Context, db *sql.DB, busyTimeout time.Duration) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
// Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Execute.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db
}

// Options returns the options the store was opened with.
func (s *Store) Options() Options {
	return s.opts
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	db := s.DB()
	if db == nil {
		return 0, NewError(KindConnectionFailed, "schema_version", "store is closed")
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, Classify("schema_version", err)
	}
	return version, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
