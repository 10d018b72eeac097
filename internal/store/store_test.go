package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testOptions returns options suitable for tests: fast retries, short waits.
func testOptions(path string) Options {
	opts := DefaultOptions(path)
	opts.BusyTimeout = 50 * time.Millisecond
	opts.Retry = RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
	return opts
}

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), testOptions(path), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), testOptions(path), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := Open(ctx, testOptions(path), zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(ctx, testOptions(path), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	for _, table := range []string{"fields", "records"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	path := "/nonexistent/dir/test.db"

	s, err := Open(context.Background(), testOptions(path), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, IsKind(err, KindConnectionFailed), "got %v", err)
}

func TestOpen_NewerSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = Open(context.Background(), testOptions(path), zaptest.NewLogger(t))
	require.Error(t, err)

	se, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindVersionError, se.Kind)
	assert.False(t, se.Retryable)
	assert.Contains(t, se.Message, "99")
}

func TestOpen_BlockedByAnotherConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()

	conn, err := raw.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ExecContext(ctx, "BEGIN EXCLUSIVE")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "CREATE TABLE lock_holder (x INTEGER)")
	require.NoError(t, err)
	defer conn.ExecContext(ctx, "ROLLBACK")

	_, err = Open(ctx, testOptions(path), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindVersionError), "got %v", err)
}

func TestClose_MultipleCalls(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Nil(t, s.DB())
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestExecute_AfterClose(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Close())

	err := s.Execute(context.Background(), []string{CollectionFields}, ReadOnly, func(ctx context.Context, tx *Tx) error {
		return nil
	})
	assert.True(t, IsKind(err, KindConnectionFailed), "got %v", err)
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("busy_timeout", "50"))
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

// Schema tests

func TestSchema_FieldsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "fields")
	assert.ElementsMatch(t, collections[CollectionFields].Columns, columns)
}

func TestSchema_RecordsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "records")
	assert.ElementsMatch(t, collections[CollectionRecords].Columns, columns)
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	for name, cs := range collections {
		indexes := getTableIndexes(t, s.db, name)
		for _, idx := range cs.Indexes {
			assert.Contains(t, indexes, idx.Table, "%s missing index %s", name, idx.Table)
		}
	}
}

func TestSchema_TypeConstraint(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO fields (field_id, name, type) VALUES ('mood', 'Mood', 'emoji')`)
	require.Error(t, err)
	assert.Equal(t, KindDataCorrupted, Classify("insert", err).Kind)
}

// Migration tests

func TestMigrate_FromV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	// Build a v1 database by hand, as an older release would have left it.
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(schemaV1SQL)
	require.NoError(t, err)
	_, err = raw.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO fields (field_id, name, type) VALUES ('weight', 'Weight', 'number')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := Open(ctx, testOptions(path), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	var scope sql.NullString
	err = s.db.QueryRow("SELECT scope FROM fields WHERE field_id = 'weight'").Scan(&scope)
	require.NoError(t, err)
	assert.False(t, scope.Valid, "migrated rows keep NULL scope")
}

func TestMigrate_RerunIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, m := range migrations {
		tx, err := s.db.BeginTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, m.apply(ctx, tx), "migration v%d", m.version)
		require.NoError(t, tx.Commit())
	}

	require.NoError(t, migrate(ctx, s.db))
}

// Metrics tests

func TestStore_Metrics(t *testing.T) {
	s := createTestStore(t)

	err := s.Execute(context.Background(), []string{CollectionFields}, ReadOnly, func(ctx context.Context, tx *Tx) error {
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.attempts.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.attempts.WithLabelValues("fields.readonly")))
	assert.NotZero(t, testutil.CollectAndCount(s, "healthlog_store_attempts_total"))
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
