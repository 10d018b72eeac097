package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema_v1.sql
var schemaV1SQL string

// Schema version tracking:
// 0 - Empty database
// 1 - fields and records collections
// 2 - fields.scope column and scope index
// 3 - records date and field/datetime indexes
const CurrentSchemaVersion = 3

// migration upgrades the schema by one version inside tx.
type migration struct {
	version int
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, apply: migrateToV1},
	{version: 2, apply: migrateToV2},
	{version: 3, apply: migrateToV3},
}

// migrate applies every pending migration, each in its own transaction
// together with the user_version bump. Running it against an up-to-date
// database is a no-op.
func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version > CurrentSchemaVersion {
		return NewError(KindVersionError, "open",
			fmt.Sprintf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion))
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		version = m.version
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin tx: %w", m.version, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := m.apply(ctx, tx); err != nil {
		return fmt.Errorf("migrate to v%d: %w", m.version, err)
	}

	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v%d: commit: %w", m.version, err)
	}

	return nil
}

// migrateToV1 creates the base collections.
func migrateToV1(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, schemaV1SQL)
	return err
}

// migrateToV2 adds the optional fields.scope attribute.
// Existing rows keep NULL; the cache defaults them on load.
func migrateToV2(ctx context.Context, tx *sql.Tx) error {
	exists, err := columnExists(ctx, tx, "fields", "scope")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := tx.ExecContext(ctx, "ALTER TABLE fields ADD COLUMN scope TEXT"); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_fields_scope ON fields(scope)")
	return err
}

// migrateToV3 adds the secondary indexes used for range scans over records.
func migrateToV3(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_records_date ON records(date, datetime)",
		"CREATE INDEX IF NOT EXISTS idx_records_field_datetime ON records(field_id, datetime)",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}

	return false, rows.Err()
}
