package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Collection is a handle on one collection inside a transaction.
// Handles are only valid until the transaction ends.
type Collection struct {
	schema *CollectionSchema
	mode   Mode
	tx     *sql.Tx
}

// Range restricts an index scan.
// A nil bound is open.
type Range struct {
	Lower any
	Upper any
}

// Only returns a range matching exactly v.
func Only(v any) Range {
	return Range{Lower: v, Upper: v}
}

// Bound returns the inclusive range [lower, upper].
func Bound(lower, upper any) Range {
	return Range{Lower: lower, Upper: upper}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.schema.Name
}

// Columns returns the column order used by Put and by every scan.
func (c *Collection) Columns() []string {
	return c.schema.Columns
}

func (c *Collection) writable(op string) error {
	if c.mode != ReadWrite {
		// A caller bug: retrying the same transaction cannot succeed.
		return &Error{
			Kind:      KindTransactionFailed,
			Retryable: false,
			Op:        c.schema.Name + "." + op,
			Message:   "write in a readonly transaction",
		}
	}
	return nil
}

// Put inserts or replaces the entity whose column values are given in
// Columns() order. Re-putting an existing key overwrites it.
func (c *Collection) Put(ctx context.Context, values ...any) error {
	if err := c.writable("put"); err != nil {
		return err
	}
	if len(values) != len(c.schema.Columns) {
		return NewError(KindDataCorrupted, c.schema.Name+".put",
			fmt.Sprintf("got %d values for %d columns", len(values), len(c.schema.Columns)))
	}

	if _, err := c.tx.ExecContext(ctx, c.schema.putSQL, values...); err != nil {
		return fmt.Errorf("%s.put: %w", c.schema.Name, err)
	}
	return nil
}

// Get returns the row for key. Scan reports sql.ErrNoRows if it doesn't exist.
func (c *Collection) Get(ctx context.Context, key string) *sql.Row {
	return c.tx.QueryRowContext(ctx,
		fmt.Sprintf("%s WHERE %s = ?", c.schema.selectSQL, c.schema.Key), key)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Collection) Delete(ctx context.Context, key string) error {
	if err := c.writable("delete"); err != nil {
		return err
	}

	_, err := c.tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.schema.Name, c.schema.Key), key)
	if err != nil {
		return fmt.Errorf("%s.delete: %w", c.schema.Name, err)
	}
	return nil
}

// Clear removes every entity in the collection.
func (c *Collection) Clear(ctx context.Context) error {
	if err := c.writable("clear"); err != nil {
		return err
	}

	if _, err := c.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c.schema.Name)); err != nil {
		return fmt.Errorf("%s.clear: %w", c.schema.Name, err)
	}
	return nil
}

// Count returns the number of stored entities.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.schema.Name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s.count: %w", c.schema.Name, err)
	}
	return n, nil
}

// All returns every row in the collection's deterministic order.
// Callers are responsible for closing the returned rows.
func (c *Collection) All(ctx context.Context) (*sql.Rows, error) {
	rows, err := c.tx.QueryContext(ctx,
		fmt.Sprintf("%s ORDER BY %s", c.schema.selectSQL, c.schema.OrderBy))
	if err != nil {
		return nil, fmt.Errorf("%s.all: %w", c.schema.Name, err)
	}
	return rows, nil
}

// Index scans the named secondary index over r.
// Callers are responsible for closing the returned rows.
func (c *Collection) Index(ctx context.Context, name string, r Range) (*sql.Rows, error) {
	idx, ok := c.schema.index(name)
	if !ok {
		return nil, NewError(KindDataCorrupted, c.schema.Name+".index",
			fmt.Sprintf("unknown index %q", name))
	}

	query := c.schema.selectSQL + " WHERE 1 = 1"
	var args []any
	if r.Lower != nil {
		query += fmt.Sprintf(" AND %s >= ?", idx.Column)
		args = append(args, r.Lower)
	}
	if r.Upper != nil {
		query += fmt.Sprintf(" AND %s <= ?", idx.Column)
		args = append(args, r.Upper)
	}
	query += fmt.Sprintf(" ORDER BY %s, %s", idx.Column, c.schema.OrderBy)

	rows, err := c.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.index(%s): %w", c.schema.Name, name, err)
	}
	return rows, nil
}
