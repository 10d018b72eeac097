package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/store"
)

// checkFunc runs inside a write transaction before item is put.
type checkFunc[T model.Entity] func(ctx context.Context, c *store.Collection, item T) error

// Repository provides CRUD over one collection.
// It is safe for concurrent use; every call is its own transaction.
type Repository[T model.Entity] struct {
	s     *store.Store
	codec Codec[T]
	l     *zap.Logger
	check checkFunc[T]
}

// New creates a repository over the codec's collection.
func New[T model.Entity](s *store.Store, codec Codec[T], l *zap.Logger) *Repository[T] {
	return &Repository[T]{
		s:     s,
		codec: codec,
		l:     l.Named(codec.Collection),
	}
}

// Collection returns the name of the underlying collection.
func (r *Repository[T]) Collection() string {
	return r.codec.Collection
}

// Add stores item. Adding an existing key overwrites it.
func (r *Repository[T]) Add(ctx context.Context, item T) error {
	return r.write(ctx, "add", func(ctx context.Context, c *store.Collection) error {
		return r.put(ctx, c, item)
	})
}

// Update stores item. Updating a missing key creates it.
func (r *Repository[T]) Update(ctx context.Context, item T) error {
	return r.write(ctx, "update", func(ctx context.Context, c *store.Collection) error {
		return r.put(ctx, c, item)
	})
}

// Delete removes key. Deleting a missing key succeeds.
func (r *Repository[T]) Delete(ctx context.Context, key string) error {
	return r.write(ctx, "delete", func(ctx context.Context, c *store.Collection) error {
		return c.Delete(ctx, key)
	})
}

// Clear removes every entity in the collection.
func (r *Repository[T]) Clear(ctx context.Context) error {
	return r.write(ctx, "clear", func(ctx context.Context, c *store.Collection) error {
		return c.Clear(ctx)
	})
}

// BatchUpsert stores all items in a single transaction.
// Either every item is stored or none is.
func (r *Repository[T]) BatchUpsert(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	return r.write(ctx, "batch_upsert", func(ctx context.Context, c *store.Collection) error {
		for _, item := range items {
			if err := r.put(ctx, c, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the entity stored under key.
// The boolean is false if no such entity exists.
func (r *Repository[T]) Get(ctx context.Context, key string) (T, bool, error) {
	type result struct {
		item  T
		found bool
	}

	res, err := store.Query(ctx, r.s, []string{r.codec.Collection}, func(ctx context.Context, tx *store.Tx) (result, error) {
		c, err := tx.Collection(r.codec.Collection)
		if err != nil {
			return result{}, err
		}

		item, found, err := r.get(ctx, c, key)
		return result{item: item, found: found}, err
	})
	return res.item, res.found, err
}

// GetAll returns every entity in the collection's order.
// Rows that fail to decode are logged and skipped. The result is never nil.
func (r *Repository[T]) GetAll(ctx context.Context) ([]T, error) {
	return store.Query(ctx, r.s, []string{r.codec.Collection}, func(ctx context.Context, tx *store.Tx) ([]T, error) {
		c, err := tx.Collection(r.codec.Collection)
		if err != nil {
			return nil, err
		}

		rows, err := c.All(ctx)
		if err != nil {
			return nil, err
		}
		return r.scanAll(rows)
	})
}

// Count returns the number of stored entities.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	return store.Query(ctx, r.s, []string{r.codec.Collection}, func(ctx context.Context, tx *store.Tx) (int, error) {
		c, err := tx.Collection(r.codec.Collection)
		if err != nil {
			return 0, err
		}
		return c.Count(ctx)
	})
}

// index returns the entities matching rng on the named index.
func (r *Repository[T]) index(ctx context.Context, name string, rng store.Range) ([]T, error) {
	return store.Query(ctx, r.s, []string{r.codec.Collection}, func(ctx context.Context, tx *store.Tx) ([]T, error) {
		c, err := tx.Collection(r.codec.Collection)
		if err != nil {
			return nil, err
		}

		rows, err := c.Index(ctx, name, rng)
		if err != nil {
			return nil, err
		}
		return r.scanAll(rows)
	})
}

// write runs fn in a readwrite transaction on the repository's collection.
func (r *Repository[T]) write(ctx context.Context, op string, fn func(ctx context.Context, c *store.Collection) error) error {
	r.l.Debug("Write", zap.String("op", op))

	return r.s.Execute(ctx, []string{r.codec.Collection}, store.ReadWrite, func(ctx context.Context, tx *store.Tx) error {
		c, err := tx.Collection(r.codec.Collection)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	})
}

// put validates and stores item through c.
func (r *Repository[T]) put(ctx context.Context, c *store.Collection, item T) error {
	op := r.codec.Collection + ".put"

	if err := item.Validate(); err != nil {
		return store.Wrap(store.KindDataCorrupted, op, err)
	}

	if r.check != nil {
		if err := r.check(ctx, c, item); err != nil {
			return err
		}
	}

	values, err := r.codec.Encode(item)
	if err != nil {
		return store.Wrap(store.KindDataCorrupted, op, err)
	}
	return c.Put(ctx, values...)
}

// get reads key through c.
// A row that exists but does not decode is reported as data_corrupted.
func (r *Repository[T]) get(ctx context.Context, c *store.Collection, key string) (T, bool, error) {
	var zero T

	item, err := r.codec.Decode(c.Get(ctx, key))
	switch {
	case err == nil:
		return item, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return zero, false, nil
	case isDecodeError(err):
		return zero, false, store.Wrap(store.KindDataCorrupted, r.codec.Collection+".get", err)
	default:
		return zero, false, err
	}
}

// scanAll decodes rows, dropping the ones that fail to decode.
func (r *Repository[T]) scanAll(rows *sql.Rows) ([]T, error) {
	defer rows.Close()

	res := []T{}
	var dropped int
	for rows.Next() {
		item, err := r.codec.Decode(rows)
		if err != nil {
			dropped++
			r.l.Warn("Skipping malformed row", zap.Error(err))
			continue
		}
		res = append(res, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", r.codec.Collection, err)
	}

	if dropped > 0 {
		r.l.Warn("Dropped malformed rows", zap.Int("dropped", dropped), zap.Int("kept", len(res)))
	}
	return res, nil
}

// isDecodeError reports whether err came from decoding a row rather than
// from the database.
func isDecodeError(err error) bool {
	_, classified := store.AsError(err)
	return !classified && store.Classify("", err).Kind == store.KindUnknown
}
