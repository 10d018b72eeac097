package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Mode is the access mode of a transaction.
type Mode int

const (
	// ReadOnly transactions refuse writes through their collection handles.
	ReadOnly Mode = iota

	// ReadWrite transactions may write to every declared collection.
	ReadWrite
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Tx is a transaction spanning a fixed set of collections.
type Tx struct {
	tx      *sql.Tx
	mode    Mode
	handles map[string]*Collection
}

// Mode returns the access mode of the transaction.
func (tx *Tx) Mode() Mode {
	return tx.mode
}

// Collection returns the handle of a collection declared when the
// transaction was started.
func (tx *Tx) Collection(name string) (*Collection, error) {
	c, ok := tx.handles[name]
	if !ok {
		// A caller bug: retrying the same transaction cannot succeed.
		return nil, &Error{
			Kind:      KindTransactionFailed,
			Retryable: false,
			Op:        name,
			Message:   fmt.Sprintf("collection %q is not part of this transaction", name),
		}
	}
	return c, nil
}

// Execute runs op in a transaction spanning collections and commits it.
//
// Any error returned by op aborts the whole transaction. The transaction is
// bounded by Options.TxTimeout; on expiry it is rolled back and reported as
// transaction_failed. Retryable failures re-run op from scratch in a new
// transaction, so op must not keep state across calls.
//
// The returned error is always an *Error (or nil).
func (s *Store) Execute(ctx context.Context, collections []string, mode Mode, op func(ctx context.Context, tx *Tx) error) error {
	name := opName(collections, mode)

	return retry(ctx, s.opts.Retry, s.l, s.metrics, name, func(attempt int) error {
		return s.execute(ctx, name, collections, mode, op)
	})
}

// Query runs op in a readonly transaction and returns its result.
func Query[T any](ctx context.Context, s *Store, collections []string, op func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var res T
	err := s.Execute(ctx, collections, ReadOnly, func(ctx context.Context, tx *Tx) error {
		var err error
		res, err = op(ctx, tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res, nil
}

// execute performs a single transaction attempt.
func (s *Store) execute(ctx context.Context, name string, names []string, mode Mode, op func(ctx context.Context, tx *Tx) error) (err error) {
	db := s.DB()
	if db == nil {
		return NewError(KindConnectionFailed, name, "store is closed")
	}

	handles := make(map[string]*Collection, len(names))
	for _, n := range names {
		cs, ok := collections[n]
		if !ok {
			return &Error{
				Kind:    KindDataCorrupted,
				Op:      name,
				Message: fmt.Sprintf("unknown collection %q", n),
			}
		}
		handles[n] = &Collection{schema: cs, mode: mode}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		result := "commit"
		if err != nil {
			result = "abort"
		}
		s.duration.WithLabelValues(mode.String(), result).Observe(time.Since(start).Seconds())
	}()

	sqlTx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: mode == ReadOnly})
	if err != nil {
		return s.txError(ctx, name, fmt.Errorf("begin tx: %w", err))
	}

	var committed bool
	defer func() {
		if !committed {
			if rerr := sqlTx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				s.l.Warn("Rollback failed", zap.String("op", name), zap.Error(rerr))
			}
		}
	}()

	tx := &Tx{tx: sqlTx, mode: mode, handles: handles}
	for _, h := range handles {
		h.tx = sqlTx
	}

	if err = op(ctx, tx); err != nil {
		return s.txError(ctx, name, err)
	}

	if err = sqlTx.Commit(); err != nil {
		return s.txError(ctx, name, fmt.Errorf("commit: %w", err))
	}
	committed = true

	return nil
}

// txError classifies err, reporting an expired transaction as a timeout
// regardless of which call noticed it first.
func (s *Store) txError(ctx context.Context, name string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{
			Kind:      KindTransactionFailed,
			Retryable: true,
			Op:        name,
			Message:   fmt.Sprintf("transaction timed out after %s", s.opts.TxTimeout),
			Err:       err,
		}
	}
	return Classify(name, err)
}

func opName(collections []string, mode Mode) string {
	switch len(collections) {
	case 0:
		return mode.String()
	case 1:
		return collections[0] + "." + mode.String()
	default:
		return "multi." + mode.String()
	}
}
