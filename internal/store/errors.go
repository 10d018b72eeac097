package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/healthlog/internal/model"
)

// Kind categorizes storage failures.
type Kind string

const (
	// KindConnectionFailed indicates the database could not be opened or reached.
	KindConnectionFailed Kind = "connection_failed"

	// KindTransactionFailed indicates the transaction could not complete:
	// busy or locked database, timeout, abort.
	KindTransactionFailed Kind = "transaction_failed"

	// KindDataCorrupted indicates a constraint violation or malformed entity.
	KindDataCorrupted Kind = "data_corrupted"

	// KindQuotaExceeded indicates the storage medium is full.
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindVersionError indicates a schema version conflict or a database
	// blocked by another connection during upgrade.
	KindVersionError Kind = "version_error"

	// KindUnknown indicates an unclassified failure.
	KindUnknown Kind = "unknown"
)

// Retryable reports whether failures of this kind are expected to be transient.
func (k Kind) Retryable() bool {
	switch k {
	case KindDataCorrupted, KindQuotaExceeded, KindVersionError:
		return false
	default:
		return true
	}
}

// Error is the classified failure returned by every storage operation.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Retryable reports whether the engine may retry the operation.
	// NewError and Wrap set it from Kind.Retryable(); caller errors that no
	// retry can fix clear it.
	Retryable bool

	// Op names the operation that failed ("open", "fields.put", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying platform error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind with default retryability.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Retryable: kind.Retryable(), Op: op, Message: message}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Retryable: kind.Retryable(), Op: op, Message: err.Error(), Err: err}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind returns true if err is an *Error of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind Kind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == kind
}

// Classify maps an arbitrary error to an *Error.
// Errors that are already classified are returned unchanged.
// Returns nil for a nil error.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	if se, ok := AsError(err); ok {
		return se
	}

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return Wrap(KindDataCorrupted, op, err)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTransactionFailed, Retryable: true, Op: op, Message: "transaction timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindTransactionFailed, Retryable: false, Op: op, Message: "operation canceled", Err: err}
	case errors.Is(err, sql.ErrTxDone):
		return Wrap(KindTransactionFailed, op, err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn):
		return Wrap(KindConnectionFailed, op, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return Wrap(sqliteKind(sqliteErr.Code), op, err)
	}

	return Wrap(KindUnknown, op, err)
}

// sqliteKind maps SQLite primary result codes to a Kind.
func sqliteKind(code sqlite3.ErrNo) Kind {
	switch code {
	case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrRange, sqlite3.ErrTooBig,
		sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrFormat:
		return KindDataCorrupted
	case sqlite3.ErrFull:
		return KindQuotaExceeded
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrAbort, sqlite3.ErrInterrupt, sqlite3.ErrSchema:
		return KindTransactionFailed
	case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrNomem:
		return KindConnectionFailed
	default:
		return KindUnknown
	}
}

// isBusy reports whether err is SQLite telling us another connection holds a lock.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
