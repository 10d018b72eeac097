// Package store provides the SQLite-backed storage engine for healthlog.
//
// The engine exposes an IndexedDB-like model on top of SQLite:
//   - Collections: one table per entity kind, keyed by its unique attribute
//   - Indexes: secondary indexes for range scans (records by date, by field)
//   - Transactions: Execute spans one or more collections in readonly or
//     readwrite mode and commits all-or-nothing
//
// # Failure handling
//
// Every failure leaving the engine is an *Error carrying a Kind:
//
//	connection_failed   retryable   open failed transiently
//	transaction_failed  retryable   busy/locked database, timeout, abort
//	data_corrupted      permanent   constraint violation, malformed entity
//	quota_exceeded      permanent   disk full
//	version_error       permanent   schema too new, blocked by another connection
//	unknown             retryable   anything unclassified
//
// Open and Execute retry retryable failures up to RetryPolicy.MaxAttempts
// times with linear backoff (Delay * attempt). Each transaction is bounded by
// Options.TxTimeout; on expiry it is rolled back and reported as
// transaction_failed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks up to Options.BusyTimeout
//   - foreign_keys=ON
//   - One open connection; the engine owns it exclusively
//
// Schema upgrades are tracked with PRAGMA user_version and are idempotent.
package store
