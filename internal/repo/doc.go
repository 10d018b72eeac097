// Package repo provides typed repositories over the store's collections.
//
// Each Repository wraps one collection with a codec that maps entities to
// column values and back. Every write validates the entity inside the
// transaction, so an invalid entity aborts the transaction with
// data_corrupted. Reads are defensive: GetAll drops rows that no longer
// decode instead of failing the whole read.
package repo
