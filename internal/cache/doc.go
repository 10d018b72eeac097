// Package cache keeps an in-memory mirror of each collection and applies
// mutations to it optimistically.
//
// A mutation is applied to the mirror first, then written through the
// collection's repository. If the write fails the mirror is rolled back and
// the classified *store.Error is returned and recorded in the collection's
// status. Readers use Mirror, which never fails and never touches the
// database; only Load reads from storage.
//
// The collection remembers the last value stored for each key and how many
// mutations of the key are unresolved. When the last of them resolves, the
// key shows its stored value, so once nothing is in flight the mirror
// matches the database whichever order writes fail or succeed in.
//
// Rollback granularity is configurable. On failure RollbackEntity (the
// default) only touches keys the failed mutation wrote, so unrelated
// in-flight mutations stay visible. RollbackSnapshot restores the whole
// mirror captured before the mutation, hiding other in-flight mutations
// until they resolve.
package cache
