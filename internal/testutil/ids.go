package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates predictable record IDs for tests.
//
// IDs are prefix-0001, prefix-0002, ... so the same scenario always produces
// the same records and golden output stays byte-identical.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialIDGenerator creates a generator whose first ID is prefix-0001.
// If prefix is empty, "rec" is used.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "rec"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements model.IDGenerator.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}

// Reset restarts the sequence. The next call to Generate returns prefix-0001.
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
