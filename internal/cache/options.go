package cache

import "fmt"

// RollbackPolicy selects how a failed single-entity mutation is undone.
type RollbackPolicy int

const (
	// RollbackEntity restores only the mutated entity.
	RollbackEntity RollbackPolicy = iota

	// RollbackSnapshot restores the whole mirror captured before the mutation.
	// A concurrent mutation applied in between is discarded with it.
	RollbackSnapshot
)

// String implements fmt.Stringer.
func (p RollbackPolicy) String() string {
	switch p {
	case RollbackEntity:
		return "entity"
	case RollbackSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("RollbackPolicy(%d)", int(p))
	}
}

// ParseRollbackPolicy parses "entity" or "snapshot".
func ParseRollbackPolicy(s string) (RollbackPolicy, error) {
	switch s {
	case "entity", "":
		return RollbackEntity, nil
	case "snapshot":
		return RollbackSnapshot, nil
	default:
		return 0, fmt.Errorf("unknown rollback policy %q (want entity or snapshot)", s)
	}
}

// Options configures every collection of a cache.
type Options struct {
	Rollback RollbackPolicy
}
