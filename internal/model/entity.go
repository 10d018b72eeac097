package model

import "fmt"

// Entity is implemented by every persisted entity kind.
type Entity interface {
	// Key returns the collection key of the entity.
	Key() string

	// Validate checks the write-time invariants of the entity.
	Validate() error
}

// ValidationError reports an entity that violates its invariants.
type ValidationError struct {
	// Entity is the entity kind ("field" or "record").
	Entity string

	// Key is the entity key, if known.
	Key string

	// Attr names the offending attribute.
	Attr string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("invalid %s %q: %s: %s", e.Entity, e.Key, e.Attr, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Attr, e.Reason)
}

func invalid(entity, key, attr, format string, args ...any) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Key:    key,
		Attr:   attr,
		Reason: fmt.Sprintf(format, args...),
	}
}
