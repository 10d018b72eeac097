package model

import (
	"cmp"
	"fmt"
	"math"
	"strings"
)

// FieldType is the declared type of the values logged against a field.
type FieldType string

const (
	TypeNumber  FieldType = "number"
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
)

// ParseFieldType validates a stored or user-supplied type name.
func ParseFieldType(s string) (FieldType, error) {
	switch t := FieldType(s); t {
	case TypeNumber, TypeString, TypeBoolean:
		return t, nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}

// DefaultScope is assigned to fields stored before scopes existed.
const DefaultScope = "general"

// Field describes a loggable metric.
type Field struct {
	FieldID        string    `json:"fieldId"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit,omitempty"`
	Type           FieldType `json:"type"`
	Order          float64   `json:"order"`
	DefaultDisplay bool      `json:"defaultDisplay"`
	Scope          string    `json:"scope,omitempty"`
}

// Key implements Entity.
func (f Field) Key() string {
	return f.FieldID
}

// Validate implements Entity.
func (f Field) Validate() error {
	if err := ValidateSlug(f.FieldID); err != nil {
		return invalid("field", f.FieldID, "fieldId", "%v", err)
	}
	if strings.TrimSpace(f.Name) == "" {
		return invalid("field", f.FieldID, "name", "must not be empty")
	}
	if _, err := ParseFieldType(string(f.Type)); err != nil {
		return invalid("field", f.FieldID, "type", "%v", err)
	}
	if math.IsNaN(f.Order) || math.IsInf(f.Order, 0) {
		return invalid("field", f.FieldID, "order", "must be a finite number")
	}
	if f.Scope != "" {
		if err := ValidateSlug(f.Scope); err != nil {
			return invalid("field", f.FieldID, "scope", "%v", err)
		}
	}
	return nil
}

// CompareFields orders fields by Order, then FieldID.
func CompareFields(a, b Field) int {
	if c := cmp.Compare(a.Order, b.Order); c != 0 {
		return c
	}
	return strings.Compare(a.FieldID, b.FieldID)
}

// OrderBetween returns a sort key strictly between before and after.
// A zero neighbour on either side is treated as open.
func OrderBetween(before, after *Field) float64 {
	switch {
	case before == nil && after == nil:
		return 1
	case before == nil:
		return after.Order - 1
	case after == nil:
		return before.Order + 1
	default:
		return before.Order + (after.Order-before.Order)/2
	}
}

// MigrateField fills attributes introduced after the field was stored.
// Reports whether anything changed.
func MigrateField(f Field) (Field, bool) {
	if f.Scope == "" {
		f.Scope = DefaultScope
		return f, true
	}
	return f, false
}
