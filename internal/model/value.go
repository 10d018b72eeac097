package model

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Value is a sealed interface for the values a record can carry.
// Only Number, Text and Bool implement it.
type Value interface {
	value() // Sealed

	// Type returns the field type this value satisfies.
	Type() FieldType
}

// Number is a numeric record value.
type Number float64

func (Number) value() {}

// Type implements Value.
func (Number) Type() FieldType { return TypeNumber }

// Text is a free-form string record value.
type Text string

func (Text) value() {}

// Type implements Value.
func (Text) Type() FieldType { return TypeString }

// Bool is a yes/no record value.
type Bool bool

func (Bool) value() {}

// Type implements Value.
func (Bool) Type() FieldType { return TypeBoolean }

// MarshalValue encodes v as a JSON scalar for storage.
// NaN and infinities are rejected because JSON cannot carry them.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("value is missing")
	case Number:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("value %v is not a finite number", f)
		}
		return json.Marshal(f)
	case Text:
		return json.Marshal(string(val))
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// UnmarshalValue decodes a JSON scalar into a Value.
// Objects, arrays and null are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}

	switch val := raw.(type) {
	case float64:
		return Number(val), nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case nil:
		return nil, fmt.Errorf("decode value: null is not a value")
	default:
		return nil, fmt.Errorf("decode value: unsupported JSON type %T", raw)
	}
}

// ParseValue converts user input into a Value of the given type.
// Booleans accept the forms understood by strconv.ParseBool plus yes/no.
func ParseValue(t FieldType, s string) (Value, error) {
	switch t {
	case TypeNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as number: %w", s, err)
		}
		return Number(f), nil
	case TypeString:
		return Text(s), nil
	case TypeBoolean:
		switch s {
		case "yes", "y":
			return Bool(true), nil
		case "no", "n":
			return Bool(false), nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("parse %q as boolean: %w", s, err)
		}
		return Bool(b), nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

// FormatValue renders v for display.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Text:
		return string(val)
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		return ""
	}
}
