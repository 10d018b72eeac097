package repo

import (
	"database/sql"
	"fmt"

	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/store"
)

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Codec maps entities of type T to the column values of one collection.
type Codec[T model.Entity] struct {
	// Collection is the store collection the codec reads and writes.
	Collection string

	// Encode returns the column values of item in store column order.
	Encode func(item T) ([]any, error)

	// Decode reads one row. It checks shape only; write-time invariants
	// are enforced by Validate.
	Decode func(s Scanner) (T, error)
}

// FieldCodec maps model.Field to the fields collection.
var FieldCodec = Codec[model.Field]{
	Collection: store.CollectionFields,
	Encode:     encodeField,
	Decode:     DecodeField,
}

// RecordCodec maps model.Record to the records collection.
var RecordCodec = Codec[model.Record]{
	Collection: store.CollectionRecords,
	Encode:     encodeRecord,
	Decode:     DecodeRecord,
}

func encodeField(f model.Field) ([]any, error) {
	display := 0
	if f.DefaultDisplay {
		display = 1
	}
	var scope any
	if f.Scope != "" {
		scope = f.Scope
	}
	return []any{f.FieldID, f.Name, f.Unit, string(f.Type), f.Order, display, scope}, nil
}

// DecodeField reads a field row.
// Missing optional attributes (unit, scope) decode to their zero values.
func DecodeField(s Scanner) (model.Field, error) {
	var (
		f       model.Field
		typ     string
		unit    sql.NullString
		display sql.NullInt64
		scope   sql.NullString
	)
	if err := s.Scan(&f.FieldID, &f.Name, &unit, &typ, &f.Order, &display, &scope); err != nil {
		return model.Field{}, err
	}

	t, err := model.ParseFieldType(typ)
	if err != nil {
		return model.Field{}, fmt.Errorf("field %q: %w", f.FieldID, err)
	}
	if f.FieldID == "" {
		return model.Field{}, fmt.Errorf("field without id")
	}

	f.Type = t
	f.Unit = unit.String
	f.DefaultDisplay = display.Int64 != 0
	f.Scope = scope.String
	return f, nil
}

func encodeRecord(r model.Record) ([]any, error) {
	value, err := model.MarshalValue(r.Value)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", r.ID, err)
	}
	var datetime any
	if r.Datetime != "" {
		datetime = r.Datetime
	}
	return []any{r.ID, r.Date, r.Time, datetime, r.FieldID, string(value)}, nil
}

// DecodeRecord reads a record row.
// A missing datetime decodes to "" and is filled in by load-time migration.
func DecodeRecord(s Scanner) (model.Record, error) {
	var (
		r        model.Record
		tm       sql.NullString
		datetime sql.NullString
		value    string
	)
	if err := s.Scan(&r.ID, &r.Date, &tm, &datetime, &r.FieldID, &value); err != nil {
		return model.Record{}, err
	}
	if r.ID == "" {
		return model.Record{}, fmt.Errorf("record without id")
	}
	if r.FieldID == "" {
		return model.Record{}, fmt.Errorf("record %q: missing field id", r.ID)
	}

	v, err := model.UnmarshalValue([]byte(value))
	if err != nil {
		return model.Record{}, fmt.Errorf("record %q: %w", r.ID, err)
	}

	r.Time = tm.String
	r.Datetime = datetime.String
	r.Value = v
	return r, nil
}
