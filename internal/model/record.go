package model

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used for the calendar attributes of a record.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	DatetimeLayout = "2006-01-02T15:04:05"
)

// Record is a single timestamped observation of a field.
type Record struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Datetime string `json:"datetime"`
	FieldID  string `json:"fieldId"`
	Value    Value  `json:"value"`
}

// NewRecord builds a record for fieldID observed at t.
func NewRecord(id, fieldID string, t time.Time, v Value) Record {
	return Record{
		ID:       id,
		Date:     t.Format(DateLayout),
		Time:     t.Format(TimeLayout),
		Datetime: t.Format(DatetimeLayout),
		FieldID:  fieldID,
		Value:    v,
	}
}

// Key implements Entity.
func (r Record) Key() string {
	return r.ID
}

// Validate implements Entity.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return invalid("record", r.ID, "id", "must not be empty")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return invalid("record", r.ID, "date", "%q is not YYYY-MM-DD", r.Date)
	}
	if r.Time != "" {
		if _, err := time.Parse(TimeLayout, r.Time); err != nil {
			return invalid("record", r.ID, "time", "%q is not HH:MM", r.Time)
		}
	}
	dt, err := time.Parse(DatetimeLayout, r.Datetime)
	if err != nil {
		return invalid("record", r.ID, "datetime", "%q is not YYYY-MM-DDTHH:MM:SS", r.Datetime)
	}
	if dt.Format(DateLayout) != r.Date {
		return invalid("record", r.ID, "datetime", "%q does not fall on %s", r.Datetime, r.Date)
	}
	if r.FieldID == "" {
		return invalid("record", r.ID, "fieldId", "must not be empty")
	}
	if r.Value == nil {
		return invalid("record", r.ID, "value", "must not be empty")
	}
	if _, err := MarshalValue(r.Value); err != nil {
		return invalid("record", r.ID, "value", "%v", err)
	}
	return nil
}

// CheckValue reports whether r's value agrees with the declared type of f.
func CheckValue(f Field, r Record) error {
	if r.FieldID != f.FieldID {
		return invalid("record", r.ID, "fieldId", "record belongs to %q, not %q", r.FieldID, f.FieldID)
	}
	if r.Value == nil {
		return invalid("record", r.ID, "value", "must not be empty")
	}
	if got := r.Value.Type(); got != f.Type {
		return invalid("record", r.ID, "value", "field %q expects %s, got %s", f.FieldID, f.Type, got)
	}
	return nil
}

// CompareRecords orders records by Datetime, then ID.
func CompareRecords(a, b Record) int {
	if c := strings.Compare(a.Datetime, b.Datetime); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// MigrateRecord derives Datetime for records stored before it existed.
// Reports whether anything changed.
func MigrateRecord(r Record) (Record, bool) {
	if r.Datetime != "" {
		return r, false
	}
	t := r.Time
	if t == "" {
		t = "00:00"
	}
	r.Datetime = fmt.Sprintf("%sT%s:00", r.Date, t)
	return r, true
}
