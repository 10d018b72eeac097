package store

import (
	"fmt"
	"strings"
)

// Collection names.
const (
	CollectionFields  = "fields"
	CollectionRecords = "records"
)

// Index names.
const (
	IndexFieldsByScope  = "by_scope"
	IndexRecordsByDate  = "by_date"
	IndexRecordsByField = "by_field"
)

// IndexSchema describes a secondary index usable for range scans.
type IndexSchema struct {
	// Name is the logical index name used by callers.
	Name string

	// Table is the SQLite index name.
	Table string

	// Column is the indexed column ranges apply to.
	Column string
}

// CollectionSchema describes one collection (table).
type CollectionSchema struct {
	Name    string
	Key     string
	Columns []string // Key first
	OrderBy string
	Indexes []IndexSchema

	selectSQL string
	putSQL    string
}

func (cs *CollectionSchema) index(name string) (IndexSchema, bool) {
	for _, idx := range cs.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSchema{}, false
}

// prepare builds the statements shared by every handle of the collection.
// Identifiers come from this file only, never from callers.
func (cs *CollectionSchema) prepare() {
	cols := strings.Join(cs.Columns, ", ")
	cs.selectSQL = fmt.Sprintf("SELECT %s FROM %s", cols, cs.Name)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cs.Columns)), ", ")
	var sets []string
	for _, c := range cs.Columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	cs.putSQL = fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		cs.Name, cols, placeholders, cs.Key, strings.Join(sets, ", "),
	)
}

var collections = map[string]*CollectionSchema{
	CollectionFields: {
		Name:    CollectionFields,
		Key:     "field_id",
		Columns: []string{"field_id", "name", "unit", "type", "sort_order", "default_display", "scope"},
		OrderBy: "sort_order ASC, field_id COLLATE BINARY ASC",
		Indexes: []IndexSchema{
			{Name: IndexFieldsByScope, Table: "idx_fields_scope", Column: "scope"},
		},
	},
	CollectionRecords: {
		Name:    CollectionRecords,
		Key:     "id",
		Columns: []string{"id", "date", "time", "datetime", "field_id", "value"},
		OrderBy: "datetime ASC, id COLLATE BINARY ASC",
		Indexes: []IndexSchema{
			{Name: IndexRecordsByDate, Table: "idx_records_date", Column: "date"},
			{Name: IndexRecordsByField, Table: "idx_records_field_datetime", Column: "field_id"},
		},
	},
}

func init() {
	for _, cs := range collections {
		cs.prepare()
	}
}

// Schema returns the schema of the named collection.
func Schema(name string) (CollectionSchema, bool) {
	cs, ok := collections[name]
	if !ok {
		return CollectionSchema{}, false
	}
	return *cs, true
}
