package model

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightField() Field {
	return Field{
		FieldID:        "weight",
		Name:           "Weight",
		Unit:           "kg",
		Type:           TypeNumber,
		Order:          1,
		DefaultDisplay: true,
	}
}

func TestField_Validate(t *testing.T) {
	require.NoError(t, weightField().Validate())

	tests := []struct {
		name   string
		mutate func(*Field)
		attr   string
	}{
		{"empty id", func(f *Field) { f.FieldID = "" }, "fieldId"},
		{"upper-case id", func(f *Field) { f.FieldID = "Weight" }, "fieldId"},
		{"spaces in id", func(f *Field) { f.FieldID = "body weight" }, "fieldId"},
		{"empty name", func(f *Field) { f.Name = "  " }, "name"},
		{"unknown type", func(f *Field) { f.Type = "date" }, "type"},
		{"nan order", func(f *Field) { f.Order = math.NaN() }, "order"},
		{"bad scope", func(f *Field) { f.Scope = "Body Stats" }, "scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := weightField()
			tt.mutate(&f)

			err := f.Validate()
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "field", ve.Entity)
			assert.Equal(t, tt.attr, ve.Attr)
		})
	}
}

func TestParseFieldType(t *testing.T) {
	for _, s := range []string{"number", "string", "boolean"} {
		ft, err := ParseFieldType(s)
		require.NoError(t, err)
		assert.Equal(t, FieldType(s), ft)
	}

	_, err := ParseFieldType("bool")
	assert.Error(t, err)
}

func TestCompareFields(t *testing.T) {
	fields := []Field{
		{FieldID: "pulse", Order: 3},
		{FieldID: "weight", Order: 1},
		{FieldID: "bp_dia", Order: 2},
		{FieldID: "bp_sys", Order: 2},
	}
	slices.SortFunc(fields, CompareFields)

	var ids []string
	for _, f := range fields {
		ids = append(ids, f.FieldID)
	}
	assert.Equal(t, []string{"weight", "bp_dia", "bp_sys", "pulse"}, ids)
}

func TestOrderBetween(t *testing.T) {
	a := Field{Order: 1}
	b := Field{Order: 2}

	assert.Equal(t, 1.5, OrderBetween(&a, &b))
	assert.Equal(t, 3.0, OrderBetween(&b, nil))
	assert.Equal(t, 0.0, OrderBetween(nil, &a))
	assert.Equal(t, 1.0, OrderBetween(nil, nil))
}

func TestMigrateField(t *testing.T) {
	f, changed := MigrateField(weightField())
	assert.True(t, changed)
	assert.Equal(t, DefaultScope, f.Scope)

	f, changed = MigrateField(f)
	assert.False(t, changed)
	assert.Equal(t, DefaultScope, f.Scope)
}
