package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/store"
)

func TestFields_TypeIsImmutable(t *testing.T) {
	_, fields, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, fields.Add(ctx, weightField()))

	f := weightField()
	f.Type = model.TypeString
	err := fields.Update(ctx, f)
	require.Error(t, err)
	assert.True(t, store.IsKind(err, store.KindDataCorrupted), "got %v", err)
	assert.Contains(t, err.Error(), "cannot change type")

	got, _, err := fields.Get(ctx, "weight")
	require.NoError(t, err)
	assert.Equal(t, model.TypeNumber, got.Type)
}

func TestFields_TypeChangeAbortsBatch(t *testing.T) {
	_, fields, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, fields.Add(ctx, weightField()))

	changed := weightField()
	changed.Type = model.TypeBoolean
	err := fields.BatchUpsert(ctx, []model.Field{
		{FieldID: "mood", Name: "Mood", Type: model.TypeString, Order: 2},
		changed,
	})
	assert.True(t, store.IsKind(err, store.KindDataCorrupted))

	_, found, err := fields.Get(ctx, "mood")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFields_ByScope(t *testing.T) {
	_, fields, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, fields.BatchUpsert(ctx, []model.Field{
		{FieldID: "weight", Name: "Weight", Type: model.TypeNumber, Order: 1, Scope: "body"},
		{FieldID: "mood", Name: "Mood", Type: model.TypeString, Order: 2, Scope: "mind"},
		{FieldID: "bmi", Name: "BMI", Type: model.TypeNumber, Order: 0, Scope: "body"},
		{FieldID: "steps", Name: "Steps", Type: model.TypeNumber, Order: 3},
	}))

	body, err := fields.ByScope(ctx, "body")
	require.NoError(t, err)
	require.Len(t, body, 2)
	assert.Equal(t, "bmi", body[0].FieldID)
	assert.Equal(t, "weight", body[1].FieldID)

	none, err := fields.ByScope(ctx, "habits")
	require.NoError(t, err)
	assert.Empty(t, none)
}
