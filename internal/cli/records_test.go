package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/healthlog/internal/cache"
	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/repo"
	"github.com/roach88/healthlog/internal/testutil"
)

func TestListRecords_FiltersMirror(t *testing.T) {
	s := testutil.OpenStore(t)
	l := zaptest.NewLogger(t)
	ctx := context.Background()

	c := cache.NewStore(repo.NewFields(s, l), repo.NewRecords(s, l), nil, cache.Options{}, l)
	require.NoError(t, c.Fields.BatchUpsert(ctx, []model.Field{
		{FieldID: "weight", Name: "Weight", Type: model.TypeNumber, Order: 1, Scope: model.DefaultScope},
		{FieldID: "mood", Name: "Mood", Type: model.TypeString, Order: 2, Scope: model.DefaultScope},
	}))

	at := func(v string) time.Time {
		tm, err := time.ParseInLocation("2006-01-02T15:04", v, time.Local)
		require.NoError(t, err)
		return tm
	}
	require.NoError(t, c.AddRecord(ctx, model.NewRecord("r1", "weight", at("2024-01-01T08:00"), model.Number(70.4))))
	require.NoError(t, c.AddRecord(ctx, model.NewRecord("r2", "mood", at("2024-01-01T21:30"), model.Text("tired"))))
	require.NoError(t, c.AddRecord(ctx, model.NewRecord("r3", "weight", at("2024-01-02T08:00"), model.Number(70.1))))

	// Listing never reads storage, so it keeps working once the database is gone.
	require.NoError(t, s.Close())

	a := &app{cache: c}
	tests := []struct {
		name string
		opts RecordListOptions
		want []string
	}{
		{"all", RecordListOptions{}, []string{"r1", "r2", "r3"}},
		{"field", RecordListOptions{Field: "weight"}, []string{"r1", "r3"}},
		{"from", RecordListOptions{From: "2024-01-02"}, []string{"r3"}},
		{"to", RecordListOptions{To: "2024-01-01"}, []string{"r1", "r2"}},
		{"field and range", RecordListOptions{Field: "mood", From: "2024-01-02"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := listRecords(a, &tt.opts)
			require.NoError(t, err)

			ids := []string{}
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListRecords_InvalidDate(t *testing.T) {
	_, err := listRecords(&app{}, &RecordListOptions{To: "2024-1-2"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
