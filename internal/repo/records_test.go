package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthlog/internal/model"
)

func seedRecords(t *testing.T, records *Records) {
	t.Helper()
	require.NoError(t, records.BatchUpsert(context.Background(), []model.Record{
		record("r1", "2024-01-01", "08:00", "weight", model.Number(70)),
		record("r2", "2024-01-02", "08:00", "weight", model.Number(70.4)),
		record("r3", "2024-01-02", "21:00", "mood", model.Text("tired")),
		record("r4", "2024-01-05", "08:00", "medication", model.Bool(true)),
	}))
}

func ids(rs []model.Record) []string {
	out := []string{}
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestRecords_ByDateRange(t *testing.T) {
	_, _, records := setup(t)
	seedRecords(t, records)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"closed", "2024-01-02", "2024-01-04", []string{"r2", "r3"}},
		{"single day", "2024-01-01", "2024-01-01", []string{"r1"}},
		{"open start", "", "2024-01-02", []string{"r1", "r2", "r3"}},
		{"open end", "2024-01-03", "", []string{"r4"}},
		{"unbounded", "", "", []string{"r1", "r2", "r3", "r4"}},
		{"empty", "2025-01-01", "2025-12-31", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := records.ByDateRange(ctx, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRecords_ByDateRangeRejectsBadDates(t *testing.T) {
	_, _, records := setup(t)

	_, err := records.ByDateRange(context.Background(), "01/02/2024", "")
	assert.Error(t, err)
}

func TestRecords_ByField(t *testing.T) {
	_, _, records := setup(t)
	seedRecords(t, records)

	got, err := records.ByField(context.Background(), "weight")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids(got))
	assert.Equal(t, model.Number(70.4), got[1].Value)
}

func TestRecords_ValuesRoundTrip(t *testing.T) {
	_, _, records := setup(t)
	seedRecords(t, records)

	got, err := records.ByField(context.Background(), "medication")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Bool(true), got[0].Value)
}
