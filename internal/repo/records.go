package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/store"
)

// Records is the repository of logged observations.
type Records struct {
	*Repository[model.Record]
}

// NewRecords creates the records repository.
func NewRecords(s *store.Store, l *zap.Logger) *Records {
	return &Records{Repository: New(s, RecordCodec, l)}
}

// ByDateRange returns the records whose date falls in [from, to].
// Empty bounds are open. Dates use model.DateLayout.
func (r *Records) ByDateRange(ctx context.Context, from, to string) ([]model.Record, error) {
	var rng store.Range
	if from != "" {
		if err := checkDate(from); err != nil {
			return nil, err
		}
		rng.Lower = from
	}
	if to != "" {
		if err := checkDate(to); err != nil {
			return nil, err
		}
		rng.Upper = to
	}

	return r.index(ctx, store.IndexRecordsByDate, rng)
}

// ByField returns the records logged against fieldID, oldest first.
func (r *Records) ByField(ctx context.Context, fieldID string) ([]model.Record, error) {
	return r.index(ctx, store.IndexRecordsByField, store.Only(fieldID))
}

func checkDate(s string) error {
	if _, err := time.Parse(model.DateLayout, s); err != nil {
		return fmt.Errorf("date range: %q is not YYYY-MM-DD", s)
	}
	return nil
}
