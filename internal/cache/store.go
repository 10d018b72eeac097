package cache

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/store"
)

// Store bundles the cached collections of one database.
// It is created once at startup and closed at shutdown.
type Store struct {
	Fields  *Collection[model.Field]
	Records *Collection[model.Record]

	closer io.Closer
	l      *zap.Logger
}

// NewStore creates a cache over the given repositories.
// closer, if not nil, is closed by Close.
func NewStore(fields Repository[model.Field], records Repository[model.Record], closer io.Closer, opts Options, l *zap.Logger) *Store {
	l = l.Named("cache")
	return &Store{
		Fields: New(Config[model.Field]{
			Name:    store.CollectionFields,
			Repo:    fields,
			Compare: model.CompareFields,
			Migrate: model.MigrateField,
		}, opts, l),
		Records: New(Config[model.Record]{
			Name:    store.CollectionRecords,
			Repo:    records,
			Compare: model.CompareRecords,
			Migrate: model.MigrateRecord,
		}, opts, l),
		closer: closer,
		l:      l,
	}
}

// LoadAll loads every collection concurrently.
// It returns the first error; the other loads still run to completion.
func (s *Store) LoadAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.Fields.Load(ctx) })
	g.Go(func() error { return s.Records.Load(ctx) })
	return g.Wait()
}

// AddRecord checks r against its field in the fields mirror, then adds it.
// A record for an unknown field or with a value of the wrong type is
// rejected with data_corrupted without touching the mirror.
func (s *Store) AddRecord(ctx context.Context, r model.Record) error {
	if err := s.checkRecord(r, "add"); err != nil {
		return err
	}
	return s.Records.Add(ctx, r)
}

// UpdateRecord checks r against its field in the fields mirror, then updates it.
func (s *Store) UpdateRecord(ctx context.Context, r model.Record) error {
	if err := s.checkRecord(r, "update"); err != nil {
		return err
	}
	return s.Records.Update(ctx, r)
}

func (s *Store) checkRecord(r model.Record, op string) error {
	op = store.CollectionRecords + "." + op

	f, ok := s.Fields.Get(r.FieldID)
	if !ok {
		return store.Wrap(store.KindDataCorrupted, op, &model.ValidationError{
			Entity: "record",
			Key:    r.ID,
			Attr:   "fieldId",
			Reason: fmt.Sprintf("unknown field %q", r.FieldID),
		})
	}
	if err := model.CheckValue(f, r); err != nil {
		return store.Wrap(store.KindDataCorrupted, op, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	s.l.Debug("Closed")
	return nil
}
