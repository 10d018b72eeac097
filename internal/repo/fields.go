package repo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/healthlog/internal/model"
	"github.com/roach88/healthlog/internal/store"
)

// Fields is the repository of field definitions.
type Fields struct {
	*Repository[model.Field]
}

// NewFields creates the fields repository.
func NewFields(s *store.Store, l *zap.Logger) *Fields {
	r := New(s, FieldCodec, l)
	f := &Fields{Repository: r}
	r.check = f.checkType
	return f
}

// ByScope returns the fields tagged with scope, in display order.
func (f *Fields) ByScope(ctx context.Context, scope string) ([]model.Field, error) {
	return f.index(ctx, store.IndexFieldsByScope, store.Only(scope))
}

// checkType rejects a put that would change the type of an existing field.
// Records already logged against the field were checked against the old type.
func (f *Fields) checkType(ctx context.Context, c *store.Collection, field model.Field) error {
	existing, found, err := f.get(ctx, c, field.FieldID)
	if err != nil {
		return err
	}
	if !found || existing.Type == field.Type {
		return nil
	}

	return store.Wrap(store.KindDataCorrupted, c.Name()+".put", &model.ValidationError{
		Entity: "field",
		Key:    field.FieldID,
		Attr:   "type",
		Reason: fmt.Sprintf("cannot change type from %s to %s", existing.Type, field.Type),
	})
}
