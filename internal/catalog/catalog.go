// Package catalog loads field catalogs written in CUE.
//
// A catalog is a list of field definitions checked against an embedded
// schema before it is decoded, so a typo in a catalog file is reported with
// its position instead of surfacing later as a rejected write.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/healthlog/internal/model"
)

//go:embed schema.cue
var schemaSrc string

//go:embed default.cue
var defaultSrc []byte

// Error is a catalog error with source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the built-in catalog.
func Default() ([]model.Field, error) {
	return Load("default.cue", defaultSrc)
}

// Load compiles src, validates it against the catalog schema and returns
// its fields in catalog order. name is used in error positions.
func Load(name string, src []byte) ([]model.Field, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	list := v.LookupPath(cue.ParsePath("fields"))
	if !list.Exists() {
		return nil, &Error{Field: "fields", Message: "fields is required", Pos: v.Pos()}
	}

	var fields []model.Field
	if err := list.Decode(&fields); err != nil {
		return nil, formatCUEError(err)
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.FieldID] {
			return nil, &Error{Field: "fieldId", Message: fmt.Sprintf("duplicate field %q", f.FieldID), Pos: list.Pos()}
		}
		seen[f.FieldID] = true

		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	return fields, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "cue"
	if path := errors.Path(first); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{
			Field:   field,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
