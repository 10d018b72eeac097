// Package model defines the persisted entities of healthlog: fields and records.
//
// This package contains type definitions, shape decoders and write-time
// validators only. Every other internal package imports model; model imports
// nothing internal.
//
// Key constraints:
//   - Field.FieldID and Record.ID are the collection keys
//   - Field.Type is immutable once the field exists
//   - Record.Value must agree with the referenced field's type; the caller
//     checks this with CheckValue, the store does not
//   - All JSON tags use lowerCamelCase to match exported documents
package model
