// Package dataset holds the tabular value that flows through the pipeline and the
// canonical-field contract every stage relies on.
//
// A Dataset pairs an immutable *Table with the ordered list of canonical fields it
// is expected to carry. Nothing in this package mutates a table after construction,
// so a Dataset captured before a failing stage remains valid and can be resumed
// from.
package dataset

import (
	"fmt"
	"slices"
)

// Dataset wraps one table plus the canonical fields it must carry.
type Dataset struct {
	table  *Table
	fields []Field
}

// New wraps t. When fields is nil, the default canonical job-listing schema is used.
// New does not validate; call Validate for that.
func New(t *Table, fields []Field) (*Dataset, error) {
	if t == nil {
		return nil, &TypeError{Actual: "nil *dataset.Table"}
	}
	if fields == nil {
		fields = CanonicalFields()
	}
	for _, f := range fields {
		if f.Name == "" || !f.Type.Valid() {
			return nil, fmt.Errorf("%w: invalid canonical field %q (%s)", ErrInvalidColumn, f.Name, f.Type)
		}
	}
	return &Dataset{table: t, fields: slices.Clone(fields)}, nil
}

// Table returns the wrapped table. Tables are immutable, so callers cannot alter
// the Dataset through it.
func (d *Dataset) Table() *Table { return d.table }

// Fields returns a copy of the canonical fields.
func (d *Dataset) Fields() []Field { return slices.Clone(d.fields) }

// Rows returns the row count of the wrapped table.
func (d *Dataset) Rows() int { return d.table.NumRows() }

// Validate checks every canonical field for presence and a compatible logical type.
// All violations are reported together in one *SchemaError.
func (d *Dataset) Validate() error {
	return ValidateTable(d.table, d.fields)
}

// ValidateTable checks t against fields the same way Dataset.Validate does.
func ValidateTable(t *Table, fields []Field) error {
	var violations []FieldViolation
	for _, f := range fields {
		c, ok := t.Column(f.Name)
		if !ok {
			violations = append(violations, FieldViolation{Field: f.Name, Expected: f.Type, Missing: true})
			continue
		}
		if !f.Type.Accepts(c.Type()) {
			violations = append(violations, FieldViolation{Field: f.Name, Expected: f.Type, Actual: c.Type()})
		}
	}
	if len(violations) > 0 {
		return &SchemaError{Violations: violations}
	}
	return nil
}

// WithFrame returns a new Dataset with the same canonical fields that owns t.
// The receiver is not affected.
func (d *Dataset) WithFrame(t *Table) (*Dataset, error) {
	if t == nil {
		return nil, &TypeError{Actual: "nil *dataset.Table"}
	}
	return &Dataset{table: t, fields: slices.Clone(d.fields)}, nil
}

// Transform applies f to the wrapped table and wraps the result in a new Dataset.
// f's result must be a non-nil *Table, otherwise a *TypeError is returned.
func (d *Dataset) Transform(f func(*Table) (any, error)) (*Dataset, error) {
	out, err := f(d.table)
	if err != nil {
		return nil, err
	}
	t, ok := out.(*Table)
	if !ok {
		return nil, &TypeError{Actual: typeName(out)}
	}
	return d.WithFrame(t)
}
