package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// LogicalType names the value domain of a column. Columns carry a logical type
// rather than a Go type so that tables can cross process boundaries (see codec.go)
// without losing their contract.
type LogicalType string

// Constants representing the supported logical column types.
const (
	TypeString     LogicalType = "string"
	TypeBool       LogicalType = "bool"
	TypeFloat      LogicalType = "float"
	TypeInt        LogicalType = "int"
	TypeStringList LogicalType = "string_list"
	TypeAny        LogicalType = "any"
)

// Valid reports whether t is one of the known logical types.
func (t LogicalType) Valid() bool {
	switch t {
	case TypeString, TypeBool, TypeFloat, TypeInt, TypeStringList, TypeAny:
		return true
	}
	return false
}

// Accepts reports whether a column of type actual satisfies a field declared as t.
// Integer columns are accepted where floats are expected; TypeAny accepts everything.
func (t LogicalType) Accepts(actual LogicalType) bool {
	if t == actual || t == TypeAny {
		return true
	}
	return t == TypeFloat && actual == TypeInt
}

// Field is a named, typed column a Dataset is contractually expected to carry.
type Field struct {
	Name string      `json:"name" mapstructure:"name"`
	Type LogicalType `json:"type" mapstructure:"type"`
}

// Canonical field names. Built-in stages address columns through these constants.
const (
	FieldJobID       = "job_id"
	FieldTitle       = "title"
	FieldCompany     = "company"
	FieldLocation    = "location"
	FieldRemote      = "remote"
	FieldDescription = "description"
	FieldSalaryMin   = "salary_min"
	FieldSalaryMax   = "salary_max"
	FieldSkills      = "skills"
	FieldApplyURL    = "apply_url"
	FieldPostedAt    = "posted_at"
	FieldSource      = "source"
)

var canonicalFields = []Field{
	{Name: FieldJobID, Type: TypeString},
	{Name: FieldTitle, Type: TypeString},
	{Name: FieldCompany, Type: TypeString},
	{Name: FieldLocation, Type: TypeString},
	{Name: FieldRemote, Type: TypeBool},
	{Name: FieldDescription, Type: TypeString},
	{Name: FieldSalaryMin, Type: TypeFloat},
	{Name: FieldSalaryMax, Type: TypeFloat},
	{Name: FieldSkills, Type: TypeStringList},
	{Name: FieldApplyURL, Type: TypeString},
	{Name: FieldPostedAt, Type: TypeString},
	{Name: FieldSource, Type: TypeString},
}

// CanonicalFields returns a copy of the default canonical schema for job listings.
func CanonicalFields() []Field {
	out := make([]Field, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

// CanonicalField looks up a canonical field by name.
func CanonicalField(name string) (Field, bool) {
	for _, f := range canonicalFields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// --- Errors ---

var (
	// ErrSchemaMismatch indicates a Dataset does not carry its canonical fields
	// with compatible logical types. Returned wrapped in *SchemaError.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNotATable indicates a transform produced something other than a *Table.
	// Returned wrapped in *TypeError.
	ErrNotATable = errors.New("value is not a table")

	// ErrInvalidColumn indicates a column could not be constructed (bad type, bad
	// value, or a length that does not match the table).
	ErrInvalidColumn = errors.New("invalid column")
)

// FieldViolation describes one canonical field that failed validation.
type FieldViolation struct {
	Field    string      `json:"field"`
	Expected LogicalType `json:"expected"`
	Actual   LogicalType `json:"actual,omitempty"`
	Missing  bool        `json:"missing,omitempty"`
}

func (v FieldViolation) String() string {
	if v.Missing {
		return fmt.Sprintf("field %q missing (expected %s)", v.Field, v.Expected)
	}
	return fmt.Sprintf("field %q expected %s, got %s", v.Field, v.Expected, v.Actual)
}

// SchemaError lists every canonical field that failed validation, in schema order.
type SchemaError struct {
	Violations []FieldViolation
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s: %s", ErrSchemaMismatch, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrSchemaMismatch) true for *SchemaError.
func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }

// Fields returns the names of the violating fields.
func (e *SchemaError) Fields() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Field
	}
	return out
}

// TypeError reports a value that should have been a table but was not.
type TypeError struct {
	Actual string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected *dataset.Table, got %s", ErrNotATable, e.Actual)
}

// Is makes errors.Is(err, ErrNotATable) true for *TypeError.
func (e *TypeError) Is(target error) bool { return target == ErrNotATable }

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
