package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Column is an immutable, named, typed sequence of values. Values may be nil (null).
// A Column never changes after construction, so tables may share columns freely.
type Column struct {
	name   string
	typ    LogicalType
	values []any
}

// NewColumn builds a column, normalizing every value to the canonical Go
// representation of typ (string, bool, float64, int64, []string). The input
// slice is copied.
func NewColumn(name string, typ LogicalType, values []any) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: column name cannot be empty", ErrInvalidColumn)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: column %q has unknown type %q", ErrInvalidColumn, name, typ)
	}
	normalized := make([]any, len(values))
	for i, v := range values {
		nv, err := normalizeValue(typ, v)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q row %d: %w", ErrInvalidColumn, name, i, err)
		}
		normalized[i] = nv
	}
	return &Column{name: name, typ: typ, values: normalized}, nil
}

// NullColumn builds a column of n null values.
func NullColumn(name string, typ LogicalType, n int) (*Column, error) {
	return NewColumn(name, typ, make([]any, n))
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Type returns the column's logical type.
func (c *Column) Type() LogicalType { return c.typ }

// Len returns the number of values.
func (c *Column) Len() int { return len(c.values) }

// Value returns the i-th value. String lists are returned as copies.
func (c *Column) Value(i int) any {
	return copyValue(c.values[i])
}

// Values returns a copy of all values.
func (c *Column) Values() []any {
	out := make([]any, len(c.values))
	for i, v := range c.values {
		out[i] = copyValue(v)
	}
	return out
}

// NullCount returns the number of nil values.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.values {
		if v == nil {
			n++
		}
	}
	return n
}

func (c *Column) renamed(name string) *Column {
	return &Column{name: name, typ: c.typ, values: c.values}
}

func (c *Column) take(indices []int) *Column {
	vals := make([]any, len(indices))
	for i, idx := range indices {
		vals[i] = c.values[idx]
	}
	return &Column{name: c.name, typ: c.typ, values: vals}
}

// Table is an immutable, ordered collection of equally sized columns. Every
// method that appears to modify a table returns a new one and leaves the
// receiver untouched.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable assembles columns into a table. All columns must have the same
// length and distinct names.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("%w: column %d is nil", ErrInvalidColumn, i)
		}
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidColumn, c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d values, table has %d rows", ErrInvalidColumn, c.name, c.Len(), t.rows)
		}
		t.index[c.name] = i
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// MustTable is NewTable that panics on error. Intended for tests and fixed fixtures.
func MustTable(columns ...*Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// MustColumn is NewColumn that panics on error.
func MustColumn(name string, typ LogicalType, values ...any) *Column {
	c, err := NewColumn(name, typ, values)
	if err != nil {
		panic(err)
	}
	return c
}

// FromStringRecords builds an all-string table from a header and row records.
// Empty cells become nulls. Short records are padded with nulls.
func FromStringRecords(header []string, records [][]string) (*Table, error) {
	cols := make([]*Column, 0, len(header))
	for j, name := range header {
		vals := make([]any, len(records))
		for i, rec := range records {
			if j < len(rec) && rec[j] != "" {
				vals[i] = rec[j]
			}
		}
		c, err := NewColumn(name, TypeString, vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.columns) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Row returns a read-only view of row i.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// WithColumn returns a table with c appended, or replacing the column of the same
// name in place. A table without columns adopts c's length.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: column is nil", ErrInvalidColumn)
	}
	if len(t.columns) > 0 && c.Len() != t.rows {
		return nil, fmt.Errorf("%w: column %q has %d values, table has %d rows", ErrInvalidColumn, c.name, c.Len(), t.rows)
	}
	cols := slices.Clone(t.columns)
	if i, ok := t.index[c.name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// WithValues derives a column by evaluating fn for every row and adds it via WithColumn.
func (t *Table) WithValues(name string, typ LogicalType, fn func(Row) any) (*Table, error) {
	vals := make([]any, t.rows)
	for i := range t.rows {
		vals[i] = fn(t.Row(i))
	}
	c, err := NewColumn(name, typ, vals)
	if err != nil {
		return nil, err
	}
	return t.WithColumn(c)
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	cols := make([]*Column, 0, len(t.columns))
	for _, c := range t.columns {
		if !slices.Contains(names, c.name) {
			cols = append(cols, c)
		}
	}
	out := MustTable(cols...)
	if len(cols) == 0 {
		out.rows = t.rows
	}
	return out
}

// Rename returns a table with column from renamed to to.
func (t *Table) Rename(from, to string) (*Table, error) {
	i, ok := t.index[from]
	if !ok {
		return nil, fmt.Errorf("%w: no column %q to rename", ErrInvalidColumn, from)
	}
	if from == to {
		return t, nil
	}
	if _, exists := t.index[to]; exists {
		return nil, fmt.Errorf("%w: cannot rename %q to existing column %q", ErrInvalidColumn, from, to)
	}
	cols := slices.Clone(t.columns)
	cols[i] = cols[i].renamed(to)
	return NewTable(cols...)
}

// Take returns a table holding the given rows, in the given order.
func (t *Table) Take(indices []int) (*Table, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= t.rows {
			return nil, fmt.Errorf("row index %d out of range [0,%d)", idx, t.rows)
		}
	}
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.take(indices)
	}
	out := MustTable(cols...)
	out.rows = len(indices)
	return out, nil
}

// Filter returns a table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	indices := make([]int, 0, t.rows)
	for i := range t.rows {
		if keep(t.Row(i)) {
			indices = append(indices, i)
		}
	}
	out, _ := t.Take(indices)
	return out
}

// Select returns a table holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: no column %q to select", ErrInvalidColumn, name)
		}
		cols = append(cols, c)
	}
	out, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = t.rows
	}
	return out, nil
}

// SortRows returns a table with rows reordered by less. The sort is stable.
func (t *Table) SortRows(less func(a, b Row) bool) *Table {
	indices := make([]int, t.rows)
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		switch {
		case less(t.Row(a), t.Row(b)):
			return -1
		case less(t.Row(b), t.Row(a)):
			return 1
		}
		return 0
	})
	out, _ := t.Take(indices)
	return out
}

// Records returns the table as a slice of row maps keyed by column name.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, t.rows)
	for i := range t.rows {
		rec := make(map[string]any, len(t.columns))
		for _, c := range t.columns {
			rec[c.name] = copyValue(c.values[i])
		}
		out[i] = rec
	}
	return out
}

// Row is a read-only view of one table row.
type Row struct {
	t *Table
	i int
}

// Index returns the row position within its table.
func (r Row) Index() int { return r.i }

// Value returns the raw value of the named column, or nil when absent or null.
func (r Row) Value(name string) any {
	c, ok := r.t.Column(name)
	if !ok {
		return nil
	}
	return c.Value(r.i)
}

// String returns the named value when it is a string, else "".
func (r Row) String(name string) string {
	s, _ := r.Value(name).(string)
	return s
}

// Float returns the named value as a float64 when numeric.
func (r Row) Float(name string) (float64, bool) {
	switch v := r.Value(name).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool returns the named value when it is a boolean.
func (r Row) Bool(name string) (bool, bool) {
	b, ok := r.Value(name).(bool)
	return b, ok
}

// StringList returns the named value when it is a string list.
func (r Row) StringList(name string) []string {
	l, _ := r.Value(name).([]string)
	return l
}

// --- value normalization ---

func normalizeValue(typ LogicalType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
		if f, ok := toFloat(v); ok && f == math.Trunc(f) {
			return int64(f), nil
		}
	case TypeStringList:
		switch l := v.(type) {
		case []string:
			return slices.Clone(l), nil
		case []any:
			out := make([]string, len(l))
			for i, item := range l {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("list element %d is %s, not string", i, typeName(item))
				}
				out[i] = s
			}
			return out, nil
		}
	case TypeAny:
		return normalizeAny(v), nil
	}
	return nil, fmt.Errorf("value of type %s is not %s", typeName(v), typ)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func normalizeAny(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	switch l := v.(type) {
	case []any:
		out := make([]any, len(l))
		for i, item := range l {
			out[i] = normalizeAny(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(l))
		for k, item := range l {
			out[k] = normalizeAny(item)
		}
		return out
	}
	return copyValue(v)
}

func copyValue(v any) any {
	switch l := v.(type) {
	case []string:
		return slices.Clone(l)
	case []any:
		out := make([]any, len(l))
		for i, item := range l {
			out[i] = copyValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(l))
		for k, item := range l {
			out[k] = copyValue(item)
		}
		return out
	}
	return v
}
