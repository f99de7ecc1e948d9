package dataset_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonicalTable builds a schema-valid table with n identical-shape rows.
func canonicalTable(t *testing.T, n int) *dataset.Table {
	t.Helper()
	cols := make([]*dataset.Column, 0, len(dataset.CanonicalFields()))
	for _, f := range dataset.CanonicalFields() {
		c, err := dataset.NullColumn(f.Name, f.Type, n)
		require.NoError(t, err)
		cols = append(cols, c)
	}
	tbl, err := dataset.NewTable(cols...)
	require.NoError(t, err)
	return tbl
}

func TestValidate_AcceptsCanonicalTable(t *testing.T) {
	ds, err := dataset.New(canonicalTable(t, 3), nil)
	require.NoError(t, err)
	assert.NoError(t, ds.Validate())
	assert.Equal(t, 3, ds.Rows())
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	tbl := canonicalTable(t, 1).Drop(dataset.FieldTitle)
	bad, err := dataset.NewColumn(dataset.FieldRemote, dataset.TypeString, []any{"yes"})
	require.NoError(t, err)
	tbl, err = tbl.WithColumn(bad)
	require.NoError(t, err)

	ds, err := dataset.New(tbl, nil)
	require.NoError(t, err)
	err = ds.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrSchemaMismatch))

	var schemaErr *dataset.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{dataset.FieldTitle, dataset.FieldRemote}, schemaErr.Fields())
	assert.True(t, schemaErr.Violations[0].Missing)
	assert.Equal(t, dataset.TypeString, schemaErr.Violations[1].Actual)
	assert.Contains(t, err.Error(), `"title" missing`)
}

func TestValidate_IntAcceptedForFloat(t *testing.T) {
	fields := []dataset.Field{{Name: "n", Type: dataset.TypeFloat}}
	tbl := dataset.MustTable(dataset.MustColumn("n", dataset.TypeInt, 1, 2))
	ds, err := dataset.New(tbl, fields)
	require.NoError(t, err)
	assert.NoError(t, ds.Validate())
}

func TestWithFrame_LeavesOriginalUntouched(t *testing.T) {
	orig := canonicalTable(t, 2)
	ds, err := dataset.New(orig, nil)
	require.NoError(t, err)

	next, err := ds.WithFrame(orig.Filter(func(dataset.Row) bool { return false }))
	require.NoError(t, err)

	assert.Equal(t, 0, next.Rows())
	assert.Equal(t, 2, ds.Rows())
	assert.Equal(t, ds.Fields(), next.Fields())
}

func TestTransform(t *testing.T) {
	ds, err := dataset.New(canonicalTable(t, 2), nil)
	require.NoError(t, err)

	t.Run("table result", func(t *testing.T) {
		out, err := ds.Transform(func(tbl *dataset.Table) (any, error) {
			return tbl.WithValues("note", dataset.TypeString, func(dataset.Row) any { return "x" })
		})
		require.NoError(t, err)
		assert.True(t, out.Table().HasColumn("note"))
		assert.False(t, ds.Table().HasColumn("note"))
	})

	t.Run("non-table result", func(t *testing.T) {
		_, err := ds.Transform(func(*dataset.Table) (any, error) { return "nope", nil })
		require.Error(t, err)
		assert.True(t, errors.Is(err, dataset.ErrNotATable))
		assert.Contains(t, err.Error(), "string")
	})

	t.Run("nil table result", func(t *testing.T) {
		_, err := ds.Transform(func(*dataset.Table) (any, error) { return (*dataset.Table)(nil), nil })
		assert.True(t, errors.Is(err, dataset.ErrNotATable))
	})

	t.Run("error passes through", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := ds.Transform(func(*dataset.Table) (any, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	})
}

func TestNew_RejectsNilTable(t *testing.T) {
	_, err := dataset.New(nil, nil)
	assert.ErrorIs(t, err, dataset.ErrNotATable)
}

func TestTable_Operations(t *testing.T) {
	tbl := dataset.MustTable(
		dataset.MustColumn("name", dataset.TypeString, "b", "a", "c"),
		dataset.MustColumn("score", dataset.TypeFloat, 2, 1.5, nil),
		dataset.MustColumn("tags", dataset.TypeStringList, []any{"x"}, nil, []string{"y", "z"}),
	)

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, []string{"name", "score", "tags"}, tbl.ColumnNames())

	f, ok := tbl.Row(0).Float("score")
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)
	_, ok = tbl.Row(2).Float("score")
	assert.False(t, ok)
	assert.Equal(t, []string{"x"}, tbl.Row(0).StringList("tags"))

	sorted := tbl.SortRows(func(a, b dataset.Row) bool { return a.String("name") < b.String("name") })
	col, _ := sorted.Column("name")
	assert.Equal(t, []any{"a", "b", "c"}, col.Values())
	orig, _ := tbl.Column("name")
	assert.Equal(t, []any{"b", "a", "c"}, orig.Values())

	renamed, err := tbl.Rename("name", "title")
	require.NoError(t, err)
	assert.True(t, renamed.HasColumn("title"))
	assert.False(t, renamed.HasColumn("name"))
	_, err = tbl.Rename("name", "score")
	assert.ErrorIs(t, err, dataset.ErrInvalidColumn)

	sel, err := tbl.Select("score")
	require.NoError(t, err)
	assert.Equal(t, []string{"score"}, sel.ColumnNames())

	_, err = tbl.WithColumn(dataset.MustColumn("short", dataset.TypeString, "a"))
	assert.ErrorIs(t, err, dataset.ErrInvalidColumn)
}

func TestColumn_ValuesAreCopied(t *testing.T) {
	c := dataset.MustColumn("tags", dataset.TypeStringList, []string{"a"})
	v := c.Value(0).([]string)
	v[0] = "mutated"
	assert.Equal(t, []string{"a"}, c.Value(0))
}

func TestNewColumn_RejectsWrongType(t *testing.T) {
	_, err := dataset.NewColumn("remote", dataset.TypeBool, []any{"true"})
	assert.ErrorIs(t, err, dataset.ErrInvalidColumn)
	_, err = dataset.NewColumn("n", dataset.TypeInt, []any{1.5})
	assert.ErrorIs(t, err, dataset.ErrInvalidColumn)
}

func TestTableJSONRoundTrip(t *testing.T) {
	tbl := dataset.MustTable(
		dataset.MustColumn("title", dataset.TypeString, "Engineer", nil),
		dataset.MustColumn("salary_min", dataset.TypeFloat, 100000, 90000.5),
		dataset.MustColumn("skills", dataset.TypeStringList, []string{"go"}, nil),
		dataset.MustColumn("remote", dataset.TypeBool, true, false),
	)
	data, err := json.Marshal(tbl)
	require.NoError(t, err)

	var decoded dataset.Table
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tbl.ColumnNames(), decoded.ColumnNames())
	assert.Equal(t, tbl.Records(), decoded.Records())

	c, _ := decoded.Column("salary_min")
	assert.Equal(t, dataset.TypeFloat, c.Type())
}

func TestFromStringRecords(t *testing.T) {
	tbl, err := dataset.FromStringRecords([]string{"a", "b"}, [][]string{{"1", ""}, {"2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	assert.Nil(t, tbl.Row(0).Value("b"))
	assert.Nil(t, tbl.Row(1).Value("b"))
	assert.Equal(t, "2", tbl.Row(1).String("a"))
}
