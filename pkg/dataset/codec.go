package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireTable is the columnar JSON form of a Table:
//
//	{"columns":[{"name":"title","type":"string","values":["a",null]}]}
type wireTable struct {
	Rows    int          `json:"rows"`
	Columns []wireColumn `json:"columns"`
}

type wireColumn struct {
	Name   string      `json:"name"`
	Type   LogicalType `json:"type"`
	Values []any       `json:"values"`
}

// MarshalJSON encodes the table in columnar form, preserving column order and types.
func (t *Table) MarshalJSON() ([]byte, error) {
	w := wireTable{Rows: t.rows, Columns: make([]wireColumn, len(t.columns))}
	for i, c := range t.columns {
		w.Columns[i] = wireColumn{Name: c.name, Type: c.typ, Values: c.values}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the columnar form produced by MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var w wireTable
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("decode table: %w", err)
	}
	cols := make([]*Column, 0, len(w.Columns))
	for _, wc := range w.Columns {
		c, err := NewColumn(wc.Name, wc.Type, wc.Values)
		if err != nil {
			return fmt.Errorf("decode table: %w", err)
		}
		cols = append(cols, c)
	}
	decoded, err := NewTable(cols...)
	if err != nil {
		return fmt.Errorf("decode table: %w", err)
	}
	if len(cols) == 0 {
		decoded.rows = w.Rows
	} else if w.Rows != 0 && w.Rows != decoded.rows {
		return fmt.Errorf("decode table: %w: header declares %d rows, columns carry %d", ErrInvalidColumn, w.Rows, decoded.rows)
	}
	*t = *decoded
	return nil
}
