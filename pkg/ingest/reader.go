// Package ingest reads job tables from disk and maps their columns onto the
// canonical schema: an optional field adapter with type coercion, then column
// aliasing, then conformance to canonical types. Each mapping step produces a
// report that ends up in the run diagnostics.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// ErrInputRead indicates the input file could not be read or parsed.
var ErrInputRead = errors.New("input read failed")

// ErrBinaryInput indicates the input file looks like binary data.
var ErrBinaryInput = errors.New("input looks binary")

// Source produces the raw input table of a run.
type Source interface {
	Read(ctx context.Context, path, format string) (*dataset.Table, error)
}

// FileReader reads CSV and JSON Lines files.
type FileReader struct {
	decoder TextDecoder
	logger  *slog.Logger
}

// NewFileReader returns a reader that decodes input with dec. A nil dec uses
// NewCharsetDecoder(""); a nil handler discards logs.
func NewFileReader(dec TextDecoder, h slog.Handler) *FileReader {
	if dec == nil {
		dec = NewCharsetDecoder("")
	}
	if h == nil {
		h = slog.DiscardHandler
	}
	return &FileReader{decoder: dec, logger: slog.New(h).With(slog.String("component", "ingest"))}
}

// DetectFormat maps a file extension to "csv" or "jsonl".
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return "csv", nil
	case ".jsonl", ".ndjson", ".json":
		return "jsonl", nil
	}
	return "", fmt.Errorf("%w: cannot infer input format from '%s'", ErrInputRead, path)
}

// Read loads path. format is "csv", "jsonl" or "auto"/"" for extension-based detection.
func (r *FileReader) Read(ctx context.Context, path, format string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if format == "" || format == "auto" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputRead, err)
	}
	if r.decoder.IsBinary(raw) {
		return nil, fmt.Errorf("%w: %s", ErrBinaryInput, path)
	}
	text, enc, err := r.decoder.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInputRead, path, err)
	}
	r.logger.Debug("Decoded input", slog.String("path", path), slog.String("encoding", enc), slog.String("format", format))

	var tbl *dataset.Table
	switch format {
	case "csv":
		comma := ','
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			comma = '\t'
		}
		tbl, err = ReadCSV(bytes.NewReader(text), comma)
	case "jsonl":
		tbl, err = ReadJSONL(bytes.NewReader(text))
	default:
		return nil, fmt.Errorf("%w: unsupported input format '%s'", ErrInputRead, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug("Read input table", slog.String("path", path), slog.Int("rows", tbl.NumRows()), slog.Int("columns", tbl.NumColumns()))
	return tbl, nil
}

// ReadCSV reads a headed CSV document into an all-string table. Empty cells are null.
func ReadCSV(in io.Reader, comma rune) (*dataset.Table, error) {
	cr := csv.NewReader(in)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv: %w", ErrInputRead, err)
	}
	if len(records) == 0 {
		return dataset.MustTable(), nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	tbl, err := dataset.FromStringRecords(header, records[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: csv: %w", ErrInputRead, err)
	}
	return tbl, nil
}

// ReadJSONL reads one JSON object per line. Columns appear in first-seen order
// and get the narrowest logical type that holds every non-null value.
func ReadJSONL(in io.Reader) (*dataset.Table, error) {
	var (
		order []string
		rows  []map[string]any
		seen  = map[string]bool{}
	)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		keys, obj, err := decodeOrderedObject(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: jsonl line %d: %w", ErrInputRead, line, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
		rows = append(rows, obj)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: jsonl: %w", ErrInputRead, err)
	}

	cols := make([]*dataset.Column, 0, len(order))
	for _, name := range order {
		vals := make([]any, len(rows))
		for i, row := range rows {
			vals[i] = row[name]
		}
		c, err := dataset.NewColumn(name, inferType(vals), vals)
		if err != nil {
			return nil, fmt.Errorf("%w: jsonl: %w", ErrInputRead, err)
		}
		cols = append(cols, c)
	}
	tbl, err := dataset.NewTable(cols...)
	if err != nil {
		return nil, fmt.Errorf("%w: jsonl: %w", ErrInputRead, err)
	}
	return tbl, nil
}

// decodeOrderedObject decodes one JSON object and reports its keys in document order.
func decodeOrderedObject(dec *json.Decoder) ([]string, map[string]any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}
	var keys []string
	obj := map[string]any{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, obj, nil
}

// inferType picks the logical type of a JSON column.
func inferType(vals []any) dataset.LogicalType {
	var typ dataset.LogicalType
	for _, v := range vals {
		var t dataset.LogicalType
		switch x := v.(type) {
		case nil:
			continue
		case string:
			t = dataset.TypeString
		case bool:
			t = dataset.TypeBool
		case json.Number:
			t = dataset.TypeFloat
		case []any:
			t = dataset.TypeStringList
			for _, item := range x {
				if _, ok := item.(string); !ok {
					t = dataset.TypeAny
					break
				}
			}
		default:
			t = dataset.TypeAny
		}
		switch {
		case typ == "":
			typ = t
		case typ != t:
			return dataset.TypeAny
		}
	}
	if typ == "" {
		return dataset.TypeString
	}
	return typ
}
