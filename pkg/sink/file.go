package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// CSVSink writes a headed CSV file.
type CSVSink struct {
	path   string
	logger *slog.Logger
}

// Path returns the destination file.
func (s *CSVSink) Path() string { return s.path }

// Write replaces the destination file with t.
func (s *CSVSink) Write(ctx context.Context, t *dataset.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := writeAtomic(s.path, func(f *os.File) error {
		w := csv.NewWriter(f)
		names := t.ColumnNames()
		if err := w.Write(names); err != nil {
			return err
		}
		record := make([]string, len(names))
		for i := range t.NumRows() {
			row := t.Row(i)
			for j, name := range names {
				record[j] = cellText(row.Value(name))
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err == nil {
		s.logger.Debug("Wrote CSV output", slog.String("path", s.path), slog.Int("rows", t.NumRows()))
	}
	return err
}

// JSONLSink writes one JSON object per row, keys sorted.
type JSONLSink struct {
	path   string
	logger *slog.Logger
}

// Path returns the destination file.
func (s *JSONLSink) Path() string { return s.path }

// Write replaces the destination file with t.
func (s *JSONLSink) Write(ctx context.Context, t *dataset.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := writeAtomic(s.path, func(f *os.File) error {
		bw := bufio.NewWriter(f)
		enc := json.NewEncoder(bw)
		enc.SetEscapeHTML(false)
		for _, rec := range t.Records() {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err == nil {
		s.logger.Debug("Wrote JSONL output", slog.String("path", s.path), slog.Int("rows", t.NumRows()))
	}
	return err
}
