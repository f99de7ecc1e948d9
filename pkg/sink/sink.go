// Package sink persists the final table of a run.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// ErrSinkWrite indicates the output could not be written.
var ErrSinkWrite = errors.New("output write failed")

// Sink writes a table to its destination.
type Sink interface {
	Write(ctx context.Context, t *dataset.Table) error
	// Path identifies the destination for diagnostics.
	Path() string
}

// Open returns the sink described by cfg, or nil when cfg has no path. The
// format defaults to the path's extension.
func Open(cfg config.OutputConfig, h slog.Handler) (Sink, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	if h == nil {
		h = slog.DiscardHandler
	}
	logger := slog.New(h).With(slog.String("component", "sink"))

	format := cfg.Format
	if format == "" || format == config.FormatAuto {
		switch strings.ToLower(filepath.Ext(cfg.Path)) {
		case ".csv":
			format = config.FormatCSV
		case ".jsonl", ".ndjson":
			format = config.FormatJSONL
		case ".db", ".sqlite", ".sqlite3":
			format = config.FormatSQLite
		default:
			return nil, fmt.Errorf("%w: cannot infer output format from '%s'", ErrSinkWrite, cfg.Path)
		}
	}
	switch format {
	case config.FormatCSV:
		return &CSVSink{path: cfg.Path, logger: logger}, nil
	case config.FormatJSONL:
		return &JSONLSink{path: cfg.Path, logger: logger}, nil
	case config.FormatSQLite:
		return NewSQLiteSink(cfg.Path, cfg.Table, h)
	}
	return nil, fmt.Errorf("%w: unsupported output format '%s'", ErrSinkWrite, format)
}

// writeAtomic writes via a temp file in the destination directory and renames it into place.
func writeAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory '%s': %w", ErrSinkWrite, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %w", ErrSinkWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	return nil
}

// cellText renders a value for text formats. Lists are comma-joined so the
// ingest coercer reads them back.
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case []string:
		return strings.Join(x, ", ")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
