package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// DefaultTable is the SQLite table written when none is configured.
const DefaultTable = "jobs"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSink writes the table into a SQLite database, replacing the target
// table on every write.
type SQLiteSink struct {
	path   string
	table  string
	logger *slog.Logger
	open   func() (*sql.DB, error)
	ownsDB bool
}

// NewSQLiteSink returns a sink for the database file at path.
func NewSQLiteSink(path, table string, h slog.Handler) (*SQLiteSink, error) {
	s, err := newSQLiteSink(path, table, h)
	if err != nil {
		return nil, err
	}
	s.open = func() (*sql.DB, error) { return openSQLite(path) }
	s.ownsDB = true
	return s, nil
}

// NewSQLiteSinkDB returns a sink that writes through an already open handle.
// The handle is not closed by Write.
func NewSQLiteSinkDB(db *sql.DB, path, table string, h slog.Handler) (*SQLiteSink, error) {
	s, err := newSQLiteSink(path, table, h)
	if err != nil {
		return nil, err
	}
	s.open = func() (*sql.DB, error) { return db, nil }
	return s, nil
}

func newSQLiteSink(path, table string, h slog.Handler) (*SQLiteSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid sqlite table name '%s'", ErrSinkWrite, table)
	}
	if h == nil {
		h = slog.DiscardHandler
	}
	return &SQLiteSink{path: path, table: table, logger: slog.New(h).With(slog.String("component", "sink"))}, nil
}

// openSQLite opens the database file with the pragmas the sink relies on.
func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrSinkWrite, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrSinkWrite, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to set busy timeout: %w", ErrSinkWrite, err)
	}
	return db, nil
}

// Path returns the database file.
func (s *SQLiteSink) Path() string { return s.path }

// Table returns the destination table name.
func (s *SQLiteSink) Table() string { return s.table }

// Write drops and recreates the destination table and inserts every row in
// one transaction.
func (s *SQLiteSink) Write(ctx context.Context, t *dataset.Table) (err error) {
	db, err := s.open()
	if err != nil {
		return err
	}
	if s.ownsDB {
		defer func() {
			if cerr := db.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("%w: close: %w", ErrSinkWrite, cerr)
			}
		}()
	}

	names := t.ColumnNames()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrSinkWrite, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(s.table))); err != nil {
		return fmt.Errorf("%w: drop table: %w", ErrSinkWrite, err)
	}
	if _, err = tx.ExecContext(ctx, createTableSQL(s.table, t)); err != nil {
		return fmt.Errorf("%w: create table: %w", ErrSinkWrite, err)
	}
	if len(names) > 0 {
		stmt, perr := tx.PrepareContext(ctx, insertSQL(s.table, names))
		if perr != nil {
			err = perr
			return fmt.Errorf("%w: prepare insert: %w", ErrSinkWrite, err)
		}
		defer stmt.Close()
		args := make([]any, len(names))
		for i := range t.NumRows() {
			row := t.Row(i)
			for j, name := range names {
				args[j] = sqlValue(row.Value(name))
			}
			if _, err = stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("%w: insert row %d: %w", ErrSinkWrite, i, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrSinkWrite, err)
	}
	s.logger.Debug("Wrote SQLite output", slog.String("path", s.path), slog.String("table", s.table), slog.Int("rows", t.NumRows()))
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(t dataset.LogicalType) string {
	switch t {
	case dataset.TypeFloat:
		return "REAL"
	case dataset.TypeInt, dataset.TypeBool:
		return "INTEGER"
	}
	return "TEXT"
}

func createTableSQL(table string, t *dataset.Table) string {
	names := t.ColumnNames()
	defs := make([]string, len(names))
	for i, name := range names {
		c, _ := t.Column(name)
		defs[i] = quoteIdent(name) + " " + sqlType(c.Type())
	}
	if len(defs) == 0 {
		defs = []string{"_empty INTEGER"}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func insertSQL(table string, names []string) string {
	cols := make([]string, len(names))
	marks := make([]string, len(names))
	for i, name := range names {
		cols[i] = quoteIdent(name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// sqlValue maps a cell to a driver value. Lists and nested values are stored as JSON text.
func sqlValue(v any) any {
	switch x := v.(type) {
	case nil, string, float64, int64:
		return x
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
