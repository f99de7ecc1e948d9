package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
	"github.com/stretchr/testify/require"
)

// WriteFile writes content to path, creating parent directories. It fails the
// test on error and returns path for chaining.
func WriteFile(t *testing.T, path string, content string) string {
	t.Helper()
	fullPath := filepath.Clean(path)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755), "Failed to create directory for %s", fullPath)
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644), "Failed to write %s", fullPath)
	return fullPath
}

// Jobs builds a canonical table from row maps. Fields a row omits are null.
func Jobs(t *testing.T, rows ...map[string]any) *dataset.Table {
	t.Helper()
	cols := make([]*dataset.Column, 0)
	for _, f := range dataset.CanonicalFields() {
		vals := make([]any, len(rows))
		for i, r := range rows {
			vals[i] = r[f.Name]
		}
		c, err := dataset.NewColumn(f.Name, f.Type, vals)
		require.NoError(t, err)
		cols = append(cols, c)
	}
	tbl, err := dataset.NewTable(cols...)
	require.NoError(t, err)
	return tbl
}

// SampleJobs is a three-listing input used by runtime and CLI tests.
func SampleJobs(t *testing.T) *dataset.Table {
	t.Helper()
	return Jobs(t,
		map[string]any{
			"job_id": "a", "title": "Senior Go Engineer", "company": "Acme", "location": "Remote",
			"remote": true, "salary_min": 150000, "skills": []string{"go", "sql"}, "apply_url": "https://acme.example/a",
		},
		map[string]any{
			"job_id": "b", "title": "Data Analyst", "company": "Beta", "location": "Berlin",
			"remote": false, "skills": []string{"sql"},
		},
		map[string]any{
			"job_id": "c", "title": "Junior Go Developer", "company": "Gamma", "location": "Remote - EU",
			"skills": []string{"go"}, "salary_max": 70000,
		},
	)
}
