package ingest

import (
	"fmt"
	"slices"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// LegacyAliases maps column names used by older exports onto canonical fields.
var LegacyAliases = []config.AliasConfig{
	{From: "job_title", To: dataset.FieldTitle},
	{From: "company_name", To: dataset.FieldCompany},
	{From: "employer", To: dataset.FieldCompany},
	{From: "location_raw", To: dataset.FieldLocation},
	{From: "url", To: dataset.FieldApplyURL},
	{From: "job_url", To: dataset.FieldApplyURL},
	{From: "description_text", To: dataset.FieldDescription},
	{From: "id", To: dataset.FieldJobID},
	{From: "is_remote", To: dataset.FieldRemote},
	{From: "date_posted", To: dataset.FieldPostedAt},
}

// AliasingReport describes which alias columns were promoted to canonical fields.
type AliasingReport struct {
	Applied    map[string]string `json:"applied"`
	Conflicts  map[string]int    `json:"conflicts"`
	Unresolved []string          `json:"unresolved"`
}

// Alias promotes alias columns to the canonical names they map to. Explicit
// aliases are tried before legacy ones. When the canonical column already
// exists it is kept and each row where an alias disagrees with it counts as a
// conflict. Unresolved lists the canonical fields still absent afterwards.
func Alias(t *dataset.Table, aliases []config.AliasConfig, legacy bool) (*dataset.Table, AliasingReport, error) {
	report := AliasingReport{Applied: map[string]string{}, Conflicts: map[string]int{}, Unresolved: []string{}}
	all := slices.Clone(aliases)
	if legacy {
		all = append(all, LegacyAliases...)
	}

	out := t
	for _, a := range all {
		src, ok := t.Column(a.From)
		if !ok || a.From == a.To {
			continue
		}
		if existing, ok := out.Column(a.To); ok {
			conflicts := countConflicts(existing, src)
			if conflicts > 0 {
				report.Conflicts[a.To] += conflicts
			}
			continue
		}
		renamed, err := dataset.NewColumn(a.To, src.Type(), src.Values())
		if err != nil {
			return nil, report, fmt.Errorf("alias %s -> %s: %w", a.From, a.To, err)
		}
		if out, err = out.WithColumn(renamed); err != nil {
			return nil, report, fmt.Errorf("alias %s -> %s: %w", a.From, a.To, err)
		}
		report.Applied[a.To] = a.From
	}

	for _, f := range dataset.CanonicalFields() {
		if !out.HasColumn(f.Name) {
			report.Unresolved = append(report.Unresolved, f.Name)
		}
	}
	return out, report, nil
}

func countConflicts(a, b *dataset.Column) int {
	n := 0
	for i := range a.Len() {
		va, vb := a.Value(i), b.Value(i)
		if va != nil && vb != nil && fmt.Sprint(va) != fmt.Sprint(vb) {
			n++
		}
	}
	return n
}
