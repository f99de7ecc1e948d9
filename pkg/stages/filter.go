package stages

import (
	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// FilterTable keeps the rows that satisfy every enabled criterion:
//
//   - remote_only: remote is true
//   - min_salary: salary_max (or salary_min when no max) is at least the floor;
//     rows without any salary are dropped
//   - include_keywords: title or description mentions one keyword
//   - exclude_keywords: title or description mentions none
//   - locations: location mentions one entry, or the job is remote
func FilterTable(t *dataset.Table, opts config.FilterConfig, _ Env) (*dataset.Table, error) {
	return t.Filter(func(r dataset.Row) bool {
		remote, _ := r.Bool(dataset.FieldRemote)
		if opts.RemoteOnly && !remote {
			return false
		}
		if opts.MinSalary > 0 {
			salary, ok := r.Float(dataset.FieldSalaryMax)
			if !ok {
				salary, ok = r.Float(dataset.FieldSalaryMin)
			}
			if !ok || salary < opts.MinSalary {
				return false
			}
		}
		text := r.String(dataset.FieldTitle) + "\n" + r.String(dataset.FieldDescription)
		if len(opts.IncludeKeywords) > 0 && !containsFold(text, opts.IncludeKeywords) {
			return false
		}
		if len(opts.ExcludeKeywords) > 0 && containsFold(text, opts.ExcludeKeywords) {
			return false
		}
		if len(opts.Locations) > 0 && !remote && !containsFold(r.String(dataset.FieldLocation), opts.Locations) {
			return false
		}
		return true
	}), nil
}
