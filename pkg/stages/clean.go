package stages

import (
	"fmt"
	"strings"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

var cleanTextFields = []string{
	dataset.FieldJobID,
	dataset.FieldTitle,
	dataset.FieldCompany,
	dataset.FieldLocation,
	dataset.FieldDescription,
	dataset.FieldApplyURL,
	dataset.FieldPostedAt,
	dataset.FieldSource,
}

// CleanTable normalizes text columns, skills and the remote flag, then drops
// duplicate listings by (title, company, location) keeping the first.
func CleanTable(t *dataset.Table, opts config.CleanConfig, env Env) (*dataset.Table, error) {
	norm := env.normalizer()
	out := t
	var err error

	for _, name := range cleanTextFields {
		if !out.HasColumn(name) {
			continue
		}
		out, err = out.WithValues(name, dataset.TypeString, func(r dataset.Row) any {
			if s := norm.NormalizeText(r.String(name)); s != "" {
				return s
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("clean %s: %w", name, err)
		}
	}

	if opts.NormalizeSkills && out.HasColumn(dataset.FieldSkills) {
		out, err = out.WithValues(dataset.FieldSkills, dataset.TypeStringList, func(r dataset.Row) any {
			raw := r.StringList(dataset.FieldSkills)
			if raw == nil {
				return nil
			}
			seen := make(map[string]bool, len(raw))
			skills := make([]string, 0, len(raw))
			for _, s := range raw {
				if s = norm.NormalizeSkill(s); s != "" && !seen[s] {
					seen[s] = true
					skills = append(skills, s)
				}
			}
			return skills
		})
		if err != nil {
			return nil, fmt.Errorf("clean skills: %w", err)
		}
	}

	if opts.InferRemote && out.HasColumn(dataset.FieldRemote) {
		out, err = out.WithValues(dataset.FieldRemote, dataset.TypeBool, func(r dataset.Row) any {
			if b, ok := r.Bool(dataset.FieldRemote); ok {
				return b
			}
			if remote, ok := norm.InferRemote(r.String(dataset.FieldLocation), r.String(dataset.FieldTitle), r.String(dataset.FieldDescription)); ok {
				return remote
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("clean remote: %w", err)
		}
	}

	if opts.Dedupe {
		seen := make(map[string]bool, out.NumRows())
		out = out.Filter(func(r dataset.Row) bool {
			key := strings.ToLower(r.String(dataset.FieldTitle) + "\x00" + r.String(dataset.FieldCompany) + "\x00" + r.String(dataset.FieldLocation))
			if key == "\x00\x00" {
				return true
			}
			if seen[key] {
				return false
			}
			seen[key] = true
			return true
		})
	}
	return out, nil
}
