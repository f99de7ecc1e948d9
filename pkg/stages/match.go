package stages

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// Score weights of the match stage.
const (
	weightSkills   = 0.5
	weightLocation = 0.2
	weightSalary   = 0.1
	weightQuality  = 0.2
)

// PlanItem is one entry of the application plan: a ranked job to apply to.
type PlanItem struct {
	Rank     int      `json:"rank"`
	JobID    string   `json:"job_id,omitempty"`
	Title    string   `json:"title,omitempty"`
	Company  string   `json:"company,omitempty"`
	ApplyURL string   `json:"apply_url,omitempty"`
	FitScore float64  `json:"fit_score"`
	Reasons  []string `json:"reasons,omitempty"`
}

// MatchTable scores every row against the profile, sorts rows by descending
// fit_score, and adds fit_score and fit_rank (1-based). Equal scores are
// ordered by a permutation drawn from env.Rand, so ties are stable for a given
// seed. The plan holds the first top_k rows (all rows when top_k is 0).
func MatchTable(t *dataset.Table, opts config.MatchConfig, env Env) (*dataset.Table, []PlanItem, error) {
	if env.Rand == nil {
		return nil, nil, fmt.Errorf("match: no random source")
	}
	profileSkills := make(map[string]bool, len(opts.Profile.Skills))
	norm := env.normalizer()
	for _, s := range opts.Profile.Skills {
		if s = norm.NormalizeSkill(s); s != "" {
			profileSkills[s] = true
		}
	}

	n := t.NumRows()
	scores := make([]float64, n)
	reasons := make([][]string, n)
	for i := range n {
		scores[i], reasons[i] = fitScore(t.Row(i), opts.Profile, profileSkills, norm)
	}
	tiebreak := env.Rand.Perm(n)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		return tiebreak[a] - tiebreak[b]
	})

	ranked, err := t.Take(order)
	if err != nil {
		return nil, nil, fmt.Errorf("match: %w", err)
	}
	scoreVals := make([]any, n)
	rankVals := make([]any, n)
	for pos, idx := range order {
		scoreVals[pos] = scores[idx]
		rankVals[pos] = int64(pos + 1)
	}
	for _, col := range []struct {
		name string
		typ  dataset.LogicalType
		vals []any
	}{
		{ColumnFitScore, dataset.TypeFloat, scoreVals},
		{ColumnFitRank, dataset.TypeInt, rankVals},
	} {
		c, err := dataset.NewColumn(col.name, col.typ, col.vals)
		if err != nil {
			return nil, nil, fmt.Errorf("match: %w", err)
		}
		if ranked, err = ranked.WithColumn(c); err != nil {
			return nil, nil, fmt.Errorf("match: %w", err)
		}
	}

	limit := n
	if opts.TopK > 0 && opts.TopK < n {
		limit = opts.TopK
	}
	plan := make([]PlanItem, 0, limit)
	for pos := range limit {
		r := ranked.Row(pos)
		plan = append(plan, PlanItem{
			Rank:     pos + 1,
			JobID:    r.String(dataset.FieldJobID),
			Title:    r.String(dataset.FieldTitle),
			Company:  r.String(dataset.FieldCompany),
			ApplyURL: r.String(dataset.FieldApplyURL),
			FitScore: scores[order[pos]],
			Reasons:  reasons[order[pos]],
		})
	}
	return ranked, plan, nil
}

func fitScore(r dataset.Row, profile config.ProfileConfig, profileSkills map[string]bool, norm Normalizer) (float64, []string) {
	var score float64
	var why []string

	if len(profileSkills) > 0 {
		matched := make([]string, 0)
		seen := map[string]bool{}
		for _, s := range r.StringList(dataset.FieldSkills) {
			s = norm.NormalizeSkill(s)
			if profileSkills[s] && !seen[s] {
				seen[s] = true
				matched = append(matched, s)
			}
		}
		if len(matched) > 0 {
			slices.Sort(matched)
			score += weightSkills * float64(len(matched)) / float64(len(profileSkills))
			why = append(why, "skills: "+strings.Join(matched, ", "))
		}
	}

	remote, _ := r.Bool(dataset.FieldRemote)
	switch {
	case profile.PreferRemote && remote:
		score += weightLocation
		why = append(why, "remote")
	case len(profile.Locations) > 0 && containsFold(r.String(dataset.FieldLocation), profile.Locations):
		score += weightLocation
		why = append(why, "location: "+r.String(dataset.FieldLocation))
	}

	if profile.MinSalary > 0 {
		salary, ok := r.Float(dataset.FieldSalaryMax)
		if !ok {
			salary, ok = r.Float(dataset.FieldSalaryMin)
		}
		if ok && salary >= profile.MinSalary {
			score += weightSalary
			why = append(why, "salary")
		}
	}

	if q, ok := r.Float(ColumnQualityScore); ok {
		score += weightQuality * q
	}
	return round4(score), why
}
