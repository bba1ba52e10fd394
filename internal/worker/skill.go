package worker

import (
	"sort"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
	"github.com/basalt-labs/resume-fit-coordinator/pkg/textx"
)

type skillScorer struct{ catalog Catalog }

func (skillScorer) Kind() domain.DimensionKind { return domain.DimensionSkill }

// Score implements spec.md §4.4.1: extract résumé skill set R and
// job-required skill set J from the catalog, weight matches by frequency,
// penalize missing job-required skills.
func (s skillScorer) Score(resume domain.Resume, job domain.Job, _ ScoringContext) (ScoreResult, error) {
	body := textx.Window(textx.SanitizeText(resume.Body), 4000)
	desc := textx.Window(textx.SanitizeText(job.Description), 4000)

	r := extractCatalogSkills(resume.Skills, body, s.catalog.Skills)
	j := extractCatalogSkills(nil, desc, s.catalog.Skills)

	if len(r) == 0 {
		return ScoreResult{Score: 0, Detail: map[string]any{
			"matched": []string{}, "missing": keys(j), "resume_skill_count": 0, "job_skill_count": len(j),
		}}, nil
	}

	var weightSum float64
	var matched []string
	nonEmptyCount := 0
	for skill := range r {
		matches := countOccurrences(desc, skill)
		if matches == 0 {
			continue
		}
		if matches > 5 {
			matches = 5
		}
		weight := 1.0 + 0.15*float64(minInt(matches-1, 3))
		if weight > 1.5 {
			weight = 1.5
		}
		weightSum += weight
		nonEmptyCount++
		matched = append(matched, skill)
	}

	var avg float64
	if nonEmptyCount > 0 {
		avg = weightSum / float64(nonEmptyCount)
	}

	var penalty float64
	missing := missingSkills(j, r)
	if len(j) > 0 {
		penalty = 0.1 * float64(len(missing)) / float64(maxInt(len(j), 1))
	}

	score := clamp(avg-penalty, 0, 1) * 100

	sort.Strings(matched)
	if len(matched) > 10 {
		matched = matched[:10]
	}
	sort.Strings(missing)

	return ScoreResult{
		Score: score,
		Detail: map[string]any{
			"matched":            matched,
			"missing":            missing,
			"resume_skill_count": len(r),
			"job_skill_count":    len(j),
		},
	}, nil
}

// extractCatalogSkills returns the case-normalized, deduplicated set of
// catalog skills present either in the explicit skills list or in text.
func extractCatalogSkills(explicit []string, text string, catalog []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range explicit {
		out[normalizeSkill(s)] = struct{}{}
	}
	for _, s := range catalog {
		ns := normalizeSkill(s)
		if containsWordBoundary(text, ns) {
			out[ns] = struct{}{}
		}
	}
	return out
}

func missingSkills(required, have map[string]struct{}) []string {
	var out []string
	for s := range required {
		if _, ok := have[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeSkill(s string) string {
	return lowerAll([]string{s})[0]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
