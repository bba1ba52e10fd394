package worker

import (
	"math"
	"strings"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

type semanticScorer struct{ catalog Catalog }

func (semanticScorer) Kind() domain.DimensionKind { return domain.DimensionSemantic }

// Score implements spec.md §4.4.5.
func (s semanticScorer) Score(resume domain.Resume, job domain.Job, sc ScoringContext) (ScoreResult, error) {
	if len(resume.Embedding) == 0 || len(job.Embedding) == 0 || len(resume.Embedding) != len(job.Embedding) {
		return ScoreResult{}, domain.ErrInvalidArgument
	}

	cos, err := cosineSimilarity(resume.Embedding, job.Embedding)
	if err != nil {
		return ScoreResult{}, err
	}
	se := (cos + 1) / 2

	if sc.SkillScore == nil {
		return ScoreResult{
			Score: 100 * se,
			Detail: map[string]any{"cosine": cos, "s_e": se, "fallback": true},
		}, nil
	}
	skillScore := *sc.SkillScore

	isTech := isTechOriented(job, s.catalog.TechIndicators)
	sd := domainRelevance(resume, job, s.catalog, isTech, skillScore)

	var sa float64
	switch {
	case isTech && skillScore < 40:
		sa = 0.2
	case skillScore > 70:
		sa = skillScore / 100
	default:
		sa = se
	}

	score := 100 * (0.4*se + 0.3*sd + 0.3*sa)

	return ScoreResult{
		Score: score,
		Detail: map[string]any{
			"cosine": cos, "s_e": se, "s_d": sd, "s_a": sa, "fallback": false,
		},
	}, nil
}

func cosineSimilarity(a, b []float64) (float64, error) {
	var dot, na, nb float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsInf(a[i], 0) || math.IsNaN(b[i]) || math.IsInf(b[i], 0) {
			return 0, domain.ErrInvalidArgument
		}
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, domain.ErrInvalidArgument
	}
	return clamp(dot/(math.Sqrt(na)*math.Sqrt(nb)), -1, 1), nil
}

func isTechOriented(job domain.Job, indicators []string) bool {
	text := strings.ToLower(job.Title + " " + job.Description)
	for _, ind := range indicators {
		if containsWordBoundary(text, strings.ToLower(ind)) {
			return true
		}
	}
	return false
}

// domainRelevance computes s_d per spec.md §4.4.5: 0.6 flat for non-tech
// roles, otherwise a function of five binary indicators found.
func domainRelevance(resume domain.Resume, job domain.Job, catalog Catalog, isTech bool, skillScore float64) float64 {
	if !isTech {
		return 0.6
	}
	resumeText := strings.ToLower(resume.Body)
	jobText := strings.ToLower(job.Description)
	titleText := strings.ToLower(job.Title)

	found := 0
	// (a) tech keywords found in résumé text
	for _, ind := range catalog.TechIndicators {
		if containsWordBoundary(resumeText, strings.ToLower(ind)) {
			found++
			break
		}
	}
	// (b) résumé skills that appear in job description
	for _, sk := range resume.Skills {
		if containsWordBoundary(jobText, strings.ToLower(sk)) {
			found++
			break
		}
	}
	// (c) title-token matches in résumé
	for _, tok := range strings.Fields(titleText) {
		if len(tok) > 2 && containsWordBoundary(resumeText, tok) {
			found++
			break
		}
	}
	// (d) relevant-field education: any degree-tier keyword present in résumé
	if tier, _ := highestTier(resumeText); tier > 0 {
		found++
	}
	// (e) skill_score >= 50
	if skillScore >= 50 {
		found++
	}

	return clamp(0.3+0.7*float64(found)/5, 0, 1)
}
