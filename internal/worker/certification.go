package worker

import (
	"sort"
	"strings"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

type certificationScorer struct{ catalog Catalog }

func (certificationScorer) Kind() domain.DimensionKind { return domain.DimensionCertification }

// Score implements spec.md §4.4.4.
func (c certificationScorer) Score(resume domain.Resume, job domain.Job, _ ScoringContext) (ScoreResult, error) {
	jobText := strings.ToLower(job.Description)

	cJob := make(map[string]struct{})
	for _, cert := range c.catalog.Certifications {
		nc := strings.ToLower(cert)
		if containsWordBoundary(jobText, nc) {
			cJob[nc] = struct{}{}
		}
	}

	cRes := make(map[string]struct{})
	for _, cert := range resume.Certifications {
		cRes[strings.ToLower(cert)] = struct{}{}
	}

	var score float64
	var matched, missing []string

	if len(cJob) == 0 {
		if len(cRes) > 0 {
			score = 50
		} else {
			score = 30
		}
	} else if len(cRes) == 0 {
		score = 0
		missing = keys(cJob)
	} else {
		var matchCount int
		for cert := range cJob {
			if _, ok := cRes[cert]; ok {
				matchCount++
				matched = append(matched, cert)
			} else {
				missing = append(missing, cert)
			}
		}
		score = 100 * float64(matchCount) / float64(len(cJob))
	}

	sort.Strings(matched)
	sort.Strings(missing)

	return ScoreResult{
		Score: score,
		Detail: map[string]any{
			"matched": matched,
			"missing": missing,
		},
	}, nil
}
