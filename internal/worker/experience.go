package worker

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

type experienceScorer struct{}

func (experienceScorer) Kind() domain.DimensionKind { return domain.DimensionExperience }

var explicitYearsRE = regexp.MustCompile(`(?i)(\d{1,2})\+?\s*years?\s+of\s+experience`)

// dateRangeRE matches "YYYY-YYYY", "YYYY - Present", "MM/YYYY-MM/YYYY" and
// similar unambiguous ranges.
var dateRangeRE = regexp.MustCompile(`(?i)(?:\d{1,2}/)?(\d{4})\s*[-–to]+\s*(?:(?:\d{1,2}/)?(\d{4})|present|current)`)

// Score implements spec.md §4.4.2.
func (experienceScorer) Score(resume domain.Resume, job domain.Job, _ ScoringContext) (ScoreResult, error) {
	yc := deriveCandidateYears(resume)
	yr := job.RequiredYears

	var score float64
	met := false
	switch {
	case yr == 0:
		score = 100
		met = true
	case yc >= yr:
		score = 100
		met = true
	case yc > 0 && yc < yr:
		score = 100 * float64(yc) / float64(yr)
	case yc == 0 && yr > 0:
		score = 0
	}

	return ScoreResult{
		Score: score,
		Detail: map[string]any{
			"candidate_years": yc,
			"required_years":  yr,
			"met":             met,
		},
	}, nil
}

func deriveCandidateYears(resume domain.Resume) int {
	if resume.YearsExperience > 0 {
		return clipYears(resume.YearsExperience)
	}
	if m := explicitYearsRE.FindStringSubmatch(resume.Body); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return clipYears(n)
		}
	}

	nowYear := time.Now().Year()
	total := 0
	for _, m := range dateRangeRE.FindAllStringSubmatch(resume.Body, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		end := nowYear
		if m[2] != "" && !strings.EqualFold(m[2], "present") && !strings.EqualFold(m[2], "current") {
			if e, err := strconv.Atoi(m[2]); err == nil {
				end = e
			}
		}
		if start > end {
			continue
		}
		total += clipYears(end - start)
	}
	return clipYears(total)
}

func clipYears(y int) int {
	if y < 0 {
		return 0
	}
	if y >= 80 {
		return 79
	}
	return y
}
