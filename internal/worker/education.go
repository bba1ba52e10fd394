package worker

import (
	"strings"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

type educationScorer struct{}

func (educationScorer) Kind() domain.DimensionKind { return domain.DimensionEducation }

// degreeTiers is ordered low to high, per spec.md §4.4.3. Tier 0 (None) has
// no keyword: absence of any higher-tier keyword means tier 0.
var degreeTiers = []struct {
	tier     int
	label    string
	keywords []string
}{
	{1, "High School", []string{"high school", "ged"}},
	{2, "Associate", []string{"associate degree", "associate's degree", "a.a.", "a.s."}},
	{3, "Bachelor", []string{"bachelor", "b.sc", "bsc", "b.a.", "b.eng", "undergraduate degree"}},
	{4, "Master", []string{"master", "m.sc", "msc", "mba", "m.a.", "m.eng"}},
	{5, "Doctorate", []string{"doctorate", "phd", "ph.d", "doctoral"}},
}

// Score implements spec.md §4.4.3.
func (educationScorer) Score(resume domain.Resume, job domain.Job, _ ScoringContext) (ScoreResult, error) {
	resumeText := strings.ToLower(strings.Join(resume.Education, " ") + " " + resume.Body)
	jobText := strings.ToLower(job.Description)

	tc, tcLabel := highestTier(resumeText)
	tr, trLabel := highestTier(jobText)

	var score float64
	met := false
	switch {
	case tr == 0:
		score = 100
		met = true
	case tc >= tr:
		score = 100
		met = true
	case tc > 0 && tc < tr:
		score = 100 * float64(tc) / float64(tr)
	case tc == 0 && tr > 0:
		score = 0
	}

	return ScoreResult{
		Score: score,
		Detail: map[string]any{
			"candidate_tier": tcLabel,
			"required_tier":  trLabel,
			"met":            met,
		},
	}, nil
}

func highestTier(text string) (int, string) {
	tier, label := 0, "None"
	for _, t := range degreeTiers {
		for _, kw := range t.keywords {
			if strings.Contains(text, kw) && t.tier > tier {
				tier, label = t.tier, t.label
				break
			}
		}
	}
	return tier, label
}
