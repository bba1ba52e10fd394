// Package weights implements the weight profile selector: a pure
// classifier over job title/description that picks the fusion weights
// used to combine the five scoring dimensions into a composite.
package weights

import (
	"strings"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

var seniorTitleTokens = []string{"senior", "lead", "principal"}

var securityDescTokens = []string{"certification", "certified"}
var securityTitleTokens = []string{"security", "compliance"}

var dataMLTokens = []string{"data", "machine learning", "ml", "tensorflow", "pytorch"}

// Select classifies a (title, description) pair into a profile tag and
// returns its associated weight vector. It is a pure function: identical
// inputs always produce identical output, matching rules top to bottom
// and stopping at the first match.
func Select(title, description string) (domain.ProfileTag, domain.Weights) {
	t := strings.ToLower(title)
	d := strings.ToLower(description)

	switch {
	case containsAny(t, seniorTitleTokens):
		return domain.ProfileSeniorLeadership, domain.Weights{
			Skill: 0.30, Semantic: 0.15, Experience: 0.35, Education: 0.15, Certification: 0.05,
		}
	case containsAny(d, securityDescTokens) || containsAny(t, securityTitleTokens):
		return domain.ProfileSecurityCompliance, domain.Weights{
			Skill: 0.30, Semantic: 0.20, Experience: 0.20, Education: 0.15, Certification: 0.15,
		}
	case containsAny(t, dataMLTokens) || containsAny(d, dataMLTokens):
		return domain.ProfileDataML, domain.Weights{
			Skill: 0.40, Semantic: 0.25, Experience: 0.15, Education: 0.15, Certification: 0.05,
		}
	default:
		return domain.ProfileDefault, domain.Weights{
			Skill: 0.25, Semantic: 0.15, Experience: 0.10, Education: 0.30, Certification: 0.20,
		}
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
