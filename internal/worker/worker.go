package worker

import (
	"regexp"
	"strings"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

// ScoreResult is one worker's raw output before the coordinator wraps it
// into a domain.WorkerResult.
type ScoreResult struct {
	Score  float64
	Detail map[string]any
}

// ScoringContext carries the cross-worker inputs a scorer may consult.
// SkillScore is optional (spec.md §4.4.5 dependency note). The coordinator
// runs all five workers in parallel and leaves it nil, so the semantic
// worker takes its embedding-only fallback; its absence must not block
// scoring.
type ScoringContext struct {
	Catalog    Catalog
	SkillScore *float64
}

// Scorer is the common worker contract: score a (résumé, job) pair on one
// dimension. Implementations must be side-effect-free and never mutate
// resume/job.
type Scorer interface {
	Kind() domain.DimensionKind
	Score(resume domain.Resume, job domain.Job, sc ScoringContext) (ScoreResult, error)
}

// Registry is the closed set of the five scorers, keyed by dimension.
type Registry map[domain.DimensionKind]Scorer

// NewRegistry builds the full registry. catalog supplies the skills,
// certifications, and tech-indicator reference data.
func NewRegistry(catalog Catalog) Registry {
	return Registry{
		domain.DimensionSkill:         skillScorer{catalog: catalog},
		domain.DimensionSemantic:      semanticScorer{catalog: catalog},
		domain.DimensionExperience:    experienceScorer{},
		domain.DimensionEducation:     educationScorer{},
		domain.DimensionCertification: certificationScorer{catalog: catalog},
	}
}

var wordSplitter = regexp.MustCompile(`[^a-z0-9+.#]+`)

// tokenize lower-cases and splits text into a deduplicated token set,
// preserving multi-word catalog phrases via substring containment instead
// of exact token equality (so "machine learning" matches as a phrase).
func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordSplitter.Split(strings.ToLower(s), -1) {
		if w == "" {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// containsWordBoundary reports whether needle appears in haystack as a
// whole word or phrase (space/punctuation delimited), not as a substring of
// a larger word.
func containsWordBoundary(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
	if err != nil {
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}
	return re.MatchString(haystack)
}

func countOccurrences(haystack, needle string) int {
	if needle == "" {
		return 0
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(needle) + `\b`)
	if err != nil {
		return strings.Count(strings.ToLower(haystack), strings.ToLower(needle))
	}
	return len(re.FindAllStringIndex(haystack, -1))
}
