// Package worker implements the five scoring workers (skill, semantic,
// experience, education, certification) behind a common Scorer interface.
package worker

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the externally-supplied reference data the skill and
// certification workers match résumé/job text against.
type Catalog struct {
	Skills         []string `yaml:"skills"`
	Certifications []string `yaml:"certifications"`
	TechIndicators []string `yaml:"tech_indicators"`
}

// DefaultCatalog returns the built-in catalog used when no external file is
// configured: the tech-indicator set is the fixed glossary list; skills and
// certifications are a representative seed list, expected to be overridden
// in production via LoadCatalog.
func DefaultCatalog() Catalog {
	return Catalog{
		TechIndicators: []string{
			"engineer", "developer", "programmer", "architect", "devops", "sre",
			"cloud", "data", "ai", "ml", "machine learning", "database", "sql",
			"python", "javascript", "java", "c++", ".net", "react", "node",
			"kubernetes", "docker", "aws", "azure", "gcp", "infrastructure",
			"software", "tech", "cybersecurity", "security", "network",
			"analyst", "admin", "backend", "frontend", "fullstack",
		},
		Skills: []string{
			"python", "go", "golang", "java", "javascript", "typescript", "sql",
			"kubernetes", "docker", "aws", "azure", "gcp", "terraform", "react",
			"node.js", "postgresql", "redis", "kafka", "machine learning",
			"tensorflow", "pytorch", "linux", "ci/cd", "microservices",
		},
		Certifications: []string{
			"aws certified", "cissp", "ccna", "comptia security+", "pmp",
			"ckad", "cka", "azure certified", "gcp certified", "scrum master",
		},
	}
}

// LoadCatalog reads a YAML-encoded Catalog from path. An empty path returns
// DefaultCatalog, matching the teacher's "config with sane defaults" idiom.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("op=worker.LoadCatalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("op=worker.LoadCatalog: %w", err)
	}
	if len(c.TechIndicators) == 0 {
		c.TechIndicators = DefaultCatalog().TechIndicators
	}
	return c, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
