// Package domain defines core entities, ports, and domain-specific errors
// for the résumé/job fitness scoring coordinator.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrInternal        = errors.New("internal error")
)

// DimensionKind enumerates the five scoring dimensions ("agents" in the
// source system; the terms are interchangeable here).
type DimensionKind string

// The closed set of scoring dimensions.
const (
	DimensionSkill         DimensionKind = "skill"
	DimensionSemantic      DimensionKind = "semantic"
	DimensionExperience    DimensionKind = "experience"
	DimensionEducation     DimensionKind = "education"
	DimensionCertification DimensionKind = "certification"
)

// Dimensions returns the closed set in a stable order. Dispatch order is
// irrelevant to the composite (it is commutative in kind), but a stable
// order keeps logs and tests deterministic.
func Dimensions() []DimensionKind {
	return []DimensionKind{
		DimensionSkill,
		DimensionSemantic,
		DimensionExperience,
		DimensionEducation,
		DimensionCertification,
	}
}

// Resume is the external, read-only candidate record the core scores against.
type Resume struct {
	ID              string
	Body            string
	Skills          []string
	YearsExperience int
	Education       []string
	Certifications  []string
	Embedding       []float64
}

// Job is the external, read-only job-description record the core scores against.
type Job struct {
	ID            string
	Title         string
	Description   string
	RequiredYears int
	Embedding     []float64
}

// ForkState captures the lifecycle state of a provisioned DataContext.
// Invariant: pending -> active -> (completed | failed); never backwards.
type ForkState string

// Fork lifecycle states.
const (
	ForkPending   ForkState = "pending"
	ForkActive    ForkState = "active"
	ForkCompleted ForkState = "completed"
	ForkFailed    ForkState = "failed"
)

// Fork is a provisioned DataContext plus its ledger record. It is not
// necessarily a physical database copy: DataURL may name a zero-copy
// fork, a physical clone, or a fresh session on the primary store.
type Fork struct {
	ID           string
	Kind         DimensionKind
	ResumeID     string
	JobID        string
	State        ForkState
	Strategy     string // "zero_copy_fork" | "physical_clone" | "logical_context"
	DataURL      string
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	ErrorMessage string
}

// WorkerResult is the output of one scoring worker against one fork.
// Invariant: no WorkerResult exists for a failed fork.
type WorkerResult struct {
	ForkID           string
	Kind             DimensionKind
	ResumeID         string
	JobID            string
	Score            float64 // [0,100]
	ProcessingTimeMS int64
	Detail           map[string]any
	CreatedAt        time.Time
}

// ProfileTag names the weight profile chosen for a (résumé, job) pair.
type ProfileTag string

// The closed set of weight profiles.
const (
	ProfileSeniorLeadership   ProfileTag = "Senior/Leadership"
	ProfileSecurityCompliance ProfileTag = "Security/Compliance"
	ProfileDataML             ProfileTag = "Data/ML"
	ProfileDefault            ProfileTag = "Default"
)

// Weights is a 5-tuple over the five dimensions, summing to 1.0.
type Weights struct {
	Skill         float64
	Semantic      float64
	Experience    float64
	Education     float64
	Certification float64
}

// Get returns the weight for a given dimension kind.
func (w Weights) Get(kind DimensionKind) float64 {
	switch kind {
	case DimensionSkill:
		return w.Skill
	case DimensionSemantic:
		return w.Semantic
	case DimensionExperience:
		return w.Experience
	case DimensionEducation:
		return w.Education
	case DimensionCertification:
		return w.Certification
	default:
		return 0
	}
}

// CompositeScore is the upserted, per-(resume_id, job_id) fusion of the five
// dimension scores under the active weight profile.
type CompositeScore struct {
	ResumeID              string
	JobID                 string
	Skill                 float64
	Semantic              float64
	Experience            float64
	Education             float64
	Certification         float64
	Composite             float64
	AgentsCompleted       int
	TotalProcessingTimeMS int64
	ProfileTag            ProfileTag
	CreatedAt             time.Time
}

// Context is an alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// ResumeJobStore is the external résumé/job collaborator (§6: out of scope
// to implement ingestion here; only read access is required by the core).
//
//go:generate mockery --name=ResumeJobStore --with-expecter --filename=resume_job_store_mock.go
type ResumeJobStore interface {
	GetResume(ctx Context, id string) (Resume, error)
	GetJob(ctx Context, id string) (Job, error)
}

// ForkProvisioner allocates and releases per-worker DataContexts. Concrete
// strategies (zero-copy fork, physical clone, logical session) live behind
// this single interface so workers never branch on strategy.
//
//go:generate mockery --name=ForkProvisioner --with-expecter --filename=fork_provisioner_mock.go
type ForkProvisioner interface {
	Acquire(ctx Context, kind DimensionKind, resumeID, jobID string) (Fork, error)
	Release(ctx Context, forkID string, state ForkState, errMsg string) error
}

// ResultStore persists per-worker results, fork ledger entries, and
// composite scores, and enforces the retention/uniqueness invariants of §3.
//
//go:generate mockery --name=ResultStore --with-expecter --filename=result_store_mock.go
type ResultStore interface {
	WriteForkLedger(ctx Context, f Fork) error
	UpdateForkLedger(ctx Context, f Fork) error
	WriteWorkerResult(ctx Context, r WorkerResult) error
	UpsertComposite(ctx Context, c CompositeScore) error
	SweepTerminalForksOlderThan(ctx Context, age time.Duration) (int64, error)
}
