// Package coordinator turns one scoring request into five independent
// worker executions, fuses their results into a composite score, and
// persists the outcome.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/basalt-labs/resume-fit-coordinator/internal/adapter/observability"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
	"github.com/basalt-labs/resume-fit-coordinator/internal/weights"
	"github.com/basalt-labs/resume-fit-coordinator/internal/worker"
)

// Scores is the per-dimension + composite fitness score, each in [0,1].
type Scores struct {
	Skill         float64 `json:"skill"`
	Semantic      float64 `json:"semantic"`
	Experience    float64 `json:"experience"`
	Education     float64 `json:"education"`
	Certification float64 `json:"certification"`
	Composite     float64 `json:"composite"`
}

// WeightsView mirrors domain.Weights plus the resolved profile tag, shaped
// for the response envelope.
type WeightsView struct {
	Skill         float64          `json:"skill"`
	Semantic      float64          `json:"semantic"`
	Experience    float64          `json:"experience"`
	Education     float64          `json:"education"`
	Certification float64          `json:"certification"`
	ProfileTag    domain.ProfileTag `json:"profile_tag"`
}

// BreakdownEntry is one dimension's contribution to the composite.
type BreakdownEntry struct {
	Score  float64        `json:"score"`
	Weight float64        `json:"weight"`
	Detail map[string]any `json:"detail"`
}

// Response is the scoring endpoint's success payload (spec.md §6).
type Response struct {
	ResumeID         string                                   `json:"resume_id"`
	JobID            string                                   `json:"job_id"`
	Scores           Scores                                   `json:"scores"`
	Weights          WeightsView                              `json:"weights"`
	Breakdown        map[domain.DimensionKind]BreakdownEntry `json:"breakdown"`
	AgentsCompleted  int                                      `json:"agents_completed"`
	ProcessingTimeMS int64                                    `json:"processing_time_ms"`
	Persisted        bool                                     `json:"persisted"`
}

// Coordinator implements spec.md §4.3's ten-step protocol.
type Coordinator struct {
	Store   domain.ResumeJobStore
	Forks   domain.ForkProvisioner
	Results domain.ResultStore
	Workers worker.Registry
	Pinger  worker.Pinger

	// WorkerTimeout is each worker's independent completion deadline
	// (spec.md §4.3 step 5, default 120s).
	WorkerTimeout time.Duration
}

// NewCoordinator constructs a Coordinator with its dependencies.
func NewCoordinator(store domain.ResumeJobStore, forks domain.ForkProvisioner, results domain.ResultStore, registry worker.Registry, pinger worker.Pinger, workerTimeout time.Duration) *Coordinator {
	if workerTimeout <= 0 {
		workerTimeout = 120 * time.Second
	}
	return &Coordinator{Store: store, Forks: forks, Results: results, Workers: registry, Pinger: pinger, WorkerTimeout: workerTimeout}
}

// Score runs the full scoring protocol for one (resumeID, jobID) request.
func (c *Coordinator) Score(ctx context.Context, resumeID, jobID string) (Response, error) {
	tracer := otel.Tracer("coordinator")
	ctx, span := tracer.Start(ctx, "Coordinator.Score")
	defer span.End()

	start := time.Now()
	lg := slog.Default().With(slog.String("resume_id", resumeID), slog.String("job_id", jobID))

	// Step 1: LOADING.
	resume, err := c.Store.GetResume(ctx, resumeID)
	if err != nil {
		lg.Error("resume not found", slog.Any("error", err))
		return Response{}, fmt.Errorf("op=coordinator.Score: %w: %v", domain.ErrNotFound, err)
	}
	job, err := c.Store.GetJob(ctx, jobID)
	if err != nil {
		lg.Error("job not found", slog.Any("error", err))
		return Response{}, fmt.Errorf("op=coordinator.Score: %w: %v", domain.ErrNotFound, err)
	}

	// Step 2: weight profile selection.
	tag, w := weights.Select(job.Title, job.Description)

	// Step 3: FORKING — acquire one fork per dimension; on partial
	// failure, release everything already acquired and fail unavailable.
	forks, err := c.acquireAll(ctx, resumeID, jobID)
	if err != nil {
		return Response{}, err
	}

	// Step 4-6: RUNNING — dispatch five workers concurrently, each under
	// its own deadline. A per-worker error never cancels its peers: a
	// plain WaitGroup is used instead of errgroup specifically so one
	// worker's failure/timeout cannot propagate cancellation to others.
	catalog := c.catalogOf()
	results := c.runWorkers(ctx, resume, job, forks, catalog)

	// Step 7: release every fork and persist each completed worker result.
	agentsCompleted := 0
	breakdown := make(map[domain.DimensionKind]BreakdownEntry, len(results))
	scoreByKind := make(map[domain.DimensionKind]float64, len(results))
	for kind, r := range results {
		status := domain.ForkCompleted
		if r.Detail["status"] == "failed" {
			status = domain.ForkFailed
		} else {
			agentsCompleted++
		}
		errMsg, _ := r.Detail["error"].(string)
		if rerr := c.Forks.Release(ctx, r.ForkID, status, errMsg); rerr != nil && status != domain.ForkFailed {
			lg.Warn("fork release failed", slog.String("kind", string(kind)), slog.Any("error", rerr))
		}
		if status == domain.ForkCompleted {
			if werr := c.Results.WriteWorkerResult(ctx, r); werr != nil {
				lg.Warn("persist worker result failed", slog.String("kind", string(kind)), slog.Any("error", werr))
			}
		}
		scoreByKind[kind] = r.Score
		breakdown[kind] = BreakdownEntry{Score: r.Score / 100, Weight: w.Get(kind), Detail: r.Detail}
	}

	// Step 8: AGGREGATING — composite = Σ score_k · weight_k, on [0,100]
	// internally, rounded, then rescaled to [0,1] at the boundary. The raw
	// 0-100 figures are kept around for persistence/metrics below — only
	// the API response converts to [0,1], so neither store nor histogram
	// ever sees a value rescaled twice.
	compositeRaw := 0.0
	for _, kind := range domain.Dimensions() {
		compositeRaw += scoreByKind[kind] * w.Get(kind)
	}
	compositeRaw = math.Round(compositeRaw*100) / 100
	composite := compositeRaw / 100

	resp := Response{
		ResumeID: resumeID,
		JobID:    jobID,
		Scores: Scores{
			Skill:         round2(scoreByKind[domain.DimensionSkill] / 100),
			Semantic:      round2(scoreByKind[domain.DimensionSemantic] / 100),
			Experience:    round2(scoreByKind[domain.DimensionExperience] / 100),
			Education:     round2(scoreByKind[domain.DimensionEducation] / 100),
			Certification: round2(scoreByKind[domain.DimensionCertification] / 100),
			Composite:     composite,
		},
		Weights: WeightsView{
			Skill: w.Skill, Semantic: w.Semantic, Experience: w.Experience,
			Education: w.Education, Certification: w.Certification, ProfileTag: tag,
		},
		Breakdown:        breakdown,
		AgentsCompleted:  agentsCompleted,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Persisted:        true,
	}

	// Step 9: PERSISTED — upsert composite, best-effort (retried once
	// inside the store per spec.md §7 PersistenceFailure policy).
	cs := domain.CompositeScore{
		ResumeID: resumeID, JobID: jobID,
		Skill:         round2(scoreByKind[domain.DimensionSkill]),
		Semantic:      round2(scoreByKind[domain.DimensionSemantic]),
		Experience:    round2(scoreByKind[domain.DimensionExperience]),
		Education:     round2(scoreByKind[domain.DimensionEducation]),
		Certification: round2(scoreByKind[domain.DimensionCertification]),
		Composite:     compositeRaw,
		AgentsCompleted: agentsCompleted, TotalProcessingTimeMS: resp.ProcessingTimeMS,
		ProfileTag: tag, CreatedAt: time.Now(),
	}
	if err := c.Results.UpsertComposite(ctx, cs); err != nil {
		lg.Error("composite persistence failed", slog.Any("error", err))
		resp.Persisted = false
	}
	observability.RecordComposite(string(tag), compositeRaw, agentsCompleted)

	return resp, nil
}

// acquireAll provisions one fork per dimension kind. On any failure it
// releases everything already acquired and returns ErrUnavailable — spec.md
// §4.3 step 3 and §7 NoFork.
func (c *Coordinator) acquireAll(ctx context.Context, resumeID, jobID string) (map[domain.DimensionKind]domain.Fork, error) {
	forks := make(map[domain.DimensionKind]domain.Fork, len(domain.Dimensions()))
	for _, kind := range domain.Dimensions() {
		f, err := c.Forks.Acquire(ctx, kind, resumeID, jobID)
		if err != nil {
			for k, af := range forks {
				_ = c.Forks.Release(ctx, af.ID, domain.ForkFailed, "sibling acquisition failed")
				delete(forks, k)
			}
			return nil, fmt.Errorf("op=coordinator.Score: %w: %v", domain.ErrUnavailable, err)
		}
		forks[kind] = f
	}
	return forks, nil
}

// runWorkers dispatches all five workers concurrently and waits for every
// one to reach a terminal state (success or error) before returning.
func (c *Coordinator) runWorkers(ctx context.Context, resume domain.Resume, job domain.Job, forks map[domain.DimensionKind]domain.Fork, catalog worker.Catalog) map[domain.DimensionKind]domain.WorkerResult {
	results := make(map[domain.DimensionKind]domain.WorkerResult, len(forks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for kind, f := range forks {
		kind, f := kind, f
		scorer := c.Workers[kind]
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc := worker.ScoringContext{Catalog: catalog}
			r := worker.Dispatch(ctx, scorer, c.Pinger, c.WorkerTimeout, f, resume, job, sc)
			mu.Lock()
			results[kind] = r
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (c *Coordinator) catalogOf() worker.Catalog {
	return worker.DefaultCatalog()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
