package postgres

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

// ResumeJobReader implements domain.ResumeJobStore as a read-only view over
// externally-ingested résumé/job records. Ingestion itself (upload, parsing,
// embedding generation) is out of scope: some other process populates the
// `resumes` and `jobs` tables; this reader only selects.
type ResumeJobReader struct{ Pool PgxPool }

// NewResumeJobReader constructs a ResumeJobReader with the given pool.
func NewResumeJobReader(p PgxPool) *ResumeJobReader { return &ResumeJobReader{Pool: p} }

// GetResume loads a résumé by id.
func (r *ResumeJobReader) GetResume(ctx domain.Context, id string) (domain.Resume, error) {
	tracer := otel.Tracer("repo.resumejob")
	ctx, span := tracer.Start(ctx, "resumejob.GetResume")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "resumes"),
	)
	q := `SELECT id, body, skills, years_experience, education, certifications, embedding
	      FROM resumes WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)

	var (
		res          domain.Resume
		skillsJSON   []byte
		eduJSON      []byte
		certJSON     []byte
		embeddingRaw []byte
	)
	if err := row.Scan(&res.ID, &res.Body, &skillsJSON, &res.YearsExperience, &eduJSON, &certJSON, &embeddingRaw); err != nil {
		return domain.Resume{}, fmt.Errorf("op=resumejob.GetResume: %w: %v", domain.ErrNotFound, err)
	}
	if err := unmarshalIfPresent(skillsJSON, &res.Skills); err != nil {
		return domain.Resume{}, fmt.Errorf("op=resumejob.GetResume: %w: skills: %v", domain.ErrInvalidArgument, err)
	}
	if err := unmarshalIfPresent(eduJSON, &res.Education); err != nil {
		return domain.Resume{}, fmt.Errorf("op=resumejob.GetResume: %w: education: %v", domain.ErrInvalidArgument, err)
	}
	if err := unmarshalIfPresent(certJSON, &res.Certifications); err != nil {
		return domain.Resume{}, fmt.Errorf("op=resumejob.GetResume: %w: certifications: %v", domain.ErrInvalidArgument, err)
	}
	if err := unmarshalIfPresent(embeddingRaw, &res.Embedding); err != nil {
		return domain.Resume{}, fmt.Errorf("op=resumejob.GetResume: %w: embedding: %v", domain.ErrInvalidArgument, err)
	}
	return res, nil
}

// GetJob loads a job description by id.
func (r *ResumeJobReader) GetJob(ctx domain.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("repo.resumejob")
	ctx, span := tracer.Start(ctx, "resumejob.GetJob")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "jobs"),
	)
	q := `SELECT id, title, description, required_years, embedding FROM jobs WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)

	var (
		job          domain.Job
		embeddingRaw []byte
	)
	if err := row.Scan(&job.ID, &job.Title, &job.Description, &job.RequiredYears, &embeddingRaw); err != nil {
		return domain.Job{}, fmt.Errorf("op=resumejob.GetJob: %w: %v", domain.ErrNotFound, err)
	}
	if err := unmarshalIfPresent(embeddingRaw, &job.Embedding); err != nil {
		return domain.Job{}, fmt.Errorf("op=resumejob.GetJob: %w: embedding: %v", domain.ErrInvalidArgument, err)
	}
	return job, nil
}

func unmarshalIfPresent(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
