package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalt-labs/resume-fit-coordinator/internal/adapter/repo/postgres"
	"github.com/basalt-labs/resume-fit-coordinator/internal/domain"
)

func TestResumeJobReader_GetResume(t *testing.T) {
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "r1"
		*(dest[1].(*string)) = "body text"
		*(dest[2].(*[]byte)) = []byte(`["python","go"]`)
		*(dest[3].(*int)) = 5
		*(dest[4].(*[]byte)) = []byte(`["BS Computer Science"]`)
		*(dest[5].(*[]byte)) = []byte(`[]`)
		*(dest[6].(*[]byte)) = []byte(`[0.1,0.2]`)
		return nil
	}}}
	reader := postgres.NewResumeJobReader(pool)
	res, err := reader.GetResume(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", res.ID)
	assert.Equal(t, []string{"python", "go"}, res.Skills)
	assert.Equal(t, 5, res.YearsExperience)
	assert.Equal(t, []float64{0.1, 0.2}, res.Embedding)
}

func TestResumeJobReader_GetResume_NotFound(t *testing.T) {
	pool := &poolStub{}
	reader := postgres.NewResumeJobReader(pool)
	_, err := reader.GetResume(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResumeJobReader_GetJob(t *testing.T) {
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*(dest[0].(*string)) = "j1"
		*(dest[1].(*string)) = "Senior Python Developer"
		*(dest[2].(*string)) = "Python, Django, 5+ years"
		*(dest[3].(*int)) = 5
		*(dest[4].(*[]byte)) = []byte(`[0.1,0.2]`)
		return nil
	}}}
	reader := postgres.NewResumeJobReader(pool)
	job, err := reader.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, 5, job.RequiredYears)
	assert.Equal(t, []float64{0.1, 0.2}, job.Embedding)
}

func TestResumeJobReader_GetJob_NotFound(t *testing.T) {
	pool := &poolStub{}
	reader := postgres.NewResumeJobReader(pool)
	_, err := reader.GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
