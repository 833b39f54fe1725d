package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinacode/padel-crm-api/internal/models"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
	"github.com/molinacode/padel-crm-api/pkg/jobs"
)

type stubGenerator struct {
	result *ExportResult
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	return s.result, s.err
}

type stubDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (s *stubDispatcher) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, job)
	return nil
}

func TestExportJobServiceCreateJob(t *testing.T) {
	store := NewExportJobStore()
	queue := &stubDispatcher{}
	svc := NewExportJobService(store, queue, nil, nil, ExportJobServiceConfig{})

	job, err := svc.CreateJob(context.Background(), models.ExportTypeStudents, models.ExportParams{Format: models.ExportFormatCSV}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
}

func TestExportJobServiceCreateJobEnqueueFailure(t *testing.T) {
	store := NewExportJobStore()
	queue := &stubDispatcher{err: errors.New("queue stopped")}
	svc := NewExportJobService(store, queue, nil, nil, ExportJobServiceConfig{})

	_, err := svc.CreateJob(context.Background(), models.ExportTypeStudents, models.ExportParams{Format: models.ExportFormatCSV}, "user-1")
	assert.Error(t, err)
}

func TestExportJobServiceCreateJobRejectsBadType(t *testing.T) {
	svc := NewExportJobService(NewExportJobStore(), &stubDispatcher{}, nil, nil, ExportJobServiceConfig{})

	_, err := svc.CreateJob(context.Background(), "grades", models.ExportParams{Format: models.ExportFormatCSV}, "user-1")
	assert.Error(t, err)
}

func TestExportJobServiceResolveDownloadRejectsUnreadyJob(t *testing.T) {
	exporter := newTestExportService(t)
	store := NewExportJobStore()
	svc := NewExportJobService(store, &stubDispatcher{}, exporter, nil, ExportJobServiceConfig{})

	job := &models.ExportJob{
		ID:     "job-dl",
		Type:   models.ExportTypeStudents,
		Params: models.ExportParams{Format: models.ExportFormatCSV},
		Status: models.ExportStatusQueued,
	}
	store.Create(job)
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)

	// Valid token, but the job never finished and carries no result URL.
	_, err = svc.ResolveDownload(context.Background(), result.Token)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestExportJobServiceResolveDownloadRejectsGarbageToken(t *testing.T) {
	exporter := newTestExportService(t)
	svc := NewExportJobService(NewExportJobStore(), &stubDispatcher{}, exporter, nil, ExportJobServiceConfig{})

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	store := NewExportJobStore()
	job := &models.ExportJob{Type: models.ExportTypeStudents, Status: models.ExportStatusQueued}
	store.Create(job)
	generator := &stubGenerator{result: &ExportResult{URL: "/api/v1/exports/download/tok"}}
	worker := NewExportWorker(store, generator, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID})
	require.NoError(t, err)

	stored := store.Get(job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/tok", *stored.ResultURL)
	assert.NotNil(t, stored.FinishedAt)
}

func TestExportWorkerHandleRequeuesBeforeRetryLimit(t *testing.T) {
	store := NewExportJobStore()
	job := &models.ExportJob{Type: models.ExportTypeStudents, Status: models.ExportStatusQueued}
	store.Create(job)
	generator := &stubGenerator{err: errors.New("render failed")}
	worker := NewExportWorker(store, generator, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1})
	assert.Error(t, err)

	stored := store.Get(job.ID)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	assert.Nil(t, stored.FinishedAt)
}

func TestExportWorkerHandleMarksFailedAtRetryLimit(t *testing.T) {
	store := NewExportJobStore()
	job := &models.ExportJob{Type: models.ExportTypeStudents, Status: models.ExportStatusQueued}
	store.Create(job)
	generator := &stubGenerator{err: errors.New("render failed")}
	worker := NewExportWorker(store, generator, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2})
	assert.Error(t, err)

	stored := store.Get(job.ID)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render failed", *stored.ErrorMessage)
}

func TestExportJobStorePruneFinishedBefore(t *testing.T) {
	store := NewExportJobStore()
	old := &models.ExportJob{Type: models.ExportTypeStudents}
	store.Create(old)
	finished := time.Now().Add(-48 * time.Hour)
	store.Update(old.ID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusFinished
		j.FinishedAt = &finished
	})
	fresh := &models.ExportJob{Type: models.ExportTypePayments}
	store.Create(fresh)

	pruned := store.PruneFinishedBefore(time.Now().Add(-24 * time.Hour))
	require.Len(t, pruned, 1)
	assert.Equal(t, old.ID, pruned[0].ID)
	assert.Nil(t, store.Get(old.ID))
	assert.NotNil(t, store.Get(fresh.ID))
}
