package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/models"
)

func newServiceFixture(t *testing.T, processMode string) (*memStorageManager, *Registry, *Service) {
	t.Helper()
	storage := newMemStorageManager()
	registry := NewRegistry(common.GetLogger())
	worker := NewWorker(storage, registry, common.GetLogger(), time.Second)
	service := NewService(storage, registry, worker, common.GetLogger(), processMode)
	return storage, registry, service
}

func validSyncConfig() json.RawMessage {
	return json.RawMessage(`{"username":"octocat","repositories":["acme/api"],"start_date":"2026-01-01"}`)
}

func TestService_CreateJobQueued(t *testing.T) {
	ctx := context.Background()
	storage, registry, service := newServiceFixture(t, "queued")
	registry.Register(models.JobTypeSyncGitHub, HandlerFunc(func(ctx context.Context, job *models.Job, jl *JobLogger) error {
		return nil
	}))

	job, err := service.CreateJob(ctx, models.JobTypeSyncGitHub, validSyncConfig())
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if job.Status != models.JobStatusPending {
		t.Errorf("queued job must stay pending, got %s", job.Status)
	}

	stored, err := storage.jobs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if stored.Type != models.JobTypeSyncGitHub {
		t.Errorf("unexpected stored type %s", stored.Type)
	}
}

func TestService_CreateJobImmediate(t *testing.T) {
	ctx := context.Background()
	_, registry, service := newServiceFixture(t, "immediate")
	registry.Register(models.JobTypeSyncGitHub, HandlerFunc(func(ctx context.Context, job *models.Job, jl *JobLogger) error {
		return nil
	}))

	job, err := service.CreateJob(ctx, models.JobTypeSyncGitHub, validSyncConfig())
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("immediate job must come back terminal, got %s", job.Status)
	}
}

func TestService_CreateJobRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	storage, _, service := newServiceFixture(t, "queued")

	_, err := service.CreateJob(ctx, "mystery-type", json.RawMessage(`{}`))
	if !errors.Is(err, ErrUnknownJobType) {
		t.Errorf("expected ErrUnknownJobType, got %v", err)
	}

	jobs, _ := storage.jobs.ListJobs(ctx, nil)
	if len(jobs) != 0 {
		t.Errorf("rejected job must not be persisted, found %d", len(jobs))
	}
}

func TestService_CreateJobRejectsDeprecatedType(t *testing.T) {
	ctx := context.Background()
	_, _, service := newServiceFixture(t, "queued")

	_, err := service.CreateJob(ctx, "sync-git", validSyncConfig())
	var deprecated *DeprecatedJobTypeError
	if !errors.As(err, &deprecated) {
		t.Errorf("expected DeprecatedJobTypeError, got %v", err)
	}
}

func TestService_CreateJobRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()
	_, registry, service := newServiceFixture(t, "queued")
	registry.Register(models.JobTypeSyncGitHub, HandlerFunc(func(ctx context.Context, job *models.Job, jl *JobLogger) error {
		return nil
	}))

	// Missing repositories and start_date
	_, err := service.CreateJob(ctx, models.JobTypeSyncGitHub, json.RawMessage(`{"username":"octocat"}`))
	if err == nil {
		t.Error("expected validation error for incomplete config")
	}
}

func TestService_CancelPendingJob(t *testing.T) {
	ctx := context.Background()
	storage, registry, service := newServiceFixture(t, "queued")
	registry.Register(models.JobTypeSyncGitHub, HandlerFunc(func(ctx context.Context, job *models.Job, jl *JobLogger) error {
		return nil
	}))

	job, err := service.CreateJob(ctx, models.JobTypeSyncGitHub, validSyncConfig())
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if err := service.CancelJob(ctx, job.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	got, _ := storage.jobs.GetJob(ctx, job.ID)
	if got.Status != models.JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestService_CancelRejectsNonPendingJob(t *testing.T) {
	ctx := context.Background()
	storage, _, service := newServiceFixture(t, "queued")

	job := models.NewJob(common.NewJobID(), models.JobTypeSyncGitHub, validSyncConfig())
	job.Status = models.JobStatusRunning
	if err := storage.jobs.SaveJob(ctx, job); err != nil {
		t.Fatalf("failed to save job: %v", err)
	}

	err := service.CancelJob(ctx, job.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}
