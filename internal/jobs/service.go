// -----------------------------------------------------------------------
// Service - job creation and queue management API
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// Service is the entry point for creating and inspecting jobs. In queued
// mode created jobs wait for the worker's next poll; in immediate mode the
// service hands the job straight to the worker, which is mainly useful for
// tests and one-shot CLI runs.
type Service struct {
	storage     interfaces.StorageManager
	registry    *Registry
	worker      *Worker
	logger      arbor.ILogger
	processMode string
}

// NewService creates the job service
func NewService(storage interfaces.StorageManager, registry *Registry, worker *Worker, logger arbor.ILogger, processMode string) *Service {
	if processMode == "" {
		processMode = "queued"
	}
	return &Service{
		storage:     storage,
		registry:    registry,
		worker:      worker,
		logger:      logger,
		processMode: processMode,
	}
}

// CreateJob validates the type and config, persists a pending job, and
// returns it. Deprecated and unknown types are rejected at creation so bad
// requests fail fast instead of failing later on the worker.
func (s *Service) CreateJob(ctx context.Context, jobType models.JobType, config json.RawMessage) (*models.Job, error) {
	if _, err := s.registry.Resolve(jobType); err != nil {
		return nil, err
	}
	if _, err := models.DecodeJobConfig(jobType, config); err != nil {
		return nil, err
	}

	job := models.NewJob(common.NewJobID(), jobType, config)
	if err := s.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(jobType)).
		Str("process_mode", s.processMode).
		Msg("Created job")

	if s.processMode == "immediate" {
		s.worker.Execute(ctx, job)
		return s.storage.JobStorage().GetJob(ctx, job.ID)
	}

	return job, nil
}

// GetJob returns a job by ID
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.storage.JobStorage().GetJob(ctx, jobID)
}

// ListJobs lists jobs matching the options
func (s *Service) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return s.storage.JobStorage().ListJobs(ctx, opts)
}

// GetJobLogs returns a job's persisted log lines in append order
func (s *Service) GetJobLogs(ctx context.Context, jobID string, limit int) ([]models.JobLogEntry, error) {
	return s.storage.JobStorage().GetJobLogs(ctx, jobID, limit)
}

// CancelJob cancels a pending job. Running jobs cannot be cancelled from
// here; they only stop cooperatively at shutdown.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPending {
		return fmt.Errorf("%w: %s -> %s (job %s)", ErrInvalidTransition, job.Status, models.JobStatusCancelled, jobID)
	}

	jl := NewJobLogger(s.storage.JobStorage(), s.logger, jobID)
	return jl.SetStatus(ctx, models.JobStatusCancelled)
}
