package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// JobStorage implements interfaces.JobStorage on badgerhold
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	mu      sync.Mutex
	logSeqs map[string]int // per-job log line counters
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:      db,
		logger:  logger,
		logSeqs: make(map[string]int),
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.Type != "" {
			query = query.And("Type").Eq(opts.Type)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// NextPendingJob returns the single oldest pending job, strict FIFO by
// creation time so claim order matches creation order.
func (s *JobStorage) NextPendingJob(ctx context.Context) (*models.Job, error) {
	var jobs []models.Job
	query := badgerhold.Where("Status").Eq(models.JobStatusPending).SortBy("CreatedAt").Limit(1)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &jobs[0], nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.Job{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if err := s.deleteJobLogs(jobID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.logSeqs, jobID)
	s.mu.Unlock()
	return nil
}

// DeleteTerminalJobsBefore removes terminal jobs whose CompletedAt predates
// cutoff, along with their logs.
func (s *JobStorage) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var jobs []models.Job
	query := badgerhold.Where("Status").In(
		models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to query terminal jobs: %w", err)
	}

	deleted := 0
	for i := range jobs {
		job := &jobs[i]
		if job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		if err := s.DeleteJob(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delete expired job")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// AppendJobLog appends one log line and persists it immediately. There is no
// in-memory buffering, so a crash after this call loses nothing.
func (s *JobStorage) AppendJobLog(ctx context.Context, jobID, level, message string) error {
	seq := s.nextLogSeq(jobID)
	entry := models.JobLogEntry{
		Key:       fmt.Sprintf("%s:%08d", jobID, seq),
		JobID:     jobID,
		Seq:       seq,
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}
	if err := s.db.Store().Upsert(entry.Key, &entry); err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJobLogs(ctx context.Context, jobID string, limit int) ([]models.JobLogEntry, error) {
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("Seq")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.JobLogEntry
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to get job logs: %w", err)
	}
	return entries, nil
}

func (s *JobStorage) deleteJobLogs(jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.JobLogEntry{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete job logs: %w", err)
	}
	return nil
}

// nextLogSeq returns the next per-job line number, recovering the counter
// from the store after a restart.
func (s *JobStorage) nextLogSeq(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.logSeqs[jobID]; ok {
		s.logSeqs[jobID] = seq + 1
		return seq + 1
	}

	var entries []models.JobLogEntry
	last := 0
	if err := s.db.Store().Find(&entries, badgerhold.Where("JobID").Eq(jobID)); err == nil {
		for i := range entries {
			if entries[i].Seq > last {
				last = entries[i].Seq
			}
		}
	}
	s.logSeqs[jobID] = last + 1
	return last + 1
}
