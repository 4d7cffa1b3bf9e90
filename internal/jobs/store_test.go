package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// memJobStore is an in-memory JobStorage for tests
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]models.Job
	logs []models.JobLogEntry
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]models.Job)}
}

func (s *memJobStore) SaveJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *memJobStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
	}
	copied := job
	return &copied, nil
}

func (s *memJobStore) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Job
	for _, job := range s.jobs {
		if opts != nil && opts.Status != "" && job.Status != opts.Status {
			continue
		}
		if opts != nil && opts.Type != "" && job.Type != opts.Type {
			continue
		}
		copied := job
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *memJobStore) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

func (s *memJobStore) NextPendingJob(ctx context.Context) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *models.Job
	for _, job := range s.jobs {
		if job.Status != models.JobStatusPending {
			continue
		}
		copied := job
		if oldest == nil || copied.CreatedAt.Before(oldest.CreatedAt) {
			oldest = &copied
		}
	}
	if oldest == nil {
		return nil, interfaces.ErrNotFound
	}
	return oldest, nil
}

func (s *memJobStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memJobStore) AppendJobLog(ctx context.Context, jobID, level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, models.JobLogEntry{
		JobID:     jobID,
		Seq:       len(s.logs) + 1,
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	})
	return nil
}

func (s *memJobStore) GetJobLogs(ctx context.Context, jobID string, limit int) ([]models.JobLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.JobLogEntry
	for _, entry := range s.logs {
		if entry.JobID == jobID {
			result = append(result, entry)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ interfaces.JobStorage = (*memJobStore)(nil)

// memKVStore is an in-memory KeyValueStorage for tests
type memKVStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemKVStore() *memKVStore {
	return &memKVStore{values: make(map[string]string)}
}

func (s *memKVStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memKVStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, interfaces.ErrNotFound)
	}
	return value, nil
}

var _ interfaces.KeyValueStorage = (*memKVStore)(nil)

// memStorageManager bundles the fakes behind the StorageManager interface.
// Evidence and criteria stores are unused by the worker tests.
type memStorageManager struct {
	jobs *memJobStore
	kv   *memKVStore
}

func newMemStorageManager() *memStorageManager {
	return &memStorageManager{jobs: newMemJobStore(), kv: newMemKVStore()}
}

func (m *memStorageManager) JobStorage() interfaces.JobStorage           { return m.jobs }
func (m *memStorageManager) EvidenceStorage() interfaces.EvidenceStorage { return nil }
func (m *memStorageManager) CriteriaStorage() interfaces.CriteriaStorage { return nil }
func (m *memStorageManager) KeyValueStorage() interfaces.KeyValueStorage { return m.kv }
func (m *memStorageManager) Close() error                                { return nil }

var _ interfaces.StorageManager = (*memStorageManager)(nil)
