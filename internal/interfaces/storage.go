package interfaces

import (
	"context"
	"time"

	"github.com/aaronmaturen/devtrail/internal/models"
)

// JobListOptions filters job listings
type JobListOptions struct {
	Status models.JobStatus
	Type   models.JobType
	Limit  int
	Offset int
}

// JobStorage persists job records and their append-only logs
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error

	// NextPendingJob returns the single oldest pending job (strict FIFO by
	// creation time) or ErrNotFound when the queue is empty.
	NextPendingJob(ctx context.Context) (*models.Job, error)

	// DeleteTerminalJobsBefore removes terminal jobs (and their logs) whose
	// CompletedAt predates cutoff. Returns the number of jobs deleted.
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error)

	AppendJobLog(ctx context.Context, jobID, level, message string) error
	GetJobLogs(ctx context.Context, jobID string, limit int) ([]models.JobLogEntry, error)
}

// EvidenceStorage persists evidence records keyed by natural external identity
type EvidenceStorage interface {
	SaveEvidence(ctx context.Context, ev *models.Evidence) error
	GetEvidence(ctx context.Context, id string) (*models.Evidence, error)
	ListEvidence(ctx context.Context, source models.EvidenceSource, limit, offset int) ([]*models.Evidence, error)
	ListEvidenceByPeriod(ctx context.Context, start, end time.Time) ([]*models.Evidence, error)

	// FindByExternalKey is the dedup gate lookup. Returns ErrNotFound when no
	// record exists for the (source, external id, role) triple.
	FindByExternalKey(ctx context.Context, source models.EvidenceSource, externalID string, role models.EvidenceRole) (*models.Evidence, error)
}

// CriteriaStorage persists the static rubric and evidence-criterion matches
type CriteriaStorage interface {
	SaveCriterion(ctx context.Context, c *models.Criterion) error
	ListCriteria(ctx context.Context) ([]*models.Criterion, error)

	// ReplaceMatches deletes all existing matches for the evidence record and
	// inserts the given set, so repeated analysis converges on the latest run.
	ReplaceMatches(ctx context.Context, evidenceID string, matches []*models.CriterionMatch) error
	GetMatches(ctx context.Context, evidenceID string) ([]*models.CriterionMatch, error)
}

// KeyValueStorage holds small process-wide values such as the worker heartbeat
type KeyValueStorage interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
}

// StorageManager bundles the individual stores behind one lifecycle
type StorageManager interface {
	JobStorage() JobStorage
	EvidenceStorage() EvidenceStorage
	CriteriaStorage() CriteriaStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
