// -----------------------------------------------------------------------
// Job - persistent unit of orchestrated work
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true for statuses that end a job's run
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobType selects the handler a job is dispatched to
type JobType string

const (
	JobTypeSyncGitHub      JobType = "sync-github"
	JobTypeSyncJira        JobType = "sync-jira"
	JobTypeAnalyzeReview   JobType = "analyze-review"
	JobTypeGenerateInsight JobType = "generate-insight"
)

// DeprecatedJobTypes maps retired type names to their replacements.
// Dispatching one of these fails fast with a "use X instead" error.
var DeprecatedJobTypes = map[JobType]JobType{
	"sync-git":       JobTypeSyncGitHub,
	"sync-atlassian": JobTypeSyncJira,
}

// IsValidJobType returns true for currently dispatchable job types
func IsValidJobType(t JobType) bool {
	switch t {
	case JobTypeSyncGitHub, JobTypeSyncJira, JobTypeAnalyzeReview, JobTypeGenerateInsight:
		return true
	}
	return false
}

// Job is the persisted orchestration record. Status, Progress, StatusMessage,
// Result and Error are mutated only by the handler running the job and by the
// worker's error path. Logs live in a separate collection so frequent progress
// updates do not grow this record.
type Job struct {
	ID   string  `json:"id" badgerhold:"key"`
	Type JobType `json:"type" badgerhold:"index"`

	Status        JobStatus `json:"status" badgerhold:"index"`
	Progress      int       `json:"progress"` // 0-100, monotonic within a run
	StatusMessage string    `json:"status_message,omitempty"`

	// Config is the immutable typed input, shape selected by Type
	Config json.RawMessage `json:"config"`

	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at" badgerhold:"index"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job. Pending is the only valid creation state.
func NewJob(id string, jobType JobType, config json.RawMessage) *Job {
	return &Job{
		ID:        id,
		Type:      jobType,
		Status:    JobStatusPending,
		Progress:  0,
		Config:    config,
		CreatedAt: time.Now(),
	}
}

// Validate checks structural invariants of the job record
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.Type == "" {
		return fmt.Errorf("job type is required")
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("job progress out of range: %d", j.Progress)
	}
	return nil
}

// JobLogEntry is one append-only log line for a job.
// Seq is a per-job monotonically increasing counter (1-based) providing
// stable ordering even when timestamps collide.
type JobLogEntry struct {
	Key       string    `json:"-" badgerhold:"key"` // jobID:seq composite
	JobID     string    `json:"job_id" badgerhold:"index"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// -----------------------------------------------------------------------
// Typed job configs - tagged union discriminated by JobType
// -----------------------------------------------------------------------

// DedupMode selects how the save gate treats an existing evidence record
type DedupMode string

const (
	DedupSkipExisting   DedupMode = "skip"   // default: leave the stored record untouched
	DedupUpdateExisting DedupMode = "update" // overwrite mutable fields in place
)

// SyncGitHubConfig configures a sync-github job
type SyncGitHubConfig struct {
	Username       string   `json:"username" validate:"required"`
	Repositories   []string `json:"repositories" validate:"required,min=1,dive,required"`
	StartDate      string   `json:"start_date" validate:"required"` // YYYY-MM-DD
	UpdateExisting bool     `json:"update_existing"`
}

// DedupMode returns the evidence dedup mode this config requests
func (c *SyncGitHubConfig) DedupMode() DedupMode {
	if c.UpdateExisting {
		return DedupUpdateExisting
	}
	return DedupSkipExisting
}

// SyncJiraConfig configures a sync-jira job
type SyncJiraConfig struct {
	Username       string   `json:"username" validate:"required"`
	Projects       []string `json:"projects" validate:"required,min=1,dive,required"`
	StartDate      string   `json:"start_date" validate:"required"`
	UpdateExisting bool     `json:"update_existing"`
}

// DedupMode returns the evidence dedup mode this config requests
func (c *SyncJiraConfig) DedupMode() DedupMode {
	if c.UpdateExisting {
		return DedupUpdateExisting
	}
	return DedupSkipExisting
}

// AnalyzeReviewConfig configures an analyze-review job. An empty EvidenceIDs
// slice means "re-analyze all stored evidence".
type AnalyzeReviewConfig struct {
	EvidenceIDs []string `json:"evidence_ids"`
}

// GenerateInsightConfig configures a generate-insight job
type GenerateInsightConfig struct {
	PeriodStart string `json:"period_start" validate:"required"` // YYYY-MM-DD
	PeriodEnd   string `json:"period_end" validate:"required"`
}

var configValidator = validator.New()

// DecodeJobConfig decodes and validates a job's raw config against the shape
// selected by its type.
func DecodeJobConfig(jobType JobType, raw json.RawMessage) (interface{}, error) {
	var cfg interface{}
	switch jobType {
	case JobTypeSyncGitHub:
		cfg = &SyncGitHubConfig{}
	case JobTypeSyncJira:
		cfg = &SyncJiraConfig{}
	case JobTypeAnalyzeReview:
		cfg = &AnalyzeReviewConfig{}
	case JobTypeGenerateInsight:
		cfg = &GenerateInsightConfig{}
	default:
		return nil, fmt.Errorf("no config shape for job type %s", jobType)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s config: %w", jobType, err)
		}
	}

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", jobType, err)
	}

	return cfg, nil
}

// ParseStartDate parses the YYYY-MM-DD date shared by sync configs
func ParseStartDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
