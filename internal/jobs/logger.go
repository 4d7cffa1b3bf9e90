// -----------------------------------------------------------------------
// JobLogger - status, progress and log writer scoped to one job
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// nowFunc is swappable in tests
var nowFunc = time.Now

// ErrInvalidTransition is returned when a status change violates the job
// state machine (e.g. writing to a terminal job).
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobLogger is the single mutation path for a running job's record. Every
// state transition and log line is persisted immediately so a crash never
// loses flushed history. One JobLogger is scoped to one job.
type JobLogger struct {
	jobID  string
	store  interfaces.JobStorage
	logger arbor.ILogger
}

// NewJobLogger creates a JobLogger for the given job, correlating process
// logs by job ID so a job's lines can be queried as one stream.
func NewJobLogger(store interfaces.JobStorage, baseLogger arbor.ILogger, jobID string) *JobLogger {
	return &JobLogger{
		jobID:  jobID,
		store:  store,
		logger: baseLogger.WithCorrelationId(jobID),
	}
}

// JobID returns the job this logger is scoped to
func (jl *JobLogger) JobID() string {
	return jl.jobID
}

// SetStatus enforces the job state machine:
//
//	pending -> running -> {completed, failed, cancelled}
//
// Entering running stamps StartedAt once; entering a terminal state stamps
// CompletedAt once. Completed forces Progress to 100. Any other transition
// returns ErrInvalidTransition.
func (jl *JobLogger) SetStatus(ctx context.Context, next models.JobStatus) error {
	job, err := jl.store.GetJob(ctx, jl.jobID)
	if err != nil {
		return err
	}

	if !validTransition(job.Status, next) {
		return fmt.Errorf("%w: %s -> %s (job %s)", ErrInvalidTransition, job.Status, next, jl.jobID)
	}

	now := nowFunc()
	job.Status = next
	switch {
	case next == models.JobStatusRunning:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case next.IsTerminal():
		if job.CompletedAt == nil {
			job.CompletedAt = &now
		}
		if next == models.JobStatusCompleted {
			job.Progress = 100
		}
	}

	if err := jl.store.SaveJob(ctx, job); err != nil {
		return err
	}

	jl.logger.Info().
		Str("job_id", jl.jobID).
		Str("status", string(next)).
		Msg("Job status changed")
	return nil
}

// UpdateProgress clamps value to [0,100], keeps progress monotonically
// non-decreasing within the run, and optionally overwrites the status
// message. It does not append to the log channel, so it is safe to call on
// every tool invocation without growing the job record.
func (jl *JobLogger) UpdateProgress(ctx context.Context, value int, message ...string) error {
	job, err := jl.store.GetJob(ctx, jl.jobID)
	if err != nil {
		return err
	}

	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	if value > job.Progress {
		job.Progress = value
	}
	if len(message) > 0 && message[0] != "" {
		job.StatusMessage = message[0]
	}

	return jl.store.SaveJob(ctx, job)
}

// Log appends one line to the job's persistent log and echoes it to the
// process logger. The append is flushed before returning.
func (jl *JobLogger) Log(ctx context.Context, level, message string) {
	if err := jl.store.AppendJobLog(ctx, jl.jobID, level, message); err != nil {
		jl.logger.Warn().Err(err).Str("job_id", jl.jobID).Msg("Failed to persist job log")
	}

	switch level {
	case "error":
		jl.logger.Error().Str("job_id", jl.jobID).Msg(message)
	case "warn":
		jl.logger.Warn().Str("job_id", jl.jobID).Msg(message)
	case "debug":
		jl.logger.Debug().Str("job_id", jl.jobID).Msg(message)
	default:
		jl.logger.Info().Str("job_id", jl.jobID).Msg(message)
	}
}

// SetResult records the job's result. Write-once: a second call is ignored
// with a warning rather than overwriting the first outcome.
func (jl *JobLogger) SetResult(ctx context.Context, result string) error {
	job, err := jl.store.GetJob(ctx, jl.jobID)
	if err != nil {
		return err
	}
	if job.Result != "" {
		jl.logger.Warn().Str("job_id", jl.jobID).Msg("Job result already set, ignoring second write")
		return nil
	}
	job.Result = result
	return jl.store.SaveJob(ctx, job)
}

// SetError records the job's error message. Write-once like SetResult.
func (jl *JobLogger) SetError(ctx context.Context, errMsg string) error {
	job, err := jl.store.GetJob(ctx, jl.jobID)
	if err != nil {
		return err
	}
	if job.Error != "" {
		jl.logger.Warn().Str("job_id", jl.jobID).Msg("Job error already set, ignoring second write")
		return nil
	}
	job.Error = errMsg
	return jl.store.SaveJob(ctx, job)
}

func validTransition(from, to models.JobStatus) bool {
	switch from {
	case models.JobStatusPending:
		return to == models.JobStatusRunning || to == models.JobStatusCancelled
	case models.JobStatusRunning:
		return to.IsTerminal()
	default:
		// Terminal states are immutable
		return false
	}
}
