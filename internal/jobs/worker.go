// -----------------------------------------------------------------------
// Worker - single-goroutine polling executor with heartbeat
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// HeartbeatKey is the key-value slot the worker refreshes every poll cycle.
// A stale timestamp here means the worker goroutine is wedged or dead.
const HeartbeatKey = "worker:heartbeat"

// Worker polls the job store for pending work and executes one job at a time
// on a single goroutine. Serial execution is deliberate: jobs share the
// embedded store and external API budgets, and one in-flight agent loop is
// expensive enough on its own.
type Worker struct {
	storage  interfaces.StorageManager
	registry *Registry
	logger   arbor.ILogger

	pollInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      bool
}

// NewWorker creates a worker. Start must be called to begin polling.
func NewWorker(storage interfaces.StorageManager, registry *Registry, logger arbor.ILogger, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		storage:      storage,
		registry:     registry,
		logger:       logger,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the polling goroutine
func (w *Worker) Start() {
	if w.started {
		return
	}
	w.started = true
	w.logger.Info().
		Str("poll_interval", w.pollInterval.String()).
		Msg("Starting job worker")
	go w.run()
}

// Stop signals the worker and blocks until the in-flight job (if any)
// finishes. Shutdown is cooperative: the running job's context is cancelled
// and its handler is expected to return.
func (w *Worker) Stop() {
	if !w.started {
		return
	}
	w.logger.Info().Msg("Stopping job worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Job worker stopped")
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.stopCh
		cancel()
	}()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Poll immediately on startup rather than waiting one interval
	w.cycle(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle refreshes the heartbeat, then claims and executes the oldest pending
// job if one exists. The heartbeat is written even on idle cycles so liveness
// does not depend on work being queued.
func (w *Worker) cycle(ctx context.Context) {
	w.beat(ctx)

	job, err := w.storage.JobStorage().NextPendingJob(ctx)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			w.logger.Error().Err(err).Msg("Failed to poll for pending jobs")
		}
		return
	}

	w.Execute(ctx, job)
}

func (w *Worker) beat(ctx context.Context) {
	if err := w.storage.KeyValueStorage().Set(ctx, HeartbeatKey, nowFunc().UTC().Format(time.RFC3339)); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to write worker heartbeat")
	}
}

// Execute runs one job through the full lifecycle: claim, handle, finalize.
// Exported so immediate process mode can execute a job inline without
// waiting for the next poll cycle.
func (w *Worker) Execute(ctx context.Context, job *models.Job) {
	jl := NewJobLogger(w.storage.JobStorage(), w.logger, job.ID)

	handler, err := w.registry.Resolve(job.Type)
	if err != nil {
		// Unknown and deprecated types still consume the job so it does not
		// clog the head of the queue forever.
		w.fail(ctx, jl, err)
		return
	}

	if err := jl.SetStatus(ctx, models.JobStatusRunning); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to claim job")
		return
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Msg("Executing job")

	err = w.runHandler(ctx, handler, job, jl)

	switch {
	case err == nil:
		if serr := jl.SetStatus(ctx, models.JobStatusCompleted); serr != nil {
			w.logger.Error().Err(serr).Str("job_id", job.ID).Msg("Failed to complete job")
		}
	case errors.Is(err, context.Canceled):
		jl.Log(ctx, "warn", "Job cancelled during shutdown")
		w.cancel(jl)
	default:
		w.fail(ctx, jl, err)
	}
}

// runHandler isolates handler panics: a panicking handler fails its job with
// the panic value recorded, and the worker loop keeps running.
func (w *Worker) runHandler(ctx context.Context, handler Handler, job *models.Job, jl *JobLogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("job_id", job.ID).
				Str("stack", string(debug.Stack())).
				Msg(fmt.Sprintf("Job handler panicked: %v", r))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Execute(ctx, job, jl)
}

func (w *Worker) fail(ctx context.Context, jl *JobLogger, cause error) {
	jl.Log(ctx, "error", cause.Error())
	if err := jl.SetError(ctx, cause.Error()); err != nil {
		w.logger.Error().Err(err).Str("job_id", jl.JobID()).Msg("Failed to record job error")
	}
	if err := jl.SetStatus(ctx, models.JobStatusFailed); err != nil {
		w.logger.Error().Err(err).Str("job_id", jl.JobID()).Msg("Failed to mark job failed")
	}
}

// cancel finalizes a job interrupted by shutdown. Uses a fresh context since
// the worker's own context is already cancelled.
func (w *Worker) cancel(jl *JobLogger) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	if err := jl.SetStatus(ctx, models.JobStatusCancelled); err != nil {
		w.logger.Error().Err(err).Str("job_id", jl.JobID()).Msg("Failed to mark job cancelled")
	}
}
