// -----------------------------------------------------------------------
// Registry - maps job types to handlers at dispatch time
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/models"
)

// ErrUnknownJobType is returned when a job's type has no registered handler
var ErrUnknownJobType = errors.New("unknown job type")

// DeprecatedJobTypeError is returned when a retired job type is dispatched.
// It names the replacement so callers can migrate.
type DeprecatedJobTypeError struct {
	Type models.JobType
	Use  models.JobType
}

func (e *DeprecatedJobTypeError) Error() string {
	return fmt.Sprintf("job type %s is deprecated, use %s instead", e.Type, e.Use)
}

// Handler executes one job from running to completion. Implementations report
// progress and logs through the JobLogger; the worker owns the surrounding
// status transitions and error recording.
type Handler interface {
	Execute(ctx context.Context, job *models.Job, jl *JobLogger) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, job *models.Job, jl *JobLogger) error

func (f HandlerFunc) Execute(ctx context.Context, job *models.Job, jl *JobLogger) error {
	return f(ctx, job, jl)
}

// Registry holds the handler for each dispatchable job type. Registration
// happens at startup; dispatch happens on the worker goroutine.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.JobType]Handler
	logger   arbor.ILogger
}

// NewRegistry creates an empty handler registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		handlers: make(map[models.JobType]Handler),
		logger:   logger,
	}
}

// Register binds a handler to a job type, replacing any previous binding
func (r *Registry) Register(jobType models.JobType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
	r.logger.Debug().Str("job_type", string(jobType)).Msg("Registered job handler")
}

// IsRegistered reports whether a handler exists for the job type
func (r *Registry) IsRegistered(jobType models.JobType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[jobType]
	return ok
}

// Resolve returns the handler for a job type. Deprecated types fail with a
// DeprecatedJobTypeError naming the replacement; unknown types fail with
// ErrUnknownJobType. Deprecation is checked first so a retired name gets a
// migration hint even though it also has no handler.
func (r *Registry) Resolve(jobType models.JobType) (Handler, error) {
	if replacement, ok := models.DeprecatedJobTypes[jobType]; ok {
		return nil, &DeprecatedJobTypeError{Type: jobType, Use: replacement}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	return handler, nil
}
