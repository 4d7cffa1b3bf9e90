// -----------------------------------------------------------------------
// Sweeper - scheduled cleanup of aged terminal jobs
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// Sweeper deletes terminal jobs (and their logs) older than the retention
// window on a cron schedule. Pending and running jobs are never touched.
type Sweeper struct {
	store    interfaces.JobStorage
	logger   arbor.ILogger
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
}

// NewSweeper creates a sweeper. schedule uses the standard five-field cron
// format; maxAge is how long terminal jobs are kept after completion.
func NewSweeper(store interfaces.JobStorage, logger arbor.ILogger, maxAge time.Duration, schedule string) *Sweeper {
	return &Sweeper{
		store:    store,
		logger:   logger,
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the sweep with the cron scheduler and runs it
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Str("max_age", s.maxAge.String()).
		Msg("Started job retention sweeper")
	return nil
}

// Stop halts the scheduler, waiting for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one cleanup pass and returns the number of jobs deleted
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := nowFunc().Add(-s.maxAge)
	deleted, err := s.store.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Job retention sweep failed")
		return 0
	}
	if deleted > 0 {
		s.logger.Info().
			Int("deleted", deleted).
			Str("cutoff", cutoff.Format(time.RFC3339)).
			Msg("Job retention sweep removed aged jobs")
	}
	return deleted
}
