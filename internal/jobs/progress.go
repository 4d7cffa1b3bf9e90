// -----------------------------------------------------------------------
// Tracker - maps per-phase item counts onto a bounded progress window
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
)

// Tracker converts "N of M sub-items processed" into a percentage inside a
// phase's [base, max] window. Phases with disjoint windows compose into one
// 0-100 scale; the tracker holds no cross-phase state, so each phase gets
// its own instance.
//
// Rounding is floor-based, which can settle just below max on the final item
// (e.g. 89 instead of 90); handlers close a phase with an explicit
// UpdateProgress(max) call.
type Tracker struct {
	jl   *JobLogger
	base int
	max  int

	label     string
	total     int
	processed int
}

// NewTracker creates a tracker for one phase window. base and max are
// clamped to [0,100] and ordered.
func NewTracker(jl *JobLogger, base, max int) *Tracker {
	if base < 0 {
		base = 0
	}
	if max > 100 {
		max = 100
	}
	if max < base {
		max = base
	}
	return &Tracker{jl: jl, base: base, max: max}
}

// SetTotal records the phase denominator once discovery has sized the batch.
// A zero count jumps straight to the phase's upper bound - the tracker never
// divides by zero.
func (t *Tracker) SetTotal(ctx context.Context, count int, label string) error {
	t.label = label
	t.processed = 0

	if count <= 0 {
		t.total = 1
		return t.jl.UpdateProgress(ctx, t.max, fmt.Sprintf("%s: nothing to process", label))
	}

	t.total = count
	return t.jl.UpdateProgress(ctx, t.base, fmt.Sprintf("%s: 0/%d", label, count))
}

// Increment advances the numerator and reports progress with a descriptive
// status message, e.g. "Processing PRs (7/42): fix-login-bug".
func (t *Tracker) Increment(ctx context.Context, itemDesc string) error {
	if t.total < 1 {
		t.total = 1
	}
	if t.processed < t.total {
		t.processed++
	}

	progress := t.base + (t.max-t.base)*t.processed/t.total
	if progress > t.max {
		progress = t.max
	}

	message := fmt.Sprintf("%s (%d/%d)", t.label, t.processed, t.total)
	if itemDesc != "" {
		message = fmt.Sprintf("%s: %s", message, itemDesc)
	}

	return t.jl.UpdateProgress(ctx, progress, message)
}

// Processed returns how many items this phase has counted so far
func (t *Tracker) Processed() int {
	return t.processed
}
