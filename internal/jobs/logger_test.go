package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/models"
)

func newTestJob(t *testing.T, store *memJobStore, jobType models.JobType) *models.Job {
	t.Helper()
	job := models.NewJob(common.NewJobID(), jobType, json.RawMessage(`{}`))
	if err := store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("failed to save job: %v", err)
	}
	return job
}

func TestSetStatus_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemJobStore()
	job := newTestJob(t, store, models.JobTypeSyncGitHub)
	jl := NewJobLogger(store, common.GetLogger(), job.ID)

	if err := jl.SetStatus(ctx, models.JobStatusRunning); err != nil {
		t.Fatalf("pending -> running failed: %v", err)
	}

	running, _ := store.GetJob(ctx, job.ID)
	if running.StartedAt == nil {
		t.Error("StartedAt not stamped on running transition")
	}
	if running.CompletedAt != nil {
		t.Error("CompletedAt must not be set while running")
	}

	if err := jl.UpdateProgress(ctx, 40, "Halfway"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	if err := jl.SetStatus(ctx, models.JobStatusCompleted); err != nil {
		t.Fatalf("running -> completed failed: %v", err)
	}

	completed, _ := store.GetJob(ctx, job.ID)
	if completed.CompletedAt == nil {
		t.Error("CompletedAt not stamped on terminal transition")
	}
	if completed.Progress != 100 {
		t.Errorf("completed job must have progress 100, got %d", completed.Progress)
	}
}

func TestSetStatus_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	store := newMemJobStore()

	cases := []struct {
		name string
		path []models.JobStatus
		next models.JobStatus
	}{
		{"pending to completed", nil, models.JobStatusCompleted},
		{"pending to failed", nil, models.JobStatusFailed},
		{"completed is immutable", []models.JobStatus{models.JobStatusRunning, models.JobStatusCompleted}, models.JobStatusRunning},
		{"failed is immutable", []models.JobStatus{models.JobStatusRunning, models.JobStatusFailed}, models.JobStatusCompleted},
		{"no running reentry", []models.JobStatus{models.JobStatusRunning, models.JobStatusCancelled}, models.JobStatusRunning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := newTestJob(t, store, models.JobTypeSyncGitHub)
			jl := NewJobLogger(store, common.GetLogger(), job.ID)

			for _, status := range tc.path {
				if err := jl.SetStatus(ctx, status); err != nil {
					t.Fatalf("setup transition to %s failed: %v", status, err)
				}
			}

			err := jl.SetStatus(ctx, tc.next)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestSetStatus_PendingCanBeCancelled(t *testing.T) {
	ctx := context.Background()
	store := newMemJobStore()
	job := newTestJob(t, store, models.JobTypeSyncJira)
	jl := NewJobLogger(store, common.GetLogger(), job.ID)

	if err := jl.SetStatus(ctx, models.JobStatusCancelled); err != nil {
		t.Fatalf("pending -> cancelled failed: %v", err)
	}

	cancelled, _ := store.GetJob(ctx, job.ID)
	if cancelled.CompletedAt == nil {
		t.Error("CompletedAt not stamped on cancellation")
	}
	if cancelled.StartedAt != nil {
		t.Error("StartedAt must stay unset for a job cancelled before running")
	}
}

func TestUpdateProgress_ClampAndMonotonic(t *testing.T) {
	ctx := context.Background()
	store := newMemJobStore()
	job := newTestJob(t, store, models.JobTypeSyncGitHub)
	jl := NewJobLogger(store, common.GetLogger(), job.ID)

	if err := jl.UpdateProgress(ctx, 150); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	got, _ := store.GetJob(ctx, job.ID)
	if got.Progress != 100 {
		t.Errorf("expected clamp to 100, got %d", got.Progress)
	}

	// Lower values never decrease progress
	if err := jl.UpdateProgress(ctx, 50, "Later message"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	got, _ = store.GetJob(ctx, job.ID)
	if got.Progress != 100 {
		t.Errorf("progress regressed to %d", got.Progress)
	}
	if got.StatusMessage != "Later message" {
		t.Errorf("status message not overwritten, got %q", got.StatusMessage)
	}
}

func TestLog_PersistsImmediately(t *testing.T) {
	ctx := context.Background()
	store := newMemJobStore()
	job := newTestJob(t, store, models.JobTypeSyncGitHub)
	jl := NewJobLogger(store, common.GetLogger(), job.ID)

	jl.Log(ctx, "info", "first")
	jl.Log(ctx, "error", "second")

	entries, err := store.GetJobLogs(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("GetJobLogs failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != "first" || entries[1].Message != "second" {
		t.Errorf("log order wrong: %q, %q", entries[0].Message, entries[1].Message)
	}
	if entries[1].Level != "error" {
		t.Errorf("expected error level, got %q", entries[1].Level)
	}
}

func TestSetResultAndError_WriteOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemJobStore()
	job := newTestJob(t, store, models.JobTypeSyncGitHub)
	jl := NewJobLogger(store, common.GetLogger(), job.ID)

	if err := jl.SetResult(ctx, "first result"); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}
	if err := jl.SetResult(ctx, "second result"); err != nil {
		t.Fatalf("second SetResult must not error: %v", err)
	}
	got, _ := store.GetJob(ctx, job.ID)
	if got.Result != "first result" {
		t.Errorf("result overwritten: %q", got.Result)
	}

	if err := jl.SetError(ctx, "first error"); err != nil {
		t.Fatalf("SetError failed: %v", err)
	}
	if err := jl.SetError(ctx, "second error"); err != nil {
		t.Fatalf("second SetError must not error: %v", err)
	}
	got, _ = store.GetJob(ctx, job.ID)
	if got.Error != "first error" {
		t.Errorf("error overwritten: %q", got.Error)
	}
}
