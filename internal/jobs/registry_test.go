package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/models"
)

func TestRegistry_ResolveRegistered(t *testing.T) {
	registry := NewRegistry(common.GetLogger())
	registry.Register(models.JobTypeSyncGitHub, HandlerFunc(func(ctx context.Context, job *models.Job, jl *JobLogger) error {
		return nil
	}))

	if !registry.IsRegistered(models.JobTypeSyncGitHub) {
		t.Error("IsRegistered returned false for registered type")
	}
	if registry.IsRegistered(models.JobTypeSyncJira) {
		t.Error("IsRegistered returned true for unregistered type")
	}

	if _, err := registry.Resolve(models.JobTypeSyncGitHub); err != nil {
		t.Errorf("Resolve failed for registered type: %v", err)
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := NewRegistry(common.GetLogger())

	_, err := registry.Resolve("does-not-exist")
	if !errors.Is(err, ErrUnknownJobType) {
		t.Errorf("expected ErrUnknownJobType, got %v", err)
	}
}

func TestRegistry_DeprecatedTypeNamesReplacement(t *testing.T) {
	registry := NewRegistry(common.GetLogger())
	// Deprecation wins even when nothing is registered under the old name
	_, err := registry.Resolve("sync-git")

	var deprecated *DeprecatedJobTypeError
	if !errors.As(err, &deprecated) {
		t.Fatalf("expected DeprecatedJobTypeError, got %v", err)
	}
	if deprecated.Use != models.JobTypeSyncGitHub {
		t.Errorf("expected replacement %s, got %s", models.JobTypeSyncGitHub, deprecated.Use)
	}
	if !strings.Contains(err.Error(), "use sync-github instead") {
		t.Errorf("error message missing migration hint: %q", err.Error())
	}
}

func TestRegistry_HandlerErrorPropagatesUnchanged(t *testing.T) {
	registry := NewRegistry(common.GetLogger())
	sentinel := errors.New("handler exploded")
	registry.Register(models.JobTypeAnalyzeReview, HandlerFunc(func(ctx context.Context, job *models.Job, jl *JobLogger) error {
		return sentinel
	}))

	handler, err := registry.Resolve(models.JobTypeAnalyzeReview)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if err := handler.Execute(context.Background(), nil, nil); !errors.Is(err, sentinel) {
		t.Errorf("handler error not propagated unchanged: %v", err)
	}
}
