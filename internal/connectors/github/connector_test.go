package github

import (
	"testing"
	"time"
)

func TestSplitRepository(t *testing.T) {
	org, repo, err := splitRepository("acme/api")
	if err != nil {
		t.Fatalf("splitRepository failed: %v", err)
	}
	if org != "acme" || repo != "api" {
		t.Errorf("got %q/%q", org, repo)
	}

	// Only the first slash splits, nested paths stay in the repo part
	org, repo, err = splitRepository("acme/team/api")
	if err != nil {
		t.Fatalf("splitRepository failed: %v", err)
	}
	if org != "acme" || repo != "team/api" {
		t.Errorf("got %q/%q", org, repo)
	}

	for _, bad := range []string{"", "acme", "/api", "acme/"} {
		if _, _, err := splitRepository(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestMergedQuery(t *testing.T) {
	since := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	got := mergedQuery("octocat", "acme/api", since)
	want := "repo:acme/api author:octocat is:pr is:merged merged:>=2026-01-15"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
