// -----------------------------------------------------------------------
// Analysis handlers - criteria re-matching and period insights
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
	"github.com/aaronmaturen/devtrail/internal/services/criteria"
)

// AnalyzeReviewHandler re-runs criteria matching over stored evidence.
// Matches are replaced wholesale per record, so repeated runs converge on
// the latest assessment.
type AnalyzeReviewHandler struct {
	storage interfaces.StorageManager
	matcher *criteria.Matcher
	logger  arbor.ILogger
}

// NewAnalyzeReviewHandler creates the analyze-review handler
func NewAnalyzeReviewHandler(storage interfaces.StorageManager, matcher *criteria.Matcher, logger arbor.ILogger) *AnalyzeReviewHandler {
	return &AnalyzeReviewHandler{storage: storage, matcher: matcher, logger: logger}
}

func (h *AnalyzeReviewHandler) Execute(ctx context.Context, job *models.Job, jl *JobLogger) error {
	decoded, err := models.DecodeJobConfig(job.Type, job.Config)
	if err != nil {
		return err
	}
	config := decoded.(*models.AnalyzeReviewConfig)

	if err := jl.UpdateProgress(ctx, 5, "Loading evidence"); err != nil {
		return err
	}

	records, err := h.loadEvidence(ctx, config)
	if err != nil {
		return err
	}
	rubric, err := h.storage.CriteriaStorage().ListCriteria(ctx)
	if err != nil {
		return fmt.Errorf("rubric not loadable: %w", err)
	}
	if err := jl.UpdateProgress(ctx, 10, fmt.Sprintf("Analyzing %d evidence records", len(records))); err != nil {
		return err
	}

	tracker := NewTracker(jl, 10, 95)
	if err := tracker.SetTotal(ctx, len(records), "Matching criteria"); err != nil {
		return err
	}

	matched, failed := 0, 0
	for _, ev := range records {
		matches, err := h.matcher.Match(ctx, ev, rubric)
		if err != nil {
			// One bad record should not abort the batch
			failed++
			jl.Log(ctx, "warn", fmt.Sprintf("Criteria matching failed for %s: %v", ev.ID, err))
		} else {
			if err := h.storage.CriteriaStorage().ReplaceMatches(ctx, ev.ID, matches); err != nil {
				return fmt.Errorf("failed to persist matches for %s: %w", ev.ID, err)
			}
			matched++
		}
		if err := tracker.Increment(ctx, ev.Title); err != nil {
			return err
		}
	}

	result, err := json.Marshal(map[string]int{"analyzed": matched, "failed": failed})
	if err != nil {
		return err
	}
	if err := jl.SetResult(ctx, string(result)); err != nil {
		return err
	}
	return jl.UpdateProgress(ctx, 100, fmt.Sprintf("Analyzed %d records (%d failed)", matched, failed))
}

func (h *AnalyzeReviewHandler) loadEvidence(ctx context.Context, config *models.AnalyzeReviewConfig) ([]*models.Evidence, error) {
	store := h.storage.EvidenceStorage()

	if len(config.EvidenceIDs) == 0 {
		records, err := store.ListEvidence(ctx, "", 0, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list evidence: %w", err)
		}
		return records, nil
	}

	records := make([]*models.Evidence, 0, len(config.EvidenceIDs))
	for _, id := range config.EvidenceIDs {
		ev, err := store.GetEvidence(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("evidence %s not loadable: %w", id, err)
		}
		records = append(records, ev)
	}
	return records, nil
}

// GenerateInsightHandler condenses a period's evidence and matches into a
// narrative summary via the planner
type GenerateInsightHandler struct {
	storage interfaces.StorageManager
	planner interfaces.Planner
	logger  arbor.ILogger
}

// NewGenerateInsightHandler creates the generate-insight handler
func NewGenerateInsightHandler(storage interfaces.StorageManager, planner interfaces.Planner, logger arbor.ILogger) *GenerateInsightHandler {
	return &GenerateInsightHandler{storage: storage, planner: planner, logger: logger}
}

const insightSystemPrompt = `You write performance review preparation notes from a developer's work evidence.
Group related work, call out themes and notable contributions, and reference the demonstrated criteria.
Write in plain markdown, a few short sections, no preamble.`

func (h *GenerateInsightHandler) Execute(ctx context.Context, job *models.Job, jl *JobLogger) error {
	decoded, err := models.DecodeJobConfig(job.Type, job.Config)
	if err != nil {
		return err
	}
	config := decoded.(*models.GenerateInsightConfig)

	start, err := models.ParseStartDate(config.PeriodStart)
	if err != nil {
		return err
	}
	end, err := models.ParseStartDate(config.PeriodEnd)
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("period end %s must be after period start %s", config.PeriodEnd, config.PeriodStart)
	}

	if err := jl.UpdateProgress(ctx, 10, "Collecting period evidence"); err != nil {
		return err
	}
	records, err := h.storage.EvidenceStorage().ListEvidenceByPeriod(ctx, start, end.Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to list period evidence: %w", err)
	}
	if len(records) == 0 {
		if err := jl.SetResult(ctx, "No evidence recorded for this period."); err != nil {
			return err
		}
		return jl.UpdateProgress(ctx, 100, "No evidence in period")
	}

	rubric, err := h.storage.CriteriaStorage().ListCriteria(ctx)
	if err != nil {
		return fmt.Errorf("rubric not loadable: %w", err)
	}
	rubricByID := make(map[int]*models.Criterion, len(rubric))
	for _, c := range rubric {
		rubricByID[c.ID] = c
	}

	if err := jl.UpdateProgress(ctx, 40, fmt.Sprintf("Summarizing %d evidence records", len(records))); err != nil {
		return err
	}

	prompt, err := h.buildPrompt(ctx, config, records, rubricByID)
	if err != nil {
		return err
	}

	insight, err := h.planner.Complete(ctx, insightSystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("insight generation failed: %w", err)
	}

	if err := jl.SetResult(ctx, insight); err != nil {
		return err
	}
	return jl.UpdateProgress(ctx, 100, fmt.Sprintf("Generated insight from %d evidence records", len(records)))
}

func (h *GenerateInsightHandler) buildPrompt(ctx context.Context, config *models.GenerateInsightConfig, records []*models.Evidence, rubricByID map[int]*models.Criterion) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Review period: %s to %s\n\n", config.PeriodStart, config.PeriodEnd)

	for _, ev := range records {
		fmt.Fprintf(&sb, "- [%s/%s] %s (%s, %s)\n", ev.Source, ev.Role, ev.Title, ev.Category, ev.Scope)
		if ev.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", firstLine(ev.Description))
		}

		matches, err := h.storage.CriteriaStorage().GetMatches(ctx, ev.ID)
		if err != nil {
			return "", fmt.Errorf("failed to load matches for %s: %w", ev.ID, err)
		}
		for _, m := range matches {
			if c, ok := rubricByID[m.CriterionID]; ok {
				fmt.Fprintf(&sb, "  demonstrates: %s / %s (%.2f)\n", c.Area, c.Subarea, m.Confidence)
			}
		}
	}

	return sb.String(), nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
