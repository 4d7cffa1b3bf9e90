// -----------------------------------------------------------------------
// Evidence tools - existence check and the dedup-gated save
// -----------------------------------------------------------------------

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// CheckEvidenceExistsTool is the cheap dedup probe. In skip mode the planner
// should call this before any expensive detail fetch.
type CheckEvidenceExistsTool struct {
	Store   interfaces.EvidenceStorage
	Binding *Binding
}

type checkEvidenceExistsInput struct {
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`
}

func (t *CheckEvidenceExistsTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "check_evidence_exists",
		Description: "Check whether an evidence record already exists for an external item. Call this before fetching detail so already-synced items can be skipped cheaply.",
		InputSchema: objectSchema(map[string]interface{}{
			"source":      stringProp("Source system: github or jira"),
			"external_id": stringProp("Natural external ID, e.g. org/repo#123 or PROJ-456"),
		}, "source", "external_id"),
	}
}

func (t *CheckEvidenceExistsTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in checkEvidenceExistsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid check_evidence_exists input: %w", err)
	}
	if in.Source == "" || in.ExternalID == "" {
		return "", fmt.Errorf("check_evidence_exists requires source and external_id")
	}

	existing, err := t.Store.FindByExternalKey(ctx, models.EvidenceSource(in.Source), in.ExternalID, t.Binding.Role)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return toJSON(map[string]interface{}{"exists": false})
		}
		return "", fmt.Errorf("evidence lookup failed: %w", err)
	}

	return toJSON(map[string]interface{}{
		"exists":      true,
		"evidence_id": existing.ID,
		"dedup_mode":  string(t.Binding.DedupMode),
	})
}

// SaveEvidenceTool is the canonical "item saved" tool and the dedup gate's
// write path. An existing record is skipped or updated in place per the job's
// dedup mode; a new record is created otherwise. Re-running a sync therefore
// never duplicates evidence.
type SaveEvidenceTool struct {
	Store   interfaces.EvidenceStorage
	Binding *Binding
}

type saveEvidenceInput struct {
	Source       string   `json:"source"`
	ExternalID   string   `json:"external_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Category     string   `json:"category"`
	Scope        string   `json:"scope"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	FilesChanged int      `json:"files_changed"`
	TicketKeys   []string `json:"ticket_keys"`
	OccurredAt   string   `json:"occurred_at"` // RFC 3339
}

func (t *SaveEvidenceTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        SaveEvidenceToolName,
		Description: "Save one evidence record. Existing records (same source, external ID and role) are skipped or updated per the job's dedup mode instead of duplicated. Call once per work item after enrichment.",
		InputSchema: objectSchema(map[string]interface{}{
			"source":        stringProp("Source system: github or jira"),
			"external_id":   stringProp("Natural external ID, e.g. org/repo#123 or PROJ-456"),
			"title":         stringProp("Short title of the work item"),
			"description":   stringProp("Markdown summary of the work"),
			"url":           stringProp("Link to the item"),
			"category":      stringProp("One of: feature, bugfix, refactor, docs, infra"),
			"scope":         stringProp("One of: small, medium, large"),
			"additions":     intProp("Lines added"),
			"deletions":     intProp("Lines deleted"),
			"files_changed": intProp("Number of files changed"),
			"ticket_keys":   stringArrayProp("Ticket keys referenced by the item"),
			"occurred_at":   stringProp("When the work landed, RFC 3339"),
		}, "source", "external_id", "title"),
	}
}

func (t *SaveEvidenceTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in saveEvidenceInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid save_evidence input: %w", err)
	}
	if in.Source == "" || in.ExternalID == "" || in.Title == "" {
		return "", fmt.Errorf("save_evidence requires source, external_id and title")
	}

	occurredAt := nowFunc()
	if in.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, in.OccurredAt)
		if err != nil {
			return "", fmt.Errorf("invalid occurred_at %q: %w", in.OccurredAt, err)
		}
		occurredAt = parsed
	}

	source := models.EvidenceSource(in.Source)
	existing, err := t.Store.FindByExternalKey(ctx, source, in.ExternalID, t.Binding.Role)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return "", fmt.Errorf("dedup lookup failed: %w", err)
	}

	if existing != nil {
		if t.Binding.DedupMode == models.DedupSkipExisting {
			return toJSON(map[string]string{"action": "skipped", "evidence_id": existing.ID})
		}

		// Update in place: identity and creation metadata keep their values,
		// mutable content fields take the new ones.
		existing.Title = in.Title
		existing.Description = in.Description
		existing.URL = in.URL
		existing.Category = in.Category
		existing.Scope = in.Scope
		existing.Additions = in.Additions
		existing.Deletions = in.Deletions
		existing.FilesChanged = in.FilesChanged
		existing.TicketKeys = in.TicketKeys
		existing.OccurredAt = occurredAt
		if err := t.Store.SaveEvidence(ctx, existing); err != nil {
			return "", fmt.Errorf("evidence update failed: %w", err)
		}
		return toJSON(map[string]string{"action": "updated", "evidence_id": existing.ID})
	}

	ev := &models.Evidence{
		ID:           common.NewEvidenceID(),
		Source:       source,
		ExternalID:   in.ExternalID,
		Role:         t.Binding.Role,
		Title:        in.Title,
		Description:  in.Description,
		URL:          in.URL,
		Category:     in.Category,
		Scope:        in.Scope,
		Additions:    in.Additions,
		Deletions:    in.Deletions,
		FilesChanged: in.FilesChanged,
		TicketKeys:   in.TicketKeys,
		OccurredAt:   occurredAt,
		SyncJobID:    t.Binding.SyncJobID,
	}
	if err := t.Store.SaveEvidence(ctx, ev); err != nil {
		return "", fmt.Errorf("evidence create failed: %w", err)
	}
	return toJSON(map[string]string{"action": "created", "evidence_id": ev.ID})
}
