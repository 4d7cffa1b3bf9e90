// -----------------------------------------------------------------------
// Evidence - one observed unit of work, deduplicated by external identity
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// EvidenceSource identifies the external system an evidence record came from
type EvidenceSource string

const (
	EvidenceSourceGitHub EvidenceSource = "github"
	EvidenceSourceJira   EvidenceSource = "jira"
	EvidenceSourceManual EvidenceSource = "manual"
)

// EvidenceRole is the user's relationship to the work item
type EvidenceRole string

const (
	EvidenceRoleAuthor   EvidenceRole = "author"
	EvidenceRoleReviewer EvidenceRole = "reviewer"
	EvidenceRoleAssignee EvidenceRole = "assignee"
)

// Evidence represents one piece of observed work. It is owned by the sync run
// that created it (SyncJobID) but remains durable after that job is swept.
// The natural key (Source, ExternalID, Role) is the dedup gate's identity;
// re-syncing the same item never creates a second record.
type Evidence struct {
	ID string `json:"id" badgerhold:"key"`

	Source     EvidenceSource `json:"source" badgerhold:"index"`
	ExternalID string         `json:"external_id" badgerhold:"index"` // "org/repo#123" or "TICKET-456"
	Role       EvidenceRole   `json:"role"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"` // markdown
	URL         string `json:"url,omitempty"`

	Category string `json:"category,omitempty"` // feature, bugfix, refactor, docs, infra
	Scope    string `json:"scope,omitempty"`    // small, medium, large

	// Mutable size fields, overwritten in update-existing mode
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	FilesChanged int `json:"files_changed"`

	TicketKeys []string `json:"ticket_keys,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
	SyncJobID  string    `json:"sync_job_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NaturalKey returns the dedup identity string for this record
func (e *Evidence) NaturalKey() string {
	return ExternalKey(e.Source, e.ExternalID, e.Role)
}

// ExternalKey builds the dedup identity for a (source, external id, role) triple
func ExternalKey(source EvidenceSource, externalID string, role EvidenceRole) string {
	return fmt.Sprintf("%s|%s|%s", source, externalID, role)
}

// Validate checks required evidence fields
func (e *Evidence) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("evidence ID is required")
	}
	if e.Source == "" {
		return fmt.Errorf("evidence source is required")
	}
	if e.ExternalID == "" {
		return fmt.Errorf("evidence external ID is required")
	}
	if e.Role == "" {
		return fmt.Errorf("evidence role is required")
	}
	return nil
}

// Criterion is one static rubric entry. Criteria are loaded out-of-band and
// are read-only from the orchestrator's perspective.
type Criterion struct {
	ID          int    `json:"id" yaml:"id" badgerhold:"key"`
	Area        string `json:"area" yaml:"area"`
	Subarea     string `json:"subarea" yaml:"subarea"`
	Description string `json:"description" yaml:"description"`
	Detectable  bool   `json:"detectable" yaml:"detectable"` // whether work artifacts can evidence it
}

// CriterionMatch links evidence to a rubric criterion with a confidence score.
// Matches for an evidence record are replaced wholesale on re-analysis.
type CriterionMatch struct {
	Key         string  `json:"-" badgerhold:"key"` // evidenceID:criterionID composite
	EvidenceID  string  `json:"evidence_id" badgerhold:"index"`
	CriterionID int     `json:"criterion_id"`
	Confidence  float64 `json:"confidence"` // [0,1]
	Explanation string  `json:"explanation"`

	CreatedAt time.Time `json:"created_at"`
}

// MatchKey builds the composite store key for a criterion match
func MatchKey(evidenceID string, criterionID int) string {
	return fmt.Sprintf("%s:%d", evidenceID, criterionID)
}
