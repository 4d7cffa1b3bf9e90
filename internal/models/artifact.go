package models

import (
	"fmt"
	"time"
)

// PullRequestSummary is the lightweight discovery row returned by the code
// host. Detail (body, file list, line counts) is fetched separately so the
// dedup gate can skip the expensive call for known items.
type PullRequestSummary struct {
	Repository string    `json:"repository"` // "org/repo"
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	MergedAt   time.Time `json:"merged_at"`
}

// ExternalID returns the natural external identity of the pull request
func (p *PullRequestSummary) ExternalID() string {
	return pullRequestExternalID(p.Repository, p.Number)
}

// PullRequestDetail is the full record fetched per item
type PullRequestDetail struct {
	PullRequestSummary
	Body         string   `json:"body"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	FilesChanged int      `json:"files_changed"`
	Files        []string `json:"files"`
	BranchName   string   `json:"branch_name"`
}

// IssueSummary is the lightweight discovery row returned by the ticket tracker
type IssueSummary struct {
	Key     string    `json:"key"` // "TICKET-456"
	Project string    `json:"project"`
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Updated time.Time `json:"updated"`
}

// IssueDetail is the full record fetched per item
type IssueDetail struct {
	IssueSummary
	Description string    `json:"description"` // markdown, converted from rendered HTML
	IssueType   string    `json:"issue_type"`
	Status      string    `json:"status"`
	Resolved    time.Time `json:"resolved"`
	LinkedPRs   []string  `json:"linked_prs,omitempty"`
}

func pullRequestExternalID(repository string, number int) string {
	return fmt.Sprintf("%s#%d", repository, number)
}
