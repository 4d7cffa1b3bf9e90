package interfaces

import (
	"context"
	"time"

	"github.com/aaronmaturen/devtrail/internal/models"
)

// CodeHostConnector is the logical contract for the code host (GitHub).
// The orchestrator depends only on paginated discovery plus per-item detail;
// wire formats stay inside the connector.
type CodeHostConnector interface {
	// SearchMergedPullRequests lists PRs merged by user in the given
	// repositories since the start date.
	SearchMergedPullRequests(ctx context.Context, username string, repositories []string, since time.Time) ([]models.PullRequestSummary, error)

	// CountMergedPullRequests is the cheap pre-loop count used to size the
	// agent step budget.
	CountMergedPullRequests(ctx context.Context, username string, repositories []string, since time.Time) (int, error)

	GetPullRequestDetail(ctx context.Context, repository string, number int) (*models.PullRequestDetail, error)
}

// IssueTrackerConnector is the logical contract for the ticket tracker (Jira)
type IssueTrackerConnector interface {
	SearchResolvedIssues(ctx context.Context, username string, projects []string, since time.Time) ([]models.IssueSummary, error)
	CountResolvedIssues(ctx context.Context, username string, projects []string, since time.Time) (int, error)
	GetIssueDetail(ctx context.Context, key string) (*models.IssueDetail, error)
}
