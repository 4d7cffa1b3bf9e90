// -----------------------------------------------------------------------
// Code host tools - discovery, count and detail fetch
// -----------------------------------------------------------------------

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// DiscoverPullRequestsTool lists merged PRs for the bound user since the
// bound start date. Discovery returns lightweight summaries; the planner
// follows up per item through the dedup check and detail fetch.
type DiscoverPullRequestsTool struct {
	Host    interfaces.CodeHostConnector
	Binding *Binding
}

func (t *DiscoverPullRequestsTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "discover_pull_requests",
		Description: "List merged pull requests authored by the user in the configured repositories since the configured start date. Returns lightweight summaries with external IDs.",
		InputSchema: objectSchema(map[string]interface{}{}),
	}
}

func (t *DiscoverPullRequestsTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	summaries, err := t.Host.SearchMergedPullRequests(ctx, t.Binding.Username, t.Binding.Repositories, t.Binding.Since)
	if err != nil {
		return "", fmt.Errorf("pull request discovery failed: %w", err)
	}

	type row struct {
		models.PullRequestSummary
		ExternalID string `json:"external_id"`
	}
	rows := make([]row, len(summaries))
	for i, s := range summaries {
		rows[i] = row{PullRequestSummary: s, ExternalID: s.ExternalID()}
	}
	return toJSON(map[string]interface{}{"count": len(rows), "pull_requests": rows})
}

// CountPullRequestsTool is the cheap pre-loop count used to size the step
// budget. Also exposed to the planner for sanity checks.
type CountPullRequestsTool struct {
	Host    interfaces.CodeHostConnector
	Binding *Binding
}

func (t *CountPullRequestsTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "count_pull_requests",
		Description: "Count merged pull requests authored by the user in the configured repositories since the configured start date.",
		InputSchema: objectSchema(map[string]interface{}{}),
	}
}

func (t *CountPullRequestsTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	count, err := t.Host.CountMergedPullRequests(ctx, t.Binding.Username, t.Binding.Repositories, t.Binding.Since)
	if err != nil {
		return "", fmt.Errorf("pull request count failed: %w", err)
	}
	return toJSON(map[string]int{"count": count})
}

// FetchPullRequestDetailTool fetches the full record for one PR. Expensive
// relative to discovery, so the planner should gate it behind
// check_evidence_exists in skip mode.
type FetchPullRequestDetailTool struct {
	Host interfaces.CodeHostConnector
}

type fetchPullRequestDetailInput struct {
	Repository string `json:"repository"`
	Number     int    `json:"number"`
}

func (t *FetchPullRequestDetailTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "fetch_pull_request_detail",
		Description: "Fetch the full detail of one merged pull request: body, branch name, changed files and line counts.",
		InputSchema: objectSchema(map[string]interface{}{
			"repository": stringProp("Repository in org/repo form"),
			"number":     intProp("Pull request number"),
		}, "repository", "number"),
	}
}

func (t *FetchPullRequestDetailTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in fetchPullRequestDetailInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid fetch_pull_request_detail input: %w", err)
	}
	if in.Repository == "" || in.Number <= 0 {
		return "", fmt.Errorf("fetch_pull_request_detail requires repository and number")
	}

	detail, err := t.Host.GetPullRequestDetail(ctx, in.Repository, in.Number)
	if err != nil {
		return "", fmt.Errorf("pull request detail fetch failed for %s#%d: %w", in.Repository, in.Number, err)
	}
	return toJSON(detail)
}
