// -----------------------------------------------------------------------
// Ticket tracker tools - discovery, count and detail fetch
// -----------------------------------------------------------------------

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// DiscoverIssuesTool lists issues resolved by the bound user since the bound
// start date
type DiscoverIssuesTool struct {
	Tracker interfaces.IssueTrackerConnector
	Binding *Binding
}

func (t *DiscoverIssuesTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "discover_issues",
		Description: "List issues resolved by the user in the configured projects since the configured start date. Returns lightweight summaries keyed by issue key.",
		InputSchema: objectSchema(map[string]interface{}{}),
	}
}

func (t *DiscoverIssuesTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	summaries, err := t.Tracker.SearchResolvedIssues(ctx, t.Binding.Username, t.Binding.Projects, t.Binding.Since)
	if err != nil {
		return "", fmt.Errorf("issue discovery failed: %w", err)
	}
	return toJSON(map[string]interface{}{"count": len(summaries), "issues": summaries})
}

// CountIssuesTool is the cheap pre-loop count for issue syncs
type CountIssuesTool struct {
	Tracker interfaces.IssueTrackerConnector
	Binding *Binding
}

func (t *CountIssuesTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "count_issues",
		Description: "Count issues resolved by the user in the configured projects since the configured start date.",
		InputSchema: objectSchema(map[string]interface{}{}),
	}
}

func (t *CountIssuesTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	count, err := t.Tracker.CountResolvedIssues(ctx, t.Binding.Username, t.Binding.Projects, t.Binding.Since)
	if err != nil {
		return "", fmt.Errorf("issue count failed: %w", err)
	}
	return toJSON(map[string]int{"count": count})
}

// FetchIssueDetailTool fetches the full record for one issue, including the
// markdown-converted description
type FetchIssueDetailTool struct {
	Tracker interfaces.IssueTrackerConnector
}

type fetchIssueDetailInput struct {
	Key string `json:"key"`
}

func (t *FetchIssueDetailTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "fetch_issue_detail",
		Description: "Fetch the full detail of one issue: description (markdown), type, status, resolution date and linked pull requests.",
		InputSchema: objectSchema(map[string]interface{}{
			"key": stringProp("Issue key, e.g. PROJ-123"),
		}, "key"),
	}
}

func (t *FetchIssueDetailTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in fetchIssueDetailInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid fetch_issue_detail input: %w", err)
	}
	if in.Key == "" {
		return "", fmt.Errorf("fetch_issue_detail requires key")
	}

	detail, err := t.Tracker.GetIssueDetail(ctx, in.Key)
	if err != nil {
		return "", fmt.Errorf("issue detail fetch failed for %s: %w", in.Key, err)
	}
	return toJSON(detail)
}
