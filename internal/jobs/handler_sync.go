// -----------------------------------------------------------------------
// Sync handlers - agent-driven GitHub and Jira evidence ingestion
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/agent"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
	"github.com/aaronmaturen/devtrail/internal/services/criteria"
)

// SyncDeps bundles the collaborators the sync handlers need
type SyncDeps struct {
	Storage  interfaces.StorageManager
	CodeHost interfaces.CodeHostConnector
	Tracker  interfaces.IssueTrackerConnector
	Planner  interfaces.Planner
	Matcher  *criteria.Matcher
	Budget   agent.Budget
	Logger   arbor.ILogger
}

const syncSystemPrompt = `You are syncing a developer's work history into an evidence store.
For each discovered item: check whether evidence already exists, fetch detail only when needed,
extract ticket keys, categorize the work, estimate its scope, summarize it, save it as evidence,
and match the saved evidence against the rubric. Work through every item; if a tool call fails,
move on to the next item rather than stopping. When all items are handled, reply with a short
plain-text summary of what was synced.`

// Sync phase windows on the 0-100 progress scale
const (
	discoveryMax = 25
	syncMax      = 90
)

// SyncGitHubHandler ingests merged pull requests as evidence
type SyncGitHubHandler struct {
	deps SyncDeps
}

// NewSyncGitHubHandler creates the sync-github handler
func NewSyncGitHubHandler(deps SyncDeps) *SyncGitHubHandler {
	return &SyncGitHubHandler{deps: deps}
}

func (h *SyncGitHubHandler) Execute(ctx context.Context, job *models.Job, jl *JobLogger) error {
	if h.deps.CodeHost == nil {
		return fmt.Errorf("github connector is not configured")
	}

	decoded, err := models.DecodeJobConfig(job.Type, job.Config)
	if err != nil {
		return err
	}
	config := decoded.(*models.SyncGitHubConfig)

	since, err := models.ParseStartDate(config.StartDate)
	if err != nil {
		return err
	}

	// Phase 1: discovery count sizes the step budget
	if err := jl.UpdateProgress(ctx, 5, "Counting merged pull requests"); err != nil {
		return err
	}
	count, err := h.deps.CodeHost.CountMergedPullRequests(ctx, config.Username, config.Repositories, since)
	if err != nil {
		return fmt.Errorf("pull request count failed: %w", err)
	}
	jl.Log(ctx, "info", fmt.Sprintf("Discovery found %d merged pull requests", count))
	if err := jl.UpdateProgress(ctx, discoveryMax, fmt.Sprintf("Found %d pull requests to sync", count)); err != nil {
		return err
	}

	// Phase 2: agent-driven sync
	binding := &agent.Binding{
		Username:     config.Username,
		Repositories: config.Repositories,
		Since:        since,
		Role:         models.EvidenceRoleAuthor,
		DedupMode:    config.DedupMode(),
		SyncJobID:    job.ID,
	}
	toolset := h.buildToolset(binding)

	outcome, err := runSyncLoop(ctx, h.deps, jl, toolset, count,
		fmt.Sprintf("Sync the merged pull requests for user %s in repositories %v since %s. %d items are expected.",
			config.Username, config.Repositories, config.StartDate, count))
	if err != nil {
		return err
	}

	// Phase 3: finalize
	return finalizeSync(ctx, jl, outcome)
}

func (h *SyncGitHubHandler) buildToolset(binding *agent.Binding) *agent.Toolset {
	ts := agent.NewToolset()
	ts.Register(&agent.DiscoverPullRequestsTool{Host: h.deps.CodeHost, Binding: binding})
	ts.Register(&agent.CountPullRequestsTool{Host: h.deps.CodeHost, Binding: binding})
	ts.Register(&agent.FetchPullRequestDetailTool{Host: h.deps.CodeHost})
	registerSharedTools(ts, h.deps, binding)
	return ts
}

// SyncJiraHandler ingests resolved issues as evidence
type SyncJiraHandler struct {
	deps SyncDeps
}

// NewSyncJiraHandler creates the sync-jira handler
func NewSyncJiraHandler(deps SyncDeps) *SyncJiraHandler {
	return &SyncJiraHandler{deps: deps}
}

func (h *SyncJiraHandler) Execute(ctx context.Context, job *models.Job, jl *JobLogger) error {
	if h.deps.Tracker == nil {
		return fmt.Errorf("jira connector is not configured")
	}

	decoded, err := models.DecodeJobConfig(job.Type, job.Config)
	if err != nil {
		return err
	}
	config := decoded.(*models.SyncJiraConfig)

	since, err := models.ParseStartDate(config.StartDate)
	if err != nil {
		return err
	}

	if err := jl.UpdateProgress(ctx, 5, "Counting resolved issues"); err != nil {
		return err
	}
	count, err := h.deps.Tracker.CountResolvedIssues(ctx, config.Username, config.Projects, since)
	if err != nil {
		return fmt.Errorf("issue count failed: %w", err)
	}
	jl.Log(ctx, "info", fmt.Sprintf("Discovery found %d resolved issues", count))
	if err := jl.UpdateProgress(ctx, discoveryMax, fmt.Sprintf("Found %d issues to sync", count)); err != nil {
		return err
	}

	binding := &agent.Binding{
		Username:  config.Username,
		Projects:  config.Projects,
		Since:     since,
		Role:      models.EvidenceRoleAssignee,
		DedupMode: config.DedupMode(),
		SyncJobID: job.ID,
	}
	toolset := h.buildToolset(binding)

	outcome, err := runSyncLoop(ctx, h.deps, jl, toolset, count,
		fmt.Sprintf("Sync the resolved issues for user %s in projects %v since %s. %d items are expected.",
			config.Username, config.Projects, config.StartDate, count))
	if err != nil {
		return err
	}

	return finalizeSync(ctx, jl, outcome)
}

func (h *SyncJiraHandler) buildToolset(binding *agent.Binding) *agent.Toolset {
	ts := agent.NewToolset()
	ts.Register(&agent.DiscoverIssuesTool{Tracker: h.deps.Tracker, Binding: binding})
	ts.Register(&agent.CountIssuesTool{Tracker: h.deps.Tracker, Binding: binding})
	ts.Register(&agent.FetchIssueDetailTool{Tracker: h.deps.Tracker})
	registerSharedTools(ts, h.deps, binding)
	return ts
}

// registerSharedTools adds the source-independent tools every sync uses
func registerSharedTools(ts *agent.Toolset, deps SyncDeps, binding *agent.Binding) {
	evidence := deps.Storage.EvidenceStorage()
	ts.Register(&agent.CheckEvidenceExistsTool{Store: evidence, Binding: binding})
	ts.Register(&agent.ExtractTicketKeysTool{})
	ts.Register(&agent.CategorizeWorkTool{})
	ts.Register(&agent.EstimateScopeTool{})
	ts.Register(&agent.SummarizeTool{Planner: deps.Planner})
	ts.Register(&agent.SaveEvidenceTool{Store: evidence, Binding: binding})
	ts.Register(&agent.MatchCriteriaTool{
		Matcher:       deps.Matcher,
		EvidenceStore: evidence,
		CriteriaStore: deps.Storage.CriteriaStorage(),
	})
}

// runSyncLoop wires the progress tracker into the agent loop and runs it
// through the sync phase window
func runSyncLoop(ctx context.Context, deps SyncDeps, jl *JobLogger, toolset *agent.Toolset, count int, task string) (*agent.Outcome, error) {
	tracker := NewTracker(jl, discoveryMax, syncMax)
	if err := tracker.SetTotal(ctx, count, "Syncing items"); err != nil {
		return nil, err
	}

	loop := agent.NewLoop(deps.Planner, toolset, deps.Budget, jl, deps.Logger)
	loop.OnItemSaved = tracker.Increment

	outcome, err := loop.Run(ctx, syncSystemPrompt, task, count)
	if err != nil {
		return nil, err
	}

	if err := jl.UpdateProgress(ctx, syncMax, "Sync phase complete"); err != nil {
		return nil, err
	}
	return outcome, nil
}

// finalizeSync records the loop outcome as the job result
func finalizeSync(ctx context.Context, jl *JobLogger, outcome *agent.Outcome) error {
	result, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode sync result: %w", err)
	}
	if err := jl.SetResult(ctx, string(result)); err != nil {
		return err
	}
	return jl.UpdateProgress(ctx, 100, fmt.Sprintf("Synced %d items", outcome.ItemsSaved))
}
