// -----------------------------------------------------------------------
// Analysis tools - extraction, categorization, scope, summary, matching
// -----------------------------------------------------------------------

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/services/criteria"
)

var nowFunc = time.Now

// ticketKeyPattern matches Jira-style keys like PROJ-123
var ticketKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}-\d+\b`)

// ExtractTicketKeysTool pulls ticket keys out of free text (titles, branch
// names, PR bodies). Deterministic, no model call.
type ExtractTicketKeysTool struct{}

type extractTicketKeysInput struct {
	Text string `json:"text"`
}

func (t *ExtractTicketKeysTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "extract_ticket_keys",
		Description: "Extract ticket keys (e.g. PROJ-123) from free text such as a PR title, branch name or body. Returns the unique keys in order of first appearance.",
		InputSchema: objectSchema(map[string]interface{}{
			"text": stringProp("Text to scan for ticket keys"),
		}, "text"),
	}
}

func (t *ExtractTicketKeysTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in extractTicketKeysInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid extract_ticket_keys input: %w", err)
	}

	seen := make(map[string]bool)
	keys := []string{}
	for _, key := range ticketKeyPattern.FindAllString(in.Text, -1) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return toJSON(map[string]interface{}{"ticket_keys": keys})
}

// CategorizeWorkTool classifies a work item from its title, branch name and
// file list using keyword heuristics. Cheap and deterministic; the planner
// can override the result when context says otherwise.
type CategorizeWorkTool struct{}

type categorizeWorkInput struct {
	Title      string   `json:"title"`
	BranchName string   `json:"branch_name"`
	Files      []string `json:"files"`
}

func (t *CategorizeWorkTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "categorize_work",
		Description: "Classify a work item as feature, bugfix, refactor, docs or infra based on its title, branch name and changed files.",
		InputSchema: objectSchema(map[string]interface{}{
			"title":       stringProp("Work item title"),
			"branch_name": stringProp("Source branch name, if known"),
			"files":       stringArrayProp("Changed file paths, if known"),
		}, "title"),
	}
}

func (t *CategorizeWorkTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in categorizeWorkInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid categorize_work input: %w", err)
	}

	return toJSON(map[string]string{"category": categorize(in.Title, in.BranchName, in.Files)})
}

func categorize(title, branch string, files []string) string {
	text := strings.ToLower(title + " " + branch)

	switch {
	case containsAny(text, "fix", "bug", "hotfix", "patch", "regression"):
		return "bugfix"
	case containsAny(text, "refactor", "cleanup", "clean up", "restructure", "rename", "extract"):
		return "refactor"
	case containsAny(text, "doc", "readme", "changelog"):
		return "docs"
	case containsAny(text, "ci", "cd", "pipeline", "deploy", "docker", "terraform", "infra", "upgrade", "bump"):
		return "infra"
	}

	// Fall back to the file list when the text is uninformative
	if len(files) > 0 {
		docs, infra := 0, 0
		for _, f := range files {
			lower := strings.ToLower(f)
			switch {
			case strings.HasSuffix(lower, ".md") || strings.Contains(lower, "docs/"):
				docs++
			case strings.Contains(lower, ".github/") || strings.Contains(lower, "dockerfile") ||
				strings.HasSuffix(lower, ".tf") || strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml"):
				infra++
			}
		}
		if docs == len(files) {
			return "docs"
		}
		if infra == len(files) {
			return "infra"
		}
	}

	return "feature"
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// EstimateScopeTool sizes a work item from its diff stats
type EstimateScopeTool struct{}

type estimateScopeInput struct {
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	FilesChanged int `json:"files_changed"`
}

func (t *EstimateScopeTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "estimate_scope",
		Description: "Estimate the scope of a work item (small, medium, large) from its line and file counts.",
		InputSchema: objectSchema(map[string]interface{}{
			"additions":     intProp("Lines added"),
			"deletions":     intProp("Lines deleted"),
			"files_changed": intProp("Number of files changed"),
		}),
	}
}

func (t *EstimateScopeTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in estimateScopeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid estimate_scope input: %w", err)
	}

	return toJSON(map[string]string{"scope": estimateScope(in.Additions+in.Deletions, in.FilesChanged)})
}

func estimateScope(lines, files int) string {
	switch {
	case lines < 50 && files <= 3:
		return "small"
	case lines < 400 && files <= 15:
		return "medium"
	default:
		return "large"
	}
}

// SummarizeTool condenses a work item body into a short markdown summary.
// A failed or empty model response falls back to the raw title so the item
// is still saveable.
type SummarizeTool struct {
	Planner interfaces.Planner
}

type summarizeInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

const summarizeSystemPrompt = "Summarize the engineering work item in 2-3 plain sentences focused on what changed and why. No headings, no lists."

func (t *SummarizeTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "summarize",
		Description: "Produce a short summary of a work item from its title and body. Falls back to the title when the body is empty or unsummarizable.",
		InputSchema: objectSchema(map[string]interface{}{
			"title": stringProp("Work item title"),
			"body":  stringProp("Work item body or description"),
		}, "title"),
	}
}

func (t *SummarizeTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in summarizeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid summarize input: %w", err)
	}
	if in.Title == "" {
		return "", fmt.Errorf("summarize requires title")
	}

	if strings.TrimSpace(in.Body) == "" {
		return toJSON(map[string]string{"summary": in.Title})
	}

	summary, err := t.Planner.Complete(ctx, summarizeSystemPrompt, fmt.Sprintf("Title: %s\n\n%s", in.Title, in.Body))
	if err != nil || strings.TrimSpace(summary) == "" {
		return toJSON(map[string]string{"summary": in.Title})
	}
	return toJSON(map[string]string{"summary": strings.TrimSpace(summary)})
}

// MatchCriteriaTool scores a saved evidence record against the rubric and
// persists the matches as a full replace
type MatchCriteriaTool struct {
	Matcher       *criteria.Matcher
	EvidenceStore interfaces.EvidenceStorage
	CriteriaStore interfaces.CriteriaStorage
}

type matchCriteriaInput struct {
	EvidenceID string `json:"evidence_id"`
}

func (t *MatchCriteriaTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        "match_criteria",
		Description: "Evaluate a saved evidence record against the competency rubric and persist the resulting matches. Replaces any earlier matches for that record.",
		InputSchema: objectSchema(map[string]interface{}{
			"evidence_id": stringProp("ID of the evidence record to evaluate"),
		}, "evidence_id"),
	}
}

func (t *MatchCriteriaTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in matchCriteriaInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid match_criteria input: %w", err)
	}
	if in.EvidenceID == "" {
		return "", fmt.Errorf("match_criteria requires evidence_id")
	}

	ev, err := t.EvidenceStore.GetEvidence(ctx, in.EvidenceID)
	if err != nil {
		return "", fmt.Errorf("evidence %s not loadable: %w", in.EvidenceID, err)
	}
	rubric, err := t.CriteriaStore.ListCriteria(ctx)
	if err != nil {
		return "", fmt.Errorf("rubric not loadable: %w", err)
	}

	matches, err := t.Matcher.Match(ctx, ev, rubric)
	if err != nil {
		return "", err
	}
	if err := t.CriteriaStore.ReplaceMatches(ctx, ev.ID, matches); err != nil {
		return "", fmt.Errorf("failed to persist matches: %w", err)
	}

	return toJSON(map[string]interface{}{"evidence_id": ev.ID, "matches": matches})
}
