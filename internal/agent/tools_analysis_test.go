package agent

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

func invokeTool(t *testing.T, tool Tool, input string) map[string]interface{} {
	t.Helper()
	content, err := tool.Invoke(context.Background(), json.RawMessage(input))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	return out
}

func TestExtractTicketKeys(t *testing.T) {
	tool := &ExtractTicketKeysTool{}

	cases := []struct {
		name string
		text string
		want []interface{}
	}{
		{"single key", "PROJ-123 fix login", []interface{}{"PROJ-123"}},
		{"duplicates collapse in order", "DEV-9 then PROJ-123 then DEV-9 again", []interface{}{"DEV-9", "PROJ-123"}},
		{"no keys", "no ticket references here", []interface{}{}},
		{"lowercase not matched", "proj-123 is not a key", []interface{}{}},
		{"embedded in branch name", "feature/ABC-42-add-audit-log", []interface{}{"ABC-42"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, _ := json.Marshal(map[string]string{"text": tc.text})
			out := invokeTool(t, tool, string(input))
			got := out["ticket_keys"].([]interface{})
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCategorizeWork(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"fix in title", `{"title":"Fix login redirect"}`, "bugfix"},
		{"hotfix branch", `{"title":"Redirect change","branch_name":"hotfix/login"}`, "bugfix"},
		{"refactor", `{"title":"Refactor session handling"}`, "refactor"},
		{"docs", `{"title":"Update README"}`, "docs"},
		{"infra", `{"title":"Bump terraform provider"}`, "infra"},
		{"all markdown files", `{"title":"touch ups","files":["guide.md","docs/setup.md"]}`, "docs"},
		{"default feature", `{"title":"Add billing export"}`, "feature"},
	}
	tool := &CategorizeWorkTool{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := invokeTool(t, tool, tc.input)
			if out["category"] != tc.want {
				t.Errorf("got %v, want %s", out["category"], tc.want)
			}
		})
	}
}

func TestEstimateScope(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"small", `{"additions":20,"deletions":10,"files_changed":2}`, "small"},
		{"medium", `{"additions":200,"deletions":100,"files_changed":8}`, "medium"},
		{"large by lines", `{"additions":500,"deletions":100,"files_changed":4}`, "large"},
		{"large by files", `{"additions":10,"deletions":10,"files_changed":30}`, "large"},
	}
	tool := &EstimateScopeTool{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := invokeTool(t, tool, tc.input)
			if out["scope"] != tc.want {
				t.Errorf("got %v, want %s", out["scope"], tc.want)
			}
		})
	}
}

func TestSummarize_FallsBackToTitle(t *testing.T) {
	// Empty body never reaches the planner
	tool := &SummarizeTool{Planner: &scriptedPlanner{}}
	out := invokeTool(t, tool, `{"title":"Fix login bug","body":"   "}`)
	if out["summary"] != "Fix login bug" {
		t.Errorf("empty body must fall back to title, got %v", out["summary"])
	}

	// A planner failure falls back too instead of erroring
	out = invokeTool(t, tool, `{"title":"Fix login bug","body":"long description"}`)
	if out["summary"] != "Fix login bug" {
		t.Errorf("planner failure must fall back to title, got %v", out["summary"])
	}
}

func TestSummarize_RequiresTitle(t *testing.T) {
	tool := &SummarizeTool{Planner: &scriptedPlanner{}}
	if _, err := tool.Invoke(context.Background(), json.RawMessage(`{"body":"text"}`)); err == nil {
		t.Error("expected error for missing title")
	}
}
