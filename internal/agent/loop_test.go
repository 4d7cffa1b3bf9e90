package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// scriptedPlanner replays a fixed sequence of turns
type scriptedPlanner struct {
	turns []interfaces.PlannerTurn
	step  int

	// seenResults records the tool results fed back on each turn
	seenResults [][]interfaces.ToolCallResult
}

func (p *scriptedPlanner) StepTurn(ctx context.Context, system string, messages []interfaces.PlannerMessage, tools []interfaces.ToolSpec) (*interfaces.PlannerTurn, error) {
	last := messages[len(messages)-1]
	if len(last.ToolResults) > 0 {
		p.seenResults = append(p.seenResults, last.ToolResults)
	}
	if p.step >= len(p.turns) {
		return &interfaces.PlannerTurn{Text: "out of script", Done: true}, nil
	}
	turn := p.turns[p.step]
	p.step++
	return &turn, nil
}

func (p *scriptedPlanner) Complete(ctx context.Context, system, prompt string) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptedPlanner) Close() error { return nil }

var _ interfaces.Planner = (*scriptedPlanner)(nil)

// stubTool answers with canned content, or an error for inputs it is told to
// reject
type stubTool struct {
	name    string
	content string
	failOn  string // substring of input that triggers failure
	calls   int
}

func (t *stubTool) Spec() interfaces.ToolSpec {
	return interfaces.ToolSpec{
		Name:        t.name,
		Description: "stub",
		InputSchema: objectSchema(map[string]interface{}{"id": stringProp("item id")}),
	}
}

func (t *stubTool) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	t.calls++
	if t.failOn != "" && strings.Contains(string(input), t.failOn) {
		return "", fmt.Errorf("stub failure for %s", input)
	}
	return t.content, nil
}

// recordingRunLog captures audit lines
type recordingRunLog struct {
	lines []string
}

func (r *recordingRunLog) Log(ctx context.Context, level, message string) {
	r.lines = append(r.lines, level+": "+message)
}

func toolCall(id, name, input string) interfaces.ToolCall {
	return interfaces.ToolCall{ID: id, Name: name, Input: json.RawMessage(input)}
}

func TestBudget_Steps(t *testing.T) {
	budget := Budget{BaseSteps: 5, StepsPerItem: 4, MaxSteps: 60}

	cases := []struct {
		items int
		want  int
	}{
		{0, 5},
		{3, 17},
		{100, 60}, // ceiling
	}
	for _, tc := range cases {
		if got := budget.Steps(tc.items); got != tc.want {
			t.Errorf("Steps(%d) = %d, want %d", tc.items, got, tc.want)
		}
	}

	// A degenerate budget still grants one step
	if got := (Budget{MaxSteps: 60}).Steps(0); got != 1 {
		t.Errorf("empty budget must grant 1 step, got %d", got)
	}
}

func TestLoop_FinishesOnFinalText(t *testing.T) {
	planner := &scriptedPlanner{turns: []interfaces.PlannerTurn{
		{Text: "All synced.", Done: true, InputTokens: 10, OutputTokens: 5},
	}}
	loop := NewLoop(planner, NewToolset(), Budget{BaseSteps: 5, MaxSteps: 10}, &recordingRunLog{}, common.GetLogger())

	outcome, err := loop.Run(context.Background(), "system", "task", 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.FinalText != "All synced." {
		t.Errorf("unexpected final text %q", outcome.FinalText)
	}
	if outcome.Steps != 1 || outcome.BudgetSpent {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if outcome.InputTokens != 10 || outcome.OutputTokens != 5 {
		t.Errorf("token usage not accumulated: %+v", outcome)
	}
}

func TestLoop_ToolFailureDoesNotAbortBatch(t *testing.T) {
	save := &stubTool{name: SaveEvidenceToolName, content: `{"action":"created"}`, failOn: "bad-item"}
	toolset := NewToolset()
	toolset.Register(save)

	planner := &scriptedPlanner{turns: []interfaces.PlannerTurn{
		{ToolCalls: []interfaces.ToolCall{toolCall("c1", SaveEvidenceToolName, `{"id":"bad-item"}`)}},
		{ToolCalls: []interfaces.ToolCall{toolCall("c2", SaveEvidenceToolName, `{"id":"good-item"}`)}},
		{Text: "done", Done: true},
	}}
	runLog := &recordingRunLog{}
	loop := NewLoop(planner, toolset, Budget{BaseSteps: 10, MaxSteps: 10}, runLog, common.GetLogger())

	outcome, err := loop.Run(context.Background(), "system", "task", 2)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if save.calls != 2 {
		t.Errorf("expected both items attempted, got %d calls", save.calls)
	}
	if outcome.ItemsSaved != 1 {
		t.Errorf("only the good item counts as saved, got %d", outcome.ItemsSaved)
	}

	// The failure went back to the planner as an error result
	if len(planner.seenResults) != 2 {
		t.Fatalf("expected 2 result batches, got %d", len(planner.seenResults))
	}
	first := planner.seenResults[0][0]
	if !first.IsError || first.ToolCallID != "c1" {
		t.Errorf("failure not surfaced as error result: %+v", first)
	}
}

func TestLoop_UnknownToolIsErrorResult(t *testing.T) {
	planner := &scriptedPlanner{turns: []interfaces.PlannerTurn{
		{ToolCalls: []interfaces.ToolCall{toolCall("c1", "no_such_tool", `{}`)}},
		{Text: "done", Done: true},
	}}
	loop := NewLoop(planner, NewToolset(), Budget{BaseSteps: 10, MaxSteps: 10}, &recordingRunLog{}, common.GetLogger())

	if _, err := loop.Run(context.Background(), "system", "task", 1); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	result := planner.seenResults[0][0]
	if !result.IsError || !strings.Contains(result.Content, "unknown tool") {
		t.Errorf("unknown tool must produce an error result, got %+v", result)
	}
}

func TestLoop_BudgetCeiling(t *testing.T) {
	tool := &stubTool{name: "probe", content: "ok"}
	toolset := NewToolset()
	toolset.Register(tool)

	// Planner never finishes, every turn requests another call
	var turns []interfaces.PlannerTurn
	for i := 0; i < 20; i++ {
		turns = append(turns, interfaces.PlannerTurn{
			ToolCalls: []interfaces.ToolCall{toolCall(fmt.Sprintf("c%d", i), "probe", `{}`)},
		})
	}
	runLog := &recordingRunLog{}
	loop := NewLoop(&scriptedPlanner{turns: turns}, toolset, Budget{BaseSteps: 3, MaxSteps: 3}, runLog, common.GetLogger())

	outcome, err := loop.Run(context.Background(), "system", "task", 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.BudgetSpent {
		t.Error("BudgetSpent not set after hitting the ceiling")
	}
	if outcome.Steps != 3 {
		t.Errorf("expected exactly 3 steps, got %d", outcome.Steps)
	}
	last := runLog.lines[len(runLog.lines)-1]
	if !strings.Contains(last, "step ceiling") {
		t.Errorf("ceiling not recorded in the run log: %q", last)
	}
}

func TestLoop_OnItemSavedReceivesTitle(t *testing.T) {
	save := &stubTool{name: SaveEvidenceToolName, content: `{"action":"created"}`}
	toolset := NewToolset()
	toolset.Register(save)

	planner := &scriptedPlanner{turns: []interfaces.PlannerTurn{
		{ToolCalls: []interfaces.ToolCall{toolCall("c1", SaveEvidenceToolName, `{"title":"Fix login bug","external_id":"acme/api#42"}`)}},
		{Text: "done", Done: true},
	}}
	loop := NewLoop(planner, toolset, Budget{BaseSteps: 10, MaxSteps: 10}, &recordingRunLog{}, common.GetLogger())

	var saved []string
	loop.OnItemSaved = func(ctx context.Context, itemDesc string) error {
		saved = append(saved, itemDesc)
		return nil
	}

	if _, err := loop.Run(context.Background(), "system", "task", 1); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(saved) != 1 || saved[0] != "Fix login bug" {
		t.Errorf("OnItemSaved got %v, want title", saved)
	}
}

func TestLoop_CancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	planner := &scriptedPlanner{turns: []interfaces.PlannerTurn{{Text: "never reached", Done: true}}}
	loop := NewLoop(planner, NewToolset(), Budget{BaseSteps: 5, MaxSteps: 5}, &recordingRunLog{}, common.GetLogger())

	_, err := loop.Run(ctx, "system", "task", 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestToolset_SpecsKeepRegistrationOrder(t *testing.T) {
	toolset := NewToolset()
	toolset.Register(&stubTool{name: "alpha"})
	toolset.Register(&stubTool{name: "beta"})
	toolset.Register(&stubTool{name: "alpha"}) // re-registration keeps position

	specs := toolset.Specs()
	if len(specs) != 2 || specs[0].Name != "alpha" || specs[1].Name != "beta" {
		t.Errorf("unexpected spec order: %+v", specs)
	}
}
