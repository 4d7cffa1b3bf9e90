// -----------------------------------------------------------------------
// Loop - bounded planner tool-calling orchestration
// -----------------------------------------------------------------------

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// Budget bounds the number of planner turns. The grant scales with the
// expected item count so large batches do not starve mid-run, but the
// ceiling caps cost regardless of input size.
type Budget struct {
	BaseSteps    int
	StepsPerItem int
	MaxSteps     int
}

// Steps returns the step grant for a batch of itemCount items
func (b Budget) Steps(itemCount int) int {
	steps := b.BaseSteps + b.StepsPerItem*itemCount
	if steps > b.MaxSteps {
		return b.MaxSteps
	}
	if steps < 1 {
		return 1
	}
	return steps
}

// RunLogger receives the loop's per-call audit lines. Satisfied by the job
// logger so the trail lands in the job's persistent log.
type RunLogger interface {
	Log(ctx context.Context, level, message string)
}

// Outcome summarizes one completed loop run
type Outcome struct {
	FinalText    string `json:"final_text,omitempty"`
	Steps        int    `json:"steps"`
	ToolCalls    int    `json:"tool_calls"`
	ItemsSaved   int    `json:"items_saved"`
	BudgetSpent  bool   `json:"budget_spent"` // true when the loop hit the step ceiling
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Loop drives the planner through a bounded number of tool-calling turns.
// The loop itself is mechanical: it forwards tool calls to the toolset, logs
// a compact line per call, and reports a saved item through OnItemSaved.
// Tool failures flow back to the planner as error results so one bad item
// never aborts the batch.
type Loop struct {
	planner interfaces.Planner
	toolset *Toolset
	budget  Budget
	runLog  RunLogger
	logger  arbor.ILogger

	// OnItemSaved fires after each successful save_evidence call, with a
	// short item description. Optional.
	OnItemSaved func(ctx context.Context, itemDesc string) error
}

// NewLoop creates a loop over the given planner and toolset
func NewLoop(planner interfaces.Planner, toolset *Toolset, budget Budget, runLog RunLogger, logger arbor.ILogger) *Loop {
	return &Loop{
		planner: planner,
		toolset: toolset,
		budget:  budget,
		runLog:  runLog,
		logger:  logger,
	}
}

// Run executes the loop with the given system prompt and task, granting
// steps for itemCount expected items. Returns an error only for setup or
// planner transport failures; tool-level failures are absorbed into the
// conversation.
func (l *Loop) Run(ctx context.Context, system, task string, itemCount int) (*Outcome, error) {
	steps := l.budget.Steps(itemCount)
	outcome := &Outcome{}

	l.runLog.Log(ctx, "info", fmt.Sprintf("Agent loop starting: %d expected items, %d step budget", itemCount, steps))

	messages := []interfaces.PlannerMessage{
		{Role: "user", Text: task},
	}
	specs := l.toolset.Specs()

	for outcome.Steps < steps {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		turn, err := l.planner.StepTurn(ctx, system, messages, specs)
		if err != nil {
			return outcome, fmt.Errorf("planner turn failed: %w", err)
		}

		outcome.Steps++
		outcome.InputTokens += turn.InputTokens
		outcome.OutputTokens += turn.OutputTokens

		if turn.Done || len(turn.ToolCalls) == 0 {
			outcome.FinalText = turn.Text
			l.runLog.Log(ctx, "info", fmt.Sprintf("Agent loop finished after %d steps, %d tool calls, %d items saved",
				outcome.Steps, outcome.ToolCalls, outcome.ItemsSaved))
			return outcome, nil
		}

		messages = append(messages, interfaces.PlannerMessage{
			Role:      "assistant",
			Text:      turn.Text,
			ToolCalls: turn.ToolCalls,
		})

		results := make([]interfaces.ToolCallResult, 0, len(turn.ToolCalls))
		for _, call := range turn.ToolCalls {
			result := l.toolset.Invoke(ctx, call)
			outcome.ToolCalls++
			l.logCall(ctx, call, result)

			if call.Name == SaveEvidenceToolName && !result.IsError {
				outcome.ItemsSaved++
				if l.OnItemSaved != nil {
					if err := l.OnItemSaved(ctx, itemDescFromCall(call)); err != nil {
						l.logger.Warn().Err(err).Msg("Progress update failed after item save")
					}
				}
			}
			results = append(results, result)
		}

		messages = append(messages, interfaces.PlannerMessage{
			Role:        "user",
			ToolResults: results,
		})
	}

	outcome.BudgetSpent = true
	l.runLog.Log(ctx, "warn", fmt.Sprintf("Agent loop hit step ceiling (%d steps), %d items saved", steps, outcome.ItemsSaved))
	return outcome, nil
}

// logCall writes the compact one-line audit entry for a tool call
func (l *Loop) logCall(ctx context.Context, call interfaces.ToolCall, result interfaces.ToolCallResult) {
	status := "ok"
	level := "info"
	if result.IsError {
		status = "error"
		level = "warn"
	}
	l.runLog.Log(ctx, level, fmt.Sprintf("tool %s %s in=%s out=%s",
		call.Name, status, truncate(string(call.Input), 120), truncate(result.Content, 160)))
}

// itemDescFromCall extracts the saved item's title for the progress message
func itemDescFromCall(call interfaces.ToolCall) string {
	var in struct {
		Title      string `json:"title"`
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal(call.Input, &in); err != nil {
		return ""
	}
	if in.Title != "" {
		return in.Title
	}
	return in.ExternalID
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
