package interfaces

import (
	"context"
	"encoding/json"
)

// ToolSpec describes one tool offered to the planner for a turn
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]interface{} // JSON schema for the tool input
}

// PlannerMessage is one provider-neutral conversation entry
type PlannerMessage struct {
	Role string // "user" or "assistant"

	// Exactly one of the following is populated
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolCallResult
}

// ToolCall is a single tool invocation requested by the planner
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolCallResult carries a tool's outcome back to the planner.
// Failures are content, not errors - the planner decides how to react.
type ToolCallResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// PlannerTurn is the planner's response for one step
type PlannerTurn struct {
	Text         string
	ToolCalls    []ToolCall
	Done         bool // true when the planner produced a final answer instead of tool calls
	InputTokens  int
	OutputTokens int
}

// Planner is the language-model collaborator. StepTurn drives the
// tool-calling loop; Complete is the plain prompt/response primitive used by
// the criteria matcher and summarizers.
type Planner interface {
	StepTurn(ctx context.Context, system string, messages []PlannerMessage, tools []ToolSpec) (*PlannerTurn, error)
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
}
