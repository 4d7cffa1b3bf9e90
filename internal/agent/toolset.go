// -----------------------------------------------------------------------
// Toolset - closed set of typed tools offered to the planner
// -----------------------------------------------------------------------

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/models"
)

// SaveEvidenceToolName is the canonical "item saved" tool. The loop counts a
// successful call to it as one processed item for progress purposes.
const SaveEvidenceToolName = "save_evidence"

// Tool is one planner-invokable operation. Invoke errors are reported back to
// the planner as structured failure results, never propagated up the loop.
type Tool interface {
	Spec() interfaces.ToolSpec
	Invoke(ctx context.Context, input json.RawMessage) (string, error)
}

// Binding carries the per-job facts shared by every tool: who the sync is
// for, where to look, and how the dedup gate should treat existing records.
type Binding struct {
	Username     string
	Repositories []string
	Projects     []string
	Since        time.Time
	Role         models.EvidenceRole
	DedupMode    models.DedupMode
	SyncJobID    string
}

// Toolset is the lookup table the loop dispatches planner tool calls through
type Toolset struct {
	order []string
	tools map[string]Tool
}

// NewToolset creates an empty toolset
func NewToolset() *Toolset {
	return &Toolset{tools: make(map[string]Tool)}
}

// Register adds a tool, keeping registration order for the planner menu
func (ts *Toolset) Register(tool Tool) {
	name := tool.Spec().Name
	if _, exists := ts.tools[name]; !exists {
		ts.order = append(ts.order, name)
	}
	ts.tools[name] = tool
}

// Specs returns the tool menu in registration order
func (ts *Toolset) Specs() []interfaces.ToolSpec {
	specs := make([]interfaces.ToolSpec, 0, len(ts.order))
	for _, name := range ts.order {
		specs = append(specs, ts.tools[name].Spec())
	}
	return specs
}

// Invoke dispatches one planner tool call. Unknown tools and tool errors both
// come back as error-flagged results so the planner can adjust course.
func (ts *Toolset) Invoke(ctx context.Context, call interfaces.ToolCall) interfaces.ToolCallResult {
	tool, ok := ts.tools[call.Name]
	if !ok {
		return interfaces.ToolCallResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("unknown tool: %s", call.Name),
			IsError:    true,
		}
	}

	content, err := tool.Invoke(ctx, call.Input)
	if err != nil {
		return interfaces.ToolCallResult{
			ToolCallID: call.ID,
			Content:    err.Error(),
			IsError:    true,
		}
	}
	return interfaces.ToolCallResult{ToolCallID: call.ID, Content: content}
}

// objectSchema builds a JSON schema for a flat object with the given
// properties and required field names
func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func stringArrayProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}

func toJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}
