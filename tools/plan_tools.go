package tools

import (
	"context"
	"encoding/json"

	"github.com/linanwx/crawd/autonomy"
	"github.com/linanwx/crawd/gateway"
)

// planResult mirrors autonomy.Plan for JSON responses, independent of
// the engine's internal representation.
type planResult struct {
	ID     string   `json:"id"`
	Goal   string   `json:"goal"`
	Steps  []string `json:"steps"`
	Status string   `json:"status"`
}

func toPlanResult(p *autonomy.Plan) *planResult {
	if p == nil {
		return nil
	}
	steps := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = s.Description
	}
	return &planResult{ID: p.ID, Goal: p.Goal, Steps: steps, Status: string(p.Status)}
}

// SetPlanTool replaces the active plan with a new goal and step list.
type SetPlanTool struct {
	engine *autonomy.Engine
}

func NewSetPlanTool(engine *autonomy.Engine) *SetPlanTool { return &SetPlanTool{engine: engine} }

func (t *SetPlanTool) Def() gateway.ToolDef {
	return gateway.ToolDef{
		Type: "function",
		Function: gateway.FunctionDef{
			Name:        "setPlan",
			Description: "Start a new plan, abandoning any plan currently in progress.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"goal":  map[string]any{"type": "string"},
					"steps": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"goal", "steps"},
			},
		},
	}
}

type setPlanArgs struct {
	Goal  string   `json:"goal"`
	Steps []string `json:"steps"`
}

func (t *SetPlanTool) Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a setPlanArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Goal == "" || len(a.Steps) == 0 {
		return errorResult("invalidToolArgs"), nil
	}
	plan := t.engine.SetPlan(a.Goal, a.Steps)
	data, _ := json.Marshal(toPlanResult(plan))
	return data, nil
}

// MarkStepDoneTool marks a step of the active plan complete.
type MarkStepDoneTool struct {
	engine *autonomy.Engine
}

func NewMarkStepDoneTool(engine *autonomy.Engine) *MarkStepDoneTool {
	return &MarkStepDoneTool{engine: engine}
}

func (t *MarkStepDoneTool) Def() gateway.ToolDef {
	return gateway.ToolDef{
		Type: "function",
		Function: gateway.FunctionDef{
			Name:        "markStepDone",
			Description: "Mark a step of the active plan as done, by its index.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"stepIndex": map[string]any{"type": "integer"},
				},
				"required": []string{"stepIndex"},
			},
		},
	}
}

type markStepDoneArgs struct {
	StepIndex int `json:"stepIndex"`
}

func (t *MarkStepDoneTool) Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a markStepDoneArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errorResult("invalidToolArgs"), nil
	}
	if err := t.engine.MarkStepDone(a.StepIndex); err != nil {
		return errorResult(err.Error()), nil
	}
	data, _ := json.Marshal(toPlanResult(t.engine.GetPlan()))
	return data, nil
}

// AbandonPlanTool abandons the active plan without completing it.
type AbandonPlanTool struct {
	engine *autonomy.Engine
}

func NewAbandonPlanTool(engine *autonomy.Engine) *AbandonPlanTool {
	return &AbandonPlanTool{engine: engine}
}

func (t *AbandonPlanTool) Def() gateway.ToolDef {
	return gateway.ToolDef{
		Type: "function",
		Function: gateway.FunctionDef{
			Name:        "abandonPlan",
			Description: "Abandon the active plan without completing it.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (t *AbandonPlanTool) Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	if err := t.engine.AbandonPlan(); err != nil {
		return errorResult(err.Error()), nil
	}
	return json.Marshal(map[string]bool{"abandoned": true})
}

// GetPlanTool returns the most recent plan, if any, whatever its status
// (active, completed or abandoned).
type GetPlanTool struct {
	engine *autonomy.Engine
}

func NewGetPlanTool(engine *autonomy.Engine) *GetPlanTool { return &GetPlanTool{engine: engine} }

func (t *GetPlanTool) Def() gateway.ToolDef {
	return gateway.ToolDef{
		Type: "function",
		Function: gateway.FunctionDef{
			Name:        "getPlan",
			Description: "Return the most recent plan and its status (active, completed or abandoned), if any.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (t *GetPlanTool) Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(toPlanResult(t.engine.GetPlan()))
}
