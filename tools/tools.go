// Package tools implements the agent-facing tool surface: talk,
// reply, and the plan-management tools (setPlan, markStepDone,
// abandonPlan, getPlan). Each tool's Run result is the JSON payload
// returned to the caller over the gateway's node.invoke.request
// bridge; the control-plane HTTP API calls the speech gate and the
// engine directly rather than going through these tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/linanwx/crawd/gateway"
	"github.com/linanwx/crawd/logger"
)

// Tool is the interface every agent-facing tool implements.
type Tool interface {
	Def() gateway.ToolDef
	Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// Registry holds registered tools, keyed by their declared name.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, indexed by its Def().Function.Name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Def().Function.Name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Defs returns every registered tool's definition, for advertising to
// the gateway at handshake time.
func (r *Registry) Defs() []gateway.ToolDef {
	defs := make([]gateway.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Def())
	}
	return defs
}

// Run executes a tool by name, returning its JSON result payload.
func (r *Registry) Run(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	t, ok := r.tools[name]
	if !ok {
		logger.Error("tool not found", "tool", name)
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t.Run(ctx, args)
}

// Names returns the names of every registered tool, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func errorResult(message string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": message})
	return data
}
