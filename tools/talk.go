package tools

import (
	"context"
	"encoding/json"

	"github.com/linanwx/crawd/gateway"
	"github.com/linanwx/crawd/speech"
)

// TalkTool lets the agent speak unprompted, outside any chat turn.
type TalkTool struct {
	gate *speech.Gate
}

// NewTalkTool builds a TalkTool backed by gate.
func NewTalkTool(gate *speech.Gate) *TalkTool {
	return &TalkTool{gate: gate}
}

func (t *TalkTool) Def() gateway.ToolDef {
	return gateway.ToolDef{
		Type: "function",
		Function: gateway.FunctionDef{
			Name:        "talk",
			Description: "Speak on the livestream overlay, outside of any specific chat reply.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string", "description": "What to say."},
				},
				"required": []string{"text"},
			},
		},
	}
}

type talkArgs struct {
	Text string `json:"text"`
}

type talkResult struct {
	Spoken bool `json:"spoken"`
}

func (t *TalkTool) Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a talkArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Text == "" {
		data, _ := json.Marshal(talkResult{Spoken: false})
		return data, nil
	}

	spoken := t.gate.Talk(a.Text)
	data, _ := json.Marshal(talkResult{Spoken: spoken})
	return data, nil
}
