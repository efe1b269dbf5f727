package tools

import (
	"context"
	"encoding/json"

	"github.com/linanwx/crawd/gateway"
	"github.com/linanwx/crawd/speech"
)

// ReplyTool lets the agent speak in direct response to a specific chat
// message, carrying that message's username and body as reply context.
type ReplyTool struct {
	gate *speech.Gate
}

// NewReplyTool builds a ReplyTool backed by gate.
func NewReplyTool(gate *speech.Gate) *ReplyTool {
	return &ReplyTool{gate: gate}
}

func (t *ReplyTool) Def() gateway.ToolDef {
	return gateway.ToolDef{
		Type: "function",
		Function: gateway.FunctionDef{
			Name:        "reply",
			Description: "Reply on the livestream overlay to a specific chat message.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":     map[string]any{"type": "string", "description": "What to say."},
					"username": map[string]any{"type": "string", "description": "Author of the chat message being replied to."},
					"message":  map[string]any{"type": "string", "description": "Body of the chat message being replied to."},
				},
				"required": []string{"text", "username", "message"},
			},
		},
	}
}

type replyArgs struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type replyResult struct {
	Spoken bool `json:"spoken"`
}

func (t *ReplyTool) Run(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a replyArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Text == "" {
		data, _ := json.Marshal(replyResult{Spoken: false})
		return data, nil
	}

	turn := speech.Turn{Username: a.Username, Message: a.Message}
	spoken := t.gate.Reply(a.Text, turn)
	data, _ := json.Marshal(replyResult{Spoken: spoken})
	return data, nil
}
