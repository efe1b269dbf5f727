package overlay

// Channel names the six outbound overlay topics (§6) plus the two
// inbound frame types subscribers may send back.
type Channel string

const (
	ChannelTalk      Channel = "crawd:talk"
	ChannelReplyTurn Channel = "crawd:reply-turn"
	ChannelChat      Channel = "crawd:chat"
	ChannelStatus    Channel = "crawd:status"
	ChannelMcap      Channel = "crawd:mcap"
	ChannelPlan      Channel = "crawd:plan"

	ChannelTalkDone Channel = "crawd:talk:done"
	ChannelMockChat Channel = "crawd:mock-chat"
)

// envelope is the wire frame every message (inbound or outbound) is
// wrapped in: {channel, payload}.
type envelope struct {
	Channel Channel `json:"channel"`
	Payload any     `json:"payload"`
}

// TalkPayload is the crawd:talk payload.
type TalkPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ChatTurnContext is the chat message a reply-turn is responding to.
type ChatTurnContext struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ReplyTurnPayload is the crawd:reply-turn payload.
type ReplyTurnPayload struct {
	ID         string          `json:"id"`
	Chat       ChatTurnContext `json:"chat"`
	BotMessage string          `json:"botMessage"`
}

// StatusPayload is the crawd:status payload. Status is a superset of
// the state-machine states: sleep/idle/active are real states;
// vibing/chatting/planning are transient UI hints with no
// state-machine meaning.
type StatusPayload struct {
	Status string `json:"status"`
}

// McapPayload is the crawd:mcap payload, opaque data passed through
// from an external collaborator.
type McapPayload struct {
	Mcap float64 `json:"mcap"`
}

// PlanEventPayload is the crawd:plan payload.
type PlanEventPayload struct {
	Type   string `json:"type"` // created | completed | abandoned
	PlanID string `json:"planId"`
	Goal   string `json:"goal,omitempty"`
}

// talkDoneFrame is the inbound ack frame's payload shape.
type talkDoneFrame struct {
	ID string `json:"id"`
}

// mockChatFrame is the inbound test-fixture frame's payload shape.
type mockChatFrame struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}
