// Package speech implements the C6 speech turn gate: it turns an
// agent utterance into an overlay event and suspends the caller until
// the overlay acknowledges playback finished or a hard timeout fires.
package speech

import (
	"time"

	"github.com/google/uuid"

	"github.com/linanwx/crawd/clock"
)

const defaultAckTimeout = 60 * time.Second

// Turn is the ephemeral reply context a "reply" tool call carries.
type Turn struct {
	Username string
	Message  string
}

// EmitTalk publishes a crawd:talk event to overlay subscribers.
type EmitTalk func(id, message string)

// EmitReplyTurn publishes a crawd:reply-turn event to overlay
// subscribers.
type EmitReplyTurn func(id string, turn Turn, botMessage string)

// NotifySpeech is the gate's one-way port back into the coordinator:
// wake if not active, else refresh activity. Modeled as a callback
// rather than a back-reference to avoid a structural cycle.
type NotifySpeech func()

// Gate is the speech turn gate. One Gate serves the whole coordinator
// since at most one utterance may be in flight at a time (guaranteed
// by the dispatcher serializing the tool calls that create turns).
type Gate struct {
	pending      *pendingAckTable
	emitTalk     EmitTalk
	emitReply    EmitReplyTurn
	notifySpeech NotifySpeech
}

// New builds a Gate. A non-positive ackTimeout falls back to the 60s
// default (§4.6).
func New(clk clock.Clock, ackTimeout time.Duration, emitTalk EmitTalk, emitReply EmitReplyTurn, notifySpeech NotifySpeech) *Gate {
	if ackTimeout <= 0 {
		ackTimeout = defaultAckTimeout
	}
	return &Gate{
		pending:      newPendingAckTable(clk, ackTimeout),
		emitTalk:     emitTalk,
		emitReply:    emitReply,
		notifySpeech: notifySpeech,
	}
}

// Talk emits a talk event and blocks until it is acked or times out.
// Empty text is rejected as a no-op per the invalidToolArgs rule.
func (g *Gate) Talk(text string) (spoken bool) {
	if text == "" {
		return false
	}
	g.notifySpeech()

	id := uuid.NewString()
	done := g.pending.register(id)
	g.emitTalk(id, text)
	<-done
	return true
}

// Reply emits a reply-turn event carrying the triggering chat message
// and blocks until it is acked or times out.
func (g *Gate) Reply(text string, turn Turn) (spoken bool) {
	if text == "" {
		return false
	}
	g.notifySpeech()

	id := uuid.NewString()
	done := g.pending.register(id)
	g.emitReply(id, turn, text)
	<-done
	return true
}

// Ack resolves the pending utterance id in response to an overlay
// crawd:talk:done frame.
func (g *Gate) Ack(id string) bool {
	return g.pending.ack(id)
}

// HasPending reports whether id is still awaiting an ack (used by
// tests to assert invariant 4: resolved exactly once).
func (g *Gate) HasPending(id string) bool {
	return g.pending.has(id)
}

// PendingCount returns how many utterances are currently awaiting an
// ack, for operator visibility.
func (g *Gate) PendingCount() int {
	return g.pending.count()
}
