// Package batch implements the leading-edge chat throttle: the first
// message in a quiet period dispatches immediately, subsequent
// messages accumulate until the window expires and flush together.
package batch

import (
	"sync"
	"time"

	"github.com/linanwx/crawd/chatsource"
	"github.com/linanwx/crawd/clock"
)

const defaultStartupGraceMs = 30_000

// OnBatch is invoked (from the batcher's own goroutine) whenever a
// batch is ready to dispatch. dispatchAt is the wall-clock moment of
// dispatch, used to compute each batch's Δs age header.
type OnBatch func(messages []chatsource.ChatMessage, dispatchAt time.Time)

// Batcher implements the leading-edge-throttle-with-cooldown contract
// of §4.4: a message with no active window dispatches synchronously
// as a batch of one and opens a cooldown window; messages arriving
// during the window buffer; on expiry a non-empty buffer flushes and
// restarts the window, an empty buffer closes it.
type Batcher struct {
	windowMs  time.Duration
	startupMs time.Duration
	clk       clock.Clock
	onBatch   OnBatch
	startedAt time.Time
	recent    *RecentIndex

	mu         sync.Mutex
	buffer     []chatsource.ChatMessage
	windowOpen bool
	timer      clock.Timer
}

// New builds a Batcher. windowMs is the cooldown window duration
// (§4.4 default 20000); startedAt marks process start for the
// startup-grace drop rule; recentCap bounds the short-id lookup index.
func New(clk clock.Clock, windowMs time.Duration, startedAt time.Time, recentCap int, onBatch OnBatch) *Batcher {
	if recentCap <= 0 {
		recentCap = 200
	}
	return &Batcher{
		windowMs:  windowMs,
		startupMs: defaultStartupGraceMs * time.Millisecond,
		clk:       clk,
		onBatch:   onBatch,
		startedAt: startedAt,
		recent:    NewRecentIndex(recentCap),
	}
}

// Ingress delivers one chat message into the batcher.
func (b *Batcher) Ingress(msg chatsource.ChatMessage) {
	grace := b.startedAt.Add(-b.startupMs)
	if time.UnixMilli(msg.ArrivalMs).Before(grace) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.windowOpen {
		b.windowOpen = true
		b.dispatchLocked([]chatsource.ChatMessage{msg})
		b.timer = b.clk.NewTimer(b.windowMs)
		go b.watchExpiry(b.timer)
		return
	}

	b.buffer = append(b.buffer, msg)
}

func (b *Batcher) watchExpiry(t clock.Timer) {
	<-t.Chan()
	b.onExpire()
}

func (b *Batcher) onExpire() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buffer) == 0 {
		b.windowOpen = false
		return
	}

	pending := b.buffer
	b.buffer = nil
	b.dispatchLocked(pending)
	b.timer = b.clk.NewTimer(b.windowMs)
	go b.watchExpiry(b.timer)
}

func (b *Batcher) dispatchLocked(messages []chatsource.ChatMessage) {
	for _, m := range messages {
		b.recent.Put(m.ShortID, m)
	}
	now := b.clk.Now()
	if b.onBatch != nil {
		b.onBatch(messages, now)
	}
}

// Lookup resolves a short id to the chat message it indexed, if it is
// still within the 200-entry recent window.
func (b *Batcher) Lookup(shortID string) (chatsource.ChatMessage, bool) {
	return b.recent.Get(shortID)
}
