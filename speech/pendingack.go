package speech

import (
	"sync"
	"time"

	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/logger"
)

// pendingAck is a single outstanding utterance: it resolves exactly
// once, either via Ack (the overlay's crawd:talk:done frame) or the
// hard timeout, whichever comes first.
type pendingAck struct {
	done     chan struct{}
	timer    clock.Timer
	resolved bool
}

// pendingAckTable is the coordinator-private map from utterance id to
// its pending ack, written only by the speech gate and its ack
// handler.
type pendingAckTable struct {
	clk     clock.Clock
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*pendingAck
}

func newPendingAckTable(clk clock.Clock, timeout time.Duration) *pendingAckTable {
	return &pendingAckTable{clk: clk, timeout: timeout, entries: make(map[string]*pendingAck)}
}

// register creates a pending entry for id and starts its timeout
// timer, returning a channel that closes when the entry resolves.
func (t *pendingAckTable) register(id string) <-chan struct{} {
	entry := &pendingAck{done: make(chan struct{})}
	entry.timer = t.clk.NewTimer(t.timeout)

	t.mu.Lock()
	t.entries[id] = entry
	t.mu.Unlock()

	go func() {
		<-entry.timer.Chan()
		if t.resolve(id) {
			logger.Warn("overlay ack timed out", "id", id)
		}
	}()

	return entry.done
}

// ack resolves id's pending entry in response to an overlay ack
// frame. Returns true if an entry was found and this call resolved
// it.
func (t *pendingAckTable) ack(id string) bool {
	return t.resolve(id)
}

// resolve closes id's done channel exactly once and removes it from
// the table. Returns true if this call performed the resolution.
func (t *pendingAckTable) resolve(id string) bool {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok || entry.resolved {
		return false
	}
	entry.resolved = true
	entry.timer.Stop()
	close(entry.done)
	return true
}

// has reports whether id is still pending (used by tests to assert
// invariant 4).
func (t *pendingAckTable) has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// count returns the number of utterances still awaiting an ack.
func (t *pendingAckTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
