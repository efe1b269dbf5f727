package batch

import (
	"sync"

	"github.com/linanwx/crawd/chatsource"
)

// RecentIndex is a bounded FIFO-eviction map from short id to the
// chat message it was assigned to, used so agent prompts can resolve
// "[abc123]" reply targets after a batch has already been dispatched.
type RecentIndex struct {
	cap int

	mu    sync.Mutex
	order []string
	byID  map[string]chatsource.ChatMessage
}

// NewRecentIndex builds an index retaining at most capacity entries.
func NewRecentIndex(capacity int) *RecentIndex {
	return &RecentIndex{cap: capacity, byID: make(map[string]chatsource.ChatMessage)}
}

// Put indexes msg under shortID, evicting the oldest entry if the
// index is at capacity.
func (r *RecentIndex) Put(shortID string, msg chatsource.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[shortID]; !exists {
		r.order = append(r.order, shortID)
	}
	r.byID[shortID] = msg

	for len(r.order) > r.cap {
		evict := r.order[0]
		r.order = r.order[1:]
		delete(r.byID, evict)
	}
}

// Get looks up a message by its short id.
func (r *RecentIndex) Get(shortID string) (chatsource.ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.byID[shortID]
	return msg, ok
}
