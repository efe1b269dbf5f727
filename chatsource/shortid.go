package chatsource

import "github.com/google/uuid"

// NewID returns a fresh globally-unique message id and its six
// character short id (the id's first six hex digits, dashes
// stripped), used as a reply handle in agent prompts.
func NewID() (id, shortID string) {
	full := uuid.NewString()
	compact := make([]byte, 0, len(full))
	for _, r := range full {
		if r != '-' {
			compact = append(compact, byte(r))
		}
	}
	if len(compact) < 6 {
		return full, string(compact)
	}
	return full, string(compact[:6])
}
