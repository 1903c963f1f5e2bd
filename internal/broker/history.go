package broker

import (
	"sync"

	"chat-broker/internal/models"
)

// History is a bounded, insertion-ordered log of accepted messages. All
// channels share the single log; eviction is strictly oldest-first.
type History struct {
	mu      sync.RWMutex
	entries []models.Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append inserts the message at the tail and evicts from the head while the
// log exceeds limit. A limit of zero or less keeps nothing.
func (h *History) Append(msg models.Message, limit int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, msg)
	h.trimLocked(limit)
}

// TrimTo evicts oldest entries until the log fits the limit. Used when the
// configured capacity shrinks.
func (h *History) TrimTo(limit int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trimLocked(limit)
}

func (h *History) trimLocked(limit int) {
	if limit < 0 {
		limit = 0
	}
	for len(h.entries) > limit {
		h.entries = h.entries[1:]
	}
}

// Recent returns the last count entries in original order. A count of zero
// or less, or one at least the log size, returns the full log.
func (h *History) Recent(count int) []models.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	start := 0
	if count > 0 && count < len(h.entries) {
		start = len(h.entries) - count
	}
	out := make([]models.Message, len(h.entries)-start)
	copy(out, h.entries[start:])
	return out
}

// Clear empties the log.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Len returns the number of retained messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
