// Package broker implements the server-authoritative message broker:
// participant registry, validation, rate limiting, channel routing and
// bounded history.
//
// Lock order across the package is Registry before History before the
// broker's per-submission state. No method takes two of those locks at once
// except through that order.
package broker

import (
	"sync"
	"time"
)

// Registry tracks the currently connected participants and per-participant
// rate-limit bookkeeping. Iteration order is registration order, which keeps
// routing deterministic.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	present  map[string]struct{}
	lastSeen map[string]time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		present:  make(map[string]struct{}),
		lastSeen: make(map[string]time.Time),
	}
}

// Register adds a participant. Registering an already-present id is a no-op.
func (r *Registry) Register(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.present[id]; ok {
		return
	}
	r.present[id] = struct{}{}
	r.order = append(r.order, id)
}

// Unregister removes a participant and purges its rate-limit entry in the
// same critical section, so a mid-flight submission can never observe the id
// as registered while its tracking entry lingers. Unknown ids are a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.present[id]; !ok {
		return
	}
	delete(r.present, id)
	delete(r.lastSeen, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// IsRegistered reports whether the participant is currently connected.
func (r *Registry) IsRegistered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.present[id]
	return ok
}

// All returns the registered participant ids in registration order.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// LastMessageTime returns the last accepted-message time for the participant.
// A missing entry means the participant has never sent an accepted message
// (or has since departed) and is reported as absent, never as an error.
func (r *Registry) LastMessageTime(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lastSeen[id]
	return t, ok
}

// Touch records an accepted-message time. Touching an unregistered id is a
// no-op: a participant that departed mid-submission must not leave a
// dangling tracking entry behind.
func (r *Registry) Touch(id string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.present[id]; !ok {
		return
	}
	r.lastSeen[id] = t
}
