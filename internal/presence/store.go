// Package presence holds the in-memory position map consumed by proximity
// routing. Positions are pushed by the transport layer; the broker only ever
// reads them.
package presence

import (
	"sync"

	"chat-broker/internal/models"
)

// Store maps participant ids to their last reported position.
type Store struct {
	mu        sync.RWMutex
	positions map[string]models.Position
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{positions: make(map[string]models.Position)}
}

// Update records the participant's position.
func (s *Store) Update(id string, pos models.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[id] = pos
}

// Remove drops the participant's position on departure.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, id)
}

// Position resolves the participant's last known position. A participant
// that never reported one is simply absent.
func (s *Store) Position(id string) (models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[id]
	return pos, ok
}
