// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for ephemeral sessions in development and tests, or when durability
// is not required.
//
// Characteristics:
//   - Sessions keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Deep copies on the way in and out.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"

	"github.com/robalobadob/turtlesoup/internal/game"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex                 // guards sessions
	sessions map[string]*game.GameSession // keyed by GameSession.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*game.GameSession)}
}

// Save adds or updates the session in the map.
func (m *memory) Save(ctx context.Context, s *game.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Load looks up a session by ID.
func (m *memory) Load(ctx context.Context, id string) (*game.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *memory) List(ctx context.Context, f Filter) ([]*game.GameSession, error) {
	m.mu.RLock()
	out := make([]*game.GameSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if f.Match(s) {
			out = append(out, s.Clone())
		}
	}
	m.mu.RUnlock()

	sortRecent(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}
