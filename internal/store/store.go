// internal/store/store.go
//
// Session persistence contract shared by every backend.
// Backends:
//   - memory (this package): map + RWMutex, lost on restart.
//   - store/sqlite: the app database (mattn/go-sqlite3).
//   - store/postgres: pgxpool, selected when DATABASE_URL is set.
//
// Every backend returns deep copies, so callers never share a *GameSession
// with the store, and reports unknown ids with ErrNotFound.

package store

import (
	"context"
	"errors"
	"slices"
	"sort"

	"github.com/robalobadob/turtlesoup/internal/game"
)

// ErrNotFound is returned by Load and Delete for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Store persists game sessions.
type Store interface {
	// Save inserts or replaces the session with s.ID.
	Save(ctx context.Context, s *game.GameSession) error

	// Load returns the session with id, or ErrNotFound.
	Load(ctx context.Context, id string) (*game.GameSession, error)

	// List returns sessions matching f, most recently updated first.
	List(ctx context.Context, f Filter) ([]*game.GameSession, error)

	// Delete removes the session with id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	PuzzleID string
	PlayerID string
	State    game.State
	Limit    int
}

// Match reports whether s passes f. SQL backends push the same predicate
// into their WHERE clause.
func (f Filter) Match(s *game.GameSession) bool {
	if f.PuzzleID != "" && s.PuzzleID != f.PuzzleID {
		return false
	}
	if f.PlayerID != "" && !slices.Contains(s.PlayerIDs, f.PlayerID) {
		return false
	}
	if f.State != "" && s.State != f.State {
		return false
	}
	return true
}

// sortRecent orders sessions by UpdatedAt desc, then ID for stability.
func sortRecent(out []*game.GameSession) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
}
