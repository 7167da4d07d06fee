// internal/game/session.go
//
// Session lifecycle: construction, the state machine and typed state errors.
//
//   LOBBY ──start──▶ IN_PROGRESS ──correct──▶ COMPLETED
//     │                   └──────quit──────▶ ABORTED
//     └────────────abort────────────────────▶ ABORTED
//
// COMPLETED and ABORTED are terminal.

package game

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidState matches every *StateError under errors.Is.
var ErrInvalidState = errors.New("invalid session state")

// StateError reports a transition the state machine does not allow.
type StateError struct {
	SessionID string
	Op        string
	State     State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session %s: cannot %s from state %s", e.SessionID, e.Op, e.State)
}

// Is lets errors.Is(err, ErrInvalidState) match.
func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// NewSession returns a LOBBY session for puzzle p.
func NewSession(id string, p *Puzzle, playerIDs []string, now time.Time) *GameSession {
	return &GameSession{
		ID:          id,
		PuzzleID:    p.ID,
		PlayerIDs:   playerIDs,
		State:       StateLobby,
		TurnHistory: []TurnEvent{},
		CorpusID:    p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

var allowed = map[State][]State{
	StateLobby:      {StateInProgress, StateAborted},
	StateInProgress: {StateCompleted, StateAborted},
}

// canTransition reports whether from→to is a legal edge.
func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *GameSession) transition(op string, to State, now time.Time) error {
	if !canTransition(s.State, to) {
		return &StateError{SessionID: s.ID, Op: op, State: s.State}
	}
	s.State = to
	s.UpdatedAt = now
	return nil
}

// Start moves LOBBY → IN_PROGRESS.
func (s *GameSession) Start(now time.Time) error {
	return s.transition("start", StateInProgress, now)
}

// Complete moves IN_PROGRESS → COMPLETED and records the score.
func (s *GameSession) Complete(score int, now time.Time) error {
	if err := s.transition("complete", StateCompleted, now); err != nil {
		return err
	}
	s.Score = &score
	s.CompletedAt = &now
	return nil
}

// Abort moves LOBBY or IN_PROGRESS → ABORTED.
func (s *GameSession) Abort(now time.Time) error {
	if err := s.transition("abort", StateAborted, now); err != nil {
		return err
	}
	s.CompletedAt = &now
	return nil
}

// appendEvents stamps indexes on evs and appends them in order.
func (s *GameSession) appendEvents(now time.Time, evs ...TurnEvent) []TurnEvent {
	out := make([]TurnEvent, 0, len(evs))
	for _, e := range evs {
		e.TurnIndex = len(s.TurnHistory)
		e.Timestamp = now
		s.TurnHistory = append(s.TurnHistory, e)
		out = append(out, e)
	}
	s.UpdatedAt = now
	return out
}
