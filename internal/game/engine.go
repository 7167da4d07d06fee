// internal/game/engine.go
//
// Multi-session front door of the game package.
// Responsibilities:
//   - Create sessions for a puzzle (uuid ids) and persist them in LOBBY.
//   - Keep one Runner per live session; load and resume persisted sessions on demand.
//   - Forward Start / ProcessInput / AgentTurn / Abort to the session's Runner.
//   - Run the automated player for a bounded number of turns (AutoPlay).
//
// Runners for different sessions share no mutable state; the registry map is
// the only thing guarded by the engine mutex.

package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PuzzleSource looks puzzles up by id.
type PuzzleSource interface {
	Get(ctx context.Context, id string) (*Puzzle, error)
}

// SessionRepo is the persistence the engine needs.
type SessionRepo interface {
	SessionSaver
	Load(ctx context.Context, id string) (*GameSession, error)
}

// Engine manages many concurrent sessions.
type Engine struct {
	puzzles  PuzzleSource
	store    SessionRepo
	deps     Deps
	settings Settings
	newID    func() string

	mu      sync.Mutex
	runners map[string]*Runner
}

// NewEngine wires an engine. deps.Store is replaced by store.
func NewEngine(puzzles PuzzleSource, store SessionRepo, deps Deps, settings Settings) *Engine {
	deps.Store = store
	return &Engine{
		puzzles:  puzzles,
		store:    store,
		deps:     deps.withDefaults(),
		settings: settings,
		newID:    uuid.NewString,
		runners:  make(map[string]*Runner),
	}
}

// NewSessionOptions tune CreateSession.
type NewSessionOptions struct {
	PlayerIDs []string
	Daily     string // date key when playing the daily puzzle
}

// CreateSession creates and persists a LOBBY session for puzzleID.
func (e *Engine) CreateSession(ctx context.Context, puzzleID string, opts NewSessionOptions) (*GameSession, error) {
	p, err := e.puzzles.Get(ctx, puzzleID)
	if err != nil {
		return nil, fmt.Errorf("loading puzzle %s: %w", puzzleID, err)
	}
	s := NewSession(e.newID(), p, opts.PlayerIDs, e.deps.Now())
	s.Daily = opts.Daily
	if err := e.store.Save(ctx, s.Clone()); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	e.mu.Lock()
	e.runners[s.ID] = NewRunner(s, p, e.deps, e.settings)
	e.mu.Unlock()
	return s.Clone(), nil
}

// Runner returns the live runner for id, resuming it from the store if needed.
// The store and puzzle lookups run without the registry lock; when two
// callers resume the same id at once the first runner registered wins.
func (e *Engine) Runner(ctx context.Context, id string) (*Runner, error) {
	e.mu.Lock()
	r, ok := e.runners[id]
	e.mu.Unlock()
	if ok {
		return r, nil
	}

	s, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	p, err := e.puzzles.Get(ctx, s.PuzzleID)
	if err != nil {
		return nil, fmt.Errorf("loading puzzle %s: %w", s.PuzzleID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.runners[id]; ok {
		return r, nil
	}
	r = NewRunner(s, p, e.deps, e.settings)
	e.runners[id] = r
	return r, nil
}

// Start starts session id.
func (e *Engine) Start(ctx context.Context, id string) (Response, error) {
	r, err := e.Runner(ctx, id)
	if err != nil {
		return Response{}, err
	}
	return r.Start(ctx)
}

// ProcessInput feeds one line of player text to session id.
func (e *Engine) ProcessInput(ctx context.Context, id, text string) (Response, error) {
	r, err := e.Runner(ctx, id)
	if err != nil {
		return Response{}, err
	}
	return r.ProcessInput(ctx, text)
}

// AgentTurn lets the automated player move in session id.
func (e *Engine) AgentTurn(ctx context.Context, id string) (Response, error) {
	r, err := e.Runner(ctx, id)
	if err != nil {
		return Response{}, err
	}
	return r.AgentTurn(ctx)
}

// Abort ends session id without a solution.
func (e *Engine) Abort(ctx context.Context, id string) (Response, error) {
	r, err := e.Runner(ctx, id)
	if err != nil {
		return Response{}, err
	}
	return r.Abort(ctx)
}

// Snapshot returns a copy of session id and its puzzle.
func (e *Engine) Snapshot(ctx context.Context, id string) (*GameSession, *Puzzle, error) {
	r, err := e.Runner(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return r.Snapshot(), r.Puzzle(), nil
}

// Evict drops finished runners from memory; they stay in the store.
// Runners busy with a turn are skipped and looked at on the next call.
func (e *Engine) Evict() int {
	e.mu.Lock()
	candidates := make(map[string]*Runner, len(e.runners))
	for id, r := range e.runners {
		candidates[id] = r
	}
	e.mu.Unlock()

	var done []string
	for id, r := range candidates {
		if r.idleAndTerminal() {
			done = append(done, id)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, id := range done {
		if e.runners[id] == candidates[id] {
			delete(e.runners, id)
			n++
		}
	}
	return n
}

// AutoPlay lets the agent play session id for at most maxTurns turns.
// onResponse, when set, sees every response as it happens.
func (e *Engine) AutoPlay(ctx context.Context, id string, maxTurns int, onResponse func(Response)) ([]Response, error) {
	r, err := e.Runner(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []Response
	emit := func(resp Response) {
		out = append(out, resp)
		if onResponse != nil {
			onResponse(resp)
		}
	}

	if r.Snapshot().State == StateLobby {
		resp, err := r.Start(ctx)
		if err != nil {
			return out, err
		}
		emit(resp)
	}
	for turn := 0; turn < maxTurns; turn++ {
		if r.Snapshot().State.Terminal() {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		resp, err := r.AgentTurn(ctx)
		if err != nil {
			return out, err
		}
		emit(resp)
		if resp.GameOver {
			break
		}
	}
	return out, nil
}
