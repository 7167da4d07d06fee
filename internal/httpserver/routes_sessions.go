// internal/httpserver/routes_sessions.go
//
// Puzzle catalogue and game session routes.
//   - GET  /puzzles                 → list (language, difficulty, tag filters)
//   - GET  /puzzles/{id}            → public fields only
//   - POST /sessions                → create (by puzzle id, or random by filter)
//   - GET  /sessions                → list recent sessions the caller may see
//   - GET  /sessions/{id}           → session view with turn history
//   - GET  /sessions/{id}/summary   → stored end-of-game summary
//   - POST /sessions/{id}/start     → LOBBY → IN_PROGRESS
//   - POST /sessions/{id}/input     → one line of player text
//   - POST /sessions/{id}/abort     → give up
//   - POST /sessions/{id}/autoplay  → let the player agent play
//
// Sessions created while signed in belong to their players; everything
// under /sessions/{id} answers 403 to anyone else. Anonymous sessions are
// open to every caller.

package httpserver

import (
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
	"github.com/robalobadob/turtlesoup/internal/store"
)

// puzzleView is what players may see of a puzzle: no answer, no hints.
type puzzleView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Statement    string   `json:"statement"`
	PublicFacts  []string `json:"public_facts,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Tags         []string `json:"tags"`
	Language     string   `json:"language"`
	MaxHints     int      `json:"max_hints"`
	MaxQuestions int      `json:"max_questions,omitempty"`
}

func newPuzzleView(p *game.Puzzle) puzzleView {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return puzzleView{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Statement:    p.Statement,
		PublicFacts:  p.PublicFacts,
		Difficulty:   p.Difficulty,
		Tags:         tags,
		Language:     p.Language,
		MaxHints:     p.Constraints.MaxHints,
		MaxQuestions: p.Constraints.MaxQuestions,
	}
}

// sessionView is the client's picture of a session.
type sessionView struct {
	ID            string           `json:"session_id"`
	Puzzle        puzzleView       `json:"puzzle"`
	PlayerIDs     []string         `json:"player_ids"`
	State         game.State       `json:"state"`
	QuestionCount int              `json:"question_count"`
	HintCount     int              `json:"hint_count"`
	Score         *int             `json:"score,omitempty"`
	Daily         string           `json:"daily,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	History       []game.TurnEvent `json:"history"`
	Answer        string           `json:"answer,omitempty"`
}

func newSessionView(s *game.GameSession, p *game.Puzzle) sessionView {
	v := sessionView{
		ID:            s.ID,
		Puzzle:        newPuzzleView(p),
		PlayerIDs:     s.PlayerIDs,
		State:         s.State,
		QuestionCount: s.QuestionCount(),
		HintCount:     s.HintCount,
		Score:         s.Score,
		Daily:         s.Daily,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		CompletedAt:   s.CompletedAt,
		History:       s.TurnHistory,
	}
	if v.PlayerIDs == nil {
		v.PlayerIDs = []string{}
	}
	if v.History == nil {
		v.History = []game.TurnEvent{}
	}
	if s.State == game.StateCompleted {
		v.Answer = p.Answer
	}
	return v
}

// sessionListItem is one row of GET /sessions.
type sessionListItem struct {
	ID            string     `json:"session_id"`
	PuzzleID      string     `json:"puzzle_id"`
	PlayerIDs     []string   `json:"player_ids"`
	State         game.State `json:"state"`
	QuestionCount int        `json:"question_count"`
	HintCount     int        `json:"hint_count"`
	Score         *int       `json:"score,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ------------------------------- puzzles -----------------------------------

func puzzleFilter(r *http.Request) puzzles.Filter {
	q := r.URL.Query()
	return puzzles.Filter{
		Language:   q.Get("language"),
		Difficulty: q.Get("difficulty"),
		Tags:       q["tag"],
	}
}

func (s *Server) handleListPuzzles(w http.ResponseWriter, r *http.Request) {
	list, err := s.d.Puzzles.List(r.Context(), puzzleFilter(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []puzzles.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Puzzles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPuzzleView(p))
}

// ------------------------------- sessions ----------------------------------

type createSessionReq struct {
	PuzzleID   string   `json:"puzzle_id"`
	Language   string   `json:"language"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
	Start      bool     `json:"start"`
}

// handleCreateSession creates a session for puzzle_id, or for a random
// puzzle matching the filter when puzzle_id is empty. With start=true the
// intro is returned in the same call.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	puzzleID := strings.TrimSpace(req.PuzzleID)
	if puzzleID == "" {
		p, err := s.d.Puzzles.Random(ctx, puzzles.Filter{Language: req.Language, Difficulty: req.Difficulty, Tags: req.Tags}, rand.New(rand.NewPCG(uint64(s.d.Now().UnixNano()), 0)))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		puzzleID = p.ID
	}

	sess, err := s.d.Engine.CreateSession(ctx, puzzleID, game.NewSessionOptions{PlayerIDs: playerIDs(r)})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Start {
		if _, err := s.d.Engine.Start(ctx, sess.ID); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.writeSession(w, r, http.StatusCreated, sess.ID)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, id string) {
	sess, p, err := s.d.Engine.Snapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, newSessionView(sess, p))
}

// canAccess reports whether the caller may see or drive sess.
func canAccess(r *http.Request, sess *game.GameSession) bool {
	if len(sess.PlayerIDs) == 0 {
		return true
	}
	p := currentPlayer(r)
	return p != nil && slices.Contains(sess.PlayerIDs, p.ID)
}

// authorizeSession writes the error response and returns false unless the
// caller may act on session id.
func (s *Server) authorizeSession(w http.ResponseWriter, r *http.Request, id string) bool {
	sess, _, err := s.d.Engine.Snapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return false
	}
	if !canAccess(r, sess) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		PuzzleID: q.Get("puzzle_id"),
		PlayerID: q.Get("player_id"),
		State:    game.State(strings.ToLower(q.Get("state"))),
		Limit:    50,
	}
	if q.Get("mine") == "1" {
		p := currentPlayer(r)
		if p == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		f.PlayerID = p.ID
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 200 {
		f.Limit = n
	}

	list, err := s.d.Sessions.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]sessionListItem, 0, len(list))
	for _, sess := range list {
		if !canAccess(r, sess) {
			continue
		}
		out = append(out, sessionListItem{
			ID:            sess.ID,
			PuzzleID:      sess.PuzzleID,
			PlayerIDs:     sess.PlayerIDs,
			State:         sess.State,
			QuestionCount: sess.QuestionCount(),
			HintCount:     sess.HintCount,
			Score:         sess.Score,
			UpdatedAt:     sess.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.authorizeSession(w, r, id) {
		return
	}
	s.writeSession(w, r, http.StatusOK, id)
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	if s.d.Memory == nil {
		writeError(w, http.StatusServiceUnavailable, "memory disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if !s.authorizeSession(w, r, id) {
		return
	}
	sum, err := s.d.Memory.Summary(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.authorizeSession(w, r, id) {
		return
	}
	resp, err := s.d.Engine.Start(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type inputReq struct {
	Text string `json:"text"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputReq
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if !s.authorizeSession(w, r, id) {
		return
	}
	resp, err := s.d.Engine.ProcessInput(r.Context(), id, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.authorizeSession(w, r, id) {
		return
	}
	resp, err := s.d.Engine.Abort(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type autoplayReq struct {
	MaxTurns int `json:"max_turns"`
}

type autoplayRes struct {
	Responses []game.Response `json:"responses"`
	Session   sessionView     `json:"session"`
}

func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	var req autoplayReq
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	turns := s.cfg.AutoplayTurns
	if req.MaxTurns > 0 && (turns <= 0 || req.MaxTurns < turns) {
		turns = req.MaxTurns
	}
	id := chi.URLParam(r, "id")
	if !s.authorizeSession(w, r, id) {
		return
	}
	responses, err := s.d.Engine.AutoPlay(r.Context(), id, turns, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, p, err := s.d.Engine.Snapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if responses == nil {
		responses = []game.Response{}
	}
	writeJSON(w, http.StatusOK, autoplayRes{Responses: responses, Session: newSessionView(sess, p)})
}

// -------------------------------- stats ------------------------------------

func (s *Server) mountStats(r chi.Router) {
	r.Get("/stats/puzzles/{id}", s.handlePuzzleStats)
	r.With(s.requireAuth).Get("/stats/me", s.handleMyStats)
}

func (s *Server) handlePuzzleStats(w http.ResponseWriter, r *http.Request) {
	if s.d.Memory == nil {
		writeError(w, http.StatusServiceUnavailable, "memory disabled")
		return
	}
	st, err := s.d.Memory.PuzzleStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleMyStats lists the caller's finished sessions with their summaries.
func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	if s.d.Memory == nil {
		writeError(w, http.StatusServiceUnavailable, "memory disabled")
		return
	}
	me := currentPlayer(r)
	sums, err := s.d.Memory.PlayerSessions(r.Context(), me.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	solved := 0
	for _, sum := range sums {
		if sum.Success {
			solved++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          me.ID,
		"gamesPlayed": len(sums),
		"solved":      solved,
		"sessions":    sums,
	})
}
