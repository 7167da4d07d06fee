// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily puzzle.
// Exposes three endpoints under /daily:
//   - GET  /daily             → today's puzzle (public fields) and whether the caller played it
//   - POST /daily/session     → start (or resume) today's session
//   - GET  /daily/leaderboard → top results for today (or ?date=YYYY-MM-DD)
//
// Guests may play, but only signed-in players are recorded: the result row
// is written by the engine's finish hook when the session completes, and a
// player who already has a row for the date is turned away.

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/turtlesoup/internal/daily"
	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/store"
)

func (s *Server) mountDaily(r chi.Router) {
	if s.d.Daily == nil || s.d.Results == nil {
		return
	}
	r.Route("/daily", func(r chi.Router) {
		r.Get("/", s.handleDaily)
		r.Post("/session", s.handleDailySession)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

type dailyRes struct {
	Date   string     `json:"date"`
	Puzzle puzzleView `json:"puzzle"`
	Played bool       `json:"played"`
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date, p, err := s.d.Daily.Puzzle(r.Context(), s.d.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := dailyRes{Date: date, Puzzle: newPuzzleView(p)}
	if me := currentPlayer(r); me != nil {
		if res.Played, err = s.d.Results.AlreadyPlayed(r.Context(), me.ID, date); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDailySession reuses the caller's unfinished daily session for today
// if there is one; otherwise it creates and starts a new one.
func (s *Server) handleDailySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, p, err := s.d.Daily.Puzzle(ctx, s.d.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if me := currentPlayer(r); me != nil {
		played, err := s.d.Results.AlreadyPlayed(ctx, me.ID, date)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if played {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "already_played", "date": date})
			return
		}
		open, err := s.d.Sessions.List(ctx, store.Filter{PuzzleID: p.ID, PlayerID: me.ID})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, sess := range open {
			if sess.Daily == date && !sess.State.Terminal() {
				s.writeSession(w, r, http.StatusOK, sess.ID)
				return
			}
		}
	}

	sess, err := s.d.Engine.CreateSession(ctx, p.ID, game.NewSessionOptions{PlayerIDs: playerIDs(r), Daily: date})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.d.Engine.Start(ctx, sess.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, sess.ID)
}

type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.d.Now())
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.d.Results.Leaderboard(r.Context(), date, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []daily.LBRow{}
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
