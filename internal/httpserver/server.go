// internal/httpserver/server.go
//
// HTTP server wiring for the turtle soup backend.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, panic recovery, timeouts,
//     request logging, JSON content type, CORS).
//   - Public endpoints: "/", "/health", "/puzzles".
//   - Session endpoints (optional auth): create, list, inspect, start, input, autoplay.
//   - Daily puzzle endpoints (optional auth): mounted under /daily.
//   - Auth + stats endpoints: /auth/*, /stats/*.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Session views never carry the puzzle answer unless the session is
//     COMPLETED.
//   - Autoplay is mounted outside the request timeout; it is bounded by its
//     turn count instead.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/robalobadob/turtlesoup/internal/config"
	"github.com/robalobadob/turtlesoup/internal/daily"
	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/memory"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
	"github.com/robalobadob/turtlesoup/internal/store"
)

// Deps are the components the HTTP layer serves. Memory, Daily, Results and
// Accounts are optional; their routes answer 503 or disappear when nil.
type Deps struct {
	Engine   *game.Engine
	Puzzles  *puzzles.Repository
	Sessions store.Store
	Memory   *memory.Manager
	Daily    *daily.Picker
	Results  daily.Results
	Accounts *Accounts
	Log      zerolog.Logger
	Now      func() time.Time
}

// Server bundles the router and its dependencies.
type Server struct {
	r    *chi.Mux
	d    Deps
	cfg  config.ServerConfig
	auth config.AuthConfig
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps, cfg config.Config) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{r: chi.NewRouter(), d: d, cfg: cfg.Server, auth: cfg.Auth}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(s.requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(cors(cfg.Server.ClientOrigin))

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "turtlesoup",
			"endpoints": []string{"/health", "/puzzles", "/sessions", "/daily", "/auth/*", "/stats/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	s.r.Group(func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		}
		r.Use(s.withOptionalAuth)

		r.Get("/puzzles", s.handleListPuzzles)
		r.Get("/puzzles/{id}", s.handleGetPuzzle)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/summary", s.handleSessionSummary)
		r.Post("/sessions/{id}/start", s.handleStart)
		r.Post("/sessions/{id}/input", s.handleInput)
		r.Post("/sessions/{id}/abort", s.handleAbort)

		s.mountDaily(r)
		s.mountAuth(r)
		s.mountStats(r)
	})

	// long-running: bounded by max_turns, not the request timeout
	s.r.With(s.withOptionalAuth).Post("/sessions/{id}/autoplay", s.handleAutoplay)

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errc; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	return err
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.d.Log.Debug().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.d.Log.Error().Err(err).
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error")
}

// fail maps domain errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, puzzles.ErrNotFound), errors.Is(err, memory.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, puzzles.ErrNoMatch), errors.Is(err, daily.ErrNoPuzzles):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrNoAgent):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout")
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		w.WriteHeader(499)
	default:
		s.internalError(w, r, err)
	}
}
