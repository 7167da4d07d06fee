// internal/httpserver/auth.go
//
// Player accounts and JWT authentication.
// Responsibilities:
//   - Player CRUD on the players table (bcrypt password hashes).
//   - HS256 tokens carrying the player id and username.
//   - Auth cookie handling; tokens are also accepted as "Authorization: Bearer".
//   - Optional-auth and require-auth middleware.
//
// Sessions created by a signed-in player carry that player's id, which is
// what the daily leaderboard and per-player memory key on.

package httpserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/turtlesoup/internal/config"
)

var (
	ErrUsernameTaken  = errors.New("username taken")
	ErrBadCredentials = errors.New("invalid username or password")
	ErrNoPlayer       = errors.New("player not found")
	ErrInvalidToken   = errors.New("invalid token")
)

// Player is a signed-up account.
type Player struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Accounts stores players and issues their tokens.
type Accounts struct {
	db     *sql.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAccounts returns accounts backed by db, signing with cfg.JWTSecret.
func NewAccounts(db *sql.DB, cfg config.AuthConfig) *Accounts {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Accounts{db: db, secret: []byte(cfg.JWTSecret), ttl: ttl, now: time.Now}
}

// Create validates input, checks uniqueness, hashes the password and
// inserts a new player.
func (a *Accounts) Create(ctx context.Context, username, pw string) (*Player, error) {
	username = strings.TrimSpace(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	var exists int
	err := a.db.QueryRowContext(ctx, `SELECT 1 FROM players WHERE lower(username)=lower(?)`, username).Scan(&exists)
	switch {
	case err == nil:
		return nil, ErrUsernameTaken
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	p := &Player{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    a.now().UTC().Truncate(time.Second),
	}
	_, err = a.db.ExecContext(ctx, `INSERT INTO players (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		p.ID, p.Username, p.PasswordHash, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}
	return p, nil
}

// Authenticate returns the player when username and password match.
func (a *Accounts) Authenticate(ctx context.Context, username, pw string) (*Player, error) {
	p, err := a.scan(a.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM players WHERE lower(username)=lower(?)`,
		strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, ErrNoPlayer) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(pw)) != nil {
		return nil, ErrBadCredentials
	}
	return p, nil
}

// FindByID loads a player or returns ErrNoPlayer.
func (a *Accounts) FindByID(ctx context.Context, id string) (*Player, error) {
	return a.scan(a.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM players WHERE id=?`, id))
}

func (a *Accounts) scan(row *sql.Row) (*Player, error) {
	var p Player
	var created string
	if err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoPlayer
		}
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &p, nil
}

// Sign issues a token for p and returns its expiry.
func (a *Accounts) Sign(p *Player) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       p.ID,
		"username": p.Username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString(a.secret)
	return ss, exp, err
}

// Verify parses a token and returns the player it names.
func (a *Accounts) Verify(ctx context.Context, tok string) (*Player, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil, ErrInvalidToken
	}
	// the player may have been deleted since the token was issued
	p, err := a.FindByID(ctx, id)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return p, nil
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("password must be 8-100 chars")
	}
	return nil
}

// ------------------------------- handlers ----------------------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// mountAuth registers /auth/*. Without an accounts store only logout and
// me are useful, and me always answers 401.
func (s *Server) mountAuth(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		if s.d.Accounts != nil {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
		}
		r.Post("/logout", s.handleLogout)
		r.With(s.requireAuth).Get("/me", s.handleMe)
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := s.d.Accounts.Create(r.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.issueToken(w, p) {
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := s.d.Accounts.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	if !s.issueToken(w, p) {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setCookie(w, "", time.Time{}, -1)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentPlayer(r))
}

func (s *Server) issueToken(w http.ResponseWriter, p *Player) bool {
	tok, exp, err := s.d.Accounts.Sign(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return false
	}
	s.setCookie(w, tok, exp, 0)
	w.Header().Set("X-Auth-Token", tok)
	return true
}

// ------------------------------ cookies ------------------------------------

// setCookie writes (maxAge 0) or deletes (maxAge -1) the auth cookie.
func (s *Server) setCookie(w http.ResponseWriter, token string, exp time.Time, maxAge int) {
	sameSite := http.SameSiteLaxMode
	if s.auth.SecureCookies {
		sameSite = http.SameSiteNoneMode // required for cross-site use when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.auth.SecureCookies,
		SameSite: sameSite,
		Expires:  exp,
		MaxAge:   maxAge,
	})
}

// bearerOrCookie extracts a token from the Authorization header or the auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.auth.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ----------------------------- middleware ----------------------------------

type ctxPlayerKey struct{}

// currentPlayer returns the signed-in player, or nil for guests.
func currentPlayer(r *http.Request) *Player {
	p, _ := r.Context().Value(ctxPlayerKey{}).(*Player)
	return p
}

func playerIDs(r *http.Request) []string {
	if p := currentPlayer(r); p != nil {
		return []string{p.ID}
	}
	return nil
}

// withOptionalAuth attaches the player when a valid token is present.
// It never rejects a request.
func (s *Server) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.d.Accounts != nil {
			if tok := s.bearerOrCookie(r); tok != "" {
				if p, err := s.d.Accounts.Verify(r.Context(), tok); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxPlayerKey{}, p))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a valid token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := s.bearerOrCookie(r)
		if tok == "" || s.d.Accounts == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		p, err := s.d.Accounts.Verify(r.Context(), tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxPlayerKey{}, p)))
	})
}
