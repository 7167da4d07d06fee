// Package postgres stores game sessions in PostgreSQL through pgxpool.
//
// It is selected instead of the SQLite store when DATABASE_URL is set, so
// several server processes can share sessions.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/store"
)

var _ store.Store = (*Client)(nil)

// Client is a store.Store over a pgx connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// New connects, pings and ensures the schema.
func New(ctx context.Context, dsn string) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	c := &Client{pool: pool}
	if err := c.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the pool.
func (c *Client) Close() { c.pool.Close() }

// EnsureSchema creates the sessions table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    puzzle_id  TEXT NOT NULL,
    player_ids TEXT[] NOT NULL DEFAULT '{}',
    state      TEXT NOT NULL,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_puzzle ON sessions (puzzle_id);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions (updated_at);
CREATE INDEX IF NOT EXISTS idx_sessions_players ON sessions USING GIN (player_ids);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

func (c *Client) Save(ctx context.Context, s *game.GameSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	players := s.PlayerIDs
	if players == nil {
		players = []string{}
	}
	_, err = c.pool.Exec(ctx, `
INSERT INTO sessions (id, puzzle_id, player_ids, state, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    puzzle_id  = EXCLUDED.puzzle_id,
    player_ids = EXCLUDED.player_ids,
    state      = EXCLUDED.state,
    data       = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at
`, s.ID, s.PuzzleID, players, string(s.State), data, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", s.ID, err)
	}
	return nil
}

func (c *Client) Load(ctx context.Context, id string) (*game.GameSession, error) {
	var data []byte
	err := c.pool.QueryRow(ctx, "SELECT data FROM sessions WHERE id = $1", id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return decode(data)
}

func (c *Client) List(ctx context.Context, f store.Filter) ([]*game.GameSession, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.PuzzleID != "" {
		where = append(where, "puzzle_id = "+arg(f.PuzzleID))
	}
	if f.PlayerID != "" {
		where = append(where, arg(f.PlayerID)+" = ANY(player_ids)")
	}
	if f.State != "" {
		where = append(where, "state = "+arg(string(f.State)))
	}

	query := "SELECT data FROM sessions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*game.GameSession
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func decode(data []byte) (*game.GameSession, error) {
	var s game.GameSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.TurnHistory == nil {
		s.TurnHistory = []game.TurnEvent{}
	}
	return &s, nil
}
