// Package sqlite stores game sessions in the application SQLite database.
//
// The whole session is kept as JSON in the data column; puzzle_id,
// player_ids and state are duplicated into columns so List can filter in SQL.
// The schema comes from the sqldb migrations.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is a store.Store over *sql.DB.
type Store struct {
	db *sql.DB
}

// New wraps a migrated database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Save(ctx context.Context, sess *game.GameSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}
	players, err := json.Marshal(nonNil(sess.PlayerIDs))
	if err != nil {
		return fmt.Errorf("encoding players: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, puzzle_id, player_ids, state, data, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            puzzle_id  = excluded.puzzle_id,
            player_ids = excluded.player_ids,
            state      = excluded.state,
            data       = excluded.data,
            updated_at = excluded.updated_at`,
		sess.ID, sess.PuzzleID, string(players), string(sess.State), string(data),
		sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*game.GameSession, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return decode(data)
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]*game.GameSession, error) {
	var (
		where []string
		args  []any
	)
	if f.PuzzleID != "" {
		where = append(where, "puzzle_id = ?")
		args = append(args, f.PuzzleID)
	}
	if f.PlayerID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(sessions.player_ids) WHERE value = ?)")
		args = append(args, f.PlayerID)
	}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(f.State))
	}

	q := "SELECT data FROM sessions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY updated_at DESC, id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*game.GameSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func decode(data string) (*game.GameSession, error) {
	var sess game.GameSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if sess.TurnHistory == nil {
		sess.TurnHistory = []game.TurnEvent{}
	}
	return &sess, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
