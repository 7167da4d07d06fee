package daily

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// Result is one player's finished daily puzzle.
type Result struct {
	PlayerID  string `json:"playerId"`
	Date      string `json:"date"`
	PuzzleID  string `json:"puzzleId"`
	SessionID string `json:"sessionId"`
	Score     int    `json:"score"`
	Questions int    `json:"questions"`
	Hints     int    `json:"hints"`
}

// LBRow is one leaderboard line.
type LBRow struct {
	PlayerID  string `json:"playerId"`
	Score     int    `json:"score"`
	Questions int    `json:"questions"`
	Hints     int    `json:"hints"`
}

// Results records daily outcomes. Only the first result per player per date
// counts; later ones are ignored.
type Results interface {
	AlreadyPlayed(ctx context.Context, playerID, date string) (bool, error)
	InsertResult(ctx context.Context, r Result) error
	Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error)
}

const defaultLimit = 20

// Store keeps results in the daily_results table.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) AlreadyPlayed(ctx context.Context, playerID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM daily_results WHERE player_id=? AND date=?",
		playerID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(player_id, date, puzzle_id, session_id, score, questions, hints)
        VALUES(?,?,?,?,?,?,?)`,
		r.PlayerID, r.Date, r.PuzzleID, r.SessionID, r.Score, r.Questions, r.Hints,
	)
	if err != nil {
		return fmt.Errorf("recording daily result: %w", err)
	}
	return nil
}

// Leaderboard orders by score desc, then fewer hints, then earliest finish.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, score, questions, hints
        FROM daily_results
        WHERE date=?
        ORDER BY score DESC, hints ASC, created_at ASC, rowid ASC
        LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.PlayerID, &r.Score, &r.Questions, &r.Hints); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MemoryResults is an in-process Results for tests and database-less runs.
type MemoryResults struct {
	mu   sync.Mutex
	rows []Result
}

func NewMemoryResults() *MemoryResults { return &MemoryResults{} }

func (m *MemoryResults) AlreadyPlayed(ctx context.Context, playerID, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PlayerID == playerID && r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryResults) InsertResult(ctx context.Context, r Result) error {
	if played, _ := m.AlreadyPlayed(ctx, r.PlayerID, r.Date); played {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, r)
	return nil
}

func (m *MemoryResults) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	m.mu.Lock()
	var out []LBRow
	for _, r := range m.rows {
		if r.Date == date {
			out = append(out, LBRow{PlayerID: r.PlayerID, Score: r.Score, Questions: r.Questions, Hints: r.Hints})
		}
	}
	m.mu.Unlock()

	// insertion order breaks ties, like created_at in SQL
	sort.SliceStable(out, func(i, j int) bool { return better(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func better(a, b LBRow) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Hints < b.Hints
}
