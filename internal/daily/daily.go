// internal/daily/daily.go
//
// Puzzle of the day.
// Every player gets the same puzzle on the same UTC date: the index into the
// sorted puzzle ids is HMAC-SHA256(salt, YYYY-MM-DD) mod n, so it cannot be
// predicted without the salt.

package daily

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/turtlesoup/internal/game"
)

// ErrNoPuzzles is returned when there is nothing to choose from.
var ErrNoPuzzles = errors.New("no puzzles available for the daily challenge")

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// PuzzleIndex returns a deterministic index in [0, n) for a date.
func PuzzleIndex(date time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for an even spread
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// Catalog is the puzzle source the picker needs.
type Catalog interface {
	IDs() ([]string, error)
	Get(ctx context.Context, id string) (*game.Puzzle, error)
}

// Picker chooses the daily puzzle.
type Picker struct {
	catalog Catalog
	salt    string
}

// NewPicker returns a picker over catalog.
func NewPicker(catalog Catalog, salt string) *Picker {
	return &Picker{catalog: catalog, salt: salt}
}

// Puzzle returns the date key and the puzzle for date.
func (p *Picker) Puzzle(ctx context.Context, date time.Time) (string, *game.Puzzle, error) {
	ids, err := p.catalog.IDs()
	if err != nil {
		return "", nil, err
	}
	if len(ids) == 0 {
		return "", nil, ErrNoPuzzles
	}
	pz, err := p.catalog.Get(ctx, ids[PuzzleIndex(date, p.salt, len(ids))])
	if err != nil {
		return "", nil, err
	}
	return DateKey(date), pz, nil
}

// Recorder returns a game.FinishHook that files completed daily sessions.
// Aborted sessions and sessions without a player are not recorded.
func Recorder(results Results, log zerolog.Logger) game.FinishHook {
	return func(ctx context.Context, s *game.GameSession) {
		if s.Daily == "" || s.State != game.StateCompleted || s.Score == nil {
			return
		}
		player := s.PrimaryPlayer()
		if player == "" {
			return
		}
		err := results.InsertResult(ctx, Result{
			PlayerID:  player,
			Date:      s.Daily,
			PuzzleID:  s.PuzzleID,
			SessionID: s.ID,
			Score:     *s.Score,
			Questions: s.QuestionCount(),
			Hints:     s.HintCount,
		})
		if err != nil {
			log.Error().Err(err).Str("session_id", s.ID).Msg("daily result not recorded")
			return
		}
		log.Info().Str("player_id", player).Str("date", s.Daily).Int("score", *s.Score).Msg("daily result recorded")
	}
}
