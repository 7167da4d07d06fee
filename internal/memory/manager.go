// internal/memory/manager.go
//
// Session and player memory built on a DocStore.
// Responsibilities:
//   - Append turn events under session:<id> (the game's EventLog).
//   - Summarize a finished session once: store the summary, file it under the
//     player (or global), and fold it into per-puzzle statistics.
//   - Read back events, summaries and statistics for the HTTP and MCP surfaces.

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/turtlesoup/internal/game"
)

const (
	eventPrefix   = "event_"
	summaryKey    = "summary"
	sessionPrefix = "session_"
	statsPrefix   = "puzzle_stats_"
)

// Summarizer turns a session's events into one line of prose.
type Summarizer func(events []game.TurnEvent) string

// Manager implements game.EventLog.
type Manager struct {
	docs      DocStore
	summarize Summarizer
	log       zerolog.Logger
	now       func() time.Time

	// statsMu serializes read-modify-write of summaries and puzzle stats.
	statsMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithSummarizer replaces DefaultSummarizer.
func WithSummarizer(fn Summarizer) Option { return func(m *Manager) { m.summarize = fn } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager returns a manager over docs.
func NewManager(docs DocStore, opts ...Option) *Manager {
	m := &Manager{
		docs:      docs,
		summarize: DefaultSummarizer,
		log:       zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// DefaultSummarizer counts questions, hints and hypotheses and names the
// last final verdict.
func DefaultSummarizer(events []game.TurnEvent) string {
	if len(events) == 0 {
		return "No events recorded."
	}
	st := tally(events)
	parts := []string{
		fmt.Sprintf("Session contained %d total events.", len(events)),
		fmt.Sprintf("Questions asked: %d.", st.questions),
		fmt.Sprintf("Hints used: %d.", st.hints),
		fmt.Sprintf("Hypotheses proposed: %d.", st.hypotheses),
	}
	if st.verdict != "" {
		parts = append(parts, fmt.Sprintf("Final verdict: %s.", st.verdict))
	}
	return strings.Join(parts, " ")
}

type counts struct {
	questions, hints, hypotheses int
	verdict                      string
}

func tally(events []game.TurnEvent) counts {
	var c counts
	for _, e := range events {
		switch {
		case e.HasTag(game.TagQuestion):
			c.questions++
		case e.HasTag(game.TagHint):
			c.hints++
		case e.HasTag(game.TagHypothesis):
			c.hypotheses++
		case e.HasTag(game.TagFinalVerdict):
			c.verdict = e.Verdict
			if c.verdict == "" {
				c.verdict = e.Message
			}
		}
	}
	return c
}

// AppendEvent records ev under the session namespace, keyed by turn index.
func (m *Manager) AppendEvent(ctx context.Context, sessionID string, ev game.TurnEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	key := fmt.Sprintf("%s%06d", eventPrefix, ev.TurnIndex)
	if err := m.docs.Put(ctx, SessionNamespace(sessionID), key, raw, m.now()); err != nil {
		return err
	}
	m.log.Debug().Str("session_id", sessionID).Int("turn", ev.TurnIndex).Msg("event appended")
	return nil
}

// Events returns the session's events in turn order, the last limit of them
// when limit > 0.
func (m *Manager) Events(ctx context.Context, sessionID string, limit int) ([]game.TurnEvent, error) {
	docs, err := m.docs.List(ctx, SessionNamespace(sessionID), eventPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]game.TurnEvent, 0, len(docs))
	for _, d := range docs {
		var ev game.TurnEvent
		if err := json.Unmarshal(d.Value, &ev); err != nil {
			m.log.Warn().Err(err).Str("key", d.Key).Msg("skipping unreadable event")
			continue
		}
		out = append(out, ev)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// SessionSummary is what Summarize files for one session.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	PlayerID      string    `json:"player_id,omitempty"`
	PuzzleID      string    `json:"puzzle_id,omitempty"`
	Summary       string    `json:"summary"`
	EventCount    int       `json:"event_count"`
	QuestionCount int       `json:"question_count"`
	HintCount     int       `json:"hint_count"`
	Success       bool      `json:"success"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Summarize builds and stores the session summary. Puzzle statistics are
// updated only the first time a session is summarized.
func (m *Manager) Summarize(ctx context.Context, sessionID, playerID, puzzleID string) (string, error) {
	events, err := m.Events(ctx, sessionID, 0)
	if err != nil {
		return "", fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	c := tally(events)
	sum := SessionSummary{
		SessionID:     sessionID,
		PlayerID:      playerID,
		PuzzleID:      puzzleID,
		Summary:       m.summarize(events),
		EventCount:    len(events),
		QuestionCount: c.questions,
		HintCount:     c.hints,
		Success:       c.verdict == "CORRECT",
		GeneratedAt:   m.now(),
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return "", err
	}

	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	_, err = m.docs.Get(ctx, SessionNamespace(sessionID), summaryKey)
	first := errors.Is(err, ErrNotFound)
	if err != nil && !first {
		return "", err
	}

	now := m.now()
	if err := m.docs.Put(ctx, SessionNamespace(sessionID), summaryKey, raw, now); err != nil {
		return "", err
	}
	owner := GlobalNamespace
	if playerID != "" {
		owner = PlayerNamespace(playerID)
	}
	if err := m.docs.Put(ctx, owner, sessionPrefix+sessionID, raw, now); err != nil {
		return "", err
	}
	if puzzleID != "" && first {
		if err := m.addToStats(ctx, puzzleID, sum, now); err != nil {
			return "", err
		}
	}

	m.log.Info().Str("session_id", sessionID).Str("player_id", playerID).Msg("session summarized")
	return sum.Summary, nil
}

// Summary returns the stored summary of a session.
func (m *Manager) Summary(ctx context.Context, sessionID string) (SessionSummary, error) {
	var s SessionSummary
	d, err := m.docs.Get(ctx, SessionNamespace(sessionID), summaryKey)
	if err != nil {
		return s, err
	}
	err = json.Unmarshal(d.Value, &s)
	return s, err
}

// PlayerSessions lists the summaries filed under a player, oldest key first.
func (m *Manager) PlayerSessions(ctx context.Context, playerID string) ([]SessionSummary, error) {
	docs, err := m.docs.List(ctx, PlayerNamespace(playerID), sessionPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(docs))
	for _, d := range docs {
		var s SessionSummary
		if err := json.Unmarshal(d.Value, &s); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", d.Key, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// PuzzleStats aggregates finished sessions of one puzzle.
type PuzzleStats struct {
	PuzzleID       string  `json:"puzzle_id"`
	TotalSessions  int     `json:"total_sessions"`
	TotalQuestions int     `json:"total_questions"`
	SuccessCount   int     `json:"success_count"`
	AvgQuestions   float64 `json:"avg_questions"`
	SuccessRate    float64 `json:"success_rate"`
}

// PuzzleStats returns the statistics of puzzleID; zero counts if none.
func (m *Manager) PuzzleStats(ctx context.Context, puzzleID string) (PuzzleStats, error) {
	st := PuzzleStats{PuzzleID: puzzleID}
	d, err := m.docs.Get(ctx, GlobalNamespace, statsPrefix+puzzleID)
	if errors.Is(err, ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(d.Value, &st)
	return st, err
}

func (m *Manager) addToStats(ctx context.Context, puzzleID string, sum SessionSummary, now time.Time) error {
	st, err := m.PuzzleStats(ctx, puzzleID)
	if err != nil {
		return err
	}
	st.TotalSessions++
	st.TotalQuestions += sum.QuestionCount
	if sum.Success {
		st.SuccessCount++
	}
	st.AvgQuestions = float64(st.TotalQuestions) / float64(st.TotalSessions)
	st.SuccessRate = float64(st.SuccessCount) / float64(st.TotalSessions)

	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return m.docs.Put(ctx, GlobalNamespace, statsPrefix+puzzleID, raw, now)
}
