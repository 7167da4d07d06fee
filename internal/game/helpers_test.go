package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testPuzzle() *Puzzle {
	return &Puzzle{
		ID:        "water",
		Title:     "A Glass of Water",
		Statement: "A man walks into a bar and asks for a glass of water. The bartender points a gun at him. The man says thank you and leaves.",
		Answer:    "The man had hiccups. The scare cured them, so he no longer needed the water.",
		Hints:     []string{"Think about why he wanted water.", "The gun was not a threat.", "It is a common bodily annoyance.", "Surprise can help."},
		Tags:      []string{"classic"},
		Constraints: Constraints{
			MaxHints: 3,
		},
	}
}

// memRepo is a SessionRepo for tests.
type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*GameSession
	saves    int
}

func newMemRepo() *memRepo { return &memRepo{sessions: map[string]*GameSession{}} }

func (m *memRepo) Save(ctx context.Context, s *GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	m.saves++
	return nil
}

var errNoSession = errors.New("not found")

func (m *memRepo) Load(ctx context.Context, id string) (*GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errNoSession
	}
	return s.Clone(), nil
}

func (m *memRepo) get(id string) *GameSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// recLog is an EventLog for tests.
type recLog struct {
	mu         sync.Mutex
	events     []TurnEvent
	summarized []string
}

func (l *recLog) AppendEvent(ctx context.Context, sessionID string, ev TurnEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *recLog) Summarize(ctx context.Context, sessionID, playerID, puzzleID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summarized = append(l.summarized, sessionID)
	return "summary", nil
}

// recObserver remembers collaborator failures.
type recObserver struct {
	NopObserver
	mu       sync.Mutex
	failures []string
	changes  []string
}

func (o *recObserver) CollaboratorFailed(sessionID, component string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, component)
}

func (o *recObserver) StateChanged(sessionID string, from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, fmt.Sprintf("%s->%s", from, to))
}

type fixture struct {
	runner *Runner
	repo   *memRepo
	log    *recLog
	obs    *recObserver
	llm    *llm.Scripted
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

// newFixture builds a runner whose judges answer from replies in order.
func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	return newFixtureWith(t, llm.NewScripted(replies...), DefaultSettings())
}

func newFixtureWith(t *testing.T, completer *llm.Scripted, st Settings) *fixture {
	t.Helper()
	f := &fixture{repo: newMemRepo(), log: &recLog{}, obs: &recObserver{}, llm: completer}
	p := testPuzzle()
	s := NewSession("s1", p, []string{"player-1"}, fixedNow())
	f.runner = NewRunner(s, p, Deps{
		Questions:  judge.NewQuestionJudge(completer),
		Hypotheses: judge.NewHypothesisJudge(completer),
		Store:      f.repo,
		Events:     f.log,
		Observer:   f.obs,
		Now:        fixedNow,
	}, st)
	return f
}

func (f *fixture) mustStart(t *testing.T) {
	t.Helper()
	if _, err := f.runner.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}
