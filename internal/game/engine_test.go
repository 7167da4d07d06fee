package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/llm"
)

var errNoPuzzle = errors.New("no such puzzle")

type mapPuzzles map[string]*Puzzle

func (m mapPuzzles) Get(ctx context.Context, id string) (*Puzzle, error) {
	p, ok := m[id]
	if !ok {
		return nil, errNoPuzzle
	}
	return p, nil
}

// newTestEngine builds an engine over the water puzzle. agentLLM may be nil.
func newTestEngine(judgeLLM, agentLLM *llm.Scripted, st Settings) (*Engine, *memRepo) {
	repo := newMemRepo()
	deps := Deps{
		Questions:  judge.NewQuestionJudge(judgeLLM),
		Hypotheses: judge.NewHypothesisJudge(judgeLLM),
		Now:        fixedNow,
	}
	if agentLLM != nil {
		deps.AgentLLM = agentLLM
	}
	return NewEngine(mapPuzzles{"water": testPuzzle()}, repo, deps, st), repo
}

func TestCreateSession(t *testing.T) {
	e, repo := newTestEngine(llm.NewScripted(), nil, DefaultSettings())
	ctx := context.Background()

	s, err := e.CreateSession(ctx, "water", NewSessionOptions{PlayerIDs: []string{"ann"}, Daily: "2026-03-01"})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateLobby, s.State)
	assert.Equal(t, "water", s.PuzzleID)
	assert.Equal(t, "water", s.CorpusID)
	assert.Equal(t, "2026-03-01", s.Daily)
	assert.Empty(t, s.TurnHistory)
	assert.Equal(t, StateLobby, repo.get(s.ID).State)

	_, err = e.CreateSession(ctx, "missing", NewSessionOptions{})
	assert.ErrorIs(t, err, errNoPuzzle)
}

func TestSessionsGetDistinctIDs(t *testing.T) {
	e, _ := newTestEngine(llm.NewScripted(), nil, DefaultSettings())
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		s, err := e.CreateSession(context.Background(), "water", NewSessionOptions{})
		require.NoError(t, err)
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestEngineResumesFromStore(t *testing.T) {
	judgeLLM := llm.NewScripted("VERDICT: NO\nEXPLANATION: no", "VERDICT: YES\nEXPLANATION: yes")
	e, repo := newTestEngine(judgeLLM, nil, DefaultSettings())
	ctx := context.Background()

	s, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)
	_, err = e.ProcessInput(ctx, s.ID, "Was he thirsty?")
	require.NoError(t, err)

	// A fresh engine over the same store picks the session up where it was.
	other := NewEngine(mapPuzzles{"water": testPuzzle()}, repo, Deps{
		Questions: judge.NewQuestionJudge(judgeLLM),
		Now:       fixedNow,
	}, DefaultSettings())
	resp, err := other.ProcessInput(ctx, s.ID, "Was he scared?")
	require.NoError(t, err)
	assert.Equal(t, "YES", resp.Verdict)

	snap, p, err := other.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "water", p.ID)
	assert.Equal(t, 2, snap.QuestionCount())
	assertIndexes(t, snap)
}

func TestEngineUnknownSession(t *testing.T) {
	e, _ := newTestEngine(llm.NewScripted(), nil, DefaultSettings())
	_, err := e.ProcessInput(context.Background(), "nope", "hello?")
	assert.ErrorIs(t, err, errNoSession)
}

func TestEvictKeepsLiveSessions(t *testing.T) {
	e, repo := newTestEngine(llm.NewScripted(), nil, DefaultSettings())
	ctx := context.Background()

	live, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)
	done, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)
	_, err = e.Abort(ctx, done.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, e.Evict())
	assert.Len(t, e.runners, 1)
	assert.Contains(t, e.runners, live.ID)

	// Evicted sessions remain readable through the store.
	snap, _, err := e.Snapshot(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, snap.State)
	assert.Equal(t, StateAborted, repo.get(done.ID).State)
}

func TestEngineSessionsAreIndependent(t *testing.T) {
	judgeLLM := llm.NewScripted().WithDefault("VERDICT: NO\nEXPLANATION: no")
	e, _ := newTestEngine(judgeLLM, nil, DefaultSettings())
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		s, err := e.CreateSession(ctx, "water", NewSessionOptions{})
		require.NoError(t, err)
		ids[i] = s.ID
	}
	for i, id := range ids {
		for j := 0; j <= i; j++ {
			_, err := e.ProcessInput(ctx, id, fmt.Sprintf("Question %d?", j))
			require.NoError(t, err)
		}
	}
	for i, id := range ids {
		snap, _, err := e.Snapshot(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i+1, snap.QuestionCount())
	}
}

// gatedCompleter blocks every call until release is closed.
type gatedCompleter struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return "VERDICT: NO\nEXPLANATION: no", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestSlowTurnDoesNotBlockOtherSessions(t *testing.T) {
	gate := &gatedCompleter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	e := NewEngine(mapPuzzles{"water": testPuzzle()}, newMemRepo(), Deps{
		Questions:  judge.NewQuestionJudge(gate),
		Hypotheses: judge.NewHypothesisJudge(gate),
		Now:        fixedNow,
	}, DefaultSettings())
	ctx := context.Background()

	slow, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)
	other, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = e.ProcessInput(ctx, slow.ID, "Was he thirsty?")
	}()
	<-gate.entered

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		assert.Equal(t, 0, e.Evict())
		snap, _, err := e.Snapshot(ctx, other.ID)
		assert.NoError(t, err)
		assert.Equal(t, StateLobby, snap.State)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Error("evict or snapshot waited on another session's turn")
	}

	close(gate.release)
	wg.Wait()
	<-finished
	assert.Len(t, e.runners, 2)
}

func TestConcurrentResumeSharesOneRunner(t *testing.T) {
	e, _ := newTestEngine(llm.NewScripted(), nil, DefaultSettings())
	ctx := context.Background()
	s, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)
	delete(e.runners, s.ID)

	runners := make([]*Runner, 8)
	var wg sync.WaitGroup
	for i := range runners {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.Runner(ctx, s.ID)
			assert.NoError(t, err)
			runners[i] = r
		}(i)
	}
	wg.Wait()
	for _, r := range runners[1:] {
		assert.Same(t, runners[0], r)
	}
}
