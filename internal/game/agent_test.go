package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/knowledge"
	"github.com/robalobadob/turtlesoup/internal/llm"
)

// agentSession fakes a session in which the agent asked len(verdicts)
// questions and got the given verdicts back.
func agentSession(verdicts ...string) *GameSession {
	s := NewSession("a1", testPuzzle(), nil, fixedNow())
	s.State = StateInProgress
	for _, v := range verdicts {
		s.appendEvents(fixedNow(),
			TurnEvent{Role: RolePlayerAgent, Message: "q?", Tags: []Tag{TagQuestion}},
			TurnEvent{Role: RoleDM, Message: "explained " + v, Tags: []Tag{TagAnswer}, Verdict: v},
		)
	}
	return s
}

func TestShouldHypothesize(t *testing.T) {
	st := AgentSettings{FormHypothesisAfter: 3, MaxQuestionsBeforeGuess: 6, YesRatioThreshold: 0.5}
	a := NewAgent(llm.NewScripted(), nil, st)

	tests := []struct {
		name     string
		verdicts []string
		want     bool
	}{
		{"no questions", nil, false},
		{"too early even if all yes", []string{"YES", "YES"}, false},
		{"enough yes", []string{"YES", "NO", "YES"}, true},
		{"not enough yes", []string{"NO", "NO", "YES"}, false},
		{"hard cap", []string{"NO", "NO", "NO", "NO", "NO", "NO"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ShouldHypothesize(agentSession(tt.verdicts...), testPuzzle()))
		})
	}
}

func TestShouldHypothesizeIgnoresHumanQuestions(t *testing.T) {
	st := AgentSettings{FormHypothesisAfter: 1, MaxQuestionsBeforeGuess: 2, YesRatioThreshold: 0.1}
	a := NewAgent(llm.NewScripted(), nil, st)
	s := agentSession()
	s.appendEvents(fixedNow(),
		TurnEvent{Role: RolePlayer, Message: "q?", Tags: []Tag{TagQuestion}},
		TurnEvent{Role: RoleDM, Message: "yes", Tags: []Tag{TagAnswer}, Verdict: "YES"},
	)
	assert.False(t, a.ShouldHypothesize(s, testPuzzle()))
}

func TestShouldHypothesizeAtQuestionLimit(t *testing.T) {
	st := AgentSettings{FormHypothesisAfter: 5, MaxQuestionsBeforeGuess: 8, YesRatioThreshold: 0.9}
	a := NewAgent(llm.NewScripted(), nil, st)
	p := testPuzzle()
	p.Constraints.MaxQuestions = 2

	assert.False(t, a.ShouldHypothesize(agentSession("NO"), p))
	assert.True(t, a.ShouldHypothesize(agentSession("NO", "NO"), p))
}

func TestAutoPlayGuessesWhenQuestionsRunOut(t *testing.T) {
	p := testPuzzle()
	p.Constraints.MaxQuestions = 2
	agentLLM := llm.NewScripted("Is it raining", "Is he thirsty").WithDefault("he had hiccups")
	judgeLLM := llm.NewScripted(
		"VERDICT: NO\nEXPLANATION: No.",
		"VERDICT: NO\nEXPLANATION: No.",
		"VERDICT: CORRECT\nEXPLANATION: Yes.",
	)
	repo := newMemRepo()
	e := NewEngine(mapPuzzles{"water": p}, repo, Deps{
		Questions:  judge.NewQuestionJudge(judgeLLM),
		Hypotheses: judge.NewHypothesisJudge(judgeLLM),
		AgentLLM:   agentLLM,
		Now:        fixedNow,
	}, DefaultSettings())
	ctx := context.Background()

	s, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)
	out, err := e.AutoPlay(ctx, s.ID, 20, nil)
	require.NoError(t, err)

	// start, two questions, one winning guess
	require.Len(t, out, 4)
	assert.True(t, out[3].GameOver)
	assert.Equal(t, StateCompleted, repo.get(s.ID).State)
	assert.Equal(t, 2, repo.get(s.ID).QuestionCount())
}

func TestAgentReadsHintsOnlyOnceAllAreOut(t *testing.T) {
	gw := knowledge.NewGateway(staticRetriever{res: knowledge.Result{
		Sources: []knowledge.Source{
			{Content: "Bars serve water.", Metadata: map[string]string{"type": "public_fact"}},
			{Content: "Hiccups stop after a fright.", Metadata: map[string]string{"type": "hint"}},
			{Content: "He had hiccups.", Metadata: map[string]string{"type": "puzzle_answer"}},
		},
	}})
	completer := llm.NewScripted("Was he ill", "Was he ill")
	a := NewAgent(completer, gw, DefaultSettings().Agent)
	p := testPuzzle()

	s := agentSession()
	_, err := a.Question(context.Background(), s, p)
	require.NoError(t, err)
	s.HintCount = len(p.Hints)
	_, err = a.Question(context.Background(), s, p)
	require.NoError(t, err)

	prompts := completer.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "Bars serve water.")
	assert.NotContains(t, prompts[0], "Hiccups stop after a fright.")
	assert.Contains(t, prompts[1], "Hiccups stop after a fright.")
	for _, pr := range prompts {
		assert.NotContains(t, pr, "He had hiccups.")
	}
}

func TestAgentQuestion(t *testing.T) {
	ctx := context.Background()
	p := testPuzzle()
	completer := llm.NewScripted("  Was the man sick  ", "").FailOn(2, errors.New("down"))
	a := NewAgent(completer, nil, DefaultSettings().Agent)

	q, err := a.Question(ctx, agentSession("NO"), p)
	require.NoError(t, err)
	assert.Equal(t, "Was the man sick?", q)

	q, err = a.Question(ctx, agentSession(), p)
	require.NoError(t, err)
	assert.Equal(t, fallbackQuestion, q)

	q, err = a.Question(ctx, agentSession(), p)
	assert.Error(t, err)
	assert.Equal(t, fallbackQuestion, q)

	prompt := completer.Prompts()[0]
	assert.Contains(t, prompt, "You are Detective")
	assert.Contains(t, prompt, p.Statement)
	assert.Contains(t, prompt, "Q: q?\nA: NO")
	assert.NotContains(t, prompt, "explained")
	assert.NotContains(t, prompt, p.Answer)
	assert.Contains(t, prompt, "Ask questions that divide possibilities in half")
}

func TestAgentHypothesis(t *testing.T) {
	ctx := context.Background()
	p := testPuzzle()
	a := NewAgent(llm.NewScripted("he had hiccups", "I think it was hiccups").FailOn(2, errors.New("down")), nil, DefaultSettings().Agent)

	h, err := a.Hypothesis(ctx, agentSession("YES"), p)
	require.NoError(t, err)
	assert.Equal(t, "I think he had hiccups", h)

	h, err = a.Hypothesis(ctx, agentSession("YES"), p)
	require.NoError(t, err)
	assert.Equal(t, "I think it was hiccups", h)

	h, err = a.Hypothesis(ctx, agentSession("YES"), p)
	assert.Error(t, err)
	assert.Equal(t, fallbackHypothesis, h)
}

func TestAgentTurnWithoutAgent(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.AgentTurn(context.Background())
	assert.ErrorIs(t, err, ErrNoAgent)
}

func TestAgentFailureStillPlaysFallback(t *testing.T) {
	judgeLLM := llm.NewScripted("VERDICT: NO\nEXPLANATION: no")
	agentLLM := llm.NewScripted().FailOn(0, errors.New("offline"))
	obs := &recObserver{}
	p := testPuzzle()
	r := NewRunner(NewSession("s1", p, nil, fixedNow()), p, Deps{
		Questions:  judge.NewQuestionJudge(judgeLLM),
		Hypotheses: judge.NewHypothesisJudge(judgeLLM),
		Observer:   obs,
		AgentLLM:   agentLLM,
		Now:        fixedNow,
	}, DefaultSettings())

	resp, err := r.AgentTurn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallbackQuestion, resp.PlayerMessage)
	assert.Equal(t, "NO", resp.Verdict)
	assert.Contains(t, obs.failures, "player_agent")
	// intro, question, answer
	require.Len(t, resp.Events, 3)
	assert.Equal(t, RolePlayerAgent, resp.Events[1].Role)
}

func TestAutoPlaySolves(t *testing.T) {
	agentLLM := llm.NewScripted("Did he have hiccups", "he had hiccups and the scare cured them")
	judgeLLM := llm.NewScripted(
		"VERDICT: YES\nEXPLANATION: Yes, that matters.",
		"VERDICT: CORRECT\nEXPLANATION: Well reasoned.",
	)
	st := DefaultSettings()
	st.Agent.FormHypothesisAfter = 1
	e, repo := newTestEngine(judgeLLM, agentLLM, st)
	ctx := context.Background()

	s, err := e.CreateSession(ctx, "water", NewSessionOptions{PlayerIDs: []string{"bot"}})
	require.NoError(t, err)

	var seen int
	out, err := e.AutoPlay(ctx, s.ID, 10, func(Response) { seen++ })
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 3, seen)

	assert.Equal(t, "start", out[0].Kind)
	assert.Equal(t, "Did he have hiccups?", out[1].PlayerMessage)
	assert.Equal(t, "YES", out[1].Verdict)
	assert.Equal(t, "I think he had hiccups and the scare cured them", out[2].PlayerMessage)
	assert.True(t, out[2].GameOver)
	require.NotNil(t, out[2].Score)
	assert.Equal(t, 990, *out[2].Score)

	saved := repo.get(s.ID)
	assert.Equal(t, StateCompleted, saved.State)
	assert.Len(t, saved.TurnHistory, 5)
}

func TestAutoPlayStopsAtTurnLimit(t *testing.T) {
	agentLLM := llm.NewScripted().WithDefault("Is it raining")
	judgeLLM := llm.NewScripted().WithDefault("VERDICT: NO\nEXPLANATION: No.")
	e, repo := newTestEngine(judgeLLM, agentLLM, DefaultSettings())
	ctx := context.Background()

	s, err := e.CreateSession(ctx, "water", NewSessionOptions{})
	require.NoError(t, err)

	out, err := e.AutoPlay(ctx, s.ID, 4, nil)
	require.NoError(t, err)
	assert.Len(t, out, 5)
	assert.Equal(t, StateInProgress, repo.get(s.ID).State)
	assert.Equal(t, 4, repo.get(s.ID).QuestionCount())
}

func TestAutoPlayHonoursCancellation(t *testing.T) {
	agentLLM := llm.NewScripted().WithDefault("Is it raining")
	judgeLLM := llm.NewScripted().WithDefault("VERDICT: NO\nEXPLANATION: No.")
	e, _ := newTestEngine(judgeLLM, agentLLM, DefaultSettings())

	s, err := e.CreateSession(context.Background(), "water", NewSessionOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()
	_, err = e.AutoPlay(ctx, s.ID, 100, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
