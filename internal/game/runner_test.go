package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/knowledge"
	"github.com/robalobadob/turtlesoup/internal/llm"
)

func assertIndexes(t *testing.T, s *GameSession) {
	t.Helper()
	for i, e := range s.TurnHistory {
		assert.Equal(t, i, e.TurnIndex, "event %d", i)
	}
}

func TestStartOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.runner.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, resp.State)
	assert.Contains(t, resp.Message, "**A Glass of Water**")
	assert.Contains(t, resp.Message, "*The air grows thick with mystery")

	_, err = f.runner.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateInProgress, se.State)

	s := f.runner.Snapshot()
	require.Len(t, s.TurnHistory, 1)
	assert.True(t, s.TurnHistory[0].HasTag(TagIntro))
	assert.True(t, s.TurnHistory[0].HasTag(TagNarration))
	assert.Equal(t, RoleDM, s.TurnHistory[0].Role)
}

func TestQuestionAppendsPair(t *testing.T) {
	f := newFixture(t, "VERDICT: YES\nEXPLANATION: Good question.")
	f.mustStart(t)

	resp, err := f.runner.ProcessInput(context.Background(), "Did he have hiccups?")
	require.NoError(t, err)

	assert.Equal(t, "YES", resp.Verdict)
	assert.Equal(t, StateInProgress, resp.State)
	assert.False(t, resp.GameOver)
	assert.Equal(t, "✓ **YES**\nGood question.\n*You're on the right track!*", resp.Message)

	s := f.runner.Snapshot()
	require.Len(t, s.TurnHistory, 3)
	q, a := s.TurnHistory[1], s.TurnHistory[2]
	assert.Equal(t, RolePlayer, q.Role)
	assert.True(t, q.HasTag(TagQuestion))
	assert.Equal(t, "Did he have hiccups?", q.Message)
	assert.Equal(t, RoleDM, a.Role)
	assert.True(t, a.HasTag(TagAnswer))
	assert.Equal(t, "YES", a.Verdict)
	assertIndexes(t, s)

	assert.Len(t, f.log.events, 3)
	assert.Len(t, f.repo.get("s1").TurnHistory, 3)
}

func TestCorrectHypothesisCompletes(t *testing.T) {
	f := newFixture(t,
		"VERDICT: NO\nEXPLANATION: No.",
		"VERDICT: CORRECT\nEXPLANATION: Solved!",
	)
	f.mustStart(t)
	ctx := context.Background()

	_, err := f.runner.ProcessInput(ctx, "Was the gun loaded?")
	require.NoError(t, err)
	_, err = f.runner.ProcessInput(ctx, "/hint")
	require.NoError(t, err)

	resp, err := f.runner.ProcessInput(ctx, "I think he had hiccups and the scare cured them")
	require.NoError(t, err)

	assert.Equal(t, "CORRECT", resp.Verdict)
	assert.True(t, resp.GameOver)
	require.NotNil(t, resp.Score)
	assert.Equal(t, Score(1, 1), *resp.Score)
	assert.Contains(t, resp.Message, "**The Full Answer:**")
	assert.Contains(t, resp.Message, testPuzzle().Answer)

	s := f.runner.Snapshot()
	assert.Equal(t, StateCompleted, s.State)
	require.NotNil(t, s.Score)
	assert.GreaterOrEqual(t, *s.Score, 100)
	require.NotNil(t, s.CompletedAt)
	last := s.TurnHistory[len(s.TurnHistory)-1]
	assert.True(t, last.HasTag(TagFinalVerdict))
	assert.Equal(t, "CORRECT", last.Verdict)
	assert.True(t, s.TurnHistory[len(s.TurnHistory)-2].HasTag(TagHypothesis))
	assertIndexes(t, s)

	assert.Equal(t, []string{"s1"}, f.log.summarized)
	assert.Contains(t, f.obs.changes, "in_progress->completed")
	assert.Equal(t, StateCompleted, f.repo.get("s1").State)

	_, err = f.runner.ProcessInput(ctx, "Is it over?")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPartialAndIncorrectKeepPlaying(t *testing.T) {
	f := newFixture(t,
		"VERDICT: PARTIAL\nEXPLANATION: Close.",
		"VERDICT: INCORRECT\nEXPLANATION: No.",
	)
	f.mustStart(t)
	ctx := context.Background()

	resp, err := f.runner.ProcessInput(ctx, "My guess is he was scared")
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL", resp.Verdict)
	assert.True(t, strings.HasPrefix(resp.Message, "🔶 **Partially Correct**"))
	assert.False(t, resp.GameOver)

	resp, err = f.runner.ProcessInput(ctx, "I think it was a ghost")
	require.NoError(t, err)
	assert.Equal(t, "INCORRECT", resp.Verdict)
	assert.True(t, strings.HasSuffix(resp.Message, "Keep investigating!"))

	s := f.runner.Snapshot()
	assert.Equal(t, StateInProgress, s.State)
	assert.Nil(t, s.Score)
	assert.Len(t, s.TurnHistory, 5)
}

func TestJudgeFailureIsIrrelevant(t *testing.T) {
	completer := llm.NewScripted().FailOn(0, errors.New("model offline"))
	f := newFixtureWith(t, completer, DefaultSettings())
	f.mustStart(t)

	resp, err := f.runner.ProcessInput(context.Background(), "Is he alive?")
	require.NoError(t, err)

	assert.Equal(t, "IRRELEVANT", resp.Verdict)
	assert.Contains(t, resp.Message, "I'm having trouble processing that question.")
	assert.Contains(t, f.obs.failures, "question_judge")
	assert.Len(t, f.runner.Snapshot().TurnHistory, 3)
}

func TestHypothesisJudgeFailureIsIncorrect(t *testing.T) {
	completer := llm.NewScripted().FailOn(0, errors.New("model offline"))
	f := newFixtureWith(t, completer, DefaultSettings())
	f.mustStart(t)

	resp, err := f.runner.ProcessInput(context.Background(), "I think it was hiccups")
	require.NoError(t, err)
	assert.Equal(t, "INCORRECT", resp.Verdict)
	assert.Equal(t, StateInProgress, f.runner.Snapshot().State)
}

func TestEmptyInputChangesNothing(t *testing.T) {
	f := newFixture(t)

	resp, err := f.runner.ProcessInput(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, emptyInputText, resp.Message)

	s := f.runner.Snapshot()
	assert.Equal(t, StateLobby, s.State)
	assert.Empty(t, s.TurnHistory)
	assert.Zero(t, f.repo.saves)
}

func TestLobbyAutoStarts(t *testing.T) {
	f := newFixture(t, "VERDICT: NO\nEXPLANATION: No.")

	resp, err := f.runner.ProcessInput(context.Background(), "Was he thirsty?")
	require.NoError(t, err)

	require.Len(t, resp.Events, 3)
	assert.True(t, resp.Events[0].HasTag(TagIntro))
	assert.Equal(t, "NO", resp.Verdict)
	assert.Equal(t, StateInProgress, f.runner.Snapshot().State)
}

type cancellingCompleter struct{ cancel context.CancelFunc }

func (c cancellingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.cancel()
	return "", ctx.Err()
}

func TestCancellationAppendsNothing(t *testing.T) {
	f := newFixture(t)
	f.mustStart(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner.deps.Questions = judge.NewQuestionJudge(cancellingCompleter{cancel: cancel})

	_, err := f.runner.ProcessInput(ctx, "Is he alive?")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.runner.Snapshot().TurnHistory, 1)
}

func TestCommands(t *testing.T) {
	f := newFixture(t, "VERDICT: YES\nEXPLANATION: yes")
	f.mustStart(t)
	ctx := context.Background()
	long := "Was the thing that happened to him before entering the bar related to his body?"
	_, err := f.runner.ProcessInput(ctx, long)
	require.NoError(t, err)
	before := len(f.runner.Snapshot().TurnHistory)

	status, err := f.runner.ProcessInput(ctx, "/status")
	require.NoError(t, err)
	assert.Contains(t, status.Message, "Puzzle: A Glass of Water")
	assert.Contains(t, status.Message, "Questions asked: 1")
	assert.Contains(t, status.Message, "Hints used: 0/3")

	hist, err := f.runner.ProcessInput(ctx, "!HIST")
	require.NoError(t, err)
	assert.Contains(t, hist.Message, "1. Q: "+long[:50]+"...")

	help, err := f.runner.ProcessInput(ctx, `\?`)
	require.NoError(t, err)
	assert.Contains(t, help.Message, "/hint (h)")

	unknown, err := f.runner.ProcessInput(ctx, "/dance now")
	require.NoError(t, err)
	assert.Equal(t, "Unknown command: dance. Type /help for available commands.", unknown.Message)

	assert.Len(t, f.runner.Snapshot().TurnHistory, before)

	quit, err := f.runner.ProcessInput(ctx, "/q")
	require.NoError(t, err)
	assert.True(t, quit.GameOver)
	assert.Equal(t, StateAborted, quit.State)
	assert.Equal(t, []string{"s1"}, f.log.summarized)

	_, err = f.runner.ProcessInput(ctx, "/status")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestHistoryWithoutQuestions(t *testing.T) {
	f := newFixture(t)
	f.mustStart(t)

	resp, err := f.runner.ProcessInput(context.Background(), "/history")
	require.NoError(t, err)
	assert.Equal(t, noHistoryText, resp.Message)
}

func TestHintScenarioHighVagueness(t *testing.T) {
	f := newFixture(t)
	f.mustStart(t)
	ctx := context.Background()

	var msgs []string
	for i := 0; i < 3; i++ {
		resp, err := f.runner.ProcessInput(ctx, "/hint")
		require.NoError(t, err)
		require.Len(t, resp.Events, 1)
		msgs = append(msgs, resp.Message)
	}
	assert.Equal(t, "*A subtle nudge:* Think about why he wanted water.", msgs[0])
	assert.Equal(t, "*A subtle nudge:* The gun was not a threat.", msgs[1])
	assert.Equal(t, "*Hint 3/3:* It is a common bodily annoyance.", msgs[2])

	resp, err := f.runner.ProcessInput(ctx, "/h")
	require.NoError(t, err)
	assert.Equal(t, "You've used all 3 hints available for this puzzle.", resp.Message)
	assert.Empty(t, resp.Events)

	s := f.runner.Snapshot()
	assert.Equal(t, 3, s.HintCount)
	assert.Len(t, s.TurnHistory, 4)
	assertIndexes(t, s)
}

func TestHintLowVagueness(t *testing.T) {
	st := DefaultSettings()
	st.Vagueness = VaguenessLow
	f := newFixtureWith(t, llm.NewScripted(), st)
	f.mustStart(t)

	resp, err := f.runner.ProcessInput(context.Background(), "/hint")
	require.NoError(t, err)
	assert.Equal(t, "*Hint 1/3:* Think about why he wanted water.", resp.Message)
}

func TestQuestionLimit(t *testing.T) {
	f := newFixture(t, "VERDICT: NO\nEXPLANATION: no")
	f.runner.puzzle.Constraints.MaxQuestions = 1
	f.mustStart(t)
	ctx := context.Background()

	_, err := f.runner.ProcessInput(ctx, "Was he thirsty?")
	require.NoError(t, err)
	resp, err := f.runner.ProcessInput(ctx, "Was he angry?")
	require.NoError(t, err)

	assert.Contains(t, resp.Message, "all 1 questions")
	assert.Len(t, f.runner.Snapshot().TurnHistory, 3)
}

type staticRetriever struct{ res knowledge.Result }

func (s staticRetriever) Retrieve(ctx context.Context, corpusID, query string) (knowledge.Result, error) {
	return s.res, nil
}

func TestQuestionUsesFullTierContext(t *testing.T) {
	completer := llm.NewScripted("VERDICT: YES\nEXPLANATION: ok")
	f := newFixtureWith(t, completer, DefaultSettings())
	f.runner.deps.Knowledge = knowledge.NewGateway(staticRetriever{res: knowledge.Result{
		Sources: []knowledge.Source{
			{Content: "Puzzle answer: hiccups", Metadata: map[string]string{"type": "puzzle_answer"}},
		},
	}})
	f.mustStart(t)

	_, err := f.runner.ProcessInput(context.Background(), "Was it about his body?")
	require.NoError(t, err)

	prompts := completer.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "ADDITIONAL CONTEXT:\nPuzzle answer: hiccups")
}

func TestConcurrentInputsAreSerialized(t *testing.T) {
	completer := llm.NewScripted().WithDefault("VERDICT: NO\nEXPLANATION: no")
	f := newFixtureWith(t, completer, DefaultSettings())
	f.mustStart(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.runner.ProcessInput(context.Background(), "Is it raining?")
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.runner.ProcessInput(context.Background(), "/hint")
		}()
	}
	wg.Wait()

	s := f.runner.Snapshot()
	assert.Len(t, s.TurnHistory, 1+20*2+3)
	assert.Equal(t, 3, s.HintCount)
	assertIndexes(t, s)
	for i := 1; i < len(s.TurnHistory); i++ {
		if s.TurnHistory[i].HasTag(TagQuestion) {
			assert.True(t, s.TurnHistory[i+1].HasTag(TagAnswer))
		}
	}
}

func TestAbortFromLobby(t *testing.T) {
	f := newFixture(t)

	resp, err := f.runner.Abort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAborted, resp.State)

	_, err = f.runner.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.runner.Abort(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
}
