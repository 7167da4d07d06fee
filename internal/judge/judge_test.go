package judge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

type slowCompleter struct{}

func (slowCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestParseQuestionReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  QuestionVerdict
		expl  string
	}{
		{"yes", "VERDICT: YES\nEXPLANATION: Good question.", Yes, "Good question."},
		{"no", "VERDICT: NO\nEXPLANATION: Not quite.", No, "Not quite."},
		{"literal yes and no", "VERDICT: YES_AND_NO\nEXPLANATION: Sort of.", YesAndNo, "Sort of."},
		{"spaced yes and no", "verdict: yes and no\nexplanation: Both.", YesAndNo, "Both."},
		{"no then yes", "VERDICT: NO/YES\nEXPLANATION: x", YesAndNo, "x"},
		{"irrelevant", "VERDICT: IRRELEVANT\nEXPLANATION: Unrelated.", Irrelevant, "Unrelated."},
		{"garbage label", "VERDICT: MAYBE\nEXPLANATION: Hmm.", Irrelevant, "Hmm."},
		{"no verdict line", "Yes, definitely.", Irrelevant, "Yes, definitely."},
		{"indented lines", "  VERDICT:   yes  \n  EXPLANATION:  Indeed. ", Yes, "Indeed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, expl := ParseQuestionReply(tt.reply)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.expl, expl)
		})
	}
}

func TestParseQuestionReply_ExplanationFallbackIsBounded(t *testing.T) {
	reply := "VERDICT: NO\n" + strings.Repeat("x", 500)
	_, expl := ParseQuestionReply(reply)
	assert.Equal(t, 200, len([]rune(expl)))
	assert.True(t, strings.HasPrefix(expl, "VERDICT: NO"))
}

func TestParseHypothesisReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  HypothesisVerdict
	}{
		{"correct", "VERDICT: CORRECT\nEXPLANATION: Solved!", Correct},
		{"lowercase correct", "verdict: correct\nexplanation: yes", Correct},
		{"incorrect", "VERDICT: INCORRECT\nEXPLANATION: No.", Incorrect},
		{"partial", "VERDICT: PARTIAL\nEXPLANATION: Close.", Partial},
		{"partially correct", "VERDICT: PARTIALLY CORRECT\nEXPLANATION: Close.", Partial},
		{"correct and incorrect", "VERDICT: CORRECT/INCORRECT\nEXPLANATION: ?", Incorrect},
		{"unknown label", "VERDICT: WRONG\nEXPLANATION: ?", Incorrect},
		{"missing verdict", "You got it!", Incorrect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := ParseHypothesisReply(tt.reply)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestQuestionJudge_Evaluate(t *testing.T) {
	llm := &stubCompleter{reply: "VERDICT: YES\nEXPLANATION: Good question."}
	j := NewQuestionJudge(llm)

	res := j.Evaluate(context.Background(), QuestionInput{
		Question:   "Did he have hiccups?",
		Statement:  "A man asks for water and is handed a gun.",
		Answer:     "He had hiccups.",
		Context:    "Puzzle answer: He had hiccups.",
		Strictness: Strict,
	})

	require.NoError(t, res.Err)
	assert.Equal(t, Yes, res.Verdict)
	assert.Equal(t, "Good question.", res.Explanation)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Did he have hiccups?")
	assert.Contains(t, llm.prompts[0], "He had hiccups.")
	assert.Contains(t, llm.prompts[0], "Only say YES if it directly follows from the answer.")
	assert.Contains(t, llm.prompts[0], "VERDICT:")
}

func TestQuestionJudge_FailureIsIrrelevant(t *testing.T) {
	j := NewQuestionJudge(&stubCompleter{err: errors.New("boom")})

	res := j.Evaluate(context.Background(), QuestionInput{Question: "Is he alive?"})

	assert.Error(t, res.Err)
	assert.Equal(t, Irrelevant, res.Verdict)
	assert.Equal(t, questionFailureExplanation, res.Explanation)
}

func TestQuestionJudge_TimeoutAppliesDefault(t *testing.T) {
	j := NewQuestionJudge(slowCompleter{}, WithTimeout(10*time.Millisecond))

	res := j.Evaluate(context.Background(), QuestionInput{Question: "Is he alive?"})

	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, Irrelevant, res.Verdict)
}

func TestHypothesisJudge_FailureIsNeverCorrect(t *testing.T) {
	j := NewHypothesisJudge(&stubCompleter{reply: "VERDICT: CORRECT", err: errors.New("boom")})

	res := j.Evaluate(context.Background(), HypothesisInput{Hypothesis: "I think it was a ghost"})

	assert.Error(t, res.Err)
	assert.Equal(t, Incorrect, res.Verdict)
	assert.Equal(t, hypothesisFailureExplanation, res.Explanation)
}

func TestStrictnessWording(t *testing.T) {
	lenient := QuestionPrompt(QuestionInput{Strictness: Lenient})
	moderate := QuestionPrompt(QuestionInput{Strictness: Moderate})
	other := QuestionPrompt(QuestionInput{Strictness: "whatever"})

	assert.Contains(t, lenient, "lean towards YES")
	assert.Contains(t, moderate, "Use reasonable judgment")
	assert.Contains(t, other, "Use reasonable judgment")
	assert.NotContains(t, QuestionPrompt(QuestionInput{}), "ADDITIONAL CONTEXT")
}
