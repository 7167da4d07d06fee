package mcpserver

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/llm"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
	"github.com/robalobadob/turtlesoup/internal/store"
)

func testRepo() *puzzles.Repository {
	return puzzles.New(fstest.MapFS{
		"water/puzzle_en.json": {Data: []byte(`{
			"title": "A Glass of Water",
			"puzzle": "A man asks for water. The bartender points a gun at him. He thanks him and leaves.",
			"answer": "He had hiccups.",
			"hints": ["Why water?"],
			"tags": ["classic"],
			"difficulty": "easy"
		}`)},
		"cave/puzzle_zh.json": {Data: []byte(`{"puzzle": "他走进山洞。", "answer": "山洞是他的家。"}`)},
	})
}

func testEngine(judgeReplies, agentReplies []string) *game.Engine {
	j := llm.NewScripted(judgeReplies...)
	deps := game.Deps{
		Questions:  judge.NewQuestionJudge(j),
		Hypotheses: judge.NewHypothesisJudge(j),
	}
	if agentReplies != nil {
		deps.AgentLLM = llm.NewScripted(agentReplies...)
	}
	return game.NewEngine(testRepo(), store.NewMemoryStore(), deps, game.DefaultSettings())
}

func call(t *testing.T, tl tool, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := tl.Handle(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text, res.IsError
		}
	}
	return "", res.IsError
}

func sessionIDFrom(t *testing.T, text string) string {
	t.Helper()
	first, _, _ := strings.Cut(text, "\n")
	id, ok := strings.CutPrefix(first, "session_id: ")
	require.True(t, ok, text)
	return id
}

func TestDefinitions(t *testing.T) {
	e := testEngine(nil, nil)
	repo := testRepo()
	tests := []struct {
		tool     tool
		name     string
		required []string
	}{
		{NewListPuzzlesTool(repo), "list_puzzles", nil},
		{NewNewSessionTool(e, repo), "new_session", nil},
		{NewSendInputTool(e), "send_input", []string{"session_id", "text"}},
		{NewSessionStatusTool(e), "session_status", []string{"session_id"}},
		{NewSessionHistoryTool(e), "session_history", []string{"session_id"}},
		{NewAutoplayTool(e, 0), "autoplay", []string{"session_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := tt.tool.Definition()
			assert.Equal(t, tt.name, def.Name)
			assert.ElementsMatch(t, tt.required, def.InputSchema.Required)
		})
	}
	assert.NotNil(t, New(e, repo, 10))
}

func TestListPuzzles(t *testing.T) {
	tl := NewListPuzzlesTool(testRepo())

	text, isErr := call(t, tl, map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "2 puzzles")
	assert.NotContains(t, text, "hiccups")

	text, _ = call(t, tl, map[string]any{"language": "zh"})
	assert.Contains(t, text, "cave")
	assert.NotContains(t, text, "water")

	text, _ = call(t, tl, map[string]any{"tag": "nope"})
	assert.Equal(t, "No puzzles match.", text)
}

func TestPlayThroughTools(t *testing.T) {
	e := testEngine([]string{
		"VERDICT: NO\nEXPLANATION: Not thirst.",
		"VERDICT: CORRECT\nEXPLANATION: Yes!",
	}, nil)
	repo := testRepo()

	text, isErr := call(t, NewNewSessionTool(e, repo), map[string]any{"puzzle_id": "water", "player_id": "ann"})
	require.False(t, isErr, text)
	id := sessionIDFrom(t, text)
	assert.Contains(t, text, "A man asks for water.")

	text, isErr = call(t, NewSendInputTool(e), map[string]any{"session_id": id, "text": "Was he thirsty?"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "NO")

	text, _ = call(t, NewSessionHistoryTool(e), map[string]any{"session_id": id})
	assert.Equal(t, "1. Q: Was he thirsty?\n   A: NO\n", text)

	text, _ = call(t, NewSessionStatusTool(e), map[string]any{"session_id": id})
	assert.Contains(t, text, "state: in_progress")
	assert.Contains(t, text, "questions: 1")
	assert.NotContains(t, text, "answer:")

	text, isErr = call(t, NewSendInputTool(e), map[string]any{"session_id": id, "text": "I think he had hiccups"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "[game over: completed, score")

	text, _ = call(t, NewSessionStatusTool(e), map[string]any{"session_id": id})
	assert.Contains(t, text, "answer: He had hiccups.")

	text, isErr = call(t, NewSendInputTool(e), map[string]any{"session_id": id, "text": "Anything else?"})
	assert.True(t, isErr, text)
}

func TestToolErrors(t *testing.T) {
	e := testEngine(nil, nil)
	repo := testRepo()

	_, isErr := call(t, NewSendInputTool(e), map[string]any{"text": "hi?"})
	assert.True(t, isErr)

	_, isErr = call(t, NewSessionStatusTool(e), map[string]any{"session_id": "missing"})
	assert.True(t, isErr)

	_, isErr = call(t, NewNewSessionTool(e, repo), map[string]any{"puzzle_id": "ghost"})
	assert.True(t, isErr)

	_, isErr = call(t, NewNewSessionTool(e, repo), map[string]any{"language": "fr"})
	assert.True(t, isErr)

	text, isErr := call(t, NewNewSessionTool(e, repo), map[string]any{"language": "zh"})
	require.False(t, isErr)
	assert.Contains(t, text, "puzzle_id: cave")
}

func TestAutoplayTool(t *testing.T) {
	e := testEngine([]string{"VERDICT: NO\nEXPLANATION: No."}, []string{"Was it raining?"})
	text, _ := call(t, NewNewSessionTool(e, testRepo()), map[string]any{"puzzle_id": "water"})
	id := sessionIDFrom(t, text)

	text, isErr := call(t, NewAutoplayTool(e, 3), map[string]any{"session_id": id, "max_turns": float64(1)})
	require.False(t, isErr, text)
	assert.True(t, strings.HasPrefix(text, "> Was it raining?\n"), text)

	noAgent := testEngine(nil, nil)
	text, _ = call(t, NewNewSessionTool(noAgent, testRepo()), map[string]any{"puzzle_id": "water"})
	text, isErr = call(t, NewAutoplayTool(noAgent, 3), map[string]any{"session_id": sessionIDFrom(t, text)})
	assert.True(t, isErr)
	assert.Contains(t, text, game.ErrNoAgent.Error())
}
