package mcpserver

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
)

// --- list_puzzles ---

// ListPuzzlesTool handles the list_puzzles MCP tool.
type ListPuzzlesTool struct {
	repo *puzzles.Repository
}

func NewListPuzzlesTool(repo *puzzles.Repository) *ListPuzzlesTool {
	return &ListPuzzlesTool{repo: repo}
}

func (t *ListPuzzlesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_puzzles",
		mcp.WithDescription("List the available puzzles. Answers are never included."),
		mcp.WithString("language", mcp.Description("Only puzzles in this language, e.g. en or zh")),
		mcp.WithString("difficulty", mcp.Description("Only puzzles of this difficulty: easy, medium or hard")),
		mcp.WithString("tag", mcp.Description("Only puzzles carrying this tag")),
	)
}

func (t *ListPuzzlesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := puzzles.Filter{
		Language:   req.GetString("language", ""),
		Difficulty: req.GetString("difficulty", ""),
	}
	if tag := strings.TrimSpace(req.GetString("tag", "")); tag != "" {
		f.Tags = []string{tag}
	}
	list, err := t.repo.List(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing puzzles: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No puzzles match."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d puzzles:\n", len(list))
	for _, p := range list {
		fmt.Fprintf(&b, "- %s: %s [%s", p.ID, p.Title, p.Language)
		if p.Difficulty != "" {
			fmt.Fprintf(&b, ", %s", p.Difficulty)
		}
		b.WriteString("]")
		if len(p.Tags) > 0 {
			fmt.Fprintf(&b, " tags: %s", strings.Join(p.Tags, ", "))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- new_session ---

// NewSessionTool handles the new_session MCP tool.
type NewSessionTool struct {
	engine *game.Engine
	repo   *puzzles.Repository
}

func NewNewSessionTool(engine *game.Engine, repo *puzzles.Repository) *NewSessionTool {
	return &NewSessionTool{engine: engine, repo: repo}
}

func (t *NewSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("new_session",
		mcp.WithDescription("Create and start a game session. Returns the session id and the puzzle introduction."),
		mcp.WithString("puzzle_id", mcp.Description("Puzzle to play; a random one when omitted")),
		mcp.WithString("language", mcp.Description("Language filter for the random pick")),
		mcp.WithString("player_id", mcp.Description("Player the session belongs to")),
	)
}

func (t *NewSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	puzzleID := strings.TrimSpace(req.GetString("puzzle_id", ""))
	if puzzleID == "" {
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		p, err := t.repo.Random(ctx, puzzles.Filter{Language: req.GetString("language", "")}, rng)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		puzzleID = p.ID
	}

	var players []string
	if id := strings.TrimSpace(req.GetString("player_id", "")); id != "" {
		players = []string{id}
	}
	sess, err := t.engine.CreateSession(ctx, puzzleID, game.NewSessionOptions{PlayerIDs: players})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.engine.Start(ctx, sess.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("session_id: %s\npuzzle_id: %s\n\n%s", sess.ID, puzzleID, resp.Message)), nil
}

// --- send_input ---

// SendInputTool handles the send_input MCP tool.
type SendInputTool struct {
	engine *game.Engine
}

func NewSendInputTool(engine *game.Engine) *SendInputTool {
	return &SendInputTool{engine: engine}
}

func (t *SendInputTool) Definition() mcp.Tool {
	return mcp.NewTool("send_input",
		mcp.WithDescription("Send one line of player input: a yes/no question, a solution starting with \"I think\", or a command such as /hint."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to play in")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The player's line")),
	)
}

func (t *SendInputTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("session_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	text := strings.TrimSpace(req.GetString("text", ""))
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	resp, err := t.engine.ProcessInput(ctx, id, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatResponse(resp)), nil
}

func formatResponse(resp game.Response) string {
	var b strings.Builder
	b.WriteString(resp.Message)
	if resp.GameOver {
		fmt.Fprintf(&b, "\n\n[game over: %s", resp.State)
		if resp.Score != nil {
			fmt.Fprintf(&b, ", score %d", *resp.Score)
		}
		b.WriteString("]")
	}
	return b.String()
}

// --- session_status ---

// SessionStatusTool handles the session_status MCP tool.
type SessionStatusTool struct {
	engine *game.Engine
}

func NewSessionStatusTool(engine *game.Engine) *SessionStatusTool {
	return &SessionStatusTool{engine: engine}
}

func (t *SessionStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("session_status",
		mcp.WithDescription("Show a session's state, question and hint counts and score."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to inspect")),
	)
}

func (t *SessionStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("session_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	s, p, err := t.engine.Snapshot(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "session: %s\npuzzle: %s (%s)\nstate: %s\n", s.ID, p.Title, p.ID, s.State)
	fmt.Fprintf(&b, "questions: %d\nhints: %d/%d\n", s.QuestionCount(), s.HintCount, p.Constraints.MaxHints)
	if s.Score != nil {
		fmt.Fprintf(&b, "score: %d\n", *s.Score)
	}
	if s.State == game.StateCompleted {
		fmt.Fprintf(&b, "answer: %s\n", p.Answer)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- session_history ---

// SessionHistoryTool handles the session_history MCP tool.
type SessionHistoryTool struct {
	engine *game.Engine
}

func NewSessionHistoryTool(engine *game.Engine) *SessionHistoryTool {
	return &SessionHistoryTool{engine: engine}
}

func (t *SessionHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("session_history",
		mcp.WithDescription("List the questions asked so far with their verdicts."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to inspect")),
		mcp.WithNumber("limit", mcp.Description("Most recent pairs to show (default 10, 0 for all)")),
	)
}

func (t *SessionHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("session_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	limit := int(req.GetFloat("limit", 10))
	s, _, err := t.engine.Snapshot(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pairs := s.QAPairs(limit)
	if len(pairs) == 0 {
		return mcp.NewToolResultText("No questions asked yet."), nil
	}
	var b strings.Builder
	for i, qa := range pairs {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, qa.Question, qa.Verdict)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- autoplay ---

// AutoplayTool handles the autoplay MCP tool.
type AutoplayTool struct {
	engine   *game.Engine
	maxTurns int
}

func NewAutoplayTool(engine *game.Engine, maxTurns int) *AutoplayTool {
	if maxTurns <= 0 {
		maxTurns = 40
	}
	return &AutoplayTool{engine: engine, maxTurns: maxTurns}
}

func (t *AutoplayTool) Definition() mcp.Tool {
	return mcp.NewTool("autoplay",
		mcp.WithDescription("Let the built-in detective play a session for a number of turns and return the transcript."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to play")),
		mcp.WithNumber("max_turns", mcp.Description("Turn limit (capped by server configuration)")),
	)
}

func (t *AutoplayTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("session_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	turns := int(req.GetFloat("max_turns", float64(t.maxTurns)))
	if turns <= 0 || turns > t.maxTurns {
		turns = t.maxTurns
	}

	responses, err := t.engine.AutoPlay(ctx, id, turns, nil)
	var b strings.Builder
	for _, r := range responses {
		if r.PlayerMessage != "" {
			fmt.Fprintf(&b, "> %s\n", r.PlayerMessage)
		}
		fmt.Fprintf(&b, "%s\n\n", formatResponse(r))
	}
	if err != nil {
		fmt.Fprintf(&b, "stopped: %v", err)
		return mcp.NewToolResultError(b.String()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}
