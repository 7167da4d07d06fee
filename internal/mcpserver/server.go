// Package mcpserver exposes the game engine as MCP tools over stdio, so an
// assistant can host a turtle soup game or play one.
//
// This is wiring only: every tool delegates to game.Engine or the puzzle
// repository, and domain failures come back as tool errors rather than
// protocol errors.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
)

// Version is reported in the MCP handshake.
var Version = "dev"

// tool is what every handler in this package provides.
type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates the MCP server with every game tool registered.
func New(engine *game.Engine, repo *puzzles.Repository, autoplayTurns int) *server.MCPServer {
	s := server.NewMCPServer(
		"turtlesoup",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range []tool{
		NewListPuzzlesTool(repo),
		NewNewSessionTool(engine, repo),
		NewSendInputTool(engine),
		NewSessionStatusTool(engine),
		NewSessionHistoryTool(engine),
		NewAutoplayTool(engine, autoplayTurns),
	} {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `Turtle soup is a lateral-thinking game. A puzzle describes a strange
situation; the player asks yes/no questions to uncover the hidden story and
wins by stating it. Start with list_puzzles and new_session, then pass every
player line to send_input. Lines starting with "I think" are treated as
solutions; /hint, /status, /history and /quit are commands.`
