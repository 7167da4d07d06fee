// mcp.go
//
// `turtlesoup mcp` serves the game as MCP tools on stdin/stdout.

package main

import (
	"github.com/spf13/cobra"

	"github.com/robalobadob/turtlesoup/internal/mcpserver"
)

func mcpCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the game over the Model Context Protocol (stdio)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), gf)
			if err != nil {
				return err
			}
			defer a.Close()

			mcpserver.Version = version
			return mcpserver.Serve(mcpserver.New(a.engine, a.repo, a.cfg.Server.AutoplayTurns))
		},
	}
}
