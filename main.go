// main.go
//
// Entry point of the turtlesoup binary.
// Responsibilities:
//   - Load .env into the environment before anything reads it.
//   - Build the cobra command tree (serve, play, autoplay, puzzles, sessions, mcp, version).
//   - Configure zerolog from --log-level / LOG_LEVEL.

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/turtlesoup/internal/config"
)

var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	_ = godotenv.Load()

	var gf globalFlags
	root := &cobra.Command{
		Use:           "turtlesoup",
		Short:         "Situation puzzle game master with an LLM judge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(gf.logLevel)
		},
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&gf.configPath, "config", config.DefaultPath, "path to the YAML config file")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(&gf))
	root.AddCommand(playCmd(&gf))
	root.AddCommand(autoplayCmd(&gf))
	root.AddCommand(puzzlesCmd(&gf))
	root.AddCommand(sessionsCmd(&gf))
	root.AddCommand(mcpCmd(&gf))
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("turtlesoup failed")
		os.Exit(1)
	}
}

// setupLogging writes to stderr so stdout stays free for game text and the
// MCP stdio transport.
func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print turtlesoup version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
