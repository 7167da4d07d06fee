// serve.go
//
// `turtlesoup serve` runs the JSON API.
// Responsibilities:
//   - Wire the app and the HTTP server.
//   - Drop finished sessions from engine memory on a timer.
//   - Shut down gracefully on SIGINT/SIGTERM.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/turtlesoup/internal/httpserver"
)

func serveCmd(gf *globalFlags) *cobra.Command {
	var (
		port  string
		evict time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == "" {
				port = a.cfg.Server.Port
			}
			go evictLoop(ctx, a, evict)

			srv := httpserver.New(a.httpDeps(), a.cfg)
			log.Info().Str("port", port).Str("origin", a.cfg.Server.ClientOrigin).Msg("listening")
			return srv.ListenAndServe(ctx, ":"+port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default server.port)")
	cmd.Flags().DurationVar(&evict, "evict-every", 10*time.Minute, "how often finished sessions leave memory")
	return cmd
}

func evictLoop(ctx context.Context, a *app, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.engine.Evict(); n > 0 {
				log.Debug().Int("sessions", n).Msg("evicted finished sessions")
			}
		}
	}
}
