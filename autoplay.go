// autoplay.go
//
// `turtlesoup autoplay` lets the detective agent play unattended.
// Responsibilities:
//   - Run --sessions games concurrently (errgroup, bounded by --parallel).
//   - Stream every turn, prefixed with a short session id.
//   - Print a summary line per session when all are done.

package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
)

type autoplayOpts struct {
	puzzleID string
	language string
	sessions int
	parallel int
	turns    int
	quiet    bool
}

type autoplayResult struct {
	SessionID string
	PuzzleID  string
	State     game.State
	Questions int
	Score     *int
	Err       error
}

func autoplayCmd(gf *globalFlags) *cobra.Command {
	var o autoplayOpts
	cmd := &cobra.Command{
		Use:   "autoplay",
		Short: "Let the detective agent play one or more sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()
			if o.turns <= 0 {
				o.turns = a.cfg.Server.AutoplayTurns
			}

			results, err := runAutoplay(ctx, a.engine, a.repo, o, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			printAutoplaySummary(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.puzzleID, "puzzle", "", "puzzle id (random per session when empty)")
	cmd.Flags().StringVar(&o.language, "language", "", "language filter for random picks")
	cmd.Flags().IntVar(&o.sessions, "sessions", 1, "number of sessions to play")
	cmd.Flags().IntVar(&o.parallel, "parallel", 4, "sessions played at once")
	cmd.Flags().IntVar(&o.turns, "turns", 0, "turn limit per session (default server.autoplay_turns)")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "only print the summary")
	return cmd
}

// runAutoplay plays o.sessions games. A failing game is reported in its
// result; only setup errors (no puzzle, store down) abort the whole run.
func runAutoplay(ctx context.Context, e *game.Engine, repo *puzzles.Repository, o autoplayOpts, out io.Writer) ([]autoplayResult, error) {
	if o.sessions <= 0 {
		o.sessions = 1
	}
	results := make([]autoplayResult, o.sessions)

	var mu sync.Mutex
	printf := func(format string, args ...any) {
		if o.quiet {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	g, ctx := errgroup.WithContext(ctx)
	if o.parallel > 0 {
		g.SetLimit(o.parallel)
	}
	for i := range results {
		g.Go(func() error {
			id, err := newSession(ctx, e, repo, o.puzzleID, o.language, "")
			if err != nil {
				return err
			}
			tag := id
			if len(tag) > 8 {
				tag = tag[:8]
			}

			_, playErr := e.AutoPlay(ctx, id, o.turns, func(r game.Response) {
				if r.PlayerMessage != "" {
					printf("[%s] > %s\n", tag, r.PlayerMessage)
				}
				printf("[%s] %s\n", tag, r.Message)
			})

			s, _, err := e.Snapshot(ctx, id)
			if err != nil {
				return err
			}
			results[i] = autoplayResult{
				SessionID: id,
				PuzzleID:  s.PuzzleID,
				State:     s.State,
				Questions: s.QuestionCount(),
				Score:     s.Score,
				Err:       playErr,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printAutoplaySummary(out io.Writer, results []autoplayResult) {
	solved := 0
	fmt.Fprintln(out)
	for _, r := range results {
		line := fmt.Sprintf("%s  %-18s %-11s questions=%d", r.SessionID, r.PuzzleID, r.State, r.Questions)
		if r.Score != nil {
			line += fmt.Sprintf(" score=%d", *r.Score)
		}
		if r.Err != nil {
			line += " error=" + r.Err.Error()
		}
		if r.State == game.StateCompleted {
			solved++
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "solved %d/%d\n", solved, len(results))
}
