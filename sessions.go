// sessions.go
//
// `turtlesoup sessions` reads stored sessions, summaries and puzzle stats.

package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/memory"
	"github.com/robalobadob/turtlesoup/internal/store"
)

func sessionsCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}
	cmd.AddCommand(sessionsListCmd(gf), sessionsShowCmd(gf), sessionsStatsCmd(gf))
	return cmd
}

func sessionsListCmd(gf *globalFlags) *cobra.Command {
	var (
		f     store.Filter
		state string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), gf)
			if err != nil {
				return err
			}
			defer a.Close()

			f.State = game.State(strings.ToLower(state))
			list, err := a.sessions.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPUZZLE\tSTATE\tQUESTIONS\tSCORE\tUPDATED")
			for _, s := range list {
				score := "-"
				if s.Score != nil {
					score = fmt.Sprint(*s.Score)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.PuzzleID, s.State, s.QuestionCount(), score, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&f.PuzzleID, "puzzle", "", "only this puzzle")
	cmd.Flags().StringVar(&f.PlayerID, "player", "", "only this player")
	cmd.Flags().StringVar(&state, "state", "", "only this state (lobby, in_progress, completed, aborted)")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "maximum rows")
	return cmd
}

func sessionsShowCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's transcript and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()

			s, p, err := a.engine.Snapshot(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s (%s)  %s\n\n", s.ID, p.Title, p.ID, s.State)
			for _, ev := range s.TurnHistory {
				fmt.Fprintf(out, "%3d %-7s %s\n", ev.TurnIndex, ev.Role, ev.Message)
			}

			sum, err := a.memory.Summary(ctx, s.ID)
			switch {
			case errors.Is(err, memory.ErrNotFound):
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "\n%s\n", sum.Summary)
			}
			return nil
		},
	}
}

func sessionsStatsCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <puzzle-id>",
		Short: "Print aggregate results for a puzzle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), gf)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.memory.PuzzleStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sessions, %d solved (%.0f%%), %.1f questions on average\n",
				st.PuzzleID, st.TotalSessions, st.SuccessCount, st.SuccessRate*100, st.AvgQuestions)
			return nil
		},
	}
}
