// play.go
//
// `turtlesoup play` is an interactive terminal game.
// Responsibilities:
//   - Create a session (given, random or filtered puzzle) or resume one.
//   - Read player lines from stdin and print the game master's replies.
//   - /auto lets the detective agent take one turn.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
)

func playCmd(gf *globalFlags) *cobra.Command {
	var (
		puzzleID  string
		language  string
		player    string
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a puzzle in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, gf)
			if err != nil {
				return err
			}
			defer a.Close()

			id := sessionID
			if id == "" {
				id, err = newSession(ctx, a.engine, a.repo, puzzleID, language, player)
				if err != nil {
					return err
				}
			}
			return playLoop(ctx, a.engine, id, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&puzzleID, "puzzle", "", "puzzle id (random when empty)")
	cmd.Flags().StringVar(&language, "language", "", "language filter for the random pick")
	cmd.Flags().StringVar(&player, "player", "", "player id recorded on the session")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session")
	return cmd
}

// newSession creates a lobby session for puzzleID, or for a random puzzle
// matching language when puzzleID is empty.
func newSession(ctx context.Context, e *game.Engine, repo *puzzles.Repository, puzzleID, language, player string) (string, error) {
	if puzzleID == "" {
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		p, err := repo.Random(ctx, puzzles.Filter{Language: language}, rng)
		if err != nil {
			return "", err
		}
		puzzleID = p.ID
	}
	var players []string
	if player != "" {
		players = []string{player}
	}
	s, err := e.CreateSession(ctx, puzzleID, game.NewSessionOptions{PlayerIDs: players})
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

func playLoop(ctx context.Context, e *game.Engine, id string, in io.Reader, out io.Writer) error {
	s, p, err := e.Snapshot(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case s.State == game.StateLobby:
		resp, err := e.Start(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n\n", resp.Message)
	case s.State.Terminal():
		fmt.Fprintf(out, "Session %s is already %s.\n", id, s.State)
		return nil
	default:
		fmt.Fprintf(out, "Resuming %s (%d questions so far).\n\n%s\n\n", p.Title, s.QuestionCount(), p.Statement)
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var resp game.Response
		if line == "/auto" {
			resp, err = e.AgentTurn(ctx, id)
			if err == nil {
				fmt.Fprintf(out, "(detective) %s\n", resp.PlayerMessage)
			}
		} else {
			resp, err = e.ProcessInput(ctx, id, line)
		}
		switch {
		case errors.Is(err, game.ErrNoAgent):
			fmt.Fprintln(out, "No detective is configured.")
			continue
		case err != nil:
			return err
		}

		fmt.Fprintf(out, "%s\n", resp.Message)
		if resp.GameOver {
			if resp.Score != nil {
				fmt.Fprintf(out, "\nFinal score: %d\n", *resp.Score)
			}
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSession saved. Resume with: turtlesoup play --session %s\n", id)
	return nil
}
