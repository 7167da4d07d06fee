// puzzles.go
//
// `turtlesoup puzzles` inspects the puzzle catalog without starting a game.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/turtlesoup/internal/config"
	"github.com/robalobadob/turtlesoup/internal/knowledge"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
)

func puzzlesCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "puzzles",
		Short: "List, show and index puzzles",
	}
	cmd.AddCommand(puzzlesListCmd(gf), puzzlesShowCmd(gf), puzzlesIndexCmd(gf))
	return cmd
}

func puzzlesListCmd(gf *globalFlags) *cobra.Command {
	var f puzzles.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List puzzles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(gf.configPath)
			if err != nil {
				return err
			}
			list, err := puzzleRepo(cfg).List(cmd.Context(), f)
			if err != nil {
				return err
			}
			writePuzzleTable(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Language, "language", "", "only this language")
	cmd.Flags().StringVar(&f.Difficulty, "difficulty", "", "only this difficulty")
	cmd.Flags().StringSliceVar(&f.Tags, "tag", nil, "only puzzles with any of these tags")
	return cmd
}

func writePuzzleTable(out io.Writer, list []puzzles.Summary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tLANG\tDIFFICULTY\tTAGS")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Language, p.Difficulty, strings.Join(p.Tags, ","))
	}
	tw.Flush()
}

func puzzlesShowCmd(gf *globalFlags) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a puzzle's statement (and answer with --reveal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(gf.configPath)
			if err != nil {
				return err
			}
			p, err := puzzleRepo(cfg).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s [%s]\n\n%s\n", p.Title, p.ID, p.Statement)
			if reveal {
				fmt.Fprintf(out, "\nAnswer: %s\n", p.Answer)
				for i, h := range p.Hints {
					fmt.Fprintf(out, "Hint %d: %s\n", i+1, h)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "also print the answer and hints")
	return cmd
}

func puzzlesIndexCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index every puzzle into the knowledge corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(gf.configPath)
			if err != nil {
				return err
			}
			if cfg.Knowledge.CorpusPath == "" {
				return fmt.Errorf("knowledge.corpus_path is not set")
			}
			ctx := cmd.Context()
			corpus, err := knowledge.OpenCorpus(ctx, cfg.Knowledge.CorpusPath, cfg.Knowledge.TopK)
			if err != nil {
				return err
			}
			defer corpus.Close()

			n, err := puzzleRepo(cfg).IndexAll(ctx, corpus)
			if err != nil {
				return err
			}
			log.Info().Int("puzzles", n).Str("corpus", cfg.Knowledge.CorpusPath).Msg("indexed")
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d puzzles\n", n)
			return nil
		},
	}
}
