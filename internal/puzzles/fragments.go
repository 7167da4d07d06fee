package puzzles

import (
	"context"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/knowledge"
)

// Fragments turns a puzzle into tagged corpus documents. Every fragment
// carries the puzzle id in its metadata.
func Fragments(p *game.Puzzle) []knowledge.Fragment {
	meta := func() map[string]string { return map[string]string{"puzzle_id": p.ID} }

	out := []knowledge.Fragment{
		{Content: "Puzzle statement: " + p.Statement, Type: knowledge.TypePuzzleStatement, Meta: meta()},
		{Content: "Puzzle answer: " + p.Answer, Type: knowledge.TypePuzzleAnswer, Meta: meta()},
	}
	for _, f := range p.PublicFacts {
		out = append(out, knowledge.Fragment{Content: f, Type: knowledge.TypePublicFact, Meta: meta()})
	}
	for _, h := range p.Hints {
		out = append(out, knowledge.Fragment{Content: h, Type: knowledge.TypeHint, Meta: meta()})
	}
	for _, kv := range p.AdditionalInfo {
		m := meta()
		m["key"] = kv.Key
		out = append(out, knowledge.Fragment{Content: kv.Key + ": " + kv.Value, Type: knowledge.TypeAdditionalInfo, Meta: m})
	}
	return out
}

// IndexAll builds one corpus per puzzle, keyed by puzzle id.
func (r *Repository) IndexAll(ctx context.Context, c *knowledge.Corpus) (int, error) {
	all, err := r.All(ctx)
	if err != nil {
		return 0, err
	}
	corpora := make(map[string][]knowledge.Fragment, len(all))
	for _, p := range all {
		corpora[p.ID] = Fragments(p)
	}
	if err := c.IndexAll(ctx, corpora); err != nil {
		return 0, err
	}
	return len(corpora), nil
}
