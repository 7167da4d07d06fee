package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	res Result
	err error
}

func (f fakeRetriever) Retrieve(ctx context.Context, corpusID, query string) (Result, error) {
	return f.res, f.err
}

func src(t DocType, content string) Source {
	return Source{Content: content, Metadata: map[string]string{"type": string(t)}}
}

func everyType() Result {
	return Result{
		Answer: "synthesized",
		Sources: []Source{
			src(TypePuzzleStatement, "statement"),
			src(TypePublicFact, "fact"),
			src(TypeHint, "hint"),
			src(TypePuzzleAnswer, "answer"),
			src(TypeAdditionalInfo, "info"),
			src("mystery", "unknown type"),
			{Content: "no metadata"},
		},
	}
}

func typesOf(r Result) []DocType {
	var out []DocType
	for _, s := range r.Sources {
		out = append(out, s.Type())
	}
	return out
}

func TestTierMembershipIsExclusive(t *testing.T) {
	for _, dt := range TierAll.Types() {
		n := 0
		for _, tier := range []Tier{TierPublic, TierHint, TierSecret} {
			if tier.Allows(dt) {
				n++
			}
		}
		assert.Equal(t, 1, n, "type %s", dt)
	}
	assert.Len(t, TierAll.Types(), 5)
	assert.Equal(t, TierNone, TierOf("mystery"))
}

func TestGatewayLevels(t *testing.T) {
	g := NewGateway(fakeRetriever{res: everyType()})
	ctx := context.Background()

	pub := g.QueryPublic(ctx, "p1", "q")
	assert.Equal(t, []DocType{TypePuzzleStatement, TypePublicFact}, typesOf(pub))
	assert.Equal(t, "synthesized", pub.Answer)

	hints := g.QueryWithHints(ctx, "p1", "q")
	assert.Equal(t, []DocType{TypePuzzleStatement, TypePublicFact, TypeHint}, typesOf(hints))

	full := g.QueryFull(ctx, "p1", "q")
	assert.Equal(t, []DocType{TypePuzzleStatement, TypePublicFact, TypeHint, TypePuzzleAnswer, TypeAdditionalInfo}, typesOf(full))
}

func TestQueryPublicNeverLeaksSecrets(t *testing.T) {
	secretHeavy := Result{Sources: []Source{
		src(TypePuzzleAnswer, "a"), src(TypeAdditionalInfo, "b"), src(TypePuzzleAnswer, "c"),
	}}
	g := NewGateway(fakeRetriever{res: secretHeavy})

	res := g.QueryPublic(context.Background(), "p1", "anything")

	for _, s := range res.Sources {
		assert.NotEqual(t, TypePuzzleAnswer, s.Type())
		assert.NotEqual(t, TypeAdditionalInfo, s.Type())
	}
	assert.Empty(t, res.Sources)
}

func TestGatewayRetrieverFailureYieldsEmptyResult(t *testing.T) {
	g := NewGateway(fakeRetriever{res: everyType(), err: errors.New("index offline")})

	res := g.QueryFull(context.Background(), "p1", "q")

	assert.True(t, res.Empty())
}

func TestGatewayWithoutCorpus(t *testing.T) {
	require.True(t, NewGateway(nil).QueryFull(context.Background(), "p1", "q").Empty())
	require.True(t, NewGateway(fakeRetriever{res: everyType()}).QueryFull(context.Background(), "", "q").Empty())
}

func TestContextText(t *testing.T) {
	r := Result{Sources: []Source{src(TypeHint, "one"), src(TypeHint, "two")}}
	assert.Equal(t, "one\ntwo", r.ContextText())
}
