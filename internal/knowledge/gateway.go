// internal/knowledge/gateway.go
//
// Tiered access to a puzzle's knowledge corpus.
// Responsibilities:
//   - Delegate the search to a Retriever collaborator.
//   - Post-filter Result.Sources by their "type" metadata against the allowed tiers.
//   - Swallow retriever failures: an empty Result is returned and the error logged.
//
// The synthesized Answer text is passed through unfiltered. Callers that must
// not see secret material (the player agent) read Sources only.

package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Source is one retrieved fragment plus its metadata.
type Source struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Type returns the fragment's declared document type.
func (s Source) Type() DocType { return DocType(s.Metadata["type"]) }

// Result is what a corpus query returns.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Empty reports whether the result carries no context at all.
func (r Result) Empty() bool { return r.Answer == "" && len(r.Sources) == 0 }

// ContextText joins the filtered sources into one block for a prompt.
func (r Result) ContextText() string {
	parts := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n")
}

// Retriever searches one corpus. Implementations must be safe for
// concurrent use.
type Retriever interface {
	Retrieve(ctx context.Context, corpusID, query string) (Result, error)
}

// Gateway enforces tier filtering on top of a Retriever.
type Gateway struct {
	r       Retriever
	timeout time.Duration
	log     zerolog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithQueryTimeout bounds every retrieval call.
func WithQueryTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithLogger sets the logger used for retrieval failures.
func WithLogger(l zerolog.Logger) GatewayOption {
	return func(g *Gateway) { g.log = l }
}

// NewGateway wraps r. A nil Retriever yields empty results.
func NewGateway(r Retriever, opts ...GatewayOption) *Gateway {
	g := &Gateway{r: r, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Query searches corpusID and keeps only sources admitted by allowed.
func (g *Gateway) Query(ctx context.Context, corpusID, text string, allowed Tier) Result {
	if g == nil || g.r == nil || corpusID == "" {
		return Result{}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.r.Retrieve(ctx, corpusID, text)
	if err != nil {
		g.log.Warn().Err(err).Str("corpus", corpusID).Stringer("tiers", allowed).Msg("knowledge query failed")
		return Result{}
	}

	out := Result{Answer: raw.Answer}
	for _, s := range raw.Sources {
		if allowed.Allows(s.Type()) {
			out.Sources = append(out.Sources, s)
		}
	}
	return out
}

// QueryPublic is the level for player-facing automated questioners.
func (g *Gateway) QueryPublic(ctx context.Context, corpusID, text string) Result {
	return g.Query(ctx, corpusID, text, TierPublic)
}

// QueryWithHints admits public and hint fragments.
func (g *Gateway) QueryWithHints(ctx context.Context, corpusID, text string) Result {
	return g.Query(ctx, corpusID, text, TierPublic|TierHint)
}

// QueryFull admits every tier. Only the judges use it.
func (g *Gateway) QueryFull(ctx context.Context, corpusID, text string) Result {
	return g.Query(ctx, corpusID, text, TierAll)
}
