// internal/judge/judge.go
//
// Language-judgment evaluators for player questions and hypotheses.
// Responsibilities:
//   - Build the judgment request (see prompts.go) and send it to a Completer.
//   - Parse the two-line "VERDICT:" / "EXPLANATION:" reply into a closed verdict set.
//   - Apply fail-safe defaults when the completion call fails or times out.
//
// Notes:
//   - Unrecognised verdict text always resolves to the conservative label
//     (IRRELEVANT for questions, INCORRECT for hypotheses).
//   - Evaluate never returns an error. A failed call is reported on the result
//     (Result.Err) and logged, so the caller can surface it to an observer.

package judge

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Completer is the language-model collaborator: prompt in, free text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Strictness tunes the wording of the question-judgment request.
type Strictness string

const (
	Strict   Strictness = "strict"
	Moderate Strictness = "moderate"
	Lenient  Strictness = "lenient"
)

// QuestionVerdict is the answer to a yes/no question.
type QuestionVerdict string

const (
	Yes        QuestionVerdict = "YES"
	No         QuestionVerdict = "NO"
	YesAndNo   QuestionVerdict = "YES_AND_NO"
	Irrelevant QuestionVerdict = "IRRELEVANT"
)

// HypothesisVerdict is the outcome of a proposed solution.
type HypothesisVerdict string

const (
	Correct   HypothesisVerdict = "CORRECT"
	Partial   HypothesisVerdict = "PARTIAL"
	Incorrect HypothesisVerdict = "INCORRECT"
)

const (
	// explanationFallbackLen bounds the raw-reply fallback used when the
	// model omits the EXPLANATION line. Both judges share it.
	explanationFallbackLen = 200

	questionFailureExplanation   = "I'm having trouble processing that question. Try rephrasing it."
	hypothesisFailureExplanation = "Unable to evaluate the hypothesis. Please try again."
)

// Option configures a judge.
type Option func(*options)

type options struct {
	timeout time.Duration
	log     zerolog.Logger
}

// WithTimeout bounds every completion call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger routes collaborator failures to l.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// complete runs one completion call under the configured timeout.
func (o options) complete(ctx context.Context, llm Completer, prompt string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return llm.Complete(ctx, prompt)
}

// ------------------------------ questions ----------------------------------

// QuestionInput is everything the question judge looks at.
type QuestionInput struct {
	Question   string
	Statement  string
	Answer     string
	Context    string // optional full-tier corpus context
	Strictness Strictness
}

// QuestionResult is the parsed judgment. Err is set when the fail-safe
// default was applied because the completion call failed.
type QuestionResult struct {
	Verdict     QuestionVerdict
	Explanation string
	Err         error
}

// QuestionJudge evaluates yes/no questions against the hidden answer.
type QuestionJudge struct {
	llm  Completer
	opts options
}

// NewQuestionJudge returns a judge that asks llm for verdicts.
func NewQuestionJudge(llm Completer, opts ...Option) *QuestionJudge {
	return &QuestionJudge{llm: llm, opts: buildOptions(opts)}
}

// Evaluate judges one question. It never fails; see QuestionResult.Err.
func (j *QuestionJudge) Evaluate(ctx context.Context, in QuestionInput) QuestionResult {
	reply, err := j.opts.complete(ctx, j.llm, QuestionPrompt(in))
	if err != nil {
		j.opts.log.Error().Err(err).Str("question", in.Question).Msg("question judgment failed")
		return QuestionResult{Verdict: Irrelevant, Explanation: questionFailureExplanation, Err: err}
	}
	v, expl := ParseQuestionReply(reply)
	return QuestionResult{Verdict: v, Explanation: expl}
}

// ParseQuestionReply extracts the verdict and explanation from a judge reply.
func ParseQuestionReply(reply string) (QuestionVerdict, string) {
	verdict := Irrelevant
	value, explanation, found := scanLabels(reply)
	if found {
		hasYes := strings.Contains(value, "YES")
		hasNo := strings.Contains(value, "NO")
		switch {
		case hasYes && hasNo:
			verdict = YesAndNo
		case hasYes:
			verdict = Yes
		case hasNo:
			verdict = No
		}
	}
	if explanation == "" {
		explanation = truncate(strings.TrimSpace(reply), explanationFallbackLen)
	}
	return verdict, explanation
}

// ----------------------------- hypotheses ----------------------------------

// HypothesisInput is everything the hypothesis judge looks at.
type HypothesisInput struct {
	Hypothesis string
	Statement  string
	Answer     string
	Context    string
}

// HypothesisResult is the parsed judgment of a proposed solution.
type HypothesisResult struct {
	Verdict     HypothesisVerdict
	Explanation string
	Err         error
}

// HypothesisJudge evaluates proposed solutions against the hidden answer.
type HypothesisJudge struct {
	llm  Completer
	opts options
}

// NewHypothesisJudge returns a judge that asks llm for verdicts.
func NewHypothesisJudge(llm Completer, opts ...Option) *HypothesisJudge {
	return &HypothesisJudge{llm: llm, opts: buildOptions(opts)}
}

// Evaluate judges one hypothesis. A failed call is never a success.
func (j *HypothesisJudge) Evaluate(ctx context.Context, in HypothesisInput) HypothesisResult {
	reply, err := j.opts.complete(ctx, j.llm, HypothesisPrompt(in))
	if err != nil {
		j.opts.log.Error().Err(err).Msg("hypothesis judgment failed")
		return HypothesisResult{Verdict: Incorrect, Explanation: hypothesisFailureExplanation, Err: err}
	}
	v, expl := ParseHypothesisReply(reply)
	return HypothesisResult{Verdict: v, Explanation: expl}
}

// ParseHypothesisReply extracts the verdict and explanation from a judge reply.
// CORRECT only wins when the value mentions neither INCORRECT nor PARTIAL.
func ParseHypothesisReply(reply string) (HypothesisVerdict, string) {
	verdict := Incorrect
	value, explanation, found := scanLabels(reply)
	if found {
		switch {
		case strings.Contains(value, "CORRECT") &&
			!strings.Contains(value, "INCORRECT") &&
			!strings.Contains(value, "PARTIAL"):
			verdict = Correct
		case strings.Contains(value, "PARTIAL"):
			verdict = Partial
		}
	}
	if explanation == "" {
		explanation = truncate(strings.TrimSpace(reply), explanationFallbackLen)
	}
	return verdict, explanation
}

// ------------------------------- parsing -----------------------------------

// scanLabels walks the reply line by line. The verdict value is upper-cased;
// later labels override earlier ones.
func scanLabels(reply string) (verdict, explanation string, found bool) {
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "VERDICT:"):
			verdict = strings.ToUpper(strings.TrimSpace(line[len("VERDICT:"):]))
			found = true
		case strings.HasPrefix(upper, "EXPLANATION:"):
			explanation = strings.TrimSpace(line[len("EXPLANATION:"):])
		}
	}
	return verdict, explanation, found
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
