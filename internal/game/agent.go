// internal/game/agent.go
//
// Automated player. It asks the language model for the next question, and
// for a hypothesis once enough answers have come back positive.
//
// The agent only ever sees public material: the statement, its own verdict
// history and QueryPublic sources (QueryWithHints once all hints are out).
// The gateway's synthesized answer text is not used because it is not
// tier-filtered.

package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/knowledge"
)

const (
	fallbackQuestion   = "Is there something unusual about this situation?"
	fallbackHypothesis = "I think there's something unusual about this situation."
	agentContextLimit  = 500
	agentHistoryLimit  = 10
	hypothesisHistory  = 20
	decisionHistory    = 50
)

var strategyText = map[string]string{
	"binary_elimination": "Ask questions that divide possibilities in half",
	"detail_probing":     "Focus on specific details that seem unusual",
	"scenario_testing":   "Test specific scenarios or interpretations",
}

// Agent plays a session on its own.
type Agent struct {
	llm  judge.Completer
	know Knowledge
	st   AgentSettings
}

// NewAgent returns an agent that thinks with llm.
func NewAgent(llm judge.Completer, know Knowledge, st AgentSettings) *Agent {
	return &Agent{llm: llm, know: know, st: st}
}

// agentQuestions counts the questions this agent has asked in s.
func agentQuestions(s *GameSession) int {
	n := 0
	for _, e := range s.TurnHistory {
		if e.Role == RolePlayerAgent && e.HasTag(TagQuestion) {
			n++
		}
	}
	return n
}

// ShouldHypothesize is true once the agent has asked FormHypothesisAfter
// questions and enough answers were YES, once it hits the hard cap, or once
// the puzzle accepts no more questions.
func (a *Agent) ShouldHypothesize(s *GameSession, p *Puzzle) bool {
	if p != nil && p.Constraints.MaxQuestions > 0 && s.QuestionCount() >= p.Constraints.MaxQuestions {
		return true
	}
	asked := agentQuestions(s)
	if a.st.MaxQuestionsBeforeGuess > 0 && asked >= a.st.MaxQuestionsBeforeGuess {
		return true
	}
	if asked < a.st.FormHypothesisAfter {
		return false
	}
	pairs := s.QAPairs(decisionHistory)
	if len(pairs) == 0 {
		return false
	}
	yes := 0
	for _, p := range pairs {
		if p.Verdict == string(judge.Yes) {
			yes++
		}
	}
	return float64(yes)/float64(len(pairs)) >= a.st.YesRatioThreshold
}

// Question produces the next question. On failure it returns a generic
// question together with the error.
func (a *Agent) Question(ctx context.Context, s *GameSession, p *Puzzle) (string, error) {
	background := ""
	if a.know != nil {
		background = clip(a.background(ctx, s, p).ContextText(), agentContextLimit)
	}
	reply, err := a.llm.Complete(ctx, a.questionPrompt(p, verdictHistory(s, agentHistoryLimit), background))
	if err != nil {
		return fallbackQuestion, fmt.Errorf("generating question: %w", err)
	}
	q := strings.TrimSpace(reply)
	if q == "" {
		return fallbackQuestion, nil
	}
	if !strings.HasSuffix(q, "?") {
		q += "?"
	}
	return q, nil
}

// background reads public fragments, and hint fragments too once every
// authored hint has been released in the session.
func (a *Agent) background(ctx context.Context, s *GameSession, p *Puzzle) knowledge.Result {
	if len(p.Hints) > 0 && s.HintCount >= len(p.Hints) {
		return a.know.QueryWithHints(ctx, s.CorpusID, p.Statement)
	}
	return a.know.QueryPublic(ctx, s.CorpusID, p.Statement)
}

// Hypothesis produces a proposed solution that always reads as one.
func (a *Agent) Hypothesis(ctx context.Context, s *GameSession, p *Puzzle) (string, error) {
	reply, err := a.llm.Complete(ctx, a.hypothesisPrompt(p, verdictHistory(s, hypothesisHistory)))
	if err != nil {
		return fallbackHypothesis, fmt.Errorf("generating hypothesis: %w", err)
	}
	h := strings.TrimSpace(reply)
	if h == "" {
		return fallbackHypothesis, nil
	}
	if !strings.HasPrefix(strings.ToLower(h), "i think") {
		h = "I think " + h
	}
	return h, nil
}

// verdictHistory renders Q/A pairs with the bare verdict, never the DM's
// explanation text.
func verdictHistory(s *GameSession, limit int) string {
	pairs := s.QAPairs(limit)
	if len(pairs) == 0 {
		return "No questions asked yet."
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("Q: %s\nA: %s", p.Question, p.Verdict)
	}
	return strings.Join(parts, "\n\n")
}

func (a *Agent) questionPrompt(p *Puzzle, history, background string) string {
	var strategies []string
	for _, s := range a.st.Strategies {
		if t, ok := strategyText[s]; ok {
			s = t
		}
		strategies = append(strategies, "- "+s)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a player in a situation puzzle game.\n", a.st.Name)
	b.WriteString("Your goal is to solve the puzzle by asking yes/no questions.\n\n")
	fmt.Fprintf(&b, "PUZZLE:\n%s\n\n", p.Statement)
	if background != "" {
		fmt.Fprintf(&b, "BACKGROUND INFO:\n%s\n\n", background)
	}
	fmt.Fprintf(&b, "PREVIOUS Q&A:\n%s\n\n", history)
	if len(strategies) > 0 {
		fmt.Fprintf(&b, "QUESTION STRATEGIES:\n%s\n\n", strings.Join(strategies, "\n"))
	}
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Analyze the puzzle and previous answers carefully\n")
	b.WriteString("2. Ask only ONE yes/no question that narrows down the solution\n")
	b.WriteString("3. Do not repeat questions already asked\n")
	b.WriteString("4. Focus on WHY or HOW the situation occurred\n\n")
	b.WriteString("Respond with only your question, nothing else.")
	return b.String()
}

func (a *Agent) hypothesisPrompt(p *Puzzle, history string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a player in a situation puzzle game.\n", a.st.Name)
	b.WriteString("Based on your investigation, it's time to propose your hypothesis.\n\n")
	fmt.Fprintf(&b, "PUZZLE:\n%s\n\n", p.Statement)
	fmt.Fprintf(&b, "INVESTIGATION HISTORY:\n%s\n\n", history)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Analyze all the YES/NO answers you've received\n")
	b.WriteString("2. Form a coherent explanation that fits all the confirmed facts\n")
	b.WriteString("3. State your hypothesis clearly, starting with \"I think...\"\n\n")
	b.WriteString("Respond with your hypothesis, starting with \"I think...\".")
	return b.String()
}
