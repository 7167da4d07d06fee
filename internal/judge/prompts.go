package judge

import (
	"fmt"
	"strings"
)

// strictnessInstruction is the only place strictness has an effect.
func strictnessInstruction(s Strictness) string {
	switch s {
	case Strict:
		return "Be very precise. Only say YES if it directly follows from the answer."
	case Lenient:
		return "Be generous in interpretation. If the question is roughly on the right track, lean towards YES."
	default:
		return "Use reasonable judgment to evaluate the question."
	}
}

// QuestionPrompt renders the question-judgment request.
func QuestionPrompt(in QuestionInput) string {
	var b strings.Builder
	b.WriteString("You are the Judge in a situation puzzle game. Evaluate the player's question and respond with a verdict.\n\n")
	fmt.Fprintf(&b, "PUZZLE STATEMENT (what the player sees):\n%s\n\n", in.Statement)
	fmt.Fprintf(&b, "HIDDEN ANSWER (only you know this):\n%s\n\n", in.Answer)
	if in.Context != "" {
		fmt.Fprintf(&b, "ADDITIONAL CONTEXT:\n%s\n\n", in.Context)
	}
	fmt.Fprintf(&b, "PLAYER'S QUESTION:\n%s\n\n", in.Question)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Decide whether the question is relevant to solving the puzzle.\n")
	fmt.Fprintf(&b, "2. %s\n", strictnessInstruction(in.Strictness))
	b.WriteString("3. Respond with one of: YES, NO, YES_AND_NO, or IRRELEVANT.\n")
	b.WriteString("4. Give a brief explanation (1-2 sentences) that does not reveal the answer.\n\n")
	b.WriteString("RESPONSE FORMAT:\n")
	b.WriteString("VERDICT: [YES/NO/YES_AND_NO/IRRELEVANT]\n")
	b.WriteString("EXPLANATION: [brief explanation without spoilers]\n")
	return b.String()
}

// HypothesisPrompt renders the hypothesis-judgment request.
func HypothesisPrompt(in HypothesisInput) string {
	var b strings.Builder
	b.WriteString("You are the Judge in a situation puzzle game. The player has proposed a solution.\n\n")
	fmt.Fprintf(&b, "PUZZLE STATEMENT:\n%s\n\n", in.Statement)
	fmt.Fprintf(&b, "CANONICAL ANSWER:\n%s\n\n", in.Answer)
	if in.Context != "" {
		fmt.Fprintf(&b, "ADDITIONAL CONTEXT:\n%s\n\n", in.Context)
	}
	fmt.Fprintf(&b, "PLAYER'S HYPOTHESIS:\n%s\n\n", in.Hypothesis)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Compare the hypothesis with the canonical answer.\n")
	b.WriteString("2. CORRECT: it identifies the core mechanism or reason, even if the wording differs.\n")
	b.WriteString("3. PARTIAL: it captures some key elements but misses crucial parts.\n")
	b.WriteString("4. INCORRECT: it misses the main point.\n\n")
	b.WriteString("RESPONSE FORMAT:\n")
	b.WriteString("VERDICT: [CORRECT/PARTIAL/INCORRECT]\n")
	b.WriteString("EXPLANATION: [why; congratulate the player if correct]\n")
	return b.String()
}
