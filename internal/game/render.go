// internal/game/render.go
//
// DM-side text: intro, verdict displays, status, history and help.
// Purely presentational; nothing here touches session state.

package game

import (
	"fmt"
	"strings"

	"github.com/robalobadob/turtlesoup/internal/judge"
)

const (
	emptyInputText = "Please enter a question, a hypothesis, or a command (type /help)."
	quitText       = "Game session ended. Thanks for playing!"
	noHistoryText  = "No question history yet."
	historyQLen    = 50

	helpText = `**Available Commands:**
/hint (h) - Request a hint
/status (s) - View game status
/history - View recent Q&A
/quit (q) - End the game
/help (?) - Show this help

**How to Play:**
- Ask yes/no questions to gather clues
- When ready, state your hypothesis (start with "I think..." or "My guess is...")`
)

func renderIntro(p *Puzzle, tone string) string {
	var opening string
	switch tone {
	case "mysterious":
		opening = "*The air grows thick with mystery as a strange tale unfolds...*"
	case "friendly":
		opening = "Welcome to our puzzle game! Let me share a curious story with you."
	default:
		opening = "A puzzle awaits you."
	}
	return strings.Join([]string{
		opening,
		"",
		"**" + p.Title + "**",
		"",
		p.Statement,
		"",
		"Ask yes/no questions to uncover the truth, or propose your hypothesis when ready.",
		"",
		"Commands: /hint, /status, /history, /quit",
	}, "\n")
}

var verdictDisplay = map[judge.QuestionVerdict]string{
	judge.Yes:        "✓ **YES**",
	judge.No:         "✗ **NO**",
	judge.YesAndNo:   "◐ **YES and NO**",
	judge.Irrelevant: "○ **IRRELEVANT**",
}

func renderQuestionVerdict(v judge.QuestionVerdict, explanation string, st Settings) string {
	out := verdictDisplay[v]
	if out == "" {
		out = string(v)
	}
	if st.IncludeExplanation && explanation != "" {
		out += "\n" + ellipsize(explanation, st.MaxExplanationLength)
	}
	if st.EncouragePlayer && v == judge.Yes {
		out += "\n*You're on the right track!*"
	}
	return out
}

func renderHypothesisVerdict(v judge.HypothesisVerdict, explanation string, p *Puzzle, questions, hints int) string {
	switch v {
	case judge.Correct:
		return strings.Join([]string{
			"🎉 **CORRECT!**",
			"",
			explanation,
			"",
			"**The Full Answer:**",
			p.Answer,
			"",
			fmt.Sprintf("Questions asked: %d", questions),
			fmt.Sprintf("Hints used: %d", hints),
		}, "\n")
	case judge.Partial:
		return "🔶 **Partially Correct**\n\nYou're getting closer!\n\n" + explanation + "\n\nKeep investigating!"
	default:
		return "❌ **Not Quite**\n\nThat's not the solution.\n\n" + explanation + "\n\nKeep investigating!"
	}
}

func renderStatus(s *GameSession, p *Puzzle) string {
	return strings.Join([]string{
		"**Game Status**",
		"Puzzle: " + p.Title,
		"State: " + string(s.State),
		fmt.Sprintf("Questions asked: %d", s.QuestionCount()),
		fmt.Sprintf("Hints used: %d/%d", s.HintCount, p.Constraints.MaxHints),
	}, "\n")
}

func renderHistory(pairs []QAPair) string {
	if len(pairs) == 0 {
		return noHistoryText
	}
	lines := []string{"**Recent Q&A:**"}
	for i, qa := range pairs {
		lines = append(lines, fmt.Sprintf("%d. Q: %s", i+1, clip(qa.Question, historyQLen)))
		lines = append(lines, "   A: "+qa.Answer)
	}
	return strings.Join(lines, "\n")
}

func renderUnknownCommand(token string) string {
	return fmt.Sprintf("Unknown command: %s. Type /help for available commands.", token)
}

func renderQuestionLimit(limit int) string {
	return fmt.Sprintf("You've asked all %d questions allowed for this puzzle. Propose your hypothesis (start with \"I think...\").", limit)
}

// ellipsize keeps s within n runes, ending in "..." when cut.
func ellipsize(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// clip keeps the first n runes and appends "..." when cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
