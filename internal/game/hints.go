package game

import "fmt"

// nextHint decides the reply to a hint request given hintCount hints already
// released. ok is false when nothing may be released; the caller must then
// leave the session untouched. Hints are released in authored order.
func nextHint(p *Puzzle, hintCount int, vagueness string) (msg string, ok bool) {
	maxHints := p.Constraints.MaxHints
	if hintCount >= maxHints {
		return fmt.Sprintf("You've used all %d hints available for this puzzle.", maxHints), false
	}
	if hintCount >= len(p.Hints) {
		return "No more hints available. Try a different approach!", false
	}

	text := p.Hints[hintCount]
	k := hintCount + 1
	if vagueness == VaguenessHigh && k <= obliqueHints {
		return "*A subtle nudge:* " + text, true
	}
	return fmt.Sprintf("*Hint %d/%d:* %s", k, maxHints, text), true
}
