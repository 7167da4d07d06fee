package game

import "strings"

// DefaultCommandPrefixes mark an input as a meta-command.
var DefaultCommandPrefixes = []string{"/", "!", `\`}

// DefaultHypothesisTriggers mark an input as a proposed solution.
var DefaultHypothesisTriggers = []string{
	"i think",
	"my guess",
	"the answer is",
	"hypothesis",
	"the solution is",
	"my theory",
	"i believe",
	"我认为",
	"我猜",
	"答案是",
	"我的猜测",
	"谜底是",
}

// Classifier maps raw player text to an InputKind. It is pure.
type Classifier struct {
	prefixes []string
	triggers []string
}

// NewClassifier builds a classifier; empty lists fall back to the defaults.
func NewClassifier(prefixes, triggers []string) Classifier {
	if len(prefixes) == 0 {
		prefixes = DefaultCommandPrefixes
	}
	if len(triggers) == 0 {
		triggers = DefaultHypothesisTriggers
	}
	lowered := make([]string, len(triggers))
	for i, t := range triggers {
		lowered[i] = strings.ToLower(t)
	}
	return Classifier{prefixes: prefixes, triggers: lowered}
}

// Classify applies, in order: empty → unknown, command prefix → command,
// hypothesis trigger → hypothesis, otherwise question.
func (c Classifier) Classify(text string) InputKind {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return InputUnknown
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(trimmed, p) {
			return InputCommand
		}
	}
	lower := strings.ToLower(trimmed)
	for _, t := range c.triggers {
		if strings.Contains(lower, t) {
			return InputHypothesis
		}
	}
	return InputQuestion
}
