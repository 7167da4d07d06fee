package game

import "github.com/robalobadob/turtlesoup/internal/judge"

// Vagueness controls hint framing.
const (
	VaguenessHigh = "high"
	VaguenessLow  = "low"
)

// obliqueHints is how many hints get the oblique framing under high vagueness.
const obliqueHints = 2

// Settings are the per-engine knobs that shape judging and presentation.
type Settings struct {
	Strictness           judge.Strictness
	Vagueness            string
	Tone                 string // DM persona tone: mysterious | friendly | anything else
	IncludeExplanation   bool
	MaxExplanationLength int
	EncouragePlayer      bool
	HistoryLimit         int

	CommandPrefixes    []string
	HypothesisTriggers []string

	Agent AgentSettings
}

// AgentSettings shape the automated player.
type AgentSettings struct {
	Name                    string
	Strategies              []string
	FormHypothesisAfter     int
	MaxQuestionsBeforeGuess int
	YesRatioThreshold       float64
}

// DefaultSettings mirrors the shipped configuration.
func DefaultSettings() Settings {
	return Settings{
		Strictness:           judge.Moderate,
		Vagueness:            VaguenessHigh,
		Tone:                 "mysterious",
		IncludeExplanation:   true,
		MaxExplanationLength: 100,
		EncouragePlayer:      true,
		HistoryLimit:         10,
		CommandPrefixes:      DefaultCommandPrefixes,
		HypothesisTriggers:   DefaultHypothesisTriggers,
		Agent: AgentSettings{
			Name:                    "Detective",
			Strategies:              []string{"binary_elimination", "detail_probing", "scenario_testing"},
			FormHypothesisAfter:     10,
			MaxQuestionsBeforeGuess: 30,
			YesRatioThreshold:       0.4,
		},
	}
}
