package game

const (
	baseScore       = 1000
	questionPenalty = 10
	hintPenalty     = 50
	minScore        = 100
)

// Score is max(100, 1000 - 10*questions - 50*hints).
func Score(questions, hints int) int {
	return max(minScore, baseScore-questionPenalty*questions-hintPenalty*hints)
}
