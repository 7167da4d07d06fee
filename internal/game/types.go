// internal/game/types.go
//
// Core type definitions for the situation-puzzle engine.
// Defines:
//   - Puzzle: the immutable authored puzzle (statement, secret answer, hints).
//   - GameSession: the mutable record of one playthrough.
//   - TurnEvent: one recorded utterance in a session's history.
//   - Closed enums for lifecycle state, roles, tags and input kinds.

package game

import (
	"slices"
	"time"
)

// State is the lifecycle state of a session.
type State string

const (
	StateLobby      State = "lobby"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateAborted    State = "aborted"
)

// Terminal reports whether no transition may leave s.
func (s State) Terminal() bool { return s == StateCompleted || s == StateAborted }

// Role identifies who produced a turn event.
type Role string

const (
	RoleDM          Role = "dm"
	RolePlayer      Role = "player"
	RolePlayerAgent Role = "player_agent"
)

// Tag classifies a turn event.
type Tag string

const (
	TagQuestion     Tag = "question"
	TagAnswer       Tag = "answer"
	TagHint         Tag = "hint"
	TagHypothesis   Tag = "hypothesis"
	TagFinalVerdict Tag = "final_verdict"
	TagIntro        Tag = "intro"
	TagNarration    Tag = "narration"
)

// InputKind is the classifier's verdict on raw player text.
type InputKind int

const (
	InputUnknown InputKind = iota
	InputCommand
	InputQuestion
	InputHypothesis
)

func (k InputKind) String() string {
	switch k {
	case InputCommand:
		return "command"
	case InputQuestion:
		return "question"
	case InputHypothesis:
		return "hypothesis"
	default:
		return "unknown"
	}
}

// Constraints bound how a puzzle may be played.
type Constraints struct {
	MaxHints             int      `json:"max_hints"`
	MaxQuestions         int      `json:"max_questions,omitempty"` // 0 = unlimited
	AllowedQuestionTypes []string `json:"allowed_question_types,omitempty"`
}

// InfoItem is one key/value of secret background material.
type InfoItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Puzzle is loaded once and never mutated.
type Puzzle struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Statement      string      `json:"statement"`
	Answer         string      `json:"answer"`
	Hints          []string    `json:"hints"`
	PublicFacts    []string    `json:"public_facts,omitempty"`
	AdditionalInfo []InfoItem  `json:"additional_info,omitempty"`
	Tags           []string    `json:"tags"`
	Language       string      `json:"language,omitempty"`
	Difficulty     string      `json:"difficulty,omitempty"`
	Constraints    Constraints `json:"constraints"`
}

// TurnEvent is immutable once appended to a session.
type TurnEvent struct {
	TurnIndex int       `json:"turn_index"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Tags      []Tag     `json:"tags"`
	Verdict   string    `json:"verdict,omitempty"`
}

// HasTag reports whether the event carries t.
func (e TurnEvent) HasTag(t Tag) bool { return slices.Contains(e.Tags, t) }

// GameSession is one playthrough of a puzzle. Only the Runner mutates it.
type GameSession struct {
	ID          string      `json:"session_id"`
	PuzzleID    string      `json:"puzzle_id"`
	PlayerIDs   []string    `json:"player_ids"`
	State       State       `json:"state"`
	TurnHistory []TurnEvent `json:"turn_history"`
	HintCount   int         `json:"hint_count"`
	Score       *int        `json:"score,omitempty"`
	CorpusID    string      `json:"corpus_id,omitempty"`
	Daily       string      `json:"daily,omitempty"` // date key when this is a daily puzzle
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// PrimaryPlayer returns the first player id, or "".
func (s *GameSession) PrimaryPlayer() string {
	if len(s.PlayerIDs) == 0 {
		return ""
	}
	return s.PlayerIDs[0]
}

// QuestionCount counts events tagged question.
func (s *GameSession) QuestionCount() int {
	n := 0
	for _, e := range s.TurnHistory {
		if e.HasTag(TagQuestion) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy, safe to hand to readers outside the Runner.
func (s *GameSession) Clone() *GameSession {
	if s == nil {
		return nil
	}
	c := *s
	c.PlayerIDs = slices.Clone(s.PlayerIDs)
	c.TurnHistory = make([]TurnEvent, len(s.TurnHistory))
	for i, e := range s.TurnHistory {
		e.Tags = slices.Clone(e.Tags)
		c.TurnHistory[i] = e
	}
	if s.Score != nil {
		v := *s.Score
		c.Score = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// QAPair is one question with the DM's answer.
type QAPair struct {
	Question string
	Answer   string
	Verdict  string
}

// QAPairs reconstructs question/answer pairs from adjacent question-tagged
// then answer-tagged events, keeping the last limit pairs (all if limit <= 0).
func (s *GameSession) QAPairs(limit int) []QAPair {
	var pairs []QAPair
	var pending *TurnEvent
	for i := range s.TurnHistory {
		e := &s.TurnHistory[i]
		switch {
		case e.HasTag(TagQuestion):
			pending = e
		case e.HasTag(TagAnswer) && pending != nil:
			pairs = append(pairs, QAPair{Question: pending.Message, Answer: e.Message, Verdict: e.Verdict})
			pending = nil
		}
	}
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[len(pairs)-limit:]
	}
	return pairs
}
