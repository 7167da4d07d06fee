// internal/game/runner.go
//
// Turn orchestrator for a single session.
// Responsibilities:
//   - Own the session's state machine (start, complete, abort).
//   - Classify player input and dispatch to commands, the question judge or
//     the hypothesis judge, consulting the knowledge gateway first.
//   - Append turn events, persist, notify the event log and the observer.
//
// Concurrency:
//   - One mutex per Runner, held for the whole of Start/ProcessInput/AgentTurn,
//     so a session never processes two inputs at once.
//   - Knowledge and judgment calls finish before anything is appended; the
//     events of one call (and any state change) land together.
//   - If the caller's context ends while a collaborator runs, nothing is
//     appended and ctx.Err() is returned.

package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/knowledge"
)

// ErrNoAgent is returned by AgentTurn when no language model was configured
// for the automated player.
var ErrNoAgent = errors.New("player agent is not configured")

// QuestionEvaluator judges yes/no questions.
type QuestionEvaluator interface {
	Evaluate(ctx context.Context, in judge.QuestionInput) judge.QuestionResult
}

// HypothesisEvaluator judges proposed solutions.
type HypothesisEvaluator interface {
	Evaluate(ctx context.Context, in judge.HypothesisInput) judge.HypothesisResult
}

// Knowledge is the tiered corpus access the runner and the agent need.
type Knowledge interface {
	QueryPublic(ctx context.Context, corpusID, text string) knowledge.Result
	QueryWithHints(ctx context.Context, corpusID, text string) knowledge.Result
	QueryFull(ctx context.Context, corpusID, text string) knowledge.Result
}

// SessionSaver persists a session snapshot.
type SessionSaver interface {
	Save(ctx context.Context, s *GameSession) error
}

// EventLog is the append-only memory collaborator.
type EventLog interface {
	AppendEvent(ctx context.Context, sessionID string, ev TurnEvent) error
	Summarize(ctx context.Context, sessionID, playerID, puzzleID string) (string, error)
}

// FinishHook runs once when a session reaches COMPLETED or ABORTED.
type FinishHook func(ctx context.Context, s *GameSession)

// Deps are the collaborators shared by every runner of an engine.
type Deps struct {
	Questions  QuestionEvaluator
	Hypotheses HypothesisEvaluator
	Knowledge  Knowledge
	Store      SessionSaver
	Events     EventLog
	Observer   Observer
	AgentLLM   judge.Completer
	OnFinish   FinishHook
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Knowledge == nil {
		d.Knowledge = knowledge.NewGateway(nil)
	}
	if d.Observer == nil {
		d.Observer = NopObserver{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if len(s.CommandPrefixes) == 0 {
		s.CommandPrefixes = def.CommandPrefixes
	}
	if len(s.HypothesisTriggers) == 0 {
		s.HypothesisTriggers = def.HypothesisTriggers
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = def.HistoryLimit
	}
	if s.MaxExplanationLength <= 0 {
		s.MaxExplanationLength = def.MaxExplanationLength
	}
	if s.Agent.FormHypothesisAfter <= 0 {
		s.Agent.FormHypothesisAfter = def.Agent.FormHypothesisAfter
	}
	if s.Agent.YesRatioThreshold <= 0 {
		s.Agent.YesRatioThreshold = def.Agent.YesRatioThreshold
	}
	if s.Agent.Name == "" {
		s.Agent.Name = def.Agent.Name
	}
	return s
}

// Response is what one call produced for the caller.
type Response struct {
	SessionID     string      `json:"session_id"`
	Message       string      `json:"message"`
	Kind          string      `json:"kind"`
	Verdict       string      `json:"verdict,omitempty"`
	GameOver      bool        `json:"game_over"`
	State         State       `json:"state"`
	Score         *int        `json:"score,omitempty"`
	Events        []TurnEvent `json:"events,omitempty"`
	PlayerMessage string      `json:"player_message,omitempty"`
}

// Runner drives one session. Safe for concurrent use.
type Runner struct {
	mu         sync.Mutex
	session    *GameSession
	puzzle     *Puzzle
	deps       Deps
	settings   Settings
	classifier Classifier
	agent      *Agent
}

// NewRunner wraps session s of puzzle p.
func NewRunner(s *GameSession, p *Puzzle, deps Deps, settings Settings) *Runner {
	deps = deps.withDefaults()
	settings = settings.withDefaults()
	r := &Runner{
		session:    s,
		puzzle:     p,
		deps:       deps,
		settings:   settings,
		classifier: NewClassifier(settings.CommandPrefixes, settings.HypothesisTriggers),
	}
	if deps.AgentLLM != nil {
		r.agent = NewAgent(deps.AgentLLM, deps.Knowledge, settings.Agent)
	}
	return r
}

// Snapshot returns a deep copy of the session.
func (r *Runner) Snapshot() *GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}

// idleAndTerminal reports a finished session without waiting on a turn in
// flight; a busy runner reports false.
func (r *Runner) idleAndTerminal() bool {
	if !r.mu.TryLock() {
		return false
	}
	defer r.mu.Unlock()
	return r.session.State.Terminal()
}

// Puzzle returns the puzzle this runner plays.
func (r *Runner) Puzzle() *Puzzle { return r.puzzle }

// Start moves the session out of LOBBY and appends the intro.
func (r *Runner) Start(ctx context.Context) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs, err := r.start(ctx)
	if err != nil {
		return Response{}, err
	}
	return r.response(evs[0].Message, "start", evs), nil
}

// Abort ends the session without a solution.
func (r *Runner) Abort(ctx context.Context) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abort(ctx)
}

// ProcessInput handles one line of player text. Empty input is answered
// with a prompt and changes nothing. A LOBBY session is started first.
func (r *Runner) ProcessInput(ctx context.Context, text string) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := r.classifier.Classify(text)
	if kind == InputUnknown {
		return r.response(emptyInputText, kind.String(), nil), nil
	}

	var intro []TurnEvent
	if r.session.State == StateLobby {
		evs, err := r.start(ctx)
		if err != nil {
			return Response{}, err
		}
		intro = evs
	}
	if r.session.State != StateInProgress {
		return Response{}, &StateError{SessionID: r.session.ID, Op: "process input", State: r.session.State}
	}

	text = strings.TrimSpace(text)
	var (
		resp Response
		err  error
	)
	switch kind {
	case InputCommand:
		resp, err = r.handleCommand(ctx, text)
	case InputHypothesis:
		resp, err = r.handleHypothesis(ctx, RolePlayer, text)
	case InputQuestion:
		resp, err = r.handleQuestion(ctx, RolePlayer, text)
	default:
		return Response{}, fmt.Errorf("unhandled input kind %s", kind)
	}
	if err != nil {
		return Response{}, err
	}
	if len(intro) > 0 {
		resp.Events = append(intro, resp.Events...)
	}
	return resp, nil
}

// AgentTurn lets the automated player take one turn.
func (r *Runner) AgentTurn(ctx context.Context) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.agent == nil {
		return Response{}, ErrNoAgent
	}
	var intro []TurnEvent
	if r.session.State == StateLobby {
		evs, err := r.start(ctx)
		if err != nil {
			return Response{}, err
		}
		intro = evs
	}
	if r.session.State != StateInProgress {
		return Response{}, &StateError{SessionID: r.session.ID, Op: "agent turn", State: r.session.State}
	}

	var (
		text string
		resp Response
		err  error
	)
	if r.agent.ShouldHypothesize(r.session, r.puzzle) {
		text, err = r.agent.Hypothesis(ctx, r.session, r.puzzle)
		r.reportFailure("player_agent", err)
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		resp, err = r.handleHypothesis(ctx, RolePlayerAgent, text)
	} else {
		text, err = r.agent.Question(ctx, r.session, r.puzzle)
		r.reportFailure("player_agent", err)
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		resp, err = r.handleQuestion(ctx, RolePlayerAgent, text)
	}
	if err != nil {
		return Response{}, err
	}
	resp.PlayerMessage = text
	if len(intro) > 0 {
		resp.Events = append(intro, resp.Events...)
	}
	return resp, nil
}

// ------------------------------ transitions --------------------------------

func (r *Runner) start(ctx context.Context) ([]TurnEvent, error) {
	now := r.deps.Now()
	if err := r.session.Start(now); err != nil {
		return nil, err
	}
	evs := r.session.appendEvents(now, TurnEvent{
		Role:    RoleDM,
		Message: renderIntro(r.puzzle, r.settings.Tone),
		Tags:    []Tag{TagIntro, TagNarration},
	})
	r.commit(ctx, StateLobby, evs)
	return evs, nil
}

func (r *Runner) abort(ctx context.Context) (Response, error) {
	from := r.session.State
	if err := r.session.Abort(r.deps.Now()); err != nil {
		return Response{}, err
	}
	r.commit(ctx, from, nil)
	resp := r.response(quitText, InputCommand.String(), nil)
	resp.GameOver = true
	return resp, nil
}

// ------------------------------- handlers ----------------------------------

func (r *Runner) handleCommand(ctx context.Context, text string) (Response, error) {
	cmd, token := ParseCommand(text, r.settings.CommandPrefixes)
	kind := InputCommand.String()

	switch cmd {
	case CmdHint:
		msg, ok := nextHint(r.puzzle, r.session.HintCount, r.settings.Vagueness)
		if !ok {
			return r.response(msg, kind, nil), nil
		}
		now := r.deps.Now()
		r.session.HintCount++
		evs := r.session.appendEvents(now, TurnEvent{Role: RoleDM, Message: msg, Tags: []Tag{TagHint}})
		r.commit(ctx, StateInProgress, evs)
		return r.response(msg, kind, evs), nil
	case CmdStatus:
		return r.response(renderStatus(r.session, r.puzzle), kind, nil), nil
	case CmdHistory:
		return r.response(renderHistory(r.session.QAPairs(r.settings.HistoryLimit)), kind, nil), nil
	case CmdQuit:
		return r.abort(ctx)
	case CmdHelp:
		return r.response(helpText, kind, nil), nil
	case CmdUnknown:
		return r.response(renderUnknownCommand(token), kind, nil), nil
	default:
		return Response{}, fmt.Errorf("unhandled command %s", cmd)
	}
}

func (r *Runner) handleQuestion(ctx context.Context, role Role, text string) (Response, error) {
	kind := InputQuestion.String()
	if limit := r.puzzle.Constraints.MaxQuestions; limit > 0 && r.session.QuestionCount() >= limit {
		return r.response(renderQuestionLimit(limit), kind, nil), nil
	}

	kres := r.deps.Knowledge.QueryFull(ctx, r.session.CorpusID, text)
	res := r.deps.Questions.Evaluate(ctx, judge.QuestionInput{
		Question:   text,
		Statement:  r.puzzle.Statement,
		Answer:     r.puzzle.Answer,
		Context:    judgeContext(kres),
		Strictness: r.settings.Strictness,
	})
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	r.reportFailure("question_judge", res.Err)

	msg := renderQuestionVerdict(res.Verdict, res.Explanation, r.settings)
	evs := r.session.appendEvents(r.deps.Now(),
		TurnEvent{Role: role, Message: text, Tags: []Tag{TagQuestion}},
		TurnEvent{Role: RoleDM, Message: msg, Tags: []Tag{TagAnswer}, Verdict: string(res.Verdict)},
	)
	r.commit(ctx, StateInProgress, evs)

	resp := r.response(msg, kind, evs)
	resp.Verdict = string(res.Verdict)
	return resp, nil
}

func (r *Runner) handleHypothesis(ctx context.Context, role Role, text string) (Response, error) {
	kres := r.deps.Knowledge.QueryFull(ctx, r.session.CorpusID, text)
	res := r.deps.Hypotheses.Evaluate(ctx, judge.HypothesisInput{
		Hypothesis: text,
		Statement:  r.puzzle.Statement,
		Answer:     r.puzzle.Answer,
		Context:    judgeContext(kres),
	})
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	r.reportFailure("hypothesis_judge", res.Err)

	questions, hints := r.session.QuestionCount(), r.session.HintCount
	msg := renderHypothesisVerdict(res.Verdict, res.Explanation, r.puzzle, questions, hints)
	now := r.deps.Now()
	evs := r.session.appendEvents(now,
		TurnEvent{Role: role, Message: text, Tags: []Tag{TagHypothesis}},
		TurnEvent{Role: RoleDM, Message: msg, Tags: []Tag{TagFinalVerdict}, Verdict: string(res.Verdict)},
	)
	if res.Verdict == judge.Correct {
		if err := r.session.Complete(Score(questions, hints), now); err != nil {
			return Response{}, err
		}
	}
	r.commit(ctx, StateInProgress, evs)

	resp := r.response(msg, InputHypothesis.String(), evs)
	resp.Verdict = string(res.Verdict)
	resp.GameOver = res.Verdict == judge.Correct
	return resp, nil
}

// -------------------------------- helpers ----------------------------------

// commit publishes what the in-memory session already holds. Persistence is
// best effort and outlives caller cancellation.
func (r *Runner) commit(ctx context.Context, from State, evs []TurnEvent) {
	ctx = context.WithoutCancel(ctx)
	s := r.session

	if s.State != from {
		r.deps.Observer.StateChanged(s.ID, from, s.State)
	}
	for _, ev := range evs {
		r.deps.Observer.EventAppended(s.ID, ev)
		if r.deps.Events != nil {
			r.reportFailure("event_log", r.deps.Events.AppendEvent(ctx, s.ID, ev))
		}
	}
	if r.deps.Store != nil {
		r.reportFailure("session_store", r.deps.Store.Save(ctx, s.Clone()))
	}

	if s.State.Terminal() && !from.Terminal() {
		if r.deps.Events != nil {
			_, err := r.deps.Events.Summarize(ctx, s.ID, s.PrimaryPlayer(), s.PuzzleID)
			r.reportFailure("event_log", err)
		}
		if r.deps.OnFinish != nil {
			r.deps.OnFinish(ctx, s.Clone())
		}
	}
}

func (r *Runner) reportFailure(component string, err error) {
	if err != nil {
		r.deps.Observer.CollaboratorFailed(r.session.ID, component, err)
	}
}

func (r *Runner) response(msg, kind string, evs []TurnEvent) Response {
	resp := Response{
		SessionID: r.session.ID,
		Message:   msg,
		Kind:      kind,
		State:     r.session.State,
		GameOver:  r.session.State.Terminal(),
		Events:    evs,
	}
	if r.session.Score != nil {
		v := *r.session.Score
		resp.Score = &v
	}
	return resp
}

// judgeContext prefers the synthesized answer and falls back to the sources.
func judgeContext(res knowledge.Result) string {
	if res.Answer != "" {
		return res.Answer
	}
	return res.ContextText()
}
