package game

import "github.com/rs/zerolog"

// Observer receives game events. It is injected at construction; the engine
// keeps no ambient logging of its own.
type Observer interface {
	EventAppended(sessionID string, ev TurnEvent)
	StateChanged(sessionID string, from, to State)
	CollaboratorFailed(sessionID, component string, err error)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) EventAppended(string, TurnEvent)          {}
func (NopObserver) StateChanged(string, State, State)        {}
func (NopObserver) CollaboratorFailed(string, string, error) {}

// LogObserver writes game events as structured log lines.
type LogObserver struct {
	Log zerolog.Logger
}

// NewLogObserver returns an observer that logs through l.
func NewLogObserver(l zerolog.Logger) LogObserver { return LogObserver{Log: l} }

func (o LogObserver) EventAppended(sessionID string, ev TurnEvent) {
	e := o.Log.Debug().
		Str("session", sessionID).
		Int("turn", ev.TurnIndex).
		Str("role", string(ev.Role)).
		Strs("tags", tagStrings(ev.Tags))
	if ev.Verdict != "" {
		e = e.Str("verdict", ev.Verdict)
	}
	e.Msg("turn appended")
}

func (o LogObserver) StateChanged(sessionID string, from, to State) {
	o.Log.Info().Str("session", sessionID).Str("from", string(from)).Str("to", string(to)).Msg("session state changed")
}

func (o LogObserver) CollaboratorFailed(sessionID, component string, err error) {
	o.Log.Warn().Err(err).Str("session", sessionID).Str("component", component).Msg("collaborator failed; fail-safe applied")
}

func tagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
