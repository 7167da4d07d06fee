package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned once every scripted reply has been used
// and no default reply is set.
var ErrScriptExhausted = errors.New("scripted llm: no replies left")

// Scripted replays canned replies in order. Safe for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	replies  []string
	errs     map[int]error
	fallback string
	calls    int
	prompts  []string
}

// NewScripted queues replies.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies, errs: map[int]error{}}
}

// WithDefault sets the reply used after the queue runs dry.
func (s *Scripted) WithDefault(reply string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = reply
	return s
}

// FailOn makes call n (0-based) return err.
func (s *Scripted) FailOn(n int, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[n] = err
	return s
}

// Complete returns the next reply.
func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if err, ok := s.errs[n]; ok {
		return "", err
	}
	if len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		return r, nil
	}
	if s.fallback != "" {
		return s.fallback, nil
	}
	return "", ErrScriptExhausted
}

// Prompts returns every prompt seen so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
