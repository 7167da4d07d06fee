// internal/llm/llm.go
//
// Language-model completers used by the judges and the player agent.
// Providers:
//   - "ollama":   local Ollama server over HTTP (ollama.go).
//   - "gemini":   Google Gemini through google.golang.org/genai (gemini.go).
//   - "scripted": canned replies, for tests and offline demos (scripted.go).

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/robalobadob/turtlesoup/internal/judge"
)

// Config selects and tunes a provider.
type Config struct {
	Provider    string
	Model       string
	Host        string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	Script      []string // replies for the scripted provider
}

// New builds the completer named by cfg.Provider.
func New(ctx context.Context, cfg Config) (judge.Completer, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllama(cfg.Host, cfg.Model, cfg.Temperature, cfg.Timeout), nil
	case "gemini":
		g, err := NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "scripted":
		return NewScripted(cfg.Script...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
