// internal/config/config.go
//
// Runtime configuration.
// Sources, later ones winning:
//   - Default(): the shipped values.
//   - An optional YAML file (turtlesoup.yaml unless --config says otherwise).
//   - Environment variables (a .env file is loaded into the environment by main).
//
// Validate runs last; Load returns only valid configurations.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/llm"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "turtlesoup.yaml"

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	LLM         LLMConfig         `yaml:"llm"`
	Judge       JudgeConfig       `yaml:"judge"`
	DM          DMConfig          `yaml:"dm"`
	Hints       HintsConfig       `yaml:"hints"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	PlayerAgent PlayerAgentConfig `yaml:"player_agent"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Puzzles     PuzzlesConfig     `yaml:"puzzles"`
	Auth        AuthConfig        `yaml:"auth"`
	Daily       DailyConfig       `yaml:"daily"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	ClientOrigin   string        `yaml:"client_origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AutoplayTurns  int           `yaml:"autoplay_turns"`
}

type DatabaseConfig struct {
	// Path is the SQLite app database; ":memory:" keeps everything in RAM.
	Path string `yaml:"path"`
	// URL, when set, stores sessions in Postgres instead.
	URL string `yaml:"url"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Host        string        `yaml:"host"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Script      []string      `yaml:"script"`
}

type JudgeConfig struct {
	Strictness string        `yaml:"strictness"`
	Timeout    time.Duration `yaml:"timeout"`
}

type DMConfig struct {
	Tone                 string `yaml:"tone"`
	IncludeExplanation   bool   `yaml:"include_explanation"`
	MaxExplanationLength int    `yaml:"max_explanation_length"`
	EncouragePlayer      bool   `yaml:"encourage_player"`
	HistoryLimit         int    `yaml:"history_limit"`
}

type HintsConfig struct {
	Vagueness string `yaml:"initial_vagueness"`
}

type ClassifierConfig struct {
	CommandPrefixes    []string `yaml:"command_prefixes"`
	HypothesisTriggers []string `yaml:"hypothesis_triggers"`
}

type PlayerAgentConfig struct {
	Name                    string   `yaml:"name"`
	Strategies              []string `yaml:"strategies"`
	FormHypothesisAfter     int      `yaml:"form_hypothesis_after"`
	MaxQuestionsBeforeGuess int      `yaml:"max_questions_before_guess"`
	YesRatioThreshold       float64  `yaml:"yes_ratio_threshold"`
}

type KnowledgeConfig struct {
	// CorpusPath is the FTS5 corpus database; empty disables retrieval.
	CorpusPath   string        `yaml:"corpus_path"`
	TopK         int           `yaml:"top_k"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type PuzzlesConfig struct {
	// Dir replaces the embedded puzzles when set.
	Dir             string `yaml:"dir"`
	DefaultLanguage string `yaml:"default_language"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	CookieName    string        `yaml:"cookie_name"`
	SecureCookies bool          `yaml:"secure_cookies"`
}

type DailyConfig struct {
	Salt string `yaml:"salt"`
}

// Default returns the shipped configuration.
func Default() Config {
	st := game.DefaultSettings()
	return Config{
		Server: ServerConfig{
			Port:           "5175",
			ClientOrigin:   "http://localhost:5173",
			RequestTimeout: 2 * time.Minute,
			AutoplayTurns:  40,
		},
		Database: DatabaseConfig{Path: "./data/turtlesoup.db"},
		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			Host:        "http://localhost:11434",
			Temperature: 0.3,
			Timeout:     60 * time.Second,
		},
		Judge: JudgeConfig{Strictness: string(st.Strictness), Timeout: 45 * time.Second},
		DM: DMConfig{
			Tone:                 st.Tone,
			IncludeExplanation:   st.IncludeExplanation,
			MaxExplanationLength: st.MaxExplanationLength,
			EncouragePlayer:      st.EncouragePlayer,
			HistoryLimit:         st.HistoryLimit,
		},
		Hints: HintsConfig{Vagueness: st.Vagueness},
		Classifier: ClassifierConfig{
			CommandPrefixes:    st.CommandPrefixes,
			HypothesisTriggers: st.HypothesisTriggers,
		},
		PlayerAgent: PlayerAgentConfig{
			Name:                    st.Agent.Name,
			Strategies:              st.Agent.Strategies,
			FormHypothesisAfter:     st.Agent.FormHypothesisAfter,
			MaxQuestionsBeforeGuess: st.Agent.MaxQuestionsBeforeGuess,
			YesRatioThreshold:       st.Agent.YesRatioThreshold,
		},
		Knowledge: KnowledgeConfig{
			CorpusPath:   "./data/corpus.db",
			TopK:         5,
			QueryTimeout: 10 * time.Second,
		},
		Puzzles: PuzzlesConfig{DefaultLanguage: "en"},
		Auth: AuthConfig{
			TokenTTL:   14 * 24 * time.Hour,
			CookieName: "turtlesoup_token",
		},
		Daily: DailyConfig{Salt: "turtlesoup-daily"},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment. A missing file is an error unless path is DefaultPath or "".
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("loading config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		default:
			return cfg, fmt.Errorf("loading config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"PORT":             &c.Server.Port,
		"CLIENT_ORIGIN":    &c.Server.ClientOrigin,
		"DB_PATH":          &c.Database.Path,
		"DATABASE_URL":     &c.Database.URL,
		"LLM_PROVIDER":     &c.LLM.Provider,
		"OLLAMA_HOST":      &c.LLM.Host,
		"OLLAMA_MODEL":     &c.LLM.Model,
		"GEMINI_API_KEY":   &c.LLM.APIKey,
		"PUZZLES_DIR":      &c.Puzzles.Dir,
		"CORPUS_PATH":      &c.Knowledge.CorpusPath,
		"JWT_SECRET":       &c.Auth.JWTSecret,
		"COOKIE_NAME":      &c.Auth.CookieName,
		"DAILY_SALT":       &c.Daily.Salt,
		"JUDGE_STRICTNESS": &c.Judge.Strictness,
	}
	for k, dst := range str {
		if v, ok := lookup(k); ok && v != "" {
			*dst = v
		}
	}
	if c.LLM.Provider == "gemini" {
		// The default model names an Ollama model; let the client pick.
		if c.LLM.Model == Default().LLM.Model {
			c.LLM.Model = ""
		}
		if v, ok := lookup("GEMINI_MODEL"); ok && v != "" {
			c.LLM.Model = v
		}
	}
	if v, ok := lookup("JWT_EXPIRES_DAYS"); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JWT_EXPIRES_DAYS: %w", err)
		}
		c.Auth.TokenTTL = time.Duration(days) * 24 * time.Hour
	}
	if v, ok := lookup("SECURE_COOKIES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SECURE_COOKIES: %w", err)
		}
		c.Auth.SecureCookies = b
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server port is required")
	}
	switch c.LLM.Provider {
	case "ollama", "scripted":
	case "gemini":
		if c.LLM.APIKey == "" {
			return errors.New("gemini provider requires an api key (GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	switch judge.Strictness(c.Judge.Strictness) {
	case judge.Strict, judge.Moderate, judge.Lenient:
	default:
		return fmt.Errorf("unknown judge strictness: %q", c.Judge.Strictness)
	}
	if c.Hints.Vagueness != game.VaguenessHigh && c.Hints.Vagueness != game.VaguenessLow {
		return fmt.Errorf("hint vagueness must be %q or %q", game.VaguenessHigh, game.VaguenessLow)
	}
	if c.DM.MaxExplanationLength < 10 {
		return fmt.Errorf("max_explanation_length must be at least 10, got %d", c.DM.MaxExplanationLength)
	}
	if r := c.PlayerAgent.YesRatioThreshold; r <= 0 || r > 1 {
		return fmt.Errorf("yes_ratio_threshold must be in (0, 1], got %v", r)
	}
	if c.PlayerAgent.FormHypothesisAfter < 1 {
		return errors.New("form_hypothesis_after must be positive")
	}
	if m := c.PlayerAgent.MaxQuestionsBeforeGuess; m != 0 && m < c.PlayerAgent.FormHypothesisAfter {
		return errors.New("max_questions_before_guess must not be below form_hypothesis_after")
	}
	if c.Knowledge.TopK < 1 {
		return errors.New("knowledge top_k must be positive")
	}
	return nil
}

// GameSettings maps the configuration onto the engine's settings.
func (c Config) GameSettings() game.Settings {
	return game.Settings{
		Strictness:           judge.Strictness(c.Judge.Strictness),
		Vagueness:            c.Hints.Vagueness,
		Tone:                 c.DM.Tone,
		IncludeExplanation:   c.DM.IncludeExplanation,
		MaxExplanationLength: c.DM.MaxExplanationLength,
		EncouragePlayer:      c.DM.EncouragePlayer,
		HistoryLimit:         c.DM.HistoryLimit,
		CommandPrefixes:      c.Classifier.CommandPrefixes,
		HypothesisTriggers:   c.Classifier.HypothesisTriggers,
		Agent: game.AgentSettings{
			Name:                    c.PlayerAgent.Name,
			Strategies:              c.PlayerAgent.Strategies,
			FormHypothesisAfter:     c.PlayerAgent.FormHypothesisAfter,
			MaxQuestionsBeforeGuess: c.PlayerAgent.MaxQuestionsBeforeGuess,
			YesRatioThreshold:       c.PlayerAgent.YesRatioThreshold,
		},
	}
}

// LLMClientConfig maps the configuration onto the completer factory's input.
func (c Config) LLMClientConfig() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		Host:        c.LLM.Host,
		APIKey:      c.LLM.APIKey,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.Timeout,
		Script:      c.LLM.Script,
	}
}
