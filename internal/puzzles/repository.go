// internal/puzzles/repository.go
//
// Puzzle discovery and loading over an fs.FS.
// Responsibilities:
//   - Treat every top-level directory holding a *.json file as one puzzle,
//     with the directory name as its id. Names starting with ".", "_" or
//     "template" are skipped.
//   - Decode the authored JSON into game.Puzzle: hints come from "hints" and
//     from additional_info entries keyed "hint"/"Hint"; every other
//     additional_info key becomes an ordered key/value item.
//   - Cache decoded puzzles; list and pick random puzzles by filter.

package puzzles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robalobadob/turtlesoup/internal/game"
)

// ErrNotFound is returned for unknown puzzle ids.
var ErrNotFound = errors.New("puzzle not found")

// ErrNoMatch is returned by Random when the filter excludes every puzzle.
var ErrNoMatch = errors.New("no puzzles match the filter")

const defaultMaxHints = 5

// Summary is the listing view of a puzzle; it never carries the answer.
type Summary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Tags        []string `json:"tags"`
	Language    string   `json:"language"`
}

// Filter narrows List and Random. A puzzle passes Tags if it has any of them.
type Filter struct {
	Language   string
	Difficulty string
	Tags       []string
}

func (f Filter) match(s Summary) bool {
	if f.Language != "" && s.Language != f.Language {
		return false
	}
	if f.Difficulty != "" && s.Difficulty != f.Difficulty {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(s.Tags, t) }) {
		return false
	}
	return true
}

// Repository loads puzzles from fsys.
type Repository struct {
	fsys        fs.FS
	defaultLang string
	log         zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*game.Puzzle
}

// Option configures a Repository.
type Option func(*Repository)

// WithDefaultLanguage sets the language of puzzles that declare none.
func WithDefaultLanguage(lang string) Option { return func(r *Repository) { r.defaultLang = lang } }

// WithLogger sets the logger used for skipped puzzles.
func WithLogger(l zerolog.Logger) Option { return func(r *Repository) { r.log = l } }

// New returns a repository over fsys.
func New(fsys fs.FS, opts ...Option) *Repository {
	r := &Repository{fsys: fsys, defaultLang: "en", log: zerolog.Nop(), cache: make(map[string]*game.Puzzle)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// IDs returns the ids of every discoverable puzzle, sorted.
func (r *Repository) IDs() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading puzzle root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || strings.HasPrefix(name, "template") {
			continue
		}
		if file, _ := r.puzzleFile(name); file != "" {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Get returns the puzzle with id.
func (r *Repository) Get(ctx context.Context, id string) (*game.Puzzle, error) {
	r.mu.RLock()
	p, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	if id == "" || strings.ContainsAny(id, `/\`) || !fs.ValidPath(id) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	file, err := r.puzzleFile(id)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	data, err := fs.ReadFile(r.fsys, file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	p, err = decode(id, path.Base(file), data, r.defaultLang)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", file, err)
	}

	r.mu.Lock()
	r.cache[id] = p
	r.mu.Unlock()
	return p, nil
}

// All loads every puzzle, skipping (and logging) unreadable ones.
func (r *Repository) All(ctx context.Context) ([]*game.Puzzle, error) {
	ids, err := r.IDs()
	if err != nil {
		return nil, err
	}
	out := make([]*game.Puzzle, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if err != nil {
			r.log.Error().Err(err).Str("puzzle_id", id).Msg("skipping puzzle")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// List returns summaries of the puzzles passing f, sorted by id.
func (r *Repository) List(ctx context.Context, f Filter) ([]Summary, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(all))
	for _, p := range all {
		if s := Summarize(p); f.match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Random picks one puzzle passing f. rng may be nil.
func (r *Repository) Random(ctx context.Context, f Filter, rng *rand.Rand) (*game.Puzzle, error) {
	list, err := r.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoMatch
	}
	var i int
	if rng != nil {
		i = rng.IntN(len(list))
	} else {
		i = rand.IntN(len(list))
	}
	return r.Get(ctx, list[i].ID)
}

// Summarize returns the public listing view of p.
func Summarize(p *game.Puzzle) Summary {
	return Summary{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Difficulty:  p.Difficulty,
		Tags:        p.Tags,
		Language:    p.Language,
	}
}

// puzzleFile returns the first *.json file of dir, or "" if there is none.
func (r *Repository) puzzleFile(dir string) (string, error) {
	matches, err := fs.Glob(r.fsys, path.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ------------------------------- decoding ----------------------------------

type rawPuzzle struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Puzzle         string            `json:"puzzle"`
	Answer         string            `json:"answer"`
	Hints          []string          `json:"hints"`
	PublicFacts    []string          `json:"public_facts"`
	AdditionalInfo []json.RawMessage `json:"additional_info"`
	Constraints    *rawConstraints   `json:"constraints"`
	Tags           []string          `json:"tags"`
	Language       string            `json:"language"`
	Difficulty     string            `json:"difficulty"`
}

type rawConstraints struct {
	MaxHints             *int     `json:"max_hints"`
	MaxQuestions         int      `json:"max_questions"`
	AllowedQuestionTypes []string `json:"allowed_question_types"`
}

func decode(id, filename string, data []byte, defaultLang string) (*game.Puzzle, error) {
	var raw rawPuzzle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	p := &game.Puzzle{
		ID:          id,
		Title:       raw.Title,
		Description: raw.Description,
		Statement:   raw.Puzzle,
		Answer:      raw.Answer,
		PublicFacts: raw.PublicFacts,
		Tags:        raw.Tags,
		Language:    raw.Language,
		Difficulty:  raw.Difficulty,
	}
	if p.Title == "" {
		p.Title = id
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	for _, h := range raw.Hints {
		if h != "" {
			p.Hints = append(p.Hints, h)
		}
	}
	for _, item := range raw.AdditionalInfo {
		pairs, err := orderedPairs(item)
		if err != nil {
			return nil, fmt.Errorf("additional_info: %w", err)
		}
		for _, kv := range pairs {
			if kv.Key == "hint" || kv.Key == "Hint" {
				if kv.Value != "" {
					p.Hints = append(p.Hints, kv.Value)
				}
				continue
			}
			p.AdditionalInfo = append(p.AdditionalInfo, kv)
		}
	}

	p.Constraints.MaxHints = defaultMaxHints
	if c := raw.Constraints; c != nil {
		if c.MaxHints != nil {
			p.Constraints.MaxHints = *c.MaxHints
		}
		p.Constraints.MaxQuestions = c.MaxQuestions
		p.Constraints.AllowedQuestionTypes = c.AllowedQuestionTypes
	}
	if len(p.Constraints.AllowedQuestionTypes) == 0 {
		p.Constraints.AllowedQuestionTypes = []string{"yes_no", "yes_and_no", "irrelevant"}
	}

	if p.Language == "" {
		p.Language = languageFromName(filename, defaultLang)
	}
	if p.Statement == "" || p.Answer == "" {
		return nil, errors.New("puzzle and answer are required")
	}
	return p, nil
}

func languageFromName(filename, fallback string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "_en") || strings.Contains(name, "english"):
		return "en"
	case strings.Contains(name, "_zh") || strings.Contains(name, "chinese"):
		return "zh"
	default:
		return fallback
	}
}

// orderedPairs decodes a JSON object keeping its key order. Non-string
// values are kept as their JSON text.
func orderedPairs(raw json.RawMessage) ([]game.InfoItem, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []game.InfoItem
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			s = string(val)
		}
		out = append(out, game.InfoItem{Key: key, Value: s})
	}
	return out, nil
}
