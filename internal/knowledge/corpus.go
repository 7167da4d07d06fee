// internal/knowledge/corpus.go
//
// SQLite-backed knowledge corpus (pure-Go modernc driver, FTS5 ranking).
// Responsibilities:
//   - Store fragments per corpus id (one corpus per puzzle, shared by sessions).
//   - Answer Retrieve() with the best bm25 matches; fall back to the whole
//     corpus in authored order when the query has no indexable terms.
//   - Index many corpora in one call (IndexAll); the first failure cancels the rest.
//
// The corpus is read-mostly after indexing.

package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

var _ Retriever = (*Corpus)(nil)

// Fragment is one document to index.
type Fragment struct {
	Content string
	Type    DocType
	Meta    map[string]string
}

// Corpus is a Retriever over a SQLite FTS5 index.
type Corpus struct {
	db   *sql.DB
	topK int
}

const corpusDDL = `
CREATE TABLE IF NOT EXISTS fragments (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	corpus_id TEXT NOT NULL,
	doc_type  TEXT NOT NULL,
	content   TEXT NOT NULL,
	meta      TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_fragments_corpus ON fragments (corpus_id);

CREATE VIRTUAL TABLE IF NOT EXISTS fragments_fts USING fts5(
	content,
	content=fragments,
	content_rowid=id
);

CREATE TRIGGER IF NOT EXISTS fragments_ai AFTER INSERT ON fragments BEGIN
	INSERT INTO fragments_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS fragments_ad AFTER DELETE ON fragments BEGIN
	INSERT INTO fragments_fts(fragments_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
`

// OpenCorpus opens (or creates) the corpus database at path (":memory:" works).
func OpenCorpus(ctx context.Context, path string, topK int) (*Corpus, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus database: %w", err)
	}
	// One connection: ":memory:" stays a single database and every statement,
	// reads included, runs one at a time.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging corpus database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA busy_timeout = 30000;", "PRAGMA journal_mode = WAL;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, corpusDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating corpus schema: %w", err)
	}

	if topK <= 0 {
		topK = 5
	}
	return &Corpus{db: db, topK: topK}, nil
}

// Close releases the database.
func (c *Corpus) Close() error { return c.db.Close() }

// Index replaces the contents of corpusID with frags.
func (c *Corpus) Index(ctx context.Context, corpusID string, frags []Fragment) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE corpus_id = ?`, corpusID); err != nil {
		return fmt.Errorf("clearing corpus %s: %w", corpusID, err)
	}
	for _, f := range frags {
		meta := map[string]string{}
		for k, v := range f.Meta {
			meta[k] = v
		}
		meta["type"] = string(f.Type)
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encoding fragment metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragments (corpus_id, doc_type, content, meta) VALUES (?, ?, ?, ?)`,
			corpusID, string(f.Type), f.Content, string(metaJSON)); err != nil {
			return fmt.Errorf("inserting fragment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing corpus %s: %w", corpusID, err)
	}
	return nil
}

// IndexAll indexes several corpora from an errgroup. The transactions still
// run one after another on the single connection; the group only stops the
// remaining work once one corpus fails or ctx ends.
func (c *Corpus) IndexAll(ctx context.Context, corpora map[string][]Fragment) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for id, frags := range corpora {
		g.Go(func() error { return c.Index(ctx, id, frags) })
	}
	return g.Wait()
}

// Has reports whether corpusID holds any fragments.
func (c *Corpus) Has(ctx context.Context, corpusID string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM fragments WHERE corpus_id = ?`, corpusID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting corpus %s: %w", corpusID, err)
	}
	return n > 0, nil
}

// Retrieve returns the fragments of corpusID that best match query.
// Answer is the top matches joined by newlines.
func (c *Corpus) Retrieve(ctx context.Context, corpusID, query string) (Result, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if fts := ftsQuery(query); fts != "" {
		rows, err = c.db.QueryContext(ctx, `
			SELECT f.content, f.meta
			FROM fragments_fts
			JOIN fragments f ON fragments_fts.rowid = f.id
			WHERE fragments_fts MATCH ? AND f.corpus_id = ?
			ORDER BY bm25(fragments_fts) ASC, f.id ASC
			LIMIT ?`, fts, corpusID, c.topK)
	} else {
		rows, err = c.db.QueryContext(ctx, `
			SELECT content, meta FROM fragments
			WHERE corpus_id = ?
			ORDER BY id ASC
			LIMIT ?`, corpusID, c.topK)
	}
	if err != nil {
		return Result{}, fmt.Errorf("searching corpus %s: %w", corpusID, err)
	}
	defer rows.Close()

	var res Result
	var answer []string
	for rows.Next() {
		var content, metaJSON string
		if err := rows.Scan(&content, &metaJSON); err != nil {
			return Result{}, fmt.Errorf("scanning fragment: %w", err)
		}
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return Result{}, fmt.Errorf("decoding fragment metadata: %w", err)
		}
		res.Sources = append(res.Sources, Source{Content: content, Metadata: meta})
		answer = append(answer, content)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterating fragments: %w", err)
	}
	res.Answer = strings.Join(answer, "\n")
	return res, nil
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms, so player
// punctuation can never be read as query syntax.
func ftsQuery(text string) string {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	var quoted []string
	for _, t := range terms {
		if len([]rune(t)) < 2 || stopwords[t] || seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

var stopwords = map[string]bool{
	"the": true, "is": true, "was": true, "are": true, "were": true, "did": true,
	"does": true, "do": true, "he": true, "she": true, "it": true, "a": true,
	"an": true, "of": true, "to": true, "in": true, "on": true, "and": true,
	"or": true, "his": true, "her": true, "they": true, "that": true, "this": true,
}
