package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteDocs keeps documents in the memory_docs table of the app database.
type SQLiteDocs struct {
	db *sql.DB
}

// NewSQLiteDocs wraps a migrated database handle.
func NewSQLiteDocs(db *sql.DB) *SQLiteDocs { return &SQLiteDocs{db: db} }

func (s *SQLiteDocs) Put(ctx context.Context, namespace, key string, value json.RawMessage, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO memory_docs (namespace, key, value, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(namespace, key) DO UPDATE SET
            value      = excluded.value,
            updated_at = excluded.updated_at`,
		namespace, key, string(value), now.UTC(), now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteDocs) Get(ctx context.Context, namespace, key string) (Doc, error) {
	d := Doc{Namespace: namespace, Key: key}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value, created_at, updated_at FROM memory_docs WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	d.Value = json.RawMessage(value)
	return d, nil
}

func (s *SQLiteDocs) List(ctx context.Context, namespace, prefix string) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT key, value, created_at, updated_at
        FROM memory_docs
        WHERE namespace = ? AND substr(key, 1, ?) = ?
        ORDER BY key ASC`,
		namespace, len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	defer rows.Close()

	var out []Doc
	for rows.Next() {
		d := Doc{Namespace: namespace}
		var value string
		if err := rows.Scan(&d.Key, &value, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", namespace, err)
		}
		if !strings.HasPrefix(d.Key, prefix) {
			continue
		}
		d.Value = json.RawMessage(value)
		out = append(out, d)
	}
	return out, rows.Err()
}
