package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "app.db")

	db, err := OpenMigrated(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, zerolog.Nop()))

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)

	for _, table := range []string{"players", "sessions", "memory_docs", "daily_results"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestMemoryDatabase(t *testing.T) {
	db, err := OpenMigrated(context.Background(), Memory, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO players(id, username, password_hash) VALUES ('p1', 'ann', 'x')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO players(id, username, password_hash) VALUES ('p2', 'ann', 'y')`)
	assert.Error(t, err, "usernames are unique")
}
