package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/turtlesoup/internal/sqldb"
	"github.com/robalobadob/turtlesoup/internal/store"
	"github.com/robalobadob/turtlesoup/internal/store/sqlite"
	"github.com/robalobadob/turtlesoup/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := sqldb.OpenMigrated(context.Background(), filepath.Join(t.TempDir(), "app.db"), zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return sqlite.New(db)
	})
}
