package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "diet-coach.db")
	logger := zaptest.NewLogger(t)

	db, err := NewDB(dbPath, logger)
	require.NoError(t, err)

	for _, table := range []string{"meal_plans", "execution_metrics"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
	require.NoError(t, db.Close())

	t.Run("ReopenIsNoChange", func(t *testing.T) {
		db, err := NewDB(dbPath, logger)
		require.NoError(t, err)
		defer db.Close()

		var version int
		require.NoError(t, db.SQL.QueryRow(`SELECT version FROM schema_migrations`).Scan(&version))
		assert.Equal(t, 2, version)
	})
}
