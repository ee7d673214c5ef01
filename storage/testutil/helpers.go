package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/hillwire/powergraph/db"
	"github.com/hillwire/powergraph/storage"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// Uses real migrations to ensure test schema matches production schema.
func SetupTestDB(t *testing.T) *storage.DB {
	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	// Apply real migrations (ensures test schema = production schema)
	err = db.Migrate(testDB, nil)
	require.NoError(t, err, "Failed to run migrations")

	return storage.New(testDB)
}

// SetupEmptyDB creates an in-memory SQLite database without any schema.
// Used for testing error handling when tables are missing.
func SetupEmptyDB(t *testing.T) *storage.DB {
	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })
	return storage.New(testDB)
}
