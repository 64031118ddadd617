// Package dbtest opens throwaway in-memory databases carrying the real schema.
package dbtest

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/db"
)

// Open creates an in-memory SQLite database and applies migrations.
// The pool is pinned to one connection: every new connection to
// "file::memory:" would otherwise see its own empty database.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	require.NoError(t, db.Migrate(driver, "sqlite3"), "Failed to apply migrations")

	t.Cleanup(func() { _ = database.Close() })
	return database
}
