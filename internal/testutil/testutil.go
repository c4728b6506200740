// Package testutil contains shared testing utilities.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/readtrack/internal/database"
	"github.com/isdelr/readtrack/internal/models"
)

// NewDB opens a migrated SQLite database in a temp dir, closed at test cleanup.
// It also drops the bcrypt cost so tests that create readers stay fast.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()
	models.HashCost = bcrypt.MinCost

	db, err := database.New(filepath.Join(t.TempDir(), "readtrack.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CountRows returns the number of rows in table matching where.
func CountRows(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()
	var n int
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}
