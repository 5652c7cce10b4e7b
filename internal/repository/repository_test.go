package repository

import (
	"database/sql"
	"path/filepath"
	"testing"

	"mania-tracker/internal/config"
	"mania-tracker/internal/database"

	"github.com/rs/zerolog"
)

// newTestDB opens a throwaway migrated database in a temp dir. A file
// is used instead of :memory: because the pool hands out more than one
// connection.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
