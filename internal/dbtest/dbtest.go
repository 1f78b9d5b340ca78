// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"

	"fknsrs.biz/p/ytcatalog/internal/migrations"
)

func init() {
	sorm.SetParameterPrefix("?")
}

func Open(t testing.TB) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("dbtest.Open: could not open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := migrations.Apply(context.Background(), db); err != nil {
		t.Fatalf("dbtest.Open: could not apply migrations: %v", err)
	}

	return db
}
