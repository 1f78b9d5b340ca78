package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the embedded migrations ordered by version. File names look
// like "0002_comment_replies.sql".
func Load() ([]Migration, error) {
	entries, err := files.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("migrations.Load: could not read embedded directory: %w", err)
	}

	seen := make(map[int]string)

	var a []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migrations.Load: file %q has no version prefix", name)
		}

		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migrations.Load: file %q has an invalid version prefix", name)
		}

		if other, ok := seen[version]; ok {
			return nil, fmt.Errorf("migrations.Load: files %q and %q share version %d", other, name, version)
		}
		seen[version] = name

		content, err := files.ReadFile(path.Join("sql", name))
		if err != nil {
			return nil, fmt.Errorf("migrations.Load: could not read %q: %w", name, err)
		}

		a = append(a, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(a, func(i, j int) bool { return a[i].Version < a[j].Version })

	return a, nil
}

func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "pragma user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("migrations.CurrentVersion: %w", err)
	}

	return version, nil
}

// Apply runs every migration newer than the database's user_version, each in
// its own transaction. It returns how many were applied.
func Apply(ctx context.Context, db *sql.DB) (int, error) {
	all, err := Load()
	if err != nil {
		return 0, fmt.Errorf("migrations.Apply: %w", err)
	}

	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("migrations.Apply: %w", err)
	}

	applied := 0

	for _, m := range all {
		if m.Version <= current {
			continue
		}

		if err := apply(ctx, db, m); err != nil {
			return applied, fmt.Errorf("migrations.Apply: %w", err)
		}

		applied++
	}

	return applied, nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrations.apply: could not begin transaction for %s: %w", m.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migrations.apply: could not execute %s: %w", m.Name, err)
	}

	// pragma arguments can't be bound
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("pragma user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("migrations.apply: could not record version for %s: %w", m.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrations.apply: could not commit %s: %w", m.Name, err)
	}

	return nil
}
