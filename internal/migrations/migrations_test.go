package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	a := assert.New(t)

	all, err := Load()
	a.NoError(err)

	if a.NotEmpty(all) {
		for i, m := range all {
			a.Equal(i+1, m.Version, m.Name)
			a.NotEmpty(m.SQL)
		}
	}
}

func TestApply(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrations.db"))
	if !a.NoError(err) {
		return
	}
	defer db.Close()

	all, err := Load()
	a.NoError(err)

	n, err := Apply(ctx, db)
	a.NoError(err)
	a.Equal(len(all), n)

	version, err := CurrentVersion(ctx, db)
	a.NoError(err)
	a.Equal(all[len(all)-1].Version, version)

	for _, table := range []string{"channels", "videos", "playlists", "video_playlists", "comment_replies", "jobs"} {
		var count int
		a.NoError(db.QueryRowContext(ctx, "select count(*) from "+table).Scan(&count), table)
	}

	n, err = Apply(ctx, db)
	a.NoError(err)
	a.Equal(0, n)
}
