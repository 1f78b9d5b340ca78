package ctxdb_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
	"fknsrs.biz/p/ytcatalog/internal/dbtest"
)

func countChannels(t *testing.T, db *sql.DB) int {
	t.Helper()

	var n int
	if err := db.QueryRow("select count(*) from channels").Scan(&n); err != nil {
		t.Fatal(err)
	}

	return n
}

func insertChannel(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, "insert into channels (external_id, created_at, updated_at) values (?, datetime('now'), datetime('now'))", id)
	return err
}

func TestUsingTx(t *testing.T) {
	t.Run("NoDB", func(t *testing.T) {
		a := assert.New(t)

		err := ctxdb.UsingTx(context.Background(), nil, func(ctx context.Context, tx *sql.Tx) error {
			return nil
		})
		a.ErrorIs(err, ctxdb.ErrNoDB)
	})

	t.Run("Commit", func(t *testing.T) {
		a := assert.New(t)

		db := dbtest.Open(t)
		ctx := ctxdb.WithDB(context.Background(), db)

		a.NoError(ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
			a.Equal(tx, ctxdb.GetTx(ctx))
			return insertChannel(ctx, tx, "c1")
		}))

		a.Nil(ctxdb.GetTx(ctx))
		a.Equal(1, countChannels(t, db))
	})

	t.Run("Rollback", func(t *testing.T) {
		a := assert.New(t)

		db := dbtest.Open(t)
		ctx := ctxdb.WithDB(context.Background(), db)

		failure := errors.New("failure")

		err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
			if err := insertChannel(ctx, tx, "c1"); err != nil {
				return err
			}
			return failure
		})
		a.ErrorIs(err, failure)
		a.Equal(0, countChannels(t, db))
	})

	t.Run("NestedJoinsOuter", func(t *testing.T) {
		a := assert.New(t)

		db := dbtest.Open(t)
		ctx := ctxdb.WithDB(context.Background(), db)

		failure := errors.New("failure")

		err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, outer *sql.Tx) error {
			if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, inner *sql.Tx) error {
				a.Equal(outer, inner)
				return insertChannel(ctx, inner, "c1")
			}); err != nil {
				return err
			}

			return failure
		})
		a.ErrorIs(err, failure)
		a.Equal(0, countChannels(t, db))
	})
}

func TestIsBusy(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		out  bool
	}{
		{"Nil", nil, false},
		{"Other", errors.New("no such table"), false},
		{"Busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"Locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"WrappedBusy", fmt.Errorf("reserve: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"Constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"Message", errors.New("database is locked"), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.out, ctxdb.IsBusy(tc.err))
		})
	}
}
