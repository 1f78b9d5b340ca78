package ctxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNoDB = fmt.Errorf("ctxdb: no db found in context")
)

var (
	dbKey int
	txKey int
)

func WithDB(ctx context.Context, db *sql.DB) context.Context {
	return context.WithValue(ctx, &dbKey, db)
}

func GetDB(ctx context.Context) *sql.DB {
	if v := ctx.Value(&dbKey); v != nil {
		return v.(*sql.DB)
	}

	return nil
}

// GetTx returns the transaction an enclosing UsingTx opened, if any.
func GetTx(ctx context.Context) *sql.Tx {
	if v := ctx.Value(&txKey); v != nil {
		return v.(*sql.Tx)
	}

	return nil
}

type TxFunc func(ctx context.Context, tx *sql.Tx) error

// UsingTx runs fn inside a transaction, committing if it returns nil and
// rolling back otherwise. Called inside another UsingTx it joins the outer
// transaction, and the outermost call decides whether it commits; sqlite
// would otherwise block the inner writer on the outer one until the busy
// timeout runs out.
func UsingTx(ctx context.Context, opts *sql.TxOptions, fn TxFunc) error {
	if tx := GetTx(ctx); tx != nil {
		return fn(ctx, tx)
	}

	db := GetDB(ctx)
	if db == nil {
		return ErrNoDB
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("ctxdb.UsingTx: could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, &txKey, tx), tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ctxdb.UsingTx: could not commit transaction: %w", err)
	}

	return nil
}

// IsBusy reports whether err is sqlite refusing a lock another connection
// holds. Those are worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}

	return strings.Contains(err.Error(), "database is locked")
}

// middleware

func Register(db *sql.DB) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithDB(r.Context(), db)))
	}
}
