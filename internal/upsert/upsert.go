// Package upsert writes batches of entities, inserting the new ones and
// updating only the existing rows whose fields actually changed.
package upsert

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytcatalog/internal/ctxdb"
)

type Result struct {
	Inserted int
	Updated  int
}

func (r Result) Add(other Result) Result {
	return Result{Inserted: r.Inserted + other.Inserted, Updated: r.Updated + other.Updated}
}

// Adapter describes how one entity type is keyed, loaded and compared.
type Adapter[K comparable, T any] struct {
	Name string
	Key  func(v *T) K
	// LoadExisting must fetch every stored row matching any of the keys
	// with a single query.
	LoadExisting func(ctx context.Context, tx *sql.Tx, keys []K) ([]T, error)
	// Apply merges incoming into existing and reports whether it changed.
	Apply func(existing, incoming *T, asOf time.Time) bool
	// Prepare stamps a new entity before it is inserted.
	Prepare func(v *T, asOf time.Time)
}

// Batch applies candidates in one transaction: either all of them land or
// none do. An empty batch doesn't touch the database.
func Batch[K comparable, T any](ctx context.Context, adapter Adapter[K, T], candidates []T, asOf time.Time) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, nil
	}

	var res Result

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		r, err := BatchTx(ctx, tx, adapter, candidates, asOf)
		if err != nil {
			return err
		}

		res = r

		return nil
	}); err != nil {
		return Result{}, fmt.Errorf("upsert.Batch(%s): %w", adapter.Name, err)
	}

	return res, nil
}

// BatchTx is Batch inside a transaction the caller owns.
func BatchTx[K comparable, T any](ctx context.Context, tx *sql.Tx, adapter Adapter[K, T], candidates []T, asOf time.Time) (Result, error) {
	var res Result

	if len(candidates) == 0 {
		return res, nil
	}

	seen := make(map[K]bool, len(candidates))
	var keys []K
	for i := range candidates {
		k := adapter.Key(&candidates[i])
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	rows, err := adapter.LoadExisting(ctx, tx, keys)
	if err != nil {
		return res, fmt.Errorf("upsert.BatchTx: could not load existing rows: %w", err)
	}

	existing := make(map[K]*T, len(rows))
	for i := range rows {
		existing[adapter.Key(&rows[i])] = &rows[i]
	}

	for i := range candidates {
		incoming := &candidates[i]
		k := adapter.Key(incoming)

		if current, ok := existing[k]; ok {
			if !adapter.Apply(current, incoming, asOf) {
				continue
			}

			if err := sorm.SaveRecord(ctx, tx, current); err != nil {
				return res, fmt.Errorf("upsert.BatchTx: could not save %v: %w", k, err)
			}

			res.Updated++

			continue
		}

		row := *incoming
		if adapter.Prepare != nil {
			adapter.Prepare(&row, asOf)
		}

		if err := sorm.CreateRecord(ctx, tx, &row); err != nil {
			return res, fmt.Errorf("upsert.BatchTx: could not create %v: %w", k, err)
		}

		existing[k] = &row
		res.Inserted++
	}

	return res, nil
}

// Placeholders returns n comma-separated bind markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}

	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
