// Package dbscope provides the scoped-transaction helper every adapter
// uses to guarantee commit-on-success / rollback-on-error / always-close,
// grounded on sqldef's begin/commit/rollback pattern in
// database.RunDDLs (database/database.go).
package dbscope

import (
	"context"
	"database/sql"
)

// Tx begins a transaction on db, calls fn with it, commits if fn returns
// nil, and rolls back otherwise. It never leaves a transaction open.
func Tx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
