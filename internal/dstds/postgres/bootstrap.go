package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/markstefanovic/poa/internal/poaerr"
)

//go:embed schema.sql
var schemaSQL string

// Bootstrap applies the poa audit/cache schema, creating it if absent.
// Safe to call on every run — every statement in schema.sql is
// idempotent (CREATE SCHEMA/TABLE/INDEX IF NOT EXISTS).
func Bootstrap(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "failed to bootstrap poa schema", nil)
	}
	return nil
}
