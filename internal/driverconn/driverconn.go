// Package driverconn establishes *sql.DB connections for each dialect
// API this system knows about. Driver/connection establishment is named
// an external collaborator in spec.md §1; this package is the thin,
// narrowly-scoped implementation of that collaborator — it never touches
// DDL or row data, grounded on sqldef's driver/database.go and
// adapter/mssql/mssql.go (blank driver imports selected by dialect tag).
package driverconn

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/alexbrainman/odbc"
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/lib/pq"

	"github.com/markstefanovic/poa/internal/dbconfig"
	"github.com/markstefanovic/poa/internal/poaerr"
)

// driverNameFor maps a dbconfig.API to the database/sql driver name
// registered by the adapter's blank import.
func driverNameFor(api dbconfig.API) (string, error) {
	switch api {
	case dbconfig.APIPsycopg:
		return "postgres", nil
	case dbconfig.APIMSSQL:
		return "sqlserver", nil
	case dbconfig.APIHH, dbconfig.APIPyODBC:
		return "odbc", nil
	default:
		return "", poaerr.New(poaerr.KindUnrecognizedDatabaseAPI, fmt.Sprintf("no driver for api %q", api), map[string]any{"api": api})
	}
}

// Open opens a *sql.DB for cfg and pings it, wrapping any failure as a
// poaerr.KindConnectionError.
func Open(ctx context.Context, cfg dbconfig.Config) (*sql.DB, error) {
	driverName, err := driverNameFor(cfg.API)
	if err != nil {
		return nil, err
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindConnectionError, err, "failed to open connection", map[string]any{"database": cfg.Name})
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, poaerr.Wrap(poaerr.KindConnectionError, err, "failed to ping database", map[string]any{"database": cfg.Name})
	}

	return db, nil
}

// OpenDestination opens a *sql.DB for the PostgreSQL destination and
// applies the session timeouts required by spec.md §5:
// idle_in_transaction_session_timeout=15min, lock_timeout=5min.
func OpenDestination(ctx context.Context, cfg dbconfig.Config) (*sql.DB, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// database/sql pools connections; capping the pool at one keeps every
	// later query in the session that receives the SET below.
	db.SetMaxOpenConns(1)

	const setSessionLimits = `SET idle_in_transaction_session_timeout = '15min'; SET lock_timeout = '5min'`
	if _, err := db.ExecContext(ctx, setSessionLimits); err != nil {
		_ = db.Close()
		return nil, poaerr.Wrap(poaerr.KindConnectionError, err, "failed to set destination session limits", map[string]any{"database": cfg.Name})
	}

	return db, nil
}
