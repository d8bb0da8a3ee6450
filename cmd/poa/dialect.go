package main

import (
	"database/sql"

	"github.com/markstefanovic/poa/internal/dbconfig"
	postgresdst "github.com/markstefanovic/poa/internal/dstds/postgres"
	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
	"github.com/markstefanovic/poa/internal/srcds/hh"
	"github.com/markstefanovic/poa/internal/srcds/mssql"
	"github.com/markstefanovic/poa/internal/srcds/odbc"
	"github.com/markstefanovic/poa/internal/srcds/postgres"
)

// newSrcDs is the dialect factory spec.md §4.2 describes only in the
// abstract ("source data source, one implementation per API"); this is
// the concrete wiring point that picks the right internal/srcds/*
// adapter for a resolved dbconfig.Config.
func newSrcDs(db *sql.DB, cfg dbconfig.Config, schemaName, tableName string, pk []string, after map[string]any) (model.SrcDs, error) {
	switch cfg.API {
	case dbconfig.APIPsycopg:
		return postgres.New(db, cfg.Name, schemaName, tableName, pk, after), nil
	case dbconfig.APIMSSQL:
		return mssql.New(db, cfg.Name, schemaName, tableName, pk, after), nil
	case dbconfig.APIHH:
		return hh.New(db, cfg.Name, schemaName, tableName, pk, after), nil
	case dbconfig.APIPyODBC:
		return odbc.New(db, cfg.Name, schemaName, tableName, pk, after), nil
	default:
		return nil, poaerr.New(poaerr.KindUnrecognizedDatabaseAPI, "no source adapter for api", map[string]any{"api": cfg.API})
	}
}

// newDstDs constructs the destination adapter. There is only ever one
// destination dialect (PostgreSQL), unlike the multi-dialect source
// side, so this has no switch.
func newDstDs(db *sql.DB, dstTable model.Table, after map[string]any) model.DstDs {
	return postgresdst.New(db, dstTable, after)
}
