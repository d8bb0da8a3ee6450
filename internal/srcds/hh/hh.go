// Package hh implements model.SrcDs for the HH dialect: a generic ODBC
// source with two overrides spec.md §4.2 calls out specifically — the
// primary key is always forced non-nullable regardless of what the
// driver reports, TimestampTZ columns are reported as plain Timestamp
// (HH's ODBC driver has no timezone-aware type), and a composite primary
// key is refused outright rather than silently mishandled. Grounded on
// sqldef's dialect-override pattern in database/mssql/database.go laid
// over the odbc package's shared introspection.
package hh

import (
	"context"
	"database/sql"

	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
	"github.com/markstefanovic/poa/internal/srcds/odbc"
)

// SrcDs embeds odbc.SrcDs and overrides GetTable/FetchRowsByKey for the
// HH driver's quirks.
type SrcDs struct {
	*odbc.SrcDs
}

// New constructs an HH SrcDs. pkCols must have exactly one column — HH
// sources with a composite key are out of scope (see GetTable).
func New(db *sql.DB, dbName, schemaName, tableName string, pkCols []string, after map[string]any) *SrcDs {
	return &SrcDs{SrcDs: odbc.New(db, dbName, schemaName, tableName, pkCols, after)}
}

// GetTable introspects columns the same way the generic ODBC adapter
// does, then applies HH's two overrides: force the primary key column
// non-nullable (model.NewTable already does this, kept here as the
// single-PK guard point) and rewrite any TimestampTZ column to
// Timestamp, since HH's ODBC driver reports timezone-aware columns but
// cannot actually express a timezone offset.
func (s *SrcDs) GetTable(ctx context.Context) (model.Table, error) {
	if len(s.PkCols) != 1 {
		return model.Table{}, poaerr.New(
			poaerr.KindUnsupportedType,
			"HH sources do not support composite primary keys",
			map[string]any{"table": s.TableName, "pk": s.PkCols},
		)
	}

	table, err := s.SrcDs.GetTable(ctx)
	if err != nil {
		return model.Table{}, err
	}

	for i, c := range table.Columns {
		if c.DataType == model.TimestampTZ {
			table.Columns[i].DataType = model.Timestamp
		}
	}

	return table, nil
}

// FetchRowsByKey refuses a multi-column key the same way GetTable does;
// HH's IN (...) chunked fetch, inherited from odbc.SrcDs, otherwise
// applies unchanged once the single-column invariant holds.
func (s *SrcDs) FetchRowsByKey(ctx context.Context, colNames []string, keys []model.RowKey) ([]model.Row, error) {
	if len(keys) > 0 && len(keys[0].Columns()) != 1 {
		return nil, poaerr.New(
			poaerr.KindUnsupportedType,
			"HH sources do not support composite primary keys",
			map[string]any{"table": s.TableName},
		)
	}
	return s.SrcDs.FetchRowsByKey(ctx, colNames, keys)
}
