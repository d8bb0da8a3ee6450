// Package odbc implements model.SrcDs against a generic ODBC source,
// driven by github.com/alexbrainman/odbc (the one real dependency in this
// tree with no grounding in the example pack — no example repo wires a
// generic ODBC driver, so this is named directly per SPEC_FULL.md §2).
// It assumes only INFORMATION_SCHEMA.COLUMNS and ODBC's '?' positional
// placeholder convention, the lowest common denominator across the ODBC
// sources this dialect has to support.
package odbc

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
	"github.com/markstefanovic/poa/internal/sqlident"
	"github.com/markstefanovic/poa/internal/srcds"
)

const dialect = sqlident.GenericODBC

// SrcDs introspects and reads a single table over a generic ODBC
// connection. Embedded by hh.SrcDs, which overrides GetTable and
// FetchRowsByKey.
type SrcDs struct {
	DB         *sql.DB
	DbName     string
	SchemaName string
	TableName  string
	PkCols     []string
	After      map[string]any

	table *model.Table
}

// New constructs a generic ODBC SrcDs. pkCols must be supplied — unlike
// PostgreSQL/MSSQL, there is no portable ODBC catalog call for primary
// keys this package can rely on across every ODBC driver it might face.
func New(db *sql.DB, dbName, schemaName, tableName string, pkCols []string, after map[string]any) *SrcDs {
	return &SrcDs{
		DB:         db,
		DbName:     dbName,
		SchemaName: schemaName,
		TableName:  tableName,
		PkCols:     pkCols,
		After:      after,
	}
}

func (s *SrcDs) fullTableName() string {
	return sqlident.QualifiedTableName(dialect, s.SchemaName, s.TableName)
}

func (s *SrcDs) TableExists(ctx context.Context) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	`, s.SchemaName, s.TableName).Scan(&count)
	if err != nil {
		return false, poaerr.Wrap(poaerr.KindIoError, err, "table_exists query failed", map[string]any{"table": s.TableName})
	}
	return count > 0, nil
}

func (s *SrcDs) GetTable(ctx context.Context) (model.Table, error) {
	if s.table != nil {
		return *s.table, nil
	}
	if len(s.PkCols) == 0 {
		return model.Table{}, poaerr.New(poaerr.KindConfigError, "generic ODBC source requires an explicit primary key", map[string]any{"table": s.TableName})
	}

	exists, err := s.TableExists(ctx)
	if err != nil {
		return model.Table{}, err
	}
	if !exists {
		return model.Table{}, poaerr.New(poaerr.KindTableDoesntExist, "source table does not exist", map[string]any{"table": s.TableName})
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, CHARACTER_MAXIMUM_LENGTH,
		       NUMERIC_PRECISION, NUMERIC_SCALE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	`, s.SchemaName, s.TableName)
	if err != nil {
		return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed to introspect columns", map[string]any{"table": s.TableName})
	}
	defer rows.Close()

	var cols []model.Column
	for rows.Next() {
		var (
			name, odbcType, isNullable string
			length, precision, scale   sql.NullInt64
		)
		if err := rows.Scan(&name, &odbcType, &isNullable, &length, &precision, &scale); err != nil {
			return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed to scan column row", nil)
		}

		dt, err := DataTypeForODBCType(odbcType)
		if err != nil {
			return model.Table{}, err
		}

		col, err := model.NewColumn(name, dt, strings.EqualFold(isNullable, "YES"), nullableInt(length), nullableInt(precision), nullableInt(scale))
		if err != nil {
			return model.Table{}, err
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed while reading columns", nil)
	}

	table, err := model.NewTable(s.DbName, s.SchemaName, s.TableName, s.PkCols, cols)
	if err != nil {
		return model.Table{}, err
	}
	s.table = &table
	return table, nil
}

func (s *SrcDs) GetRowCount(ctx context.Context) (int, error) {
	sqlStr := fmt.Sprintf("SELECT count(*) FROM %s", s.fullTableName())
	params := []any{}
	where, whereParams, err := afterWhereClause(s.After)
	if err != nil {
		return 0, err
	}
	if where != "" {
		sqlStr += " WHERE " + where
		params = append(params, whereParams...)
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, sqlStr, params...).Scan(&count); err != nil {
		return 0, poaerr.Wrap(poaerr.KindIoError, err, "get_row_count failed", map[string]any{"table": s.TableName})
	}
	return count, nil
}

func (s *SrcDs) FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]model.Row, error) {
	cols, err := s.resolveColumns(ctx, colNames)
	if err != nil {
		return nil, err
	}

	merged := srcds.MergeAfter(s.After, after)

	sqlStr := "SELECT " + quotedColumnList(cols) + " FROM " + s.fullTableName()
	params := []any{}
	where, whereParams, err := afterWhereClause(merged)
	if err != nil {
		return nil, err
	}
	if where != "" {
		sqlStr += " WHERE " + where
		params = append(params, whereParams...)
	}

	rows, err := s.DB.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "fetch_rows query failed", map[string]any{"table": s.TableName})
	}
	defer rows.Close()

	return scanRows(rows, cols)
}

// FetchRowsByKey chunks keys into groups of 100 and issues WHERE (...)
// IN (...), per spec.md §4.2's ODBC/HH chunking rule. A multi-column
// primary key falls back to chained OR'd AND groups, same as the
// single-statement shape but without IN's single-column shortcut.
func (s *SrcDs) FetchRowsByKey(ctx context.Context, colNames []string, keys []model.RowKey) ([]model.Row, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cols, err := s.resolveColumns(ctx, colNames)
	if err != nil {
		return nil, err
	}

	keyCols := keys[0].Columns()
	var out []model.Row

	for _, chunk := range srcds.ChunkKeys(keys, 100) {
		sqlStr, params := buildInClause(s.fullTableName(), cols, keyCols, chunk)
		rows, err := s.DB.QueryContext(ctx, sqlStr, params...)
		if err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "fetch_rows_by_key query failed", map[string]any{"table": s.TableName})
		}
		batch, err := scanRows(rows, cols)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}

	return out, nil
}

func buildInClause(fullTableName string, cols, keyCols []string, keys []model.RowKey) (string, []any) {
	var params []any

	if len(keyCols) == 1 {
		kc := keyCols[0]
		placeholders := make([]string, len(keys))
		for i, k := range keys {
			placeholders[i] = "?"
			params = append(params, k.Values()[kc])
		}
		sqlStr := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s IN (%s)",
			quotedColumnList(cols), fullTableName, sqlident.Quote(dialect, kc), strings.Join(placeholders, ", "),
		)
		return sqlStr, params
	}

	var orClauses []string
	for _, k := range keys {
		vals := k.Values()
		var eqParts []string
		for _, kc := range keyCols {
			eqParts = append(eqParts, sqlident.Quote(dialect, kc)+" = ?")
			params = append(params, vals[kc])
		}
		orClauses = append(orClauses, "("+strings.Join(eqParts, " AND ")+")")
	}
	sqlStr := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s",
		quotedColumnList(cols), fullTableName, strings.Join(orClauses, " OR "),
	)
	return sqlStr, params
}

func (s *SrcDs) resolveColumns(ctx context.Context, colNames []string) ([]string, error) {
	if len(colNames) > 0 {
		cols := append([]string(nil), colNames...)
		sort.Strings(cols)
		for _, c := range cols {
			if err := sqlident.GuardAgainstInjection(c); err != nil {
				return nil, err
			}
		}
		return cols, nil
	}
	table, err := s.GetTable(ctx)
	if err != nil {
		return nil, err
	}
	return table.ColumnNames(), nil
}

func quotedColumnList(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = sqlident.QuoteWithAlias(dialect, c)
	}
	return strings.Join(out, ", ")
}

func scanRows(rows *sql.Rows, cols []string) ([]model.Row, error) {
	var out []model.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "failed to scan row", nil)
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "error iterating rows", nil)
	}
	return out, nil
}

func afterWhereClause(after map[string]any) (string, []any, error) {
	if len(after) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(after))
	for k := range after {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	var params []any
	for _, k := range keys {
		if err := sqlident.GuardAgainstInjection(k); err != nil {
			return "", nil, err
		}
		parts = append(parts, sqlident.Quote(dialect, k)+" > ?")
		params = append(params, after[k])
	}
	return strings.Join(parts, " OR "), params, nil
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// DataTypeForODBCType maps a generic ODBC/SQL-standard type name to the
// portable DataType tag set. Exported so the hh package can reuse it
// before applying its own TimestampTZ->Timestamp override.
func DataTypeForODBCType(odbcType string) (model.DataType, error) {
	switch strings.ToLower(odbcType) {
	case "smallint", "integer", "int":
		return model.Int, nil
	case "bigint":
		return model.BigInt, nil
	case "decimal", "numeric":
		return model.Decimal, nil
	case "real", "float":
		return model.Float, nil
	case "double", "double precision":
		return model.BigFloat, nil
	case "boolean", "bit":
		return model.Bool, nil
	case "date":
		return model.Date, nil
	case "timestamp":
		return model.Timestamp, nil
	case "timestamptz", "timestamp with time zone":
		return model.TimestampTZ, nil
	case "uuid", "guid":
		return model.UUID, nil
	case "char", "varchar", "nchar", "nvarchar", "text", "longvarchar":
		return model.Text, nil
	default:
		return "", poaerr.New(poaerr.KindUnsupportedType, fmt.Sprintf("unsupported ODBC type %q", odbcType), map[string]any{"odbc_type": odbcType})
	}
}
