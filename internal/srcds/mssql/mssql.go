// Package mssql implements model.SrcDs against a SQL Server source,
// grounded on sqldef's database/mssql/database.go (INFORMATION_SCHEMA
// introspection against a denisenkom/go-mssqldb connection) and the
// original poa implementation's src/adapter/ds/src_ds/mssql.py.
package mssql

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

const dialect = sqlident.MSSQL

// SrcDs introspects and reads a single table from a SQL Server source.
type SrcDs struct {
	db         *sql.DB
	dbName     string
	schemaName string
	tableName  string
	pkCols     []string
	after      map[string]any

	table *model.Table
}

// New constructs a SQL Server SrcDs. pkCols may be empty — the table's
// own primary key is introspected via sys.indexes when omitted.
func New(db *sql.DB, dbName, schemaName, tableName string, pkCols []string, after map[string]any) *SrcDs {
	return &SrcDs{
		db:         db,
		dbName:     dbName,
		schemaName: schemaName,
		tableName:  tableName,
		pkCols:     pkCols,
		after:      after,
	}
}

func (s *SrcDs) fullTableName() string {
	return sqlident.QualifiedTableName(dialect, s.schemaName, s.tableName)
}

func (s *SrcDs) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT CASE WHEN EXISTS (
			SELECT 1 FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		) THEN 1 ELSE 0 END
	`, s.schemaName, s.tableName).Scan(&exists)
	if err != nil {
		return false, poaerr.Wrap(poaerr.KindIoError, err, "table_exists query failed", map[string]any{"table": s.tableName})
	}
	return exists, nil
}

func (s *SrcDs) GetTable(ctx context.Context) (model.Table, error) {
	if s.table != nil {
		return *s.table, nil
	}

	exists, err := s.TableExists(ctx)
	if err != nil {
		return model.Table{}, err
	}
	if !exists {
		return model.Table{}, poaerr.New(poaerr.KindTableDoesntExist, "source table does not exist", map[string]any{"table": s.tableName})
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, CHARACTER_MAXIMUM_LENGTH,
		       NUMERIC_PRECISION, NUMERIC_SCALE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
	`, s.schemaName, s.tableName)
	if err != nil {
		return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed to introspect columns", map[string]any{"table": s.tableName})
	}
	defer rows.Close()

	var cols []model.Column
	for rows.Next() {
		var (
			name, msType, isNullable string
			length, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&name, &msType, &isNullable, &length, &precision, &scale); err != nil {
			return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed to scan column row", nil)
		}

		dt, err := dataTypeForMsType(msType)
		if err != nil {
			return model.Table{}, err
		}

		col, err := model.NewColumn(name, dt, isNullable == "YES", nullableInt(length), nullableInt(precision), nullableInt(scale))
		if err != nil {
			return model.Table{}, err
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed while reading columns", nil)
	}

	pk := s.pkCols
	if len(pk) == 0 {
		pk, err = s.introspectPK(ctx)
		if err != nil {
			return model.Table{}, err
		}
	}

	table, err := model.NewTable(s.dbName, s.schemaName, s.tableName, pk, cols)
	if err != nil {
		return model.Table{}, err
	}
	s.table = &table
	return table, nil
}

func (s *SrcDs) introspectPK(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas sch ON sch.schema_id = t.schema_id
		WHERE i.is_primary_key = 1 AND sch.name = @p1 AND t.name = @p2
		ORDER BY ic.key_ordinal
	`, s.schemaName, s.tableName)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "failed to introspect primary key", map[string]any{"table": s.tableName})
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "failed to scan pk column", nil)
		}
		pk = append(pk, col)
	}
	if len(pk) == 0 {
		return nil, poaerr.New(poaerr.KindConfigError, "source table has no primary key and none was supplied", map[string]any{"table": s.tableName})
	}
	return pk, nil
}

func (s *SrcDs) GetRowCount(ctx context.Context) (int, error) {
	sqlStr := fmt.Sprintf("SELECT count(*) FROM %s", s.fullTableName())
	params := []any{}
	where, whereParams, err := afterWhereClause(s.after, 1)
	if err != nil {
		return 0, err
	}
	if where != "" {
		sqlStr += " WHERE " + where
		params = append(params, whereParams...)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, sqlStr, params...).Scan(&count); err != nil {
		return 0, poaerr.Wrap(poaerr.KindIoError, err, "get_row_count failed", map[string]any{"table": s.tableName})
	}
	return count, nil
}

func (s *SrcDs) FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]model.Row, error) {
	cols, err := s.resolveColumns(ctx, colNames)
	if err != nil {
		return nil, err
	}

	merged := srcds.MergeAfter(s.after, after)

	sqlStr := "SELECT " + quotedColumnList(cols) + " FROM " + s.fullTableName()
	params := []any{}
	where, whereParams, err := afterWhereClause(merged, 1)
	if err != nil {
		return nil, err
	}
	if where != "" {
		sqlStr += " WHERE " + where
		params = append(params, whereParams...)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "fetch_rows query failed", map[string]any{"table": s.tableName})
	}
	defer rows.Close()

	return scanRows(rows, cols)
}

// FetchRowsByKey chunks keys into groups of 100 and expresses each batch
// as a WHERE (...) IN (...) clause — SQL Server's table-value constructor
// join syntax differs enough from PostgreSQL's VALUES() that chunked IN
// matches sqldef's own MSSQL query style more closely.
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
		rows, err := s.db.QueryContext(ctx, sqlStr, params...)
		if err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "fetch_rows_by_key query failed", map[string]any{"table": s.tableName})
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
	paramIdx := 1

	if len(keyCols) == 1 {
		kc := keyCols[0]
		placeholders := make([]string, len(keys))
		for i, k := range keys {
			placeholders[i] = fmt.Sprintf("@p%d", paramIdx)
			params = append(params, k.Values()[kc])
			paramIdx++
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
			eqParts = append(eqParts, fmt.Sprintf("%s = @p%d", sqlident.Quote(dialect, kc), paramIdx))
			params = append(params, vals[kc])
			paramIdx++
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

func afterWhereClause(after map[string]any, startIdx int) (string, []any, error) {
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
	idx := startIdx
	for _, k := range keys {
		if err := sqlident.GuardAgainstInjection(k); err != nil {
			return "", nil, err
		}
		parts = append(parts, fmt.Sprintf("%s > @p%d", sqlident.Quote(dialect, k), idx))
		params = append(params, after[k])
		idx++
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

func dataTypeForMsType(msType string) (model.DataType, error) {
	switch strings.ToLower(msType) {
	case "smallint", "int", "tinyint":
		return model.Int, nil
	case "bigint":
		return model.BigInt, nil
	case "decimal", "numeric", "money", "smallmoney":
		return model.Decimal, nil
	case "real":
		return model.Float, nil
	case "float":
		return model.BigFloat, nil
	case "bit":
		return model.Bool, nil
	case "date":
		return model.Date, nil
	case "datetime", "datetime2", "smalldatetime":
		return model.Timestamp, nil
	case "datetimeoffset":
		return model.TimestampTZ, nil
	case "uniqueidentifier":
		return model.UUID, nil
	case "char", "varchar", "nchar", "nvarchar", "text", "ntext":
		return model.Text, nil
	default:
		return "", poaerr.New(poaerr.KindUnsupportedType, fmt.Sprintf("unsupported SQL Server type %q", msType), map[string]any{"ms_type": msType})
	}
}
