// Package postgres implements model.SrcDs against a PostgreSQL source,
// grounded on sqldef's database/postgres/database.go (information_schema
// introspection, *sql.DB-backed adapter struct) and the original poa
// implementation's src/adapter/ds/src_ds/pg.py.
package postgres

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

const dialect = sqlident.Postgres

// SrcDs introspects and reads a single table from a PostgreSQL source.
type SrcDs struct {
	db         *sql.DB
	dbName     string
	schemaName string
	tableName  string
	pkCols     []string
	after      map[string]any

	table *model.Table
}

// New constructs a PostgreSQL SrcDs. pkCols may be empty — PostgreSQL
// tables report their own primary key via introspection, unlike HH.
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
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
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
		SELECT column_name, data_type, is_nullable, character_maximum_length,
		       numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
	`, s.schemaName, s.tableName)
	if err != nil {
		return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed to introspect columns", map[string]any{"table": s.tableName})
	}
	defer rows.Close()

	var cols []model.Column
	for rows.Next() {
		var (
			name, pgType, isNullable string
			length, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&name, &pgType, &isNullable, &length, &precision, &scale); err != nil {
			return model.Table{}, poaerr.Wrap(poaerr.KindIoError, err, "failed to scan column row", nil)
		}

		dt, err := dataTypeForPgType(pgType)
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
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = to_regclass($1) AND i.indisprimary
		ORDER BY array_position(i.indkey, a.attnum)
	`, s.fullTableName())
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

func (s *SrcDs) FetchRowsByKey(ctx context.Context, colNames []string, keys []model.RowKey) ([]model.Row, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cols, err := s.resolveColumns(ctx, colNames)
	if err != nil {
		return nil, err
	}

	keyCols := keys[0].Columns()

	var valuesRows []string
	var params []any
	paramIdx := 1
	for _, k := range keys {
		vals := k.Values()
		placeholders := make([]string, len(keyCols))
		for i, kc := range keyCols {
			placeholders[i] = fmt.Sprintf("$%d", paramIdx)
			params = append(params, vals[kc])
			paramIdx++
		}
		valuesRows = append(valuesRows, "("+strings.Join(placeholders, ", ")+")")
	}

	aliasCols := make([]string, len(keyCols))
	for i, kc := range keyCols {
		aliasCols[i] = sqlident.Quote(dialect, kc)
	}

	joinCond := make([]string, len(keyCols))
	for i, kc := range keyCols {
		quoted := sqlident.Quote(dialect, kc)
		joinCond[i] = fmt.Sprintf("t.%s = v.%s", quoted, quoted)
	}

	sqlStr := fmt.Sprintf(
		"SELECT %s FROM %s AS t JOIN (VALUES %s) AS v(%s) ON %s",
		prefixedColumnList("t", cols),
		s.fullTableName(),
		strings.Join(valuesRows, ", "),
		strings.Join(aliasCols, ", "),
		strings.Join(joinCond, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "fetch_rows_by_key query failed", map[string]any{"table": s.tableName})
	}
	defer rows.Close()

	return scanRows(rows, cols)
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

func prefixedColumnList(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + sqlident.Quote(dialect, c)
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

// afterWhereClause renders the OR'd "col > threshold" clause spec.md
// §4.2 describes, starting parameter numbering at startIdx (PostgreSQL's
// $N placeholders are positional across the whole statement).
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
		parts = append(parts, fmt.Sprintf("%s > $%d", sqlident.Quote(dialect, k), idx))
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

func dataTypeForPgType(pgType string) (model.DataType, error) {
	switch pgType {
	case "smallint", "integer", "serial", "smallserial":
		return model.Int, nil
	case "bigint", "bigserial":
		return model.BigInt, nil
	case "numeric", "decimal", "money":
		return model.Decimal, nil
	case "real":
		return model.Float, nil
	case "double precision":
		return model.BigFloat, nil
	case "boolean":
		return model.Bool, nil
	case "date":
		return model.Date, nil
	case "timestamp without time zone":
		return model.Timestamp, nil
	case "timestamp with time zone":
		return model.TimestampTZ, nil
	case "uuid":
		return model.UUID, nil
	case "text", "character varying", "character", "citext":
		return model.Text, nil
	default:
		return "", poaerr.New(poaerr.KindUnsupportedType, fmt.Sprintf("unsupported PostgreSQL type %q", pgType), map[string]any{"pg_type": pgType})
	}
}
