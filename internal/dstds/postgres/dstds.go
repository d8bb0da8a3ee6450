// Package postgres implements model.DstDs against the PostgreSQL
// destination warehouse: DDL for the main/staging/history tables, the
// staging-upsert pipeline, soft-delete, and audit-result persistence.
// Grounded closely on the original poa implementation's
// src/adapter/ds/dst_ds/pg.py, translated from stored-procedure calls to
// plain parameterized SQL per spec.md §6, and on sqldef's
// database/postgres/database.go for the *sql.DB-backed adapter shape.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/markstefanovic/poa/internal/dbscope"
	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
	"github.com/markstefanovic/poa/internal/sqlident"
	"github.com/markstefanovic/poa/internal/srcds"
)

const dialect = sqlident.Postgres

// DstDs is the PostgreSQL destination adapter for a single table. It is
// constructed per-table, carrying the table's shape (derived from the
// source, per model.Table.WithIdentity) and the after-filter that
// fetch_rows/get_row_count apply.
type DstDs struct {
	db       *sql.DB
	dstTable model.Table
	after    map[string]any
}

// New constructs a DstDs for dstTable (already identity-rewritten to the
// destination db/schema/table name) and its optional after-filter.
func New(db *sql.DB, dstTable model.Table, after map[string]any) *DstDs {
	return &DstDs{db: db, dstTable: dstTable, after: after}
}

func (d *DstDs) fullTableName() string {
	return sqlident.QualifiedTableName(dialect, d.dstTable.SchemaName, d.dstTable.TableName)
}

func (d *DstDs) stagingTableName() string {
	return sqlident.QualifiedTableName(dialect, d.dstTable.SchemaName, d.dstTable.TableName+"_staging")
}

func (d *DstDs) historyTableName() string {
	return sqlident.QualifiedTableName(dialect, d.dstTable.SchemaName, d.dstTable.TableName+"_history")
}

func (d *DstDs) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`, d.dstTable.SchemaName, d.dstTable.TableName).Scan(&exists)
	if err != nil {
		return false, poaerr.Wrap(poaerr.KindIoError, err, "table_exists query failed", map[string]any{"table": d.dstTable.TableName})
	}
	return exists, nil
}

// Create builds the main destination table, including the poa_hd/poa_op/
// poa_ts metadata columns and the poa_ts/poa_op indices.
func (d *DstDs) Create(ctx context.Context) error {
	cols := sortedColumns(d.dstTable)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n  ", d.fullTableName())
	for i, c := range cols {
		if i > 0 {
			b.WriteString("\n, ")
		}
		b.WriteString(columnDefinition(c))
	}
	b.WriteString("\n, poa_hd CHAR(32) NOT NULL")
	b.WriteString("\n, poa_op CHAR(1) NOT NULL CHECK (poa_op IN ('a', 'd', 'u'))")
	b.WriteString("\n, poa_ts TIMESTAMPTZ(3) NOT NULL DEFAULT now()")
	fmt.Fprintf(&b, "\n, PRIMARY KEY (%s)", quotedList(d.dstTable.PK))
	b.WriteString("\n)")

	return dbscope.Tx(ctx, d.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, b.String()); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "create table failed", map[string]any{"table": d.dstTable.TableName})
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"CREATE INDEX %s ON %s (poa_ts DESC)", sqlident.PostgresIndexName("ix", d.dstTable.TableName, "poa_ts"), d.fullTableName(),
		)); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "create poa_ts index failed", map[string]any{"table": d.dstTable.TableName})
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"CREATE INDEX %s ON %s (poa_op)", sqlident.PostgresIndexName("ix", d.dstTable.TableName, "poa_op"), d.fullTableName(),
		)); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "create poa_op index failed", map[string]any{"table": d.dstTable.TableName})
		}
		return nil
	})
}

func (d *DstDs) DropTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", d.fullTableName()))
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "drop table failed", map[string]any{"table": d.dstTable.TableName})
	}
	return nil
}

func (d *DstDs) Truncate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", d.fullTableName()))
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "truncate failed", map[string]any{"table": d.dstTable.TableName})
	}
	return nil
}

// CreateStagingTable creates the per-sync staging table the full/
// incremental pipelines truncate-and-repopulate every run.
func (d *DstDs) CreateStagingTable(ctx context.Context) error {
	return d.createAuxTable(ctx, d.stagingTableName(), d.dstTable.TableName+"_staging", false)
}

// CreateHistoryTable creates the append-only history table, keyed on
// (pk..., poa_ts).
func (d *DstDs) CreateHistoryTable(ctx context.Context) error {
	return d.createAuxTable(ctx, d.historyTableName(), d.dstTable.TableName+"_history", true)
}

func (d *DstDs) createAuxTable(ctx context.Context, fullName, shortName string, pkIncludesTs bool) error {
	cols := sortedColumns(d.dstTable)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n  ", fullName)
	for i, c := range cols {
		if i > 0 {
			b.WriteString("\n, ")
		}
		b.WriteString(columnDefinition(c))
	}
	b.WriteString("\n, poa_hd CHAR(32) NOT NULL")
	b.WriteString("\n, poa_op CHAR(1) NOT NULL CHECK (poa_op IN ('a', 'd', 'u'))")
	b.WriteString("\n, poa_ts TIMESTAMPTZ(3) NOT NULL DEFAULT now()")
	pk := append([]string(nil), d.dstTable.PK...)
	if pkIncludesTs {
		pk = append(pk, "poa_ts")
	}
	fmt.Fprintf(&b, "\n, PRIMARY KEY (%s)", quotedList(pk))
	b.WriteString("\n)")

	return dbscope.Tx(ctx, d.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, b.String()); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "create aux table failed", map[string]any{"table": shortName})
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (poa_ts DESC)", sqlident.PostgresIndexName("ix", shortName, "poa_ts"), fullName,
		)); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "create aux poa_ts index failed", map[string]any{"table": shortName})
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (poa_op)", sqlident.PostgresIndexName("ix", shortName, "poa_op"), fullName,
		)); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "create aux poa_op index failed", map[string]any{"table": shortName})
		}
		return nil
	})
}

// AddIncreasingColIndices adds a DESC index on each column the sync
// strategy watermarks against (e.g. an updated_at column), idempotently.
func (d *DstDs) AddIncreasingColIndices(ctx context.Context, cols []string) error {
	for _, col := range cols {
		if err := sqlident.GuardAgainstInjection(col); err != nil {
			return err
		}
		sqlStr := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (%s DESC)",
			sqlident.PostgresIndexName("ix", d.dstTable.TableName, col), d.fullTableName(), sqlident.Quote(dialect, col),
		)
		if _, err := d.db.ExecContext(ctx, sqlStr); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "create increasing col index failed", map[string]any{"table": d.dstTable.TableName, "col": col})
		}
	}
	return nil
}

// GetMaxValues returns the max value of each named column, used to seed
// the after-filter for an incremental-from-last sync. A column with no
// non-null values is omitted; an empty result means no watermark exists
// yet (e.g. an empty destination table).
func (d *DstDs) GetMaxValues(ctx context.Context, cols []string) (map[string]any, error) {
	out := make(map[string]any, len(cols))
	for _, col := range cols {
		if err := sqlident.GuardAgainstInjection(col); err != nil {
			return nil, err
		}
		sqlStr := fmt.Sprintf("SELECT max(%s) AS v FROM %s WHERE poa_op <> 'd'", sqlident.Quote(dialect, col), d.fullTableName())
		var v any
		if err := d.db.QueryRowContext(ctx, sqlStr).Scan(&v); err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "get_max_values failed", map[string]any{"table": d.dstTable.TableName, "col": col})
		}
		if v != nil {
			out[col] = v
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (d *DstDs) GetRowCount(ctx context.Context) (int, error) {
	sqlStr := fmt.Sprintf("SELECT count(*) FROM %s WHERE poa_op <> 'd'", d.fullTableName())
	params := []any{}
	where, whereParams, err := afterWhereClause(srcds.MergeAfter(d.after, nil), 1)
	if err != nil {
		return 0, err
	}
	if where != "" {
		sqlStr += " AND (" + where + ")"
		params = append(params, whereParams...)
	}

	var count int
	if err := d.db.QueryRowContext(ctx, sqlStr, params...).Scan(&count); err != nil {
		return 0, poaerr.Wrap(poaerr.KindIoError, err, "get_row_count failed", map[string]any{"table": d.dstTable.TableName})
	}
	return count, nil
}

func (d *DstDs) FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]model.Row, error) {
	cols := colNames
	if len(cols) == 0 {
		cols = d.dstTable.ColumnNames()
	} else {
		cols = append([]string(nil), cols...)
		sort.Strings(cols)
		for _, c := range cols {
			if err := sqlident.GuardAgainstInjection(c); err != nil {
				return nil, err
			}
		}
	}

	merged := srcds.MergeAfter(d.after, after)

	sqlStr := "SELECT " + quotedColumnList(cols) + " FROM " + d.fullTableName() + " WHERE poa_op <> 'd'"
	params := []any{}
	where, whereParams, err := afterWhereClause(merged, 1)
	if err != nil {
		return nil, err
	}
	if where != "" {
		sqlStr += " AND (" + where + ")"
		params = append(params, whereParams...)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "fetch_rows query failed", map[string]any{"table": d.dstTable.TableName})
	}
	defer rows.Close()

	return scanRows(rows, cols)
}

// AddRowsToStaging truncates the staging table and bulk-inserts rows,
// computing poa_hd as an md5 hash of the non-PK columns and stamping
// poa_op='a'. ON CONFLICT DO NOTHING absorbs accidental duplicate keys
// within the same batch.
func (d *DstDs) AddRowsToStaging(ctx context.Context, rows []model.Row) error {
	return dbscope.Tx(ctx, d.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", d.stagingTableName())); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "truncate staging failed", map[string]any{"table": d.dstTable.TableName})
		}
		if len(rows) == 0 {
			return nil
		}

		colNames := d.dstTable.ColumnNames()
		hashCols := d.dstTable.NonPKColumnNames()

		colNameCSV := quotedColumnList(colNames)
		colPlaceholders := make([]string, len(colNames))
		hashPlaceholders := make([]string, len(hashCols))

		for _, row := range rows {
			params := make([]any, 0, len(colNames)+len(hashCols))
			for i, c := range colNames {
				params = append(params, row[c])
				colPlaceholders[i] = fmt.Sprintf("$%d", len(params))
			}
			for i, c := range hashCols {
				params = append(params, row[c])
				hashPlaceholders[i] = fmt.Sprintf("$%d", len(params))
			}

			sqlStr := fmt.Sprintf(
				"INSERT INTO %s (%s, poa_op, poa_hd) VALUES (%s, 'a', md5(row(%s)::TEXT)) ON CONFLICT DO NOTHING",
				d.stagingTableName(), colNameCSV, strings.Join(colPlaceholders, ", "), strings.Join(hashPlaceholders, ", "),
			)
			if _, err := tx.ExecContext(ctx, sqlStr, params...); err != nil {
				return poaerr.Wrap(poaerr.KindIoError, err, "add_rows_to_staging insert failed", map[string]any{"table": d.dstTable.TableName})
			}
		}
		return nil
	})
}

// UpsertRowsFromStaging merges the staging table into the main table:
// rows whose hash changed (or whose existing row was soft-deleted) are
// updated with poa_op='u'; rows present only in staging are inserted
// fresh. ON CONFLICT's WHERE clause is what makes this idempotent to
// call with an unchanged staging snapshot — the UPDATE simply touches
// nothing.
func (d *DstDs) UpsertRowsFromStaging(ctx context.Context, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}

	colNames := d.dstTable.ColumnNames()
	pkSet := make(map[string]bool, len(d.dstTable.PK))
	for _, c := range d.dstTable.PK {
		pkSet[c] = true
	}

	var setParts []string
	for _, c := range colNames {
		if pkSet[c] {
			continue
		}
		q := sqlident.Quote(dialect, c)
		setParts = append(setParts, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	setParts = append(setParts, "poa_hd = EXCLUDED.poa_hd", "poa_op = 'u'", "poa_ts = now()")

	sqlStr := fmt.Sprintf(
		`INSERT INTO %s (%s, poa_hd, poa_op, poa_ts)
		 SELECT %s, poa_hd, poa_op, poa_ts FROM %s
		 ON CONFLICT (%s) DO UPDATE SET %s
		 WHERE %s.poa_hd <> EXCLUDED.poa_hd OR %s.poa_op = 'd'`,
		d.fullTableName(), quotedColumnList(colNames),
		prefixedColumnList("", colNames), d.stagingTableName(),
		quotedList(d.dstTable.PK), strings.Join(setParts, ", "),
		d.fullTableName(), d.fullTableName(),
	)

	if _, err := d.db.ExecContext(ctx, sqlStr); err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "upsert_rows_from_staging failed", map[string]any{"table": d.dstTable.TableName})
	}
	return nil
}

// DeleteRows soft-deletes: it never removes a row, only flips poa_op to
// 'd' and restamps poa_ts, and only for rows not already marked deleted.
func (d *DstDs) DeleteRows(ctx context.Context, keys []model.RowKey) error {
	if len(keys) == 0 {
		return nil
	}

	keyCols := keys[0].Columns()
	whereParts := make([]string, len(keyCols))
	for i, c := range keyCols {
		whereParts[i] = fmt.Sprintf("%s = ", sqlident.Quote(dialect, c)) + "%s"
	}

	return dbscope.Tx(ctx, d.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			vals := k.Values()
			params := make([]any, 0, len(keyCols))
			conds := make([]string, len(keyCols))
			for i, c := range keyCols {
				params = append(params, vals[c])
				conds[i] = fmt.Sprintf("%s = $%d", sqlident.Quote(dialect, c), i+1)
			}
			sqlStr := fmt.Sprintf(
				"UPDATE %s SET poa_op = 'd', poa_ts = now() WHERE %s AND poa_op <> 'd'",
				d.fullTableName(), strings.Join(conds, " AND "),
			)
			if _, err := tx.ExecContext(ctx, sqlStr, params...); err != nil {
				return poaerr.Wrap(poaerr.KindIoError, err, "delete_rows failed", map[string]any{"table": d.dstTable.TableName})
			}
		}
		return nil
	})
}

// UpdateHistoryTable appends any (pk, poa_ts) combination from the main
// table that the history table doesn't already have — an append-only
// audit trail of every state a row has been observed in.
func (d *DstDs) UpdateHistoryTable(ctx context.Context) error {
	colNames := append(d.dstTable.ColumnNames(), "poa_hd", "poa_op", "poa_ts")

	pkMatch := make([]string, 0, len(d.dstTable.PK)+1)
	for _, c := range append(append([]string(nil), d.dstTable.PK...), "poa_ts") {
		q := sqlident.Quote(dialect, c)
		pkMatch = append(pkMatch, fmt.Sprintf("d.%s = h.%s", q, q))
	}

	sqlStr := fmt.Sprintf(
		`INSERT INTO %s (%s)
		 SELECT %s FROM %s AS d
		 WHERE NOT EXISTS (SELECT 1 FROM %s AS h WHERE %s)`,
		d.historyTableName(), quotedColumnList(colNames),
		quotedColumnList(colNames), d.fullTableName(),
		d.historyTableName(), strings.Join(pkMatch, " AND "),
	)

	if _, err := d.db.ExecContext(ctx, sqlStr); err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "update_history_table failed", map[string]any{"table": d.dstTable.TableName})
	}
	return nil
}

// AddCheckResult persists a CheckResult row, JSON-encoding the extra/
// missing key sets since PostgreSQL has no native tuple-array type that
// maps cleanly onto a RowKey's column->value mapping.
func (d *DstDs) AddCheckResult(ctx context.Context, result model.CheckResult) error {
	extra, err := encodeKeys(result.ExtraKeys)
	if err != nil {
		return err
	}
	missing, err := encodeKeys(result.MissingKeys)
	if err != nil {
		return err
	}

	sqlStr := `
		INSERT INTO poa.check_result (
			src_db_name, src_schema_name, src_table_name,
			dst_db_name, dst_schema_name, dst_table_name,
			src_rows, dst_rows, extra_keys, missing_keys, execution_millis
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = d.db.ExecContext(ctx, sqlStr,
		result.SrcDbName, result.SrcSchemaName, result.SrcTableName,
		result.DstDbName, result.DstSchemaName, result.DstTableName,
		result.SrcRows, result.DstRows, extra, missing, result.ExecutionMS,
	)
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "add_check_result failed", map[string]any{"table": d.dstTable.TableName})
	}
	return nil
}
