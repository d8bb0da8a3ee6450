// Package schemacache implements model.SchemaCache: a (db, schema,
// table) -> model.Table pin persisted in the destination's
// poa.table_def/poa.column_def tables. Grounded on the original poa
// implementation's src/adapter/cache/pg.py and sqldef's
// database/postgres information_schema query style.
package schemacache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/markstefanovic/poa/internal/dbscope"
	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
)

// Cache is a PostgreSQL-backed model.SchemaCache.
type Cache struct {
	db *sql.DB
}

// New constructs a Cache over db, which must already have the poa schema
// bootstrapped (see internal/dstds/postgres.Bootstrap).
func New(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// AddTable pins table's shape, overwriting any previous pin for the same
// (db, schema, table) key.
func (c *Cache) AddTable(ctx context.Context, table model.Table) error {
	return dbscope.Tx(ctx, c.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO poa.table_def (db_name, schema_name, table_name, pk)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (db_name, schema_name, table_name)
			DO UPDATE SET pk = EXCLUDED.pk
		`, table.DbName, table.SchemaName, table.TableName, pq.Array(table.PK))
		if err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "add_table failed to upsert table_def", map[string]any{"table": table.TableName})
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM poa.column_def WHERE db_name = $1 AND schema_name = $2 AND table_name = $3
		`, table.DbName, table.SchemaName, table.TableName); err != nil {
			return poaerr.Wrap(poaerr.KindIoError, err, "add_table failed to clear column_def", map[string]any{"table": table.TableName})
		}

		for _, col := range table.Columns {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO poa.column_def
					(db_name, schema_name, table_name, column_name, data_type, nullable, length, precision, scale)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, table.DbName, table.SchemaName, table.TableName, col.Name, col.DataType.String(),
				col.Nullable, col.Length, col.Precision, col.Scale); err != nil {
				return poaerr.Wrap(poaerr.KindIoError, err, "add_table failed to insert column_def", map[string]any{"table": table.TableName, "column": col.Name})
			}
		}

		return nil
	})
}

// GetTableDef looks up the pinned shape for (dbName, schemaName,
// tableName), returning (nil, nil) on a cache miss.
func (c *Cache) GetTableDef(ctx context.Context, dbName, schemaName, tableName string) (*model.Table, error) {
	var pk []string
	err := c.db.QueryRowContext(ctx, `
		SELECT pk FROM poa.table_def WHERE db_name = $1 AND schema_name = $2 AND table_name = $3
	`, dbName, schemaName, tableName).Scan(pq.Array(&pk))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "get_table_def failed to read table_def", map[string]any{"table": tableName})
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, data_type, nullable, length, precision, scale
		FROM poa.column_def
		WHERE db_name = $1 AND schema_name = $2 AND table_name = $3
	`, dbName, schemaName, tableName)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "get_table_def failed to read column_def", map[string]any{"table": tableName})
	}
	defer rows.Close()

	var cols []model.Column
	for rows.Next() {
		var (
			name, dataTypeName       string
			nullable                 bool
			length, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&name, &dataTypeName, &nullable, &length, &precision, &scale); err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "get_table_def failed to scan column_def row", nil)
		}
		dt, err := model.DataTypeFromDBName(dataTypeName)
		if err != nil {
			return nil, poaerr.Wrap(poaerr.KindLogicError, err, "get_table_def encountered an unrecognized cached data type", map[string]any{"table": tableName, "column": name})
		}
		col, err := model.NewColumn(name, dt, nullable, nullableInt(length), nullableInt(precision), nullableInt(scale))
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "error iterating column_def rows", nil)
	}

	table, err := model.NewTable(dbName, schemaName, tableName, pk, cols)
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// CheckPKMatch compares a freshly-introspected table's PK against the
// cached pin and returns a poaerr.KindPkMismatch error if they disagree —
// spec.md's hard-error invariant for a primary key that changed under an
// already-cached table.
func CheckPKMatch(cached, fresh model.Table) error {
	if len(cached.PK) != len(fresh.PK) {
		return mismatchErr(cached, fresh)
	}
	for i := range cached.PK {
		if cached.PK[i] != fresh.PK[i] {
			return mismatchErr(cached, fresh)
		}
	}
	return nil
}

func mismatchErr(cached, fresh model.Table) error {
	return poaerr.New(poaerr.KindPkMismatch, fmt.Sprintf(
		"primary key for %s changed from %v to %v", fresh.TableName, cached.PK, fresh.PK,
	), map[string]any{"table": fresh.TableName, "cached_pk": cached.PK, "fresh_pk": fresh.PK})
}
