package model

import "context"

// SrcDs is the capability set every source dialect adapter implements:
// introspect a table's shape, fetch its rows (optionally filtered by an
// "after" watermark), fetch rows by primary-key batch, and count rows.
type SrcDs interface {
	TableExists(ctx context.Context) (bool, error)
	GetTable(ctx context.Context) (Table, error)
	GetRowCount(ctx context.Context) (int, error)
	FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]Row, error)
	FetchRowsByKey(ctx context.Context, colNames []string, keys []RowKey) ([]Row, error)
}

// DstDs is the capability set the PostgreSQL destination adapter
// implements: DDL for the main/staging/history tables, the
// staging-upsert pipeline, soft-delete, and audit-result persistence.
type DstDs interface {
	TableExists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	DropTable(ctx context.Context) error
	Truncate(ctx context.Context) error
	CreateStagingTable(ctx context.Context) error
	CreateHistoryTable(ctx context.Context) error
	AddIncreasingColIndices(ctx context.Context, cols []string) error
	GetMaxValues(ctx context.Context, cols []string) (map[string]any, error)
	GetRowCount(ctx context.Context) (int, error)
	FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]Row, error)
	AddRowsToStaging(ctx context.Context, rows []Row) error
	UpsertRowsFromStaging(ctx context.Context, rows []Row) error
	DeleteRows(ctx context.Context, keys []RowKey) error
	UpdateHistoryTable(ctx context.Context) error
	AddCheckResult(ctx context.Context, result CheckResult) error
}

// SchemaCache maps (db, schema, table) to the Table shape pinned for it,
// persisted in the destination's poa.table_def/poa.column_def tables.
type SchemaCache interface {
	AddTable(ctx context.Context, table Table) error
	GetTableDef(ctx context.Context, dbName, schemaName, tableName string) (*Table, error)
}

// AuditLog is the sync state machine and error sink described in
// spec.md §4.5, persisted in the destination's poa schema.
type AuditLog interface {
	SyncStarted(ctx context.Context, srcDbName, srcSchemaName, srcTableName string, incremental bool) (int64, error)
	SyncSucceeded(ctx context.Context, syncID int64, rowsAdded, rowsDeleted, rowsUpdated int, executionMS int64) error
	SyncFailed(ctx context.Context, syncID int64, reason string) error
	SyncSkipped(ctx context.Context, syncID int64, reason string) error
	LogError(ctx context.Context, message string) error
	DeleteOldLogs(ctx context.Context, daysToKeep int) error
	FindOrphanedSyncs(ctx context.Context) ([]OrphanedSync, error)
}

// OrphanedSync identifies a poa.sync row with no matching terminal
// (success/failure/skip) row — see SPEC_FULL.md §9.
type OrphanedSync struct {
	SyncID       int64
	SrcDbName    string
	SrcTableName string
}
