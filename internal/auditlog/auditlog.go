// Package auditlog implements model.AuditLog: the sync_started ->
// {sync_succeeded | sync_failed | sync_skipped} state machine plus
// free-standing error records, persisted in the destination's poa
// schema. Grounded on the original poa implementation's
// src/adapter/log/pg.py.
package auditlog

import (
	"context"
	"database/sql"

	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
)

// Log is a PostgreSQL-backed model.AuditLog.
type Log struct {
	db *sql.DB
}

// New constructs a Log over db, which must already have the poa schema
// bootstrapped (see internal/dstds/postgres.Bootstrap).
func New(db *sql.DB) *Log {
	return &Log{db: db}
}

func (l *Log) SyncStarted(ctx context.Context, srcDbName, srcSchemaName, srcTableName string, incremental bool) (int64, error) {
	var id int64
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO poa.sync (src_db_name, src_schema_name, src_table_name, incremental)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, srcDbName, srcSchemaName, srcTableName, incremental).Scan(&id)
	if err != nil {
		return 0, poaerr.Wrap(poaerr.KindIoError, err, "sync_started insert failed", map[string]any{"table": srcTableName})
	}
	return id, nil
}

func (l *Log) SyncSucceeded(ctx context.Context, syncID int64, rowsAdded, rowsDeleted, rowsUpdated int, executionMS int64) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO poa.sync_success (sync_id, rows_added, rows_deleted, rows_updated, execution_millis)
		VALUES ($1, $2, $3, $4, $5)
	`, syncID, rowsAdded, rowsDeleted, rowsUpdated, executionMS)
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "sync_succeeded insert failed", map[string]any{"sync_id": syncID})
	}
	return nil
}

func (l *Log) SyncFailed(ctx context.Context, syncID int64, reason string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO poa.sync_error (sync_id, reason) VALUES ($1, $2)
	`, syncID, reason)
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "sync_failed insert failed", map[string]any{"sync_id": syncID})
	}
	return nil
}

func (l *Log) SyncSkipped(ctx context.Context, syncID int64, reason string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO poa.sync_skip (sync_id, reason) VALUES ($1, $2)
	`, syncID, reason)
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "sync_skipped insert failed", map[string]any{"sync_id": syncID})
	}
	return nil
}

// LogError records a free-standing error not tied to any particular
// sync run — e.g. a config load failure before a table is even chosen.
func (l *Log) LogError(ctx context.Context, message string) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO poa.error_log (message) VALUES ($1)`, message)
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "log_error insert failed", nil)
	}
	return nil
}

// DeleteOldLogs removes sync/error rows older than daysToKeep days, used
// by the cleanup subcommand.
func (l *Log) DeleteOldLogs(ctx context.Context, daysToKeep int) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "delete_old_logs failed to begin transaction", nil)
	}

	cutoff := "now() - ($1 || ' days')::interval"

	stmts := []string{
		"DELETE FROM poa.sync_success WHERE completed_at < " + cutoff,
		"DELETE FROM poa.sync_error WHERE failed_at < " + cutoff,
		"DELETE FROM poa.sync_skip WHERE skipped_at < " + cutoff,
		"DELETE FROM poa.sync WHERE started_at < " + cutoff + " AND id NOT IN (SELECT sync_id FROM poa.sync_success) AND id NOT IN (SELECT sync_id FROM poa.sync_error) AND id NOT IN (SELECT sync_id FROM poa.sync_skip)",
		"DELETE FROM poa.error_log WHERE logged_at < " + cutoff,
		"DELETE FROM poa.check_result WHERE checked_at < " + cutoff,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, daysToKeep); err != nil {
			_ = tx.Rollback()
			return poaerr.Wrap(poaerr.KindIoError, err, "delete_old_logs statement failed", map[string]any{"stmt": stmt})
		}
	}

	if err := tx.Commit(); err != nil {
		return poaerr.Wrap(poaerr.KindIoError, err, "delete_old_logs failed to commit", nil)
	}
	return nil
}

// FindOrphanedSyncs returns every poa.sync row with no matching terminal
// (success/failure/skip) row — a sync that started but whose process
// died before recording an outcome.
func (l *Log) FindOrphanedSyncs(ctx context.Context) ([]model.OrphanedSync, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT s.id, s.src_db_name, s.src_table_name
		FROM poa.sync AS s
		WHERE
			NOT EXISTS (SELECT 1 FROM poa.sync_success AS ss WHERE ss.sync_id = s.id)
			AND NOT EXISTS (SELECT 1 FROM poa.sync_error AS se WHERE se.sync_id = s.id)
			AND NOT EXISTS (SELECT 1 FROM poa.sync_skip AS sk WHERE sk.sync_id = s.id)
		ORDER BY s.started_at
	`)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "find_orphaned_syncs query failed", nil)
	}
	defer rows.Close()

	var out []model.OrphanedSync
	for rows.Next() {
		var o model.OrphanedSync
		if err := rows.Scan(&o.SyncID, &o.SrcDbName, &o.SrcTableName); err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "failed to scan orphaned sync row", nil)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "error iterating orphaned sync rows", nil)
	}
	return out, nil
}
