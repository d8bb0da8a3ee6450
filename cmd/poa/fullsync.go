package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/syncengine"
)

func fullSyncCmd() *cobra.Command {
	var (
		srcDbName, srcSchema, srcTable string
		dstDbName, dstSchema, dstTable string
		pk                             []string
		recreate, trackHistory         bool
		batchSize                      int
	)

	cmd := &cobra.Command{
		Use:   "full-sync",
		Short: "Replace the destination table's contents with a full copy of the source table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := newLogger()

			sess, err := openSession(ctx, srcDbName, dstDbName)
			if err != nil {
				return err
			}
			defer sess.Close()

			src, err := newSrcDs(sess.srcDB, sess.srcCfg, srcSchema, srcTable, pk, nil)
			if err != nil {
				return err
			}

			srcTableShape, err := src.GetTable(ctx)
			if err != nil {
				return err
			}

			dstTableShape := srcTableShape.WithIdentity(sess.dstCfg.Name, dstSchema, dstTable)
			if err := sess.cache.AddTable(ctx, dstTableShape); err != nil {
				return err
			}

			dst := newDstDs(sess.dstDB, dstTableShape, nil)

			syncID, err := sess.audit.SyncStarted(ctx, sess.srcCfg.Name, srcSchema, srcTable, false)
			if err != nil {
				return err
			}

			result := syncengine.New(log).Run(ctx, src, dst, syncengine.Options{
				Incremental:  false,
				Recreate:     recreate,
				TrackHistory: trackHistory,
				BatchSize:    effectiveBatchSize(sess.cfg, batchSize),
			})

			return reportSyncResult(ctx, sess, syncID, srcTable, result)
		},
	}

	cmd.Flags().StringVar(&srcDbName, "src-db", "", "name of the source database, as named in the config file")
	cmd.Flags().StringVar(&srcSchema, "src-schema", "", "source schema name")
	cmd.Flags().StringVar(&srcTable, "src-table", "", "source table name")
	cmd.Flags().StringVar(&dstDbName, "dst-db", "", "name of the destination database, as named in the config file")
	cmd.Flags().StringVar(&dstSchema, "dst-schema", "", "destination schema name")
	cmd.Flags().StringVar(&dstTable, "dst-table", "", "destination table name")
	cmd.Flags().StringSliceVar(&pk, "pk", nil, "primary key column(s); required for hh/pyodbc sources")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the destination table before syncing")
	cmd.Flags().BoolVar(&trackHistory, "track-history", false, "append every observed row state to a history table")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per staging/upsert batch (defaults to the config file's batch-size)")

	_ = cmd.MarkFlagRequired("src-db")
	_ = cmd.MarkFlagRequired("src-table")
	_ = cmd.MarkFlagRequired("dst-db")
	_ = cmd.MarkFlagRequired("dst-table")

	return cmd
}

func reportSyncResult(ctx context.Context, sess *session, syncID int64, tableName string, result model.SyncResult) error {
	switch result.Status {
	case model.SyncSucceeded:
		if err := sess.audit.SyncSucceeded(ctx, syncID, result.RowsAdded, result.RowsDeleted, result.RowsUpdated, result.ExecutionMS); err != nil {
			newLogger().Error("failed to record sync outcome in the audit log", "sync_id", syncID, "error", err)
		}
		fmt.Println(formatSyncResult(tableName, "succeeded", fmt.Sprintf(" (added=%d updated=%d deleted=%d)", result.RowsAdded, result.RowsUpdated, result.RowsDeleted)))
		return nil
	case model.SyncSkipped:
		if err := sess.audit.SyncSkipped(ctx, syncID, result.SkipReason); err != nil {
			newLogger().Error("failed to record sync outcome in the audit log", "sync_id", syncID, "error", err)
		}
		fmt.Println(formatSyncResult(tableName, "skipped", fmt.Sprintf(" (%s)", result.SkipReason)))
		return nil
	default:
		if err := sess.audit.SyncFailed(ctx, syncID, result.ErrorMessage); err != nil {
			newLogger().Error("failed to record sync outcome in the audit log", "sync_id", syncID, "error", err)
		}
		return fmt.Errorf("sync failed for %s: %s", tableName, result.ErrorMessage)
	}
}
