package main

import (
	"github.com/spf13/cobra"

	"github.com/markstefanovic/poa/internal/syncengine"
)

func incrementalSyncCmd() *cobra.Command {
	var (
		srcDbName, srcSchema, srcTable string
		dstDbName, dstSchema, dstTable string
		pk                             []string
		compareCols, increasingCols    []string
		after                          []string
		skipIfRowCountsMatch           bool
		recreate, trackHistory         bool
		batchSize                      int
	)

	cmd := &cobra.Command{
		Use:   "incremental-sync",
		Short: "Apply only the rows that changed since the last sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := newLogger()

			afterFilter, err := parseAfter(after)
			if err != nil {
				return err
			}

			sess, err := openSession(ctx, srcDbName, dstDbName)
			if err != nil {
				return err
			}
			defer sess.Close()

			src, err := newSrcDs(sess.srcDB, sess.srcCfg, srcSchema, srcTable, pk, afterFilter)
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

			dst := newDstDs(sess.dstDB, dstTableShape, afterFilter)

			syncID, err := sess.audit.SyncStarted(ctx, sess.srcCfg.Name, srcSchema, srcTable, true)
			if err != nil {
				return err
			}

			result := syncengine.New(log).Run(ctx, src, dst, syncengine.Options{
				Incremental:          true,
				CompareCols:          compareCols,
				IncreasingCols:       increasingCols,
				SkipIfRowCountsMatch: skipIfRowCountsMatch,
				Recreate:             recreate,
				TrackHistory:         trackHistory,
				BatchSize:            effectiveBatchSize(sess.cfg, batchSize),
				After:                afterFilter,
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
	cmd.Flags().StringSliceVar(&compareCols, "compare-cols", nil, "columns to diff for incremental-compare mode")
	cmd.Flags().StringSliceVar(&increasingCols, "increasing-cols", nil, "monotonically increasing columns for incremental-from-last mode")
	cmd.Flags().StringSliceVar(&after, "after", nil, "col value col value ... watermark pairs applied in addition to any derived watermark")
	cmd.Flags().BoolVar(&skipIfRowCountsMatch, "skip-if-row-counts-match", false, "skip the sync entirely when source and destination row counts are equal")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the destination table before syncing")
	cmd.Flags().BoolVar(&trackHistory, "track-history", false, "append every observed row state to a history table")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per staging/upsert batch (defaults to the config file's batch-size)")

	_ = cmd.MarkFlagRequired("src-db")
	_ = cmd.MarkFlagRequired("src-table")
	_ = cmd.MarkFlagRequired("dst-db")
	_ = cmd.MarkFlagRequired("dst-table")

	return cmd
}
