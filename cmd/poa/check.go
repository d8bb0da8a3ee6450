package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markstefanovic/poa/internal/checksvc"
)

func checkCmd() *cobra.Command {
	var (
		srcDbName, srcSchema, srcTable string
		dstDbName, dstSchema, dstTable string
		pk                             []string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Reconcile row counts and primary key sets between a source and destination table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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

			id := checksvc.Identity{
				SrcDbName:     sess.srcCfg.Name,
				SrcSchemaName: srcSchema,
				SrcTableName:  srcTable,
				DstDbName:     sess.dstCfg.Name,
				DstSchemaName: dstSchema,
				DstTableName:  dstTable,
			}

			result, err := checksvc.New().Run(ctx, src, dst, srcTableShape.PK, id)
			if err != nil {
				return err
			}

			if err := dst.AddCheckResult(ctx, result); err != nil {
				return err
			}

			fmt.Printf(
				"%s: src_rows=%d dst_rows=%d extra=%d missing=%d (%dms)\n",
				srcTable, result.SrcRows, result.DstRows, len(result.ExtraKeys), len(result.MissingKeys), result.ExecutionMS,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&srcDbName, "src-db", "", "name of the source database, as named in the config file")
	cmd.Flags().StringVar(&srcSchema, "src-schema", "", "source schema name")
	cmd.Flags().StringVar(&srcTable, "src-table", "", "source table name")
	cmd.Flags().StringVar(&dstDbName, "dst-db", "", "name of the destination database, as named in the config file")
	cmd.Flags().StringVar(&dstSchema, "dst-schema", "", "destination schema name")
	cmd.Flags().StringVar(&dstTable, "dst-table", "", "destination table name")
	cmd.Flags().StringSliceVar(&pk, "pk", nil, "primary key column(s); required for hh/pyodbc sources")

	_ = cmd.MarkFlagRequired("src-db")
	_ = cmd.MarkFlagRequired("src-table")
	_ = cmd.MarkFlagRequired("dst-db")
	_ = cmd.MarkFlagRequired("dst-table")

	return cmd
}
