package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markstefanovic/poa/internal/appconfig"
	"github.com/markstefanovic/poa/internal/concurrent"
	"github.com/markstefanovic/poa/internal/driverconn"
	postgresdst "github.com/markstefanovic/poa/internal/dstds/postgres"
	"github.com/markstefanovic/poa/internal/schemacache"
)

func inspectCmd() *cobra.Command {
	var (
		srcDbName, cacheDbName string
		srcSchema, srcTable    string
		pk                     []string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a source table's introspected shape, checking the cached pin for a primary key mismatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path, err := requireConfigPath()
			if err != nil {
				return err
			}

			cfgFile, err := appconfig.Load(path)
			if err != nil {
				return err
			}

			lookup := appconfig.EnvCredentialLookup{}

			srcCfg, err := appconfig.Resolve(cfgFile, srcDbName, lookup)
			if err != nil {
				return err
			}

			hasCache := cacheDbName != ""
			cacheDbCfg := srcCfg // unused unless hasCache; avoids a second zero-value branch below
			if hasCache {
				cacheDbCfg, err = appconfig.Resolve(cfgFile, cacheDbName, lookup)
				if err != nil {
					return err
				}
			}

			// src and cache connections are independent of each other, so
			// open them concurrently rather than one after the other.
			targets := []string{"src"}
			if hasCache {
				targets = append(targets, "cache")
			}
			dbs, err := concurrent.MapWithError(targets, 2, func(target string) (*sql.DB, error) {
				if target == "src" {
					return driverconn.Open(ctx, srcCfg)
				}
				return driverconn.OpenDestination(ctx, cacheDbCfg)
			})
			if err != nil {
				return err
			}
			srcDB := dbs[0]
			defer srcDB.Close()

			src, err := newSrcDs(srcDB, srcCfg, srcSchema, srcTable, pk, nil)
			if err != nil {
				return err
			}

			table, err := src.GetTable(ctx)
			if err != nil {
				return err
			}

			// Cross-check against the cached pin when a cache database is
			// given. This is the only PK-mismatch check: the sync and check
			// subcommands re-pin the shape without comparing primary keys.
			if hasCache {
				cacheDB := dbs[1]
				defer cacheDB.Close()

				if err := postgresdst.Bootstrap(ctx, cacheDB); err != nil {
					return err
				}

				cache := schemacache.New(cacheDB)
				cached, err := cache.GetTableDef(ctx, cacheDbCfg.Name, srcSchema, srcTable)
				if err != nil {
					return err
				}
				if cached == nil {
					if err := cache.AddTable(ctx, table.WithIdentity(cacheDbCfg.Name, srcSchema, srcTable)); err != nil {
						return err
					}
					fmt.Println("no cached pin found; cached the freshly introspected shape")
				} else if err := schemacache.CheckPKMatch(*cached, table); err != nil {
					return err
				}
			}

			fmt.Printf("%s.%s.%s  pk=%v\n", table.DbName, table.SchemaName, table.TableName, table.PK)
			for _, col := range table.Columns {
				fmt.Printf("  %-32s %-12s nullable=%v\n", col.Name, col.DataType.String(), col.Nullable)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&srcDbName, "src-db", "", "name of the source database, as named in the config file")
	cmd.Flags().StringVar(&cacheDbName, "cache-db", "", "optional destination database name to check the cached pin against")
	cmd.Flags().StringVar(&srcSchema, "src-schema", "", "source schema name")
	cmd.Flags().StringVar(&srcTable, "src-table", "", "source table name")
	cmd.Flags().StringSliceVar(&pk, "pk", nil, "primary key column(s); required for hh/pyodbc sources")

	_ = cmd.MarkFlagRequired("src-db")
	_ = cmd.MarkFlagRequired("src-table")

	return cmd
}
