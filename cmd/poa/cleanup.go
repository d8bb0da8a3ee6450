package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markstefanovic/poa/internal/appconfig"
	"github.com/markstefanovic/poa/internal/auditlog"
	"github.com/markstefanovic/poa/internal/driverconn"
	postgresdst "github.com/markstefanovic/poa/internal/dstds/postgres"
)

func cleanupCmd() *cobra.Command {
	var (
		dstDbName  string
		daysToKeep int
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old sync/error/check log rows and report orphaned sync records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			slogger := newLogger()

			path, err := requireConfigPath()
			if err != nil {
				return err
			}

			cfgFile, err := appconfig.Load(path)
			if err != nil {
				return err
			}

			dstCfg, err := appconfig.Resolve(cfgFile, dstDbName, appconfig.EnvCredentialLookup{})
			if err != nil {
				return err
			}

			dstDB, err := driverconn.OpenDestination(ctx, dstCfg)
			if err != nil {
				return err
			}
			defer dstDB.Close()

			if err := postgresdst.Bootstrap(ctx, dstDB); err != nil {
				return err
			}

			auditLog := auditlog.New(dstDB)

			days := daysToKeep
			if days <= 0 {
				days = cfgFile.DaysLogsToKeep
			}

			if err := auditLog.DeleteOldLogs(ctx, days); err != nil {
				return err
			}
			fmt.Printf("deleted log rows older than %d days\n", days)

			orphans, err := auditLog.FindOrphanedSyncs(ctx)
			if err != nil {
				return err
			}
			for _, o := range orphans {
				slogger.Warn("orphaned sync with no recorded outcome", "sync_id", o.SyncID, "src_db", o.SrcDbName, "src_table", o.SrcTableName)
			}
			if len(orphans) == 0 {
				fmt.Println("no orphaned syncs found")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dstDbName, "dst-db", "", "name of the destination database, as named in the config file")
	cmd.Flags().IntVar(&daysToKeep, "days-to-keep", 0, "override the config file's days-logs-to-keep value")

	_ = cmd.MarkFlagRequired("dst-db")

	return cmd
}
