// Command poa copies tables from a heterogeneous source database into a
// PostgreSQL destination warehouse, preserving row-level change metadata.
// It is a short-lived batch CLI, invoked once per table per run by an
// external scheduler (cron, Airflow, etc.) rather than running as a
// long-lived daemon — see SPEC_FULL.md §1 for the full rationale.
//
// Grounded on xataio-pgroll's cmd/root.go for the cobra+viper persistent
// flag pattern, adapted from pgroll's single Postgres target to poa's
// five subcommands, each resolving a named source and the destination
// from one shared JSON config file rather than per-command URL flags.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "development"

var rootCmd = &cobra.Command{
	Use:          "poa",
	Short:        "Replicate and reconcile relational tables into a PostgreSQL warehouse",
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	viper.SetEnvPrefix("POA")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", "", "path to the poa JSON config file (required)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("CONFIG", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch viper.GetString("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func configPath() string {
	return viper.GetString("CONFIG")
}

// Execute runs the root command, registering every subcommand.
func Execute() error {
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(fullSyncCmd())
	rootCmd.AddCommand(incrementalSyncCmd())
	rootCmd.AddCommand(inspectCmd())

	return rootCmd.Execute()
}
