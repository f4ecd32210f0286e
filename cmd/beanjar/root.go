package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/beanjar/internal/config"
	"github.com/dukerupert/beanjar/internal/database"
	"github.com/dukerupert/beanjar/internal/logging"
)

const version = "0.1.0"

// runtime is what every subcommand needs after flags are resolved.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		dbPath  string
		rt      runtime
	)

	cmd := &cobra.Command{
		Use:           "beanjar",
		Short:         "Family bean jar: earn, spend and gift points by household consensus",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			rt.cfg = cfg
			rt.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading BEANJAR_* variables")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides BEANJAR_DB_PATH)")

	cmd.AddCommand(
		newServeCmd(&rt),
		newMigrateCmd(&rt),
		newAuditCmd(&rt),
		newSnapshotCmd(&rt),
		newVAPIDCmd(),
	)
	return cmd
}

func openDB(rt *runtime) (*sql.DB, func(), error) {
	db, err := database.Open(rt.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", rt.cfg.DBPath, err)
	}
	return db, func() { _ = db.Close() }, nil
}
