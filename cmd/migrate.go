package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jandubois/smokecheck/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run run-history database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("down", false, "Roll back all migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	databasePath := getDatabasePath(cmd)
	down, _ := cmd.Flags().GetBool("down")

	if down {
		slog.Info("rolling back all migrations", "database", databasePath)
		if err := db.RollbackMigrations(databasePath); err != nil {
			return err
		}
		slog.Info("migrations rolled back")
		return nil
	}

	slog.Info("running migrations", "database", databasePath)
	if err := db.RunMigrations(databasePath); err != nil {
		return err
	}
	version, err := db.Version(databasePath)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "version", version)
	return nil
}
