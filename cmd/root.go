package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jandubois/smokecheck/internal/config"
	"github.com/jandubois/smokecheck/internal/logging"
)

// Version is set at build time via -ldflags "-X github.com/jandubois/smokecheck/cmd.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "smokecheck",
	Short: "Post-deployment smoke tests for the Azure Intelligent Agent web app",
	Long: `Smokecheck runs a fixed battery of HTTP probes against a deployed web app,
prints a grouped summary and exits 0 only when every probe passed.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// settings holds the config file and environment, loaded before any command runs.
var (
	settings  config.Settings
	logCloser io.Closer
)

// Execute runs the root command and closes the log file afterwards, also
// when the command fails.
func Execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func closeLog() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (or SMOKE_CONFIG env)")
	rootCmd.PersistentFlags().StringP("database", "d", "", "SQLite run history path (or DATABASE_PATH env)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Write JSON logs to a rotated file instead of stderr")
}

func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("SMOKE_CONFIG")
	}

	var err error
	settings, err = config.Load(path, os.Getenv)
	if err != nil {
		return err
	}

	level := settings.LogLevel
	if cmd.Flags().Changed("log-level") || level == "" {
		level, _ = cmd.Flags().GetString("log-level")
	}
	if !cmd.Flags().Changed("log-level") && verboseRequested(cmd) {
		level = "debug"
	}
	logFile := settings.LogFile
	if cmd.Flags().Changed("log-file") {
		logFile, _ = cmd.Flags().GetString("log-file")
	}

	closeLog()
	logCloser, err = logging.Setup(logging.Options{Level: level, File: logFile})
	if err != nil {
		return err
	}
	slog.Debug("configuration loaded", "config_file", path, "command", cmd.Name())
	return nil
}

func verboseRequested(cmd *cobra.Command) bool {
	if settings.Verbose {
		return true
	}
	f := cmd.Flags().Lookup("verbose")
	return f != nil && f.Value.String() == "true"
}

func getDatabasePath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("database")
	if path == "" {
		path = settings.Database
	}
	if path == "" {
		path = defaultDatabasePath()
	}
	return path
}

func defaultDatabasePath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "smokecheck", "history.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "smokecheck", "history.db")
	}
	return "smokecheck.db"
}
