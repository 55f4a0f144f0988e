package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jandubois/smokecheck/internal/db"
	"github.com/jandubois/smokecheck/internal/dnsdiag"
	"github.com/jandubois/smokecheck/internal/driver"
	"github.com/jandubois/smokecheck/internal/notify"
	"github.com/jandubois/smokecheck/internal/resolve"
)

// ErrProbesFailed is returned when the run completed but at least one probe failed.
var ErrProbesFailed = errors.New("smoke tests failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the probe battery against a deployed app",
	Long: `Run every probe once, in order, against the target and print a summary.

The target is --url, or the first web app of --resource-group as reported
by the Azure CLI. The exit code is 0 when all probes pass and 1 otherwise.`,
	RunE: runSmoke,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringP("url", "u", "", "Base URL of the deployed app (or SMOKE_URL env)")
	f.StringP("resource-group", "g", "", "Azure resource group to discover the app in (or SMOKE_RESOURCE_GROUP env)")
	f.String("auth-token", "", "Bearer token for protected endpoints (or SMOKE_AUTH_TOKEN env)")
	f.Bool("skip-auth", false, "Report the authentication probe as skipped")
	f.BoolP("verbose", "v", false, "Print each probe before it runs")
	f.String("json-output", "", "Write the results to this JSON file")
	f.Float64("rate", 0, "Maximum requests per second (0 = unlimited)")
	f.Duration("deadline", 0, "Bound total probing time (0 = none)")
	f.String("dns-server", "", "DNS server (host:port) used to diagnose an unreachable target")
	f.String("az-path", "", "Path to the az executable")
	f.Bool("no-history", false, "Do not record the run in the history database")
	f.Bool("notify-always", false, "Send a notification for passing runs too")
}

func runSmoke(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			slog.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	s := settings
	flags := cmd.Flags()
	if flags.Changed("url") {
		s.URL, _ = flags.GetString("url")
	}
	if flags.Changed("resource-group") {
		s.ResourceGroup, _ = flags.GetString("resource-group")
	}
	if flags.Changed("auth-token") {
		s.AuthToken, _ = flags.GetString("auth-token")
	}
	if flags.Changed("skip-auth") {
		s.SkipAuth, _ = flags.GetBool("skip-auth")
	}
	if flags.Changed("verbose") {
		s.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("json-output") {
		s.JSONOutput, _ = flags.GetString("json-output")
	}
	if flags.Changed("rate") {
		s.Rate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("deadline") {
		s.Deadline, _ = flags.GetDuration("deadline")
	}
	if flags.Changed("dns-server") {
		s.DNSServer, _ = flags.GetString("dns-server")
	}
	if flags.Changed("no-history") {
		s.NoHistory, _ = flags.GetBool("no-history")
	}
	if flags.Changed("notify-always") {
		s.Notify.Always, _ = flags.GetBool("notify-always")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	azPath, _ := flags.GetString("az-path")
	opts := driver.Options{
		URL:           s.URL,
		ResourceGroup: s.ResourceGroup,
		AuthToken:     s.AuthToken,
		SkipAuth:      s.SkipAuth,
		Verbose:       s.Verbose,
		JSONOutput:    s.JSONOutput,
		Rate:          s.Rate,
		Deadline:      s.Deadline,
		Lookup:        resolve.AzureCLI{Path: azPath},
		Diagnoser:     newDiagnoser(s.DNSServer),
		Stdout:        cmd.OutOrStdout(),
	}

	if s.Notify.Enabled() {
		opts.Notifier = notify.FromConfig(s.Notify)
		slog.Debug("notifications enabled", "channels", opts.Notifier.Len(), "always", s.Notify.Always)
	}

	if !s.NoHistory {
		path := getDatabasePath(cmd)
		opts.OpenHistory = func(ctx context.Context) (driver.HistoryStore, error) {
			database, err := db.Open(ctx, path)
			if err != nil {
				return nil, err
			}
			return database, nil
		}
	}

	out, err := driver.Run(ctx, opts)
	if err != nil {
		// Already reported on the console.
		cmd.SilenceErrors = true
		return err
	}
	if out.ExitCode != 0 {
		cmd.SilenceErrors = true
		return ErrProbesFailed
	}
	return nil
}

// newDiagnoser returns nil when no resolver is available; diagnosis is optional.
func newDiagnoser(server string) driver.Diagnoser {
	var opts []dnsdiag.Option
	if server != "" {
		opts = append(opts, dnsdiag.WithServer(server))
	}
	d, err := dnsdiag.New(opts...)
	if err != nil {
		slog.Debug("dns diagnosis unavailable", "error", err)
		return nil
	}
	return d
}
