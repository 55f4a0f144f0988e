// Package driver runs one smoke-test session: resolve the target, run the
// battery, report, and decide the exit code.
package driver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jandubois/smokecheck/internal/config"
	"github.com/jandubois/smokecheck/internal/dnsdiag"
	"github.com/jandubois/smokecheck/internal/notify"
	"github.com/jandubois/smokecheck/internal/report"
	"github.com/jandubois/smokecheck/internal/resolve"
	"github.com/jandubois/smokecheck/internal/smoke"
)

// State is the phase a session is in.
type State int

const (
	StateResolving State = iota
	StateProbing
	StateReporting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateProbing:
		return "probing"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// HistoryStore records finished runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, r *report.Report) (int64, error)
	Close()
}

// HistoryOpener opens the history store. It is only called once the target
// has been resolved.
type HistoryOpener func(ctx context.Context) (HistoryStore, error)

// Diagnoser explains why a host could not be reached.
type Diagnoser interface {
	Diagnose(ctx context.Context, host string) dnsdiag.Status
}

// Options configures a session. Only URL or ResourceGroup is required.
type Options struct {
	URL           string
	ResourceGroup string
	AuthToken     string
	SkipAuth      bool
	Verbose       bool
	JSONOutput    string
	Rate          float64
	Deadline      time.Duration

	Lookup      resolve.Lookup
	Transport   http.RoundTripper
	OpenHistory HistoryOpener
	Notifier    *notify.Dispatcher
	Diagnoser   Diagnoser

	Stdout io.Writer
	Logger *slog.Logger
	Now    func() time.Time
}

// Outcome is the result of a session.
type Outcome struct {
	// Report is nil when the session stopped before probing.
	Report   *report.Report
	ExitCode int
	// State is the last state reached.
	State  State
	Config config.RunConfig
}

// Run executes a session. A non-nil error is always a resolve.ConfigurationError
// and comes with ExitCode 1 and no report. Failures to write the JSON report,
// record history or notify are logged and never change the exit code.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	out := &Outcome{State: StateResolving, ExitCode: 1}
	logger.Debug("session state", "state", out.State)

	baseURL, err := resolve.New(opts.Lookup).BaseURL(ctx, opts.URL, opts.ResourceGroup)
	if err != nil {
		logger.Error("could not determine target", "error", err)
		report.NewConsole(stdout, opts.Verbose).Fatal(err)
		return out, err
	}
	out.Config = config.NewRunConfig(baseURL, opts.AuthToken, opts.SkipAuth, opts.Verbose, opts.JSONOutput)
	cfg := out.Config
	console := report.NewConsole(stdout, cfg.Verbose())

	out.State = StateProbing
	logger.Debug("session state", "state", out.State, "base_url", cfg.BaseURL())
	console.Banner(cfg.BaseURL(), cfg.AuthMode())

	probeCtx := ctx
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	runner := smoke.NewRunner(smoke.Options{
		BaseURL:       cfg.BaseURL(),
		AuthToken:     cfg.AuthToken(),
		SkipAuth:      cfg.SkipAuth(),
		RatePerSecond: opts.Rate,
		Transport:     opts.Transport,
		Logger:        logger,
		Progress:      console,
	})
	started := now()
	results := runner.Run(probeCtx)
	duration := now().Sub(started)
	if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("deadline reached during probing", "deadline", opts.Deadline)
	}

	out.State = StateReporting
	logger.Debug("session state", "state", out.State)
	rep := report.New(cfg.BaseURL(), started, duration, results)
	out.Report = rep

	if opts.Diagnoser != nil {
		diagnoseUnreachable(ctx, opts.Diagnoser, rep, logger)
	}

	console.Summary(rep)

	if path := cfg.JSONOutput(); path != "" {
		if err := report.WriteJSON(path, rep); err != nil {
			logger.Warn("failed to write JSON report", "path", path, "error", err)
		} else {
			console.Saved(path)
		}
	}

	if opts.OpenHistory != nil {
		saveHistory(ctx, opts.OpenHistory, rep, logger)
	}

	if opts.Notifier != nil && opts.Notifier.ShouldNotify(rep.Passed) {
		if err := opts.Notifier.Send(ctx, notify.FormatReport(rep)); err != nil {
			logger.Warn("failed to send notification", "error", err)
		}
	}

	out.State = StateDone
	out.ExitCode = rep.ExitCode()
	logger.Info("smoke test finished",
		"base_url", rep.BaseURL,
		"passed", rep.Passed,
		"total", rep.TotalTests,
		"failed", rep.FailedTests,
		"duration_seconds", rep.DurationSeconds,
	)
	return out, nil
}

func saveHistory(ctx context.Context, open HistoryOpener, rep *report.Report, logger *slog.Logger) {
	store, err := open(ctx)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
		return
	}
	defer store.Close()

	if id, err := store.SaveRun(ctx, rep); err != nil {
		logger.Warn("failed to record run history", "error", err)
	} else {
		logger.Debug("run recorded", "run_id", id)
	}
}

// diagnoseUnreachable logs the DNS state of the target when the health probe
// could not reach it at all.
func diagnoseUnreachable(ctx context.Context, d Diagnoser, rep *report.Report, logger *slog.Logger) {
	health, ok := rep.Result(smoke.NameHealth)
	if !ok || health.Passed || health.Details["network_error"] != true {
		return
	}

	host := dnsdiag.HostFromURL(rep.BaseURL)
	status := d.Diagnose(ctx, host)
	logger.Warn("target unreachable",
		"host", host,
		"dns_class", string(status.Class),
		"addresses", status.Addresses,
		"cname", status.CNAME,
		"dns_server", status.Server,
		"dns_error", status.Err,
	)
}
