package smoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jandubois/smokecheck/internal/probe"
)

// Progress receives notifications while the battery runs.
type Progress interface {
	GroupStarted(g probe.Group)
	ProbeStarted(spec probe.Spec)
	ProbeFinished(spec probe.Spec, result probe.Result)
}

// Options configures a Runner.
type Options struct {
	BaseURL       string
	AuthToken     string
	SkipAuth      bool
	RatePerSecond float64
	Transport     http.RoundTripper
	Logger        *slog.Logger
	Progress      Progress
}

// Runner executes the battery against one base URL.
type Runner struct {
	client   *Client
	checks   []Check
	skipAuth bool
	logger   *slog.Logger
	progress Progress
}

// NewRunner creates a Runner for the full battery.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client:   NewClient(opts.BaseURL, opts.AuthToken, WithTransport(opts.Transport), WithRateLimit(opts.RatePerSecond)),
		checks:   Battery(),
		skipAuth: opts.SkipAuth,
		logger:   logger,
		progress: opts.Progress,
	}
}

// Run executes every check once, in order, and returns one result per check.
// A failing or panicking check never stops the remaining checks.
func (r *Runner) Run(ctx context.Context) []probe.Result {
	results := make([]probe.Result, 0, len(r.checks))
	var group probe.Group

	for _, chk := range r.checks {
		if chk.Spec.Group != group {
			group = chk.Spec.Group
			if r.progress != nil {
				r.progress.GroupStarted(group)
			}
		}
		if r.progress != nil {
			r.progress.ProbeStarted(chk.Spec)
		}

		result := r.runOne(ctx, chk)

		r.logger.Debug("probe executed",
			"name", result.Name,
			"passed", result.Passed,
			"duration_ms", result.DurationMs,
			"error", result.Error(),
		)
		if r.progress != nil {
			r.progress.ProbeFinished(chk.Spec, result)
		}
		results = append(results, result)
	}

	return results
}

func (r *Runner) runOne(ctx context.Context, chk Check) (result probe.Result) {
	start := time.Now()

	if chk.Spec.AuthOnly && r.skipAuth {
		return probe.Pass(chk.Spec.Name, time.Since(start), map[string]any{"skipped": true})
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("probe panicked", "name", chk.Spec.Name, "panic", p)
			result = probe.Fail(chk.Spec.Name, time.Since(start), fmt.Sprintf("probe panicked: %v", p), nil)
		}
	}()

	details, err := chk.run(ctx, r.client, chk)
	duration := time.Since(start)
	if err == nil {
		return probe.Pass(chk.Spec.Name, duration, details)
	}

	var failure *ProbeFailure
	if errors.As(err, &failure) && failure.Network {
		if details == nil {
			details = map[string]any{}
		}
		details["network_error"] = true
	}
	return probe.Fail(chk.Spec.Name, duration, err.Error(), details)
}
