// Package report aggregates probe results into a run verdict and renders it
// for people (console) and machines (JSON).
package report

import (
	"time"

	"github.com/jandubois/smokecheck/internal/probe"
)

// Report is the outcome of one battery run.
type Report struct {
	Timestamp       time.Time      `json:"timestamp"`
	BaseURL         string         `json:"base_url"`
	Passed          bool           `json:"passed"`
	TotalTests      int            `json:"total_tests"`
	PassedTests     int            `json:"passed_tests"`
	FailedTests     int            `json:"failed_tests"`
	DurationSeconds float64        `json:"duration_seconds"`
	Results         []probe.Result `json:"results"`
}

// New builds a report from results in execution order.
// Passed is true only when no result failed.
func New(baseURL string, started time.Time, duration time.Duration, results []probe.Result) *Report {
	r := &Report{
		Timestamp:       started,
		BaseURL:         baseURL,
		TotalTests:      len(results),
		DurationSeconds: duration.Seconds(),
		Results:         append([]probe.Result(nil), results...),
	}
	for _, res := range results {
		if res.Passed {
			r.PassedTests++
		} else {
			r.FailedTests++
		}
	}
	r.Passed = r.FailedTests == 0
	return r
}

// Failed returns the failing results in execution order.
func (r *Report) Failed() []probe.Result {
	var failed []probe.Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Result returns the result with the given name.
func (r *Report) Result(name string) (probe.Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return probe.Result{}, false
}

// ExitCode is 0 when every probe passed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Passed {
		return 0
	}
	return 1
}

// Tier classifies a mean latency for display. It never affects the verdict.
func Tier(avgMs float64) string {
	switch {
	case avgMs < 500:
		return "good"
	case avgMs < 2000:
		return "acceptable"
	default:
		return "slow"
	}
}
