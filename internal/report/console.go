package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jandubois/smokecheck/internal/probe"
)

const rule = "============================================================"

var groupIcons = map[probe.Group]string{
	probe.GroupCore:           "📋",
	probe.GroupAuth:           "🔐",
	probe.GroupAPI:            "🤖",
	probe.GroupDashboard:      "📊",
	probe.GroupInfrastructure: "⚙️ ",
}

// Console renders progress and the final summary as timestamped lines.
// It satisfies smoke.Progress.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	groups  int

	// Now is the clock used for line timestamps.
	Now func() time.Time
}

// NewConsole creates a Console writing to w. Verbose adds a line before
// each probe runs.
func NewConsole(w io.Writer, verbose bool) *Console {
	return &Console{w: w, verbose: verbose, Now: time.Now}
}

func (c *Console) line(icon, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[%s] %s %s\n", c.Now().Format("2006-01-02 15:04:05"), icon, fmt.Sprintf(format, args...))
}

// Banner announces the target before probing starts.
func (c *Console) Banner(baseURL, authMode string) {
	c.line("ℹ️ ", rule)
	c.line("ℹ️ ", "🚀 AZURE INTELLIGENT AGENT - SMOKE TEST SUITE")
	c.line("ℹ️ ", rule)
	c.line("ℹ️ ", "Target URL: %s", baseURL)
	c.line("ℹ️ ", "Authentication: %s", authMode)
}

// GroupStarted prints the heading of a probe group.
func (c *Console) GroupStarted(g probe.Group) {
	c.mu.Lock()
	c.groups++
	first := c.groups == 1
	c.mu.Unlock()

	if !first {
		c.line("ℹ️ ", "")
	}
	icon := groupIcons[g]
	if icon == "" {
		icon = "▶"
	}
	c.line("ℹ️ ", "%s Running %s Tests...", icon, g.Title())
}

// ProbeStarted prints the probe name in verbose mode.
func (c *Console) ProbeStarted(spec probe.Spec) {
	if c.verbose {
		c.line("🔍", "Running: %s", spec.Name)
	}
}

// ProbeFinished prints the outcome of one probe.
func (c *Console) ProbeFinished(spec probe.Spec, r probe.Result) {
	suffix := ""
	if avg, ok := r.Details["avg_ms"].(float64); ok {
		suffix = fmt.Sprintf(" [avg %.0fms, %s]", avg, Tier(avg))
	}
	if r.Passed {
		c.line("✅", "PASS - %s (%.0fms)%s", r.Name, r.DurationMs, suffix)
		return
	}
	c.line("❌", "FAIL - %s (%.0fms)%s: %s", r.Name, r.DurationMs, suffix, r.Error())
}

// Summary prints totals, failure details and the verdict line.
func (c *Console) Summary(r *Report) {
	c.line("ℹ️ ", "")
	c.line("ℹ️ ", rule)
	c.line("ℹ️ ", "📊 TEST SUMMARY")
	c.line("ℹ️ ", rule)
	c.line("ℹ️ ", "Total Tests: %d", r.TotalTests)
	c.line("✅", "Passed: %d", r.PassedTests)
	if r.FailedTests > 0 {
		c.line("❌", "Failed: %d", r.FailedTests)
	}
	c.line("ℹ️ ", "⏱️  Duration: %.2fs", r.DurationSeconds)
	c.line("ℹ️ ", "")

	if !r.Passed {
		c.line("❌", "FAILED TESTS:")
		for _, res := range r.Failed() {
			c.line("❌", "  • %s", res.Name)
			if msg := res.Error(); msg != "" {
				c.line("❌", "    Error: %s", msg)
			}
			if len(res.Details) > 0 {
				c.line("❌", "    Details: %s", formatDetails(res.Details))
			}
		}
		c.line("ℹ️ ", "")
		c.line("❌", "SOME TESTS FAILED - REVIEW ERRORS ABOVE")
	} else {
		c.line("✅", "ALL TESTS PASSED - APPLICATION IS HEALTHY")
	}
	c.line("ℹ️ ", rule)
}

func formatDetails(details map[string]any) string {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprint(details)
	}
	return strings.ReplaceAll(string(data), ",", ", ")
}

// Saved announces where the JSON report was written.
func (c *Console) Saved(path string) {
	c.line("ℹ️ ", "📄 Results saved to: %s", path)
}

// Fatal prints an error that stopped the run before probing.
func (c *Console) Fatal(err error) {
	c.line("❌", "%v", err)
}
