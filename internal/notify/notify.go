// Package notify sends run summaries to push notification services.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jandubois/smokecheck/internal/report"
	"github.com/jandubois/smokecheck/internal/smoke"
)

// Channel is a notification channel.
type Channel interface {
	Send(ctx context.Context, msg *Message) error
	Type() string
}

// Message contains notification details.
type Message struct {
	Title    string
	Body     string
	Priority Priority
	Tags     []string
	// URL is the target app, linked from the notification.
	URL string
}

// Priority levels for notifications.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// maxListed caps how many failing probes are named in a message body.
const maxListed = 5

// FormatReport creates a notification message for a finished run.
func FormatReport(r *report.Report) *Message {
	if r.Passed {
		return &Message{
			Title:    fmt.Sprintf("[ok] %s", r.BaseURL),
			Body:     fmt.Sprintf("All %d smoke tests passed in %.2fs", r.TotalTests, r.DurationSeconds),
			Priority: PriorityLow,
			Tags:     []string{"ok"},
			URL:      r.BaseURL,
		}
	}

	failed := r.Failed()
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d smoke tests failed", r.FailedTests, r.TotalTests)
	for i, res := range failed {
		if i == maxListed {
			fmt.Fprintf(&b, "\n… and %d more", len(failed)-maxListed)
			break
		}
		fmt.Fprintf(&b, "\n• %s: %s", res.Name, res.Error())
	}

	// A failing health probe usually means the whole app is down.
	priority := PriorityHigh
	if res, ok := r.Result(smoke.NameHealth); ok && !res.Passed {
		priority = PriorityUrgent
	}

	return &Message{
		Title:    fmt.Sprintf("[failed] %s", r.BaseURL),
		Body:     b.String(),
		Priority: priority,
		Tags:     []string{"failed"},
		URL:      r.BaseURL,
	}
}
