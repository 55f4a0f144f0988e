package probe

import (
	"math"
	"time"
)

// Result is the outcome of running one Spec.
// ErrorMessage is nil iff Passed is true.
type Result struct {
	Name         string         `json:"name"`
	Passed       bool           `json:"passed"`
	DurationMs   float64        `json:"duration_ms"`
	ErrorMessage *string        `json:"error_message"`
	Details      map[string]any `json:"details"`
}

// Pass builds a passing result.
func Pass(name string, d time.Duration, details map[string]any) Result {
	return Result{
		Name:       name,
		Passed:     true,
		DurationMs: Milliseconds(d),
		Details:    copyDetails(details),
	}
}

// Fail builds a failing result carrying msg.
func Fail(name string, d time.Duration, msg string, details map[string]any) Result {
	return Result{
		Name:         name,
		Passed:       false,
		DurationMs:   Milliseconds(d),
		ErrorMessage: &msg,
		Details:      copyDetails(details),
	}
}

// Error returns the failure message, or "" for a passing result.
func (r Result) Error() string {
	if r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func copyDetails(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
