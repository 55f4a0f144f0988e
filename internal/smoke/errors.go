package smoke

import "fmt"

// ProbeFailure explains why a probe did not pass. It never escapes the
// runner: every ProbeFailure becomes a failing probe.Result.
type ProbeFailure struct {
	Reason string
	Err    error
	// Network is set when the request itself failed (timeout, refused
	// connection, TLS or a truncated response).
	Network bool
}

func (e *ProbeFailure) Error() string {
	switch {
	case e.Err == nil:
		return e.Reason
	case e.Reason == "":
		return e.Err.Error()
	default:
		return e.Reason + ": " + e.Err.Error()
	}
}

func (e *ProbeFailure) Unwrap() error {
	return e.Err
}

func failf(format string, args ...any) error {
	return &ProbeFailure{Reason: fmt.Sprintf(format, args...)}
}

func networkFailure(err error) error {
	return &ProbeFailure{Reason: "request failed", Err: err, Network: true}
}
