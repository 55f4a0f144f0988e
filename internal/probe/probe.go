package probe

import (
	"strconv"
	"strings"
	"time"
)

// Group is the reporting section a probe is listed under.
type Group string

const (
	GroupCore           Group = "core"
	GroupAuth           Group = "auth"
	GroupAPI            Group = "api"
	GroupDashboard      Group = "dashboard"
	GroupInfrastructure Group = "infrastructure"
)

// Title returns the heading used for the group in console output.
func (g Group) Title() string {
	switch g {
	case GroupCore:
		return "Core Functionality"
	case GroupAuth:
		return "Authentication"
	case GroupAPI:
		return "API Endpoint"
	case GroupDashboard:
		return "Dashboard"
	case GroupInfrastructure:
		return "Infrastructure"
	default:
		return string(g)
	}
}

// CodeSet is the set of HTTP status codes a probe accepts.
type CodeSet []int

// Contains reports whether code is accepted.
func (c CodeSet) Contains(code int) bool {
	for _, v := range c {
		if v == code {
			return true
		}
	}
	return false
}

func (c CodeSet) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// Spec is the static description of one check in the battery.
type Spec struct {
	Name        string
	Description string
	Group       Group
	Method      string
	Path        string
	Timeout     time.Duration
	// Accept is empty for probes whose verdict does not depend on a status code.
	Accept CodeSet
	// AuthOnly probes are reported as skipped-and-passed in skip-auth mode.
	AuthOnly bool
}

// Description is the self-description format for a probe.
type Description struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Group          Group   `json:"group"`
	Method         string  `json:"method"`
	Path           string  `json:"path"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	Accept         []int   `json:"accept,omitempty"`
	SkippedByAuth  bool    `json:"skipped_by_skip_auth,omitempty"`
}

// Describe returns the JSON-friendly description of s.
func (s Spec) Describe() Description {
	return Description{
		Name:           s.Name,
		Description:    s.Description,
		Group:          s.Group,
		Method:         s.Method,
		Path:           s.Path,
		TimeoutSeconds: s.Timeout.Seconds(),
		Accept:         append([]int(nil), s.Accept...),
		SkippedByAuth:  s.AuthOnly,
	}
}
