package config

import "strings"

// RunConfig is the resolved, read-only configuration of one battery run.
type RunConfig struct {
	baseURL    string
	authToken  string
	skipAuth   bool
	verbose    bool
	jsonOutput string
}

// NewRunConfig builds a RunConfig. Trailing slashes are stripped from baseURL.
func NewRunConfig(baseURL, authToken string, skipAuth, verbose bool, jsonOutput string) RunConfig {
	return RunConfig{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		skipAuth:   skipAuth,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}
}

func (c RunConfig) BaseURL() string    { return c.baseURL }
func (c RunConfig) AuthToken() string  { return c.authToken }
func (c RunConfig) SkipAuth() bool     { return c.skipAuth }
func (c RunConfig) Verbose() bool      { return c.verbose }
func (c RunConfig) JSONOutput() string { return c.jsonOutput }

// AuthMode describes how protected endpoints are approached.
func (c RunConfig) AuthMode() string {
	switch {
	case c.authToken != "":
		return "Enabled"
	case c.skipAuth:
		return "Skipped"
	default:
		return "None"
	}
}
