package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/smokecheck/internal/probe"
	"github.com/jandubois/smokecheck/internal/resolve"
	"github.com/jandubois/smokecheck/internal/testapp"
)

// isolate clears the environment the commands read and points the default
// history location at a temporary directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		"SMOKE_CONFIG", "SMOKE_URL", "SMOKE_RESOURCE_GROUP", "SMOKE_AUTH_TOKEN",
		"SMOKE_JSON_OUTPUT", "SMOKE_DNS_SERVER", "DATABASE_PATH", "SMOKE_LOG_LEVEL",
		"SMOKE_LOG_FILE", "SMOKE_SKIP_AUTH", "SMOKE_RATE", "SMOKE_DEADLINE",
		"NTFY_TOPIC", "PUSHOVER_API_TOKEN", "PUSHOVER_USER_KEY",
	} {
		t.Setenv(key, "")
	}
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	return state
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so commands can be executed
// repeatedly within one test binary.
func resetFlags() {
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		reset := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

func unreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smokecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDescribePrintsBattery(t *testing.T) {
	isolate(t)

	out, err := execute(t, "--describe")
	require.NoError(t, err)

	var descs []probe.Description
	require.NoError(t, json.Unmarshal([]byte(out), &descs))
	require.Len(t, descs, 14)
	assert.Equal(t, "Health Endpoint", descs[0].Name)
	assert.Equal(t, "Response Time", descs[13].Name)
	assert.Equal(t, []int{200}, descs[0].Accept)
}

func TestVersionFlag(t *testing.T) {
	isolate(t)

	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "smokecheck version "+Version+"\n", out)
}

func TestRunURLPrecedence(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{})
	defer srv.Close()

	t.Run("flag beats environment and file", func(t *testing.T) {
		isolate(t)
		cfg := writeConfigFile(t, "url: "+unreachableURL(t)+"\n")
		t.Setenv("SMOKE_URL", unreachableURL(t))

		out, err := execute(t, "run", "--config", cfg, "--no-history", "--url", srv.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "Target URL: "+srv.URL)
		assert.Contains(t, out, "ALL TESTS PASSED - APPLICATION IS HEALTHY")
	})

	t.Run("environment beats file", func(t *testing.T) {
		isolate(t)
		cfg := writeConfigFile(t, "url: "+unreachableURL(t)+"\n")
		t.Setenv("SMOKE_URL", srv.URL)

		out, err := execute(t, "run", "--config", cfg, "--no-history")
		require.NoError(t, err)
		assert.Contains(t, out, "Target URL: "+srv.URL)
	})

	t.Run("file alone", func(t *testing.T) {
		isolate(t)
		t.Setenv("SMOKE_CONFIG", writeConfigFile(t, "url: "+srv.URL+"\nno_history: true\n"))

		out, err := execute(t, "run")
		require.NoError(t, err)
		assert.Contains(t, out, "Target URL: "+srv.URL)
	})
}

func TestRunFailureReturnsErrProbesFailed(t *testing.T) {
	isolate(t)
	srv := testapp.NewServer(testapp.Options{Status: map[string]int{"POST /api/chat": http.StatusTeapot}})
	defer srv.Close()

	out, err := execute(t, "run", "--no-history", "--url", srv.URL)
	require.ErrorIs(t, err, ErrProbesFailed)
	assert.Contains(t, out, "SOME TESTS FAILED - REVIEW ERRORS ABOVE")
	assert.True(t, runCmd.SilenceErrors)
}

func TestRunWithoutTargetLeavesNoHistory(t *testing.T) {
	state := isolate(t)

	out, err := execute(t, "run")
	var cfgErr *resolve.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, out, "configuration error")
	assert.NoFileExists(t, filepath.Join(state, "smokecheck", "history.db"))
}

func TestRunRecordsHistory(t *testing.T) {
	isolate(t)
	srv := testapp.NewServer(testapp.Options{})
	defer srv.Close()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	_, err := execute(t, "run", "--database", dbPath, "--url", srv.URL)
	require.NoError(t, err)
	require.FileExists(t, dbPath)

	out, err := execute(t, "history", "--database", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL)
	assert.Contains(t, out, "14/14")

	out, err = execute(t, "history", "--database", dbPath, "--run", "1")
	require.NoError(t, err)
	health := strings.Index(out, "Health Endpoint")
	latency := strings.Index(out, "Response Time")
	require.NotEqual(t, -1, health)
	require.NotEqual(t, -1, latency)
	assert.Less(t, health, latency, "results are listed in execution order")
	assert.Equal(t, 14, strings.Count(out, "PASS"))

	out, err = execute(t, "history", "--database", dbPath, "--run", "99")
	require.NoError(t, err)
	assert.Contains(t, out, "No run with ID 99.")
}

func TestHistoryNameAndRunExclusive(t *testing.T) {
	isolate(t)

	_, err := execute(t, "history", "--database", filepath.Join(t.TempDir(), "h.db"), "--name", "Health Endpoint", "--run", "1")
	require.Error(t, err)
}

func TestLogFileClosedAfterFailingRun(t *testing.T) {
	isolate(t)
	srv := testapp.NewServer(testapp.Options{Status: map[string]int{"GET /docs": http.StatusInternalServerError}})
	defer srv.Close()
	logFile := filepath.Join(t.TempDir(), "logs", "smokecheck.log")

	_, err := execute(t, "run", "--no-history", "--log-file", logFile, "--url", srv.URL)
	require.ErrorIs(t, err, ErrProbesFailed)
	assert.Nil(t, logCloser)
	assert.FileExists(t, logFile)
}
