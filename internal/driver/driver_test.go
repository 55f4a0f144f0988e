package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/smokecheck/internal/dnsdiag"
	"github.com/jandubois/smokecheck/internal/notify"
	"github.com/jandubois/smokecheck/internal/report"
	"github.com/jandubois/smokecheck/internal/resolve"
	"github.com/jandubois/smokecheck/internal/testapp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHistory struct {
	saved   []*report.Report
	err     error
	openErr error
	opened  int
	closed  int
}

func (f *fakeHistory) open(ctx context.Context) (HistoryStore, error) {
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeHistory) Close() { f.closed++ }

func (f *fakeHistory) SaveRun(ctx context.Context, r *report.Report) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = append(f.saved, r)
	return int64(len(f.saved)), nil
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []*notify.Message
	err  error
}

func (f *fakeChannel) Send(ctx context.Context, msg *notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeChannel) Type() string { return "fake" }

type fakeLookup struct{ host string }

func (f fakeLookup) DefaultHostName(ctx context.Context, rg string) (string, error) {
	return f.host, nil
}

type fakeDiagnoser struct{ hosts []string }

func (f *fakeDiagnoser) Diagnose(ctx context.Context, host string) dnsdiag.Status {
	f.hosts = append(f.hosts, host)
	return dnsdiag.Status{Host: host, Class: dnsdiag.ClassResolves}
}

func TestRunNoTargetIsFatal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	jsonPath := filepath.Join(t.TempDir(), "report.json")
	history := &fakeHistory{}
	channel := &fakeChannel{}
	var stdout bytes.Buffer

	out, err := Run(context.Background(), Options{
		JSONOutput:  jsonPath,
		OpenHistory: history.open,
		Notifier:    notify.NewDispatcher(true, channel),
		Stdout:      &stdout,
		Logger:      quietLogger(),
	})

	var cfgErr *resolve.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, StateResolving, out.State)
	assert.Nil(t, out.Report)
	assert.Zero(t, hits.Load())
	assert.NoFileExists(t, jsonPath)
	assert.Zero(t, history.opened, "history is not opened without a target")
	assert.Empty(t, channel.sent)
	assert.Contains(t, stdout.String(), "configuration error")
}

func TestRunHealthyTarget(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{})
	defer srv.Close()

	jsonPath := filepath.Join(t.TempDir(), "report.json")
	history := &fakeHistory{}
	channel := &fakeChannel{}
	var stdout bytes.Buffer

	out, err := Run(context.Background(), Options{
		URL:         srv.URL + "/",
		JSONOutput:  jsonPath,
		OpenHistory: history.open,
		Notifier:    notify.NewDispatcher(false, channel),
		Stdout:      &stdout,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, srv.URL, out.Config.BaseURL())
	require.NotNil(t, out.Report)
	assert.Equal(t, 14, out.Report.TotalTests)
	assert.True(t, out.Report.Passed)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var written report.Report
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, out.Report.TotalTests, written.TotalTests)
	assert.Equal(t, out.Report.PassedTests, written.PassedTests)
	assert.Equal(t, out.Report.FailedTests, written.FailedTests)
	assert.Equal(t, srv.URL, written.BaseURL)

	require.Len(t, history.saved, 1)
	assert.Equal(t, 1, history.closed)
	assert.Empty(t, channel.sent, "passing runs notify only with always")

	console := stdout.String()
	assert.Contains(t, console, "Target URL: "+srv.URL)
	assert.Contains(t, console, "Total Tests: 14")
	assert.Contains(t, console, "ALL TESTS PASSED - APPLICATION IS HEALTHY")
	assert.Contains(t, console, "Results saved to: "+jsonPath)
}

func TestRunFailingTargetNotifies(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{Status: map[string]int{"POST /api/chat": http.StatusTeapot}})
	defer srv.Close()

	channel := &fakeChannel{}
	var stdout bytes.Buffer

	out, err := Run(context.Background(), Options{
		URL:      srv.URL,
		Notifier: notify.NewDispatcher(false, channel),
		Stdout:   &stdout,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, 1, out.Report.FailedTests)
	assert.Contains(t, stdout.String(), "SOME TESTS FAILED - REVIEW ERRORS ABOVE")
	assert.Contains(t, stdout.String(), "418")

	require.Len(t, channel.sent, 1)
	assert.Contains(t, channel.sent[0].Body, "Chat Endpoint")
}

func TestRunSideEffectFailuresKeepExitCode(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{})
	defer srv.Close()

	badPath := filepath.Join(t.TempDir(), "missing-dir", "report.json")
	out, err := Run(context.Background(), Options{
		URL:         srv.URL,
		JSONOutput:  badPath,
		OpenHistory: (&fakeHistory{err: errors.New("disk full")}).open,
		Notifier:    notify.NewDispatcher(true, &fakeChannel{err: errors.New("ntfy down")}),
		Stdout:      io.Discard,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, StateDone, out.State)

	_, statErr := os.Stat(badPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunHistoryOpenFailureKeepsExitCode(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{})
	defer srv.Close()

	history := &fakeHistory{openErr: errors.New("read-only file system")}
	out, err := Run(context.Background(), Options{
		URL:         srv.URL,
		OpenHistory: history.open,
		Stdout:      io.Discard,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, 1, history.opened)
	assert.Empty(t, history.saved)
}

func TestRunVerboseConsole(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{})
	defer srv.Close()

	var stdout bytes.Buffer
	out, err := Run(context.Background(), Options{
		URL:     srv.URL,
		Verbose: true,
		Stdout:  &stdout,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	assert.True(t, out.Config.Verbose())
	assert.Contains(t, stdout.String(), "Running: Health Endpoint")
}

func TestRunResolvesResourceGroup(t *testing.T) {
	srv := httptest.NewTLSServer(testapp.New(testapp.Options{}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "https://")
	out, err := Run(context.Background(), Options{
		ResourceGroup: "rg-test",
		Lookup:        fakeLookup{host: host},
		Transport:     srv.Client().Transport,
		Stdout:        io.Discard,
		Logger:        quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://"+host, out.Config.BaseURL())
	assert.Equal(t, 0, out.ExitCode)
}

func TestRunUnreachableTargetDiagnosesDNS(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	diag := &fakeDiagnoser{}
	out, err := Run(context.Background(), Options{
		URL:       url,
		SkipAuth:  true,
		Diagnoser: diag,
		Stdout:    io.Discard,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, 13, out.Report.FailedTests, "only the skipped auth probe passes")
	assert.Equal(t, []string{"127.0.0.1"}, diag.hosts)
}

func TestRunHealthyTargetSkipsDiagnosis(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{})
	defer srv.Close()

	diag := &fakeDiagnoser{}
	_, err := Run(context.Background(), Options{URL: srv.URL, Diagnoser: diag, Stdout: io.Discard, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Empty(t, diag.hosts)
}

func TestRunDeadlineFailsRemainingProbes(t *testing.T) {
	srv := testapp.NewServer(testapp.Options{HealthDelay: 300 * time.Millisecond})
	defer srv.Close()

	out, err := Run(context.Background(), Options{
		URL:      srv.URL,
		Deadline: 50 * time.Millisecond,
		Stdout:   io.Discard,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, 14, out.Report.TotalTests, "every probe still produces a result")
	assert.False(t, out.Report.Results[0].Passed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "resolving", StateResolving.String())
	assert.Equal(t, "probing", StateProbing.String())
	assert.Equal(t, "reporting", StateReporting.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(42).String())
}
