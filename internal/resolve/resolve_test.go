package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

type fakeLookup struct {
	host  string
	err   error
	calls int
}

func (f *fakeLookup) DefaultHostName(ctx context.Context, resourceGroup string) (string, error) {
	f.calls++
	return f.host, f.err
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		resourceGroup string
		lookup        *fakeLookup
		expected      string
		wantErr       bool
		wantCalls     int
	}{
		{
			name:     "explicit url trims trailing slashes",
			url:      "https://app.example.net//",
			lookup:   &fakeLookup{},
			expected: "https://app.example.net",
		},
		{
			name:          "explicit url wins over resource group",
			url:           "http://localhost:8000",
			resourceGroup: "rg-prod",
			lookup:        &fakeLookup{host: "other.azurewebsites.net"},
			expected:      "http://localhost:8000",
		},
		{
			name:          "resource group lookup",
			resourceGroup: "rg-prod",
			lookup:        &fakeLookup{host: "agent-prod.azurewebsites.net\n"},
			expected:      "https://agent-prod.azurewebsites.net",
			wantCalls:     1,
		},
		{
			name:          "empty lookup result",
			resourceGroup: "rg-empty",
			lookup:        &fakeLookup{},
			wantErr:       true,
			wantCalls:     1,
		},
		{
			name:          "lookup failure",
			resourceGroup: "rg-prod",
			lookup:        &fakeLookup{err: errors.New("az: not logged in")},
			wantErr:       true,
			wantCalls:     1,
		},
		{
			name:    "neither url nor resource group",
			lookup:  &fakeLookup{},
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			url:     "ftp://app.example.net",
			lookup:  &fakeLookup{},
			wantErr: true,
		},
		{
			name:    "missing host",
			url:     "https://",
			lookup:  &fakeLookup{},
			wantErr: true,
		},
		{
			name:    "bare host name without scheme",
			url:     "app.azurewebsites.net",
			lookup:  &fakeLookup{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.lookup).BaseURL(context.Background(), tt.url, tt.resourceGroup)
			if tt.wantErr {
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("BaseURL() error = %v, want *ConfigurationError", err)
				}
			} else if err != nil {
				t.Fatalf("BaseURL() unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("BaseURL() = %q, want %q", got, tt.expected)
			}
			if tt.lookup.calls != tt.wantCalls {
				t.Errorf("lookup called %d times, want %d", tt.lookup.calls, tt.wantCalls)
			}
		})
	}
}

func TestBaseURLEmptyLookupWrapsErrNoApp(t *testing.T) {
	_, err := New(&fakeLookup{host: "  "}).BaseURL(context.Background(), "", "rg")
	if !errors.Is(err, ErrNoApp) {
		t.Errorf("error = %v, want ErrNoApp", err)
	}
}

func TestBaseURLNilLookup(t *testing.T) {
	_, err := New(nil).BaseURL(context.Background(), "", "rg")
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *ConfigurationError", err)
	}
}

func fakeAz(t *testing.T, script string) AzureCLI {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "az")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return AzureCLI{Path: path}
}

func TestAzureCLI(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected string
		wantErr  string
	}{
		{
			name:     "host name",
			script:   `echo "agent-$4.azurewebsites.net"`,
			expected: "agent-rg-test.azurewebsites.net",
		},
		{
			name:    "null result",
			script:  `echo null`,
			wantErr: ErrNoApp.Error(),
		},
		{
			name:    "empty result",
			script:  `true`,
			wantErr: ErrNoApp.Error(),
		},
		{
			name:    "cli failure",
			script:  `echo "ERROR: Please run 'az login'" >&2; exit 1`,
			wantErr: "az exited with code 1: ERROR: Please run 'az login'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fakeAz(t, tt.script).DefaultHostName(context.Background(), "rg-test")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("DefaultHostName() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAzureCLIMissingExecutable(t *testing.T) {
	_, err := AzureCLI{Path: filepath.Join(t.TempDir(), "no-such-az")}.DefaultHostName(context.Background(), "rg")
	if err == nil || !strings.Contains(err.Error(), "run az") {
		t.Errorf("error = %v, want run az failure", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc... (truncated)" {
		t.Errorf("truncate long = %q", got)
	}
}
