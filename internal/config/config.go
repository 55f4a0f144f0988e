// Package config loads smokecheck settings from a YAML file and the
// environment, and holds the immutable configuration of one run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jandubois/smokecheck/internal/notify"
)

// Settings is everything that can be configured outside of command-line flags.
// Flags are applied on top by the caller.
type Settings struct {
	URL           string        `yaml:"url"`
	ResourceGroup string        `yaml:"resource_group"`
	AuthToken     string        `yaml:"auth_token"`
	SkipAuth      bool          `yaml:"skip_auth"`
	Verbose       bool          `yaml:"verbose"`
	JSONOutput    string        `yaml:"json_output"`
	Rate          float64       `yaml:"rate"`
	Deadline      time.Duration `yaml:"deadline"`
	DNSServer     string        `yaml:"dns_server"`

	Database string `yaml:"database"`
	// NoHistory disables recording runs in the database.
	NoHistory bool `yaml:"no_history"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Notify notify.Config `yaml:"notify"`
}

// LoadFile reads settings from a YAML file. An empty path yields zero settings.
// Unknown keys are rejected.
func LoadFile(path string) (Settings, error) {
	var s Settings
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return s, nil
}

// Load reads the YAML file at path and overlays the environment.
func Load(path string, getenv func(string) string) (Settings, error) {
	s, err := LoadFile(path)
	if err != nil {
		return s, err
	}
	if err := s.ApplyEnv(getenv); err != nil {
		return s, err
	}
	return s, nil
}

// ApplyEnv overrides settings with the non-empty environment variables.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("SMOKE_URL", &s.URL)
	str("SMOKE_RESOURCE_GROUP", &s.ResourceGroup)
	str("SMOKE_AUTH_TOKEN", &s.AuthToken)
	str("SMOKE_JSON_OUTPUT", &s.JSONOutput)
	str("SMOKE_DNS_SERVER", &s.DNSServer)
	str("DATABASE_PATH", &s.Database)
	str("SMOKE_LOG_LEVEL", &s.LogLevel)
	str("SMOKE_LOG_FILE", &s.LogFile)

	if v := getenv("SMOKE_SKIP_AUTH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SMOKE_SKIP_AUTH: %w", err)
		}
		s.SkipAuth = b
	}
	if v := getenv("SMOKE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("SMOKE_RATE: invalid rate %q", v)
		}
		s.Rate = f
	}
	if v := getenv("SMOKE_DEADLINE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("SMOKE_DEADLINE: invalid duration %q", v)
		}
		s.Deadline = d
	}

	if topic := getenv("NTFY_TOPIC"); topic != "" {
		if s.Notify.Ntfy == nil {
			s.Notify.Ntfy = &notify.NtfyConfig{}
		}
		s.Notify.Ntfy.Topic = topic
		str("NTFY_SERVER_URL", &s.Notify.Ntfy.ServerURL)
		str("NTFY_TOKEN", &s.Notify.Ntfy.Token)
	}
	if token, user := getenv("PUSHOVER_API_TOKEN"), getenv("PUSHOVER_USER_KEY"); token != "" && user != "" {
		if s.Notify.Pushover == nil {
			s.Notify.Pushover = &notify.PushoverConfig{}
		}
		s.Notify.Pushover.APIToken = token
		s.Notify.Pushover.UserKey = user
	}
	return nil
}

// Validate checks values that do not depend on the target.
func (s Settings) Validate() error {
	if s.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %v", s.Rate)
	}
	if s.Deadline < 0 {
		return fmt.Errorf("deadline must not be negative, got %v", s.Deadline)
	}
	if n := s.Notify.Ntfy; n != nil && n.Topic == "" {
		return fmt.Errorf("notify.ntfy.topic is required")
	}
	if p := s.Notify.Pushover; p != nil && (p.APIToken == "" || p.UserKey == "") {
		return fmt.Errorf("notify.pushover requires api_token and user_key")
	}
	return nil
}
