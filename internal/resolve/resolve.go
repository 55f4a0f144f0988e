// Package resolve determines the base URL of the application under test.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ConfigurationError means no usable base URL could be determined.
// It is fatal: no probe runs after it.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ErrNoApp is returned by a Lookup when the resource group holds no web app.
var ErrNoApp = errors.New("no web app found")

// Lookup finds the public host name of the first web app in a resource group.
type Lookup interface {
	DefaultHostName(ctx context.Context, resourceGroup string) (string, error)
}

// Resolver turns an explicit URL or a resource group into a base URL.
type Resolver struct {
	lookup Lookup
}

// New creates a Resolver. A nil lookup means resource groups cannot be resolved.
func New(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// BaseURL returns explicitURL when set, otherwise https://<host> of the first
// web app in resourceGroup. The result never ends with a slash.
func (r *Resolver) BaseURL(ctx context.Context, explicitURL, resourceGroup string) (string, error) {
	if explicitURL = strings.TrimSpace(explicitURL); explicitURL != "" {
		return normalize(explicitURL)
	}

	resourceGroup = strings.TrimSpace(resourceGroup)
	if resourceGroup == "" {
		return "", &ConfigurationError{Reason: "either a URL or a resource group is required"}
	}
	if r.lookup == nil {
		return "", &ConfigurationError{Reason: "no platform lookup available for resource group " + resourceGroup}
	}

	host, err := r.lookup.DefaultHostName(ctx, resourceGroup)
	if err != nil {
		return "", &ConfigurationError{Reason: fmt.Sprintf("could not find web app in resource group %s", resourceGroup), Err: err}
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", &ConfigurationError{Reason: fmt.Sprintf("could not find web app in resource group %s", resourceGroup), Err: ErrNoApp}
	}
	return normalize("https://" + host)
}

func normalize(raw string) (string, error) {
	trimmed := strings.TrimRight(raw, "/")
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &ConfigurationError{Reason: "invalid URL " + raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ConfigurationError{Reason: fmt.Sprintf("URL %s must use http or https", raw)}
	}
	if u.Host == "" {
		return "", &ConfigurationError{Reason: fmt.Sprintf("URL %s has no host", raw)}
	}
	return trimmed, nil
}
