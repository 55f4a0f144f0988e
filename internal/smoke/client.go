package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// UserAgent identifies smoke-test traffic in the target's access logs.
const UserAgent = "Azure-Intelligent-Agent-SmokeTest/1.0"

// maxBodyBytes bounds how much of a response body is kept for inspection.
const maxBodyBytes = 1 << 20

// Client sends probe requests to the application under test.
// Every request carries the same base headers; redirects are never followed.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Response is a fully read probe response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Elapsed covers the round trip and body read, excluding rate-limit waits.
	Elapsed time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		if rt != nil {
			c.httpClient.Transport = rt
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables pacing.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a client for baseURL. An empty authToken sends no Authorization header.
func NewClient(baseURL, authToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends one request bounded by timeout. A non-nil body is sent as JSON.
// Any transport failure is returned as a network ProbeFailure.
func (c *Client) Do(ctx context.Context, method, path string, body any, timeout time.Duration, extra http.Header) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, networkFailure(err)
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkFailure(fmt.Errorf("read response body: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Elapsed:    time.Since(start),
	}, nil
}
