package smoke

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jandubois/smokecheck/internal/probe"
)

func (chk Check) send(ctx context.Context, c *Client, extra http.Header) (*Response, error) {
	return c.Do(ctx, chk.Spec.Method, chk.Spec.Path, chk.Body, chk.Spec.Timeout, extra)
}

func (chk Check) accept(resp *Response) error {
	if chk.Spec.Accept.Contains(resp.StatusCode) {
		return nil
	}
	return failf("unexpected status %d (accepted: %s)", resp.StatusCode, chk.Spec.Accept)
}

// checkStatus passes when the status code is in the accepted set.
func checkStatus(ctx context.Context, c *Client, chk Check) (map[string]any, error) {
	resp, err := chk.send(ctx, c, nil)
	if err != nil {
		return nil, err
	}
	details := map[string]any{"status_code": resp.StatusCode}
	return details, chk.accept(resp)
}

// checkHealth requires a JSON body with status "healthy" and a timestamp.
func checkHealth(ctx context.Context, c *Client, chk Check) (map[string]any, error) {
	resp, err := chk.send(ctx, c, nil)
	if err != nil {
		return nil, err
	}
	if err := chk.accept(resp); err != nil {
		return map[string]any{"status_code": resp.StatusCode}, err
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return map[string]any{"status_code": resp.StatusCode}, &ProbeFailure{Reason: "invalid health response", Err: err}
	}

	for _, key := range []string{"status", "timestamp"} {
		if _, ok := body[key]; !ok {
			return map[string]any{"missing_key": key}, failf("health response missing %q", key)
		}
	}

	if body["status"] != "healthy" {
		return map[string]any{"status": body["status"]}, failf("health status is %v, want \"healthy\"", body["status"])
	}

	return map[string]any{
		"status":      body["status"],
		"version":     body["version"],
		"environment": body["environment"],
	}, nil
}

// checkHTML requires an accepted status and an HTML content type.
func checkHTML(ctx context.Context, c *Client, chk Check) (map[string]any, error) {
	resp, err := chk.send(ctx, c, nil)
	if err != nil {
		return nil, err
	}
	if err := chk.accept(resp); err != nil {
		return map[string]any{"status_code": resp.StatusCode}, err
	}

	contentType := resp.Header.Get("Content-Type")
	details := map[string]any{"content_type": contentType}
	if !strings.Contains(strings.ToLower(contentType), "html") {
		return details, failf("expected HTML content type, got %q", contentType)
	}
	return details, nil
}

// checkDatabase accepts 200, 401 and 503. A 200 with a JSON body also
// records the reported connection state.
func checkDatabase(ctx context.Context, c *Client, chk Check) (map[string]any, error) {
	resp, err := chk.send(ctx, c, nil)
	if err != nil {
		return nil, err
	}
	details := map[string]any{"status_code": resp.StatusCode}
	if err := chk.accept(resp); err != nil {
		return details, err
	}

	if resp.StatusCode == http.StatusOK {
		var body struct {
			Connected bool `json:"connected"`
		}
		if json.Unmarshal(resp.Body, &body) == nil {
			details["connected"] = body.Connected
		}
	}
	return details, nil
}

// checkCORS sends a preflight request and requires Access-Control-Allow-Origin
// in the response, matched case-insensitively.
func checkCORS(ctx context.Context, c *Client, chk Check) (map[string]any, error) {
	preflight := http.Header{}
	preflight.Set("Origin", c.BaseURL())
	preflight.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := chk.send(ctx, c, preflight)
	if err != nil {
		return nil, err
	}

	origin, hasOrigin := headerValue(resp.Header, "Access-Control-Allow-Origin")
	methods, hasMethods := headerValue(resp.Header, "Access-Control-Allow-Methods")

	details := map[string]any{
		"status_code":                  resp.StatusCode,
		"access-control-allow-origin":  nil,
		"access-control-allow-methods": nil,
	}
	if hasOrigin {
		details["access-control-allow-origin"] = origin
	}
	if hasMethods {
		details["access-control-allow-methods"] = methods
	}

	if !hasOrigin {
		return details, failf("CORS headers not found")
	}
	return details, nil
}

func headerValue(h http.Header, name string) (string, bool) {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return strings.Join(v, ", "), true
		}
	}
	return "", false
}

// checkResponseTime times ResponseTimeSamples sequential calls and compares
// their mean with ResponseTimeThreshold. Any failed call fails the probe.
func checkResponseTime(ctx context.Context, c *Client, chk Check) (map[string]any, error) {
	samples := make([]time.Duration, 0, ResponseTimeSamples)
	for i := 0; i < ResponseTimeSamples; i++ {
		resp, err := chk.send(ctx, c, nil)
		if err != nil {
			return map[string]any{"completed_samples": len(samples)}, err
		}
		samples = append(samples, resp.Elapsed)
	}
	return evaluateLatencies(samples, ResponseTimeThreshold)
}

// LatencyStats summarizes a set of latency samples in milliseconds.
type LatencyStats struct {
	AvgMs float64
	MaxMs float64
	MinMs float64
}

// Summarize computes mean, max and min of samples.
func Summarize(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}
	var sum float64
	stats := LatencyStats{MaxMs: probe.Milliseconds(samples[0]), MinMs: probe.Milliseconds(samples[0])}
	for _, s := range samples {
		ms := probe.Milliseconds(s)
		sum += ms
		if ms > stats.MaxMs {
			stats.MaxMs = ms
		}
		if ms < stats.MinMs {
			stats.MinMs = ms
		}
	}
	stats.AvgMs = sum / float64(len(samples))
	return stats
}

func evaluateLatencies(samples []time.Duration, threshold time.Duration) (map[string]any, error) {
	stats := Summarize(samples)
	thresholdMs := probe.Milliseconds(threshold)
	details := map[string]any{
		"avg_ms":       probe.Round2(stats.AvgMs),
		"max_ms":       probe.Round2(stats.MaxMs),
		"min_ms":       probe.Round2(stats.MinMs),
		"samples":      len(samples),
		"threshold_ms": thresholdMs,
	}
	if len(samples) == 0 {
		return details, failf("no latency samples collected")
	}
	if stats.AvgMs >= thresholdMs {
		return details, failf("average response time %.2fms is not below %v", stats.AvgMs, threshold)
	}
	return details, nil
}
