package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sendTimeout = 10 * time.Second

// maxErrorBody bounds how much of a rejection body is read.
const maxErrorBody = 1 << 10

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: sendTimeout}
}

// deliver sends req and turns a 4xx/5xx answer into an error that carries
// the service's own explanation when it gives one.
func deliver(client *http.Client, service string, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if reason := rejectionReason(body); reason != "" {
		return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, reason)
	}
	return fmt.Errorf("%s returned status %d", service, resp.StatusCode)
}

// rejectionReason extracts the message from an ntfy ({"error": ...}) or
// Pushover ({"errors": [...]}) error body.
func rejectionReason(body []byte) string {
	var parsed struct {
		Error  string   `json:"error"`
		Errors []string `json:"errors"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return strings.Join(parsed.Errors, "; ")
}
