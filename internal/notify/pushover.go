package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPushoverURL is the Pushover message endpoint.
const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// Emergency messages repeat every pushoverRetry seconds until acknowledged
// or until pushoverExpire seconds have passed.
const (
	pushoverRetry  = 60
	pushoverExpire = 3600
)

// Pushover priorities run from -2 (silent) to 2 (emergency).
var pushoverPriority = map[Priority]int{
	PriorityLow:    -1,
	PriorityNormal: 0,
	PriorityHigh:   1,
	PriorityUrgent: 2,
}

// PushoverConfig configures a Pushover application and recipient.
type PushoverConfig struct {
	APIToken string `yaml:"api_token" json:"api_token"`
	UserKey  string `yaml:"user_key" json:"user_key"`
	// APIURL overrides DefaultPushoverURL.
	APIURL string `yaml:"api_url" json:"api_url,omitempty"`
}

// PushoverChannel pushes run summaries to a Pushover user or group.
type PushoverChannel struct {
	APIURL   string
	APIToken string
	UserKey  string
	client   *http.Client
}

func NewPushoverChannel(cfg PushoverConfig) *PushoverChannel {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultPushoverURL
	}
	return &PushoverChannel{
		APIURL:   apiURL,
		APIToken: cfg.APIToken,
		UserKey:  cfg.UserKey,
		client:   newHTTPClient(),
	}
}

func (p *PushoverChannel) Type() string { return "pushover" }

func (p *PushoverChannel) Send(ctx context.Context, msg *Message) error {
	priority := pushoverPriority[msg.Priority]
	form := url.Values{}
	form.Set("token", p.APIToken)
	form.Set("user", p.UserKey)
	form.Set("title", msg.Title)
	form.Set("message", msg.Body)
	form.Set("priority", strconv.Itoa(priority))
	if priority == 2 {
		form.Set("retry", strconv.Itoa(pushoverRetry))
		form.Set("expire", strconv.Itoa(pushoverExpire))
	}
	if msg.URL != "" {
		form.Set("url", msg.URL)
		form.Set("url_title", "Open app")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return deliver(p.client, "pushover", req)
}
