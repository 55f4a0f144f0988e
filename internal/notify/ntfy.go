package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultNtfyServer is used when no server URL is configured.
const DefaultNtfyServer = "https://ntfy.sh"

// ntfy priorities run from 1 (min) to 5 (max).
var ntfyPriority = map[Priority]int{
	PriorityLow:    2,
	PriorityNormal: 3,
	PriorityHigh:   4,
	PriorityUrgent: 5,
}

// ntfy renders tags that name an emoji as that emoji.
var ntfyTags = map[string]string{
	"ok":     "white_check_mark",
	"failed": "rotating_light",
}

// NtfyConfig configures an ntfy topic.
type NtfyConfig struct {
	ServerURL string `yaml:"server_url" json:"server_url"`
	Topic     string `yaml:"topic" json:"topic"`
	Token     string `yaml:"token" json:"token,omitempty"`
}

// NtfyChannel publishes run summaries to an ntfy topic.
type NtfyChannel struct {
	ServerURL string
	Topic     string
	Token     string
	client    *http.Client
}

// ntfyMessage is ntfy's JSON publishing format, posted to the server root.
type ntfyMessage struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Click    string   `json:"click,omitempty"`
}

func NewNtfyChannel(cfg NtfyConfig) *NtfyChannel {
	server := cfg.ServerURL
	if server == "" {
		server = DefaultNtfyServer
	}
	return &NtfyChannel{
		ServerURL: strings.TrimRight(server, "/"),
		Topic:     cfg.Topic,
		Token:     cfg.Token,
		client:    newHTTPClient(),
	}
}

func (n *NtfyChannel) Type() string { return "ntfy" }

func (n *NtfyChannel) Send(ctx context.Context, msg *Message) error {
	out := ntfyMessage{
		Topic:    n.Topic,
		Title:    msg.Title,
		Message:  msg.Body,
		Priority: ntfyPriority[msg.Priority],
		Click:    msg.URL,
	}
	for _, tag := range msg.Tags {
		if emoji, ok := ntfyTags[tag]; ok {
			tag = emoji
		}
		out.Tags = append(out.Tags, tag)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode ntfy message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.ServerURL+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.Token)
	}
	return deliver(n.client, "ntfy", req)
}
