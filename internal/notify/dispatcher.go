package notify

import (
	"context"
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

// Config selects the notification channels. A channel is enabled when its
// section is present.
type Config struct {
	Ntfy     *NtfyConfig     `yaml:"ntfy" json:"ntfy,omitempty"`
	Pushover *PushoverConfig `yaml:"pushover" json:"pushover,omitempty"`
	// Always sends a message for passing runs too.
	Always bool `yaml:"always" json:"always,omitempty"`
}

// Enabled reports whether any channel is configured.
func (c Config) Enabled() bool {
	return c.Ntfy != nil || c.Pushover != nil
}

// Dispatcher fans a message out to every configured channel.
type Dispatcher struct {
	channels []Channel
	always   bool
}

// NewDispatcher creates a dispatcher over channels.
func NewDispatcher(always bool, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, always: always}
}

// FromConfig creates a dispatcher for the channels enabled in cfg.
func FromConfig(cfg Config) *Dispatcher {
	var channels []Channel
	if cfg.Ntfy != nil {
		channels = append(channels, NewNtfyChannel(*cfg.Ntfy))
	}
	if cfg.Pushover != nil {
		channels = append(channels, NewPushoverChannel(*cfg.Pushover))
	}
	return NewDispatcher(cfg.Always, channels...)
}

// Len returns the number of channels.
func (d *Dispatcher) Len() int {
	return len(d.channels)
}

// ShouldNotify reports whether a run with the given verdict is announced.
func (d *Dispatcher) ShouldNotify(passed bool) bool {
	return len(d.channels) > 0 && (!passed || d.always)
}

// Send delivers msg to all channels concurrently and waits for them.
// The returned error combines every channel failure.
func (d *Dispatcher) Send(ctx context.Context, msg *Message) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)

	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("notification send failed", "channel_type", ch.Type(), "error", err)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return
			}
			slog.Debug("notification sent", "channel_type", ch.Type(), "title", msg.Title)
		}(ch)
	}

	wg.Wait()
	return errs
}
