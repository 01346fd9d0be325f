// Package notify delivers the run digest to the configured channels.
//
// Every channel is best-effort: a send failure is logged and reported in the
// result map, and never propagates to the pipeline. Channels do not see each
// other; one channel going down leaves the others untouched.
package notify

import (
	"context"
	"log"

	"ytpipeline/config"
)

// Notifier is one delivery channel.
type Notifier interface {
	// Name identifies the channel in logs and the result map.
	Name() string
	// Send delivers the text. Implementations own their protocol details;
	// callers only care about success or failure.
	Send(ctx context.Context, text string) error
}

// NotifyAll sends text to every channel and returns a per-channel error map
// (nil value means delivered). The map is for observability only; callers
// must not fail because of entries in it.
func NotifyAll(ctx context.Context, text string, channels []Notifier) map[string]error {
	results := make(map[string]error, len(channels))
	for _, ch := range channels {
		err := ch.Send(ctx, text)
		results[ch.Name()] = err
		if err != nil {
			log.Printf("notify: %s: send failed: %v", ch.Name(), err)
			continue
		}
		log.Printf("notify: %s: delivered", ch.Name())
	}
	return results
}

// FromConfig assembles a notifier for every configured channel. Channels
// without enough settings are left out; an empty slice is a valid result and
// NotifyAll on it is a no-op.
func FromConfig(cfg *config.Config) []Notifier {
	var channels []Notifier
	if cfg.Email.Configured() {
		channels = append(channels, &Email{Config: cfg.Email})
	}
	if cfg.DiscordWebhookURL != "" {
		channels = append(channels, &Discord{WebhookURL: cfg.DiscordWebhookURL})
	}
	if cfg.Line.Configured() {
		channels = append(channels, &Line{Config: cfg.Line})
	}
	return channels
}
