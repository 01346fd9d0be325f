package notify

import (
	"context"
	"fmt"
	"net/http"

	"ytpipeline/config"
)

const linePushURL = "https://api.line.me/v2/bot/message/push"

// lineTextLimit is the Messaging API cap for a single text message.
const lineTextLimit = 5000

// Line pushes the digest through the LINE Messaging API.
type Line struct {
	Config config.LineConfig
	// PushURL overrides the API endpoint, mainly for tests.
	PushURL string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

func (l *Line) Name() string { return "line" }

// Send pushes the digest as one text message to the configured recipient.
func (l *Line) Send(ctx context.Context, text string) error {
	if !l.Config.Configured() {
		return nil
	}
	if len(text) > lineTextLimit {
		text = text[:lineTextLimit-3] + "..."
	}

	url := l.PushURL
	if url == "" {
		url = linePushURL
	}
	payload := map[string]any{
		"to": l.Config.To,
		"messages": []map[string]string{
			{"type": "text", "text": text},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + l.Config.ChannelToken,
	}
	client := l.HTTPClient
	if client == nil {
		client = defaultHTTPClient
	}
	if err := postJSON(ctx, client, url, headers, payload); err != nil {
		return fmt.Errorf("notify: line: %w", err)
	}
	return nil
}
