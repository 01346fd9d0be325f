package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// discordContentLimit is the webhook message cap.
const discordContentLimit = 2000

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Discord posts the digest to a channel webhook.
type Discord struct {
	WebhookURL string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

func (d *Discord) Name() string { return "discord" }

// Send posts the digest as a single webhook message, truncated to the
// webhook content limit.
func (d *Discord) Send(ctx context.Context, text string) error {
	if d.WebhookURL == "" {
		return nil
	}
	content := text
	if len(content) > discordContentLimit {
		content = content[:discordContentLimit-3] + "..."
	}
	payload := map[string]string{"content": content}
	if err := postJSON(ctx, d.client(), d.WebhookURL, nil, payload); err != nil {
		return fmt.Errorf("notify: discord: %w", err)
	}
	return nil
}

func (d *Discord) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return defaultHTTPClient
}

// postJSON posts the payload and fails on any non-2xx response.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
