package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WebhookNotifier delivers reminders by POSTing them to the chat relay's
// outbound endpoint. The relay owns the actual messenger connection.
type WebhookNotifier struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookNotifier creates a notifier posting to url. The token, when
// set, is sent as a bearer credential.
func NewWebhookNotifier(url, token string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookNotifier{url: url, token: token, client: client}
}

func (n *WebhookNotifier) Notify(ctx context.Context, userID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"user_id": userID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("relay returned %d", resp.StatusCode)
	}
	return nil
}
