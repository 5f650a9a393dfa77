package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"whatsapp-ai-bridge/internal/domain/ports/adapter"
)

// Compile-time assurance this notifier satisfies the port
var _ adapter.TransportNotifier = (*WebhookNotifier)(nil)

// WebhookNotifier pushes completed replies to the messaging gateway over
// HTTP. Delivery is best effort: the job outcome is already recorded when
// Notify runs, and clients can still poll for it.
type WebhookNotifier struct {
	base   string // e.g., http://localhost:3000
	token  string
	client *http.Client
}

func NewWebhookNotifier(base, token string) (*WebhookNotifier, error) {
	if base == "" {
		return nil, errors.New("webhook base url empty")
	}
	return &WebhookNotifier{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (w *WebhookNotifier) Notify(ctx context.Context, conversationID, text string) error {
	reqBody := struct {
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
	}{ConversationID: conversationID, Text: text}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/send", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook http %d", resp.StatusCode)
	}
	return nil
}
