package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook posts JSON to a URL. Type "slack" sends an incoming-webhook
// {"text": ...} payload; "http" sends {"subject", "body", "sent_at"}.
type Webhook struct {
	URL  string
	Type string
	HTTP *http.Client
}

func NewWebhook(url, typ string) *Webhook {
	return &Webhook{URL: url, Type: typ, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Enabled() bool { return w.URL != "" }

func (w *Webhook) Send(ctx context.Context, subject, body string) error {
	var payload any
	switch w.Type {
	case "slack":
		payload = map[string]string{"text": fmt.Sprintf("*%s*\n%s", subject, body)}
	case "http", "":
		payload = map[string]any{"subject": subject, "body": body, "sent_at": time.Now().UTC()}
	default:
		return fmt.Errorf("unknown webhook type %q", w.Type)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
