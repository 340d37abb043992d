package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSink POSTs a JSON event body to a configured URL. It applies the
// same per-call timeout discipline internal/provider uses for subprocess
// invocations and internal/dashboard uses for its Playwright probe.
type WebhookSink struct {
	URL        string
	TimeoutSec int
	Client     *http.Client
}

// NewWebhookSink creates a WebhookSink posting to url, bounded by
// timeoutSec (defaulting to 10s).
func NewWebhookSink(url string, timeoutSec int) *WebhookSink {
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &WebhookSink{URL: url, TimeoutSec: timeoutSec, Client: &http.Client{}}
}

func (w *WebhookSink) Name() string { return "webhook" }

type webhookPayload struct {
	Type      EventType `json:"type"`
	Phase     string    `json:"phase,omitempty"`
	Story     string    `json:"story,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Send POSTs ev as JSON to w.URL, returning a non-nil error on anything
// other than a 2xx response.
func (w *WebhookSink) Send(ctx context.Context, ev Event) error {
	payload := webhookPayload{Type: ev.Type, Phase: ev.Phase, Story: ev.Story, Message: ev.Message, Timestamp: ev.Timestamp}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: webhook: marshaling event: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, time.Duration(w.TimeoutSec)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: webhook: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook: posting event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
