package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// webhookPayload is Slack compatible: chat services render text and ignore the rest
type webhookPayload struct {
	Text     string         `json:"text"`
	Alert    *core.Alert    `json:"alert,omitempty"`
	URLAlert *core.URLAlert `json:"url_alert,omitempty"`
}

// WebhookNotifier posts alerts as JSON to an HTTP endpoint
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier. An empty url disables it.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Name implements ports.Notifier
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// NotifyAlert implements ports.Notifier
func (w *WebhookNotifier) NotifyAlert(ctx context.Context, alert *core.Alert) error {
	return w.post(ctx, webhookPayload{
		Text: fmt.Sprintf("Security alert %s: %s level, %s risk, from %s (%q)",
			alert.AlertID, alert.AlertLevel, alert.OverallRisk, alert.Email.Sender, alert.Email.Subject),
		Alert: alert,
	})
}

// NotifyURLAlert implements ports.Notifier
func (w *WebhookNotifier) NotifyURLAlert(ctx context.Context, alert *core.URLAlert) error {
	return w.post(ctx, webhookPayload{
		Text:     fmt.Sprintf("High threat URL %s: %s", alert.Scan.URL, alert.Scan.Summary),
		URLAlert: alert,
	})
}

func (w *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	if w.url == "" {
		return core.ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to encode webhook payload: %v", core.ErrNotification, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create webhook request: %v", core.ErrNotification, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook request failed: %v", core.ErrNotification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: webhook returned %d: %s", core.ErrNotification, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	w.logger.Debug("Webhook notification delivered", zap.Int("status", resp.StatusCode))
	return nil
}
