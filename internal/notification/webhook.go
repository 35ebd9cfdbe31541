package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/pkg/logger"
)

// SignatureHeader carries the HMAC-SHA256 of the request body
const SignatureHeader = "X-StageReport-Signature"

// WebhookNotifier sends notifications via HTTP webhook
type WebhookNotifier struct {
	config *config.WebhookConfig
	client *http.Client
}

// WebhookPayload is the JSON payload sent to the webhook endpoint
type WebhookPayload struct {
	// Event type: report.requested, report.started, report.completed, report.failed
	EventType string `json:"event_type"`
	ReportID  uint   `json:"report_id"`
	ProjectID uint   `json:"project_id"`
	UserID    uint   `json:"user_id"`
	Message   string `json:"message"`
	// Timestamp in RFC3339 format
	Timestamp string `json:"timestamp"`
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(cfg *config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the notifier name
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Send posts the event to the configured webhook URL.
// Events outside the configured filter are skipped silently.
func (w *WebhookNotifier) Send(ctx context.Context, event *Event) error {
	if w.config.URL == "" {
		return fmt.Errorf("webhook URL is not configured")
	}
	if !w.config.HasEvent(string(event.Type)) {
		return nil
	}

	payload := WebhookPayload{
		EventType: string(event.Type),
		ReportID:  event.ReportID,
		ProjectID: event.ProjectID,
		UserID:    event.UserID,
		Message:   event.Message,
		Timestamp: event.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", consts.ProjectName+"-Notifier/1.0")

	// Add HMAC signature if secret is configured
	if w.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.config.Secret, body))
	}

	logger.Debug("Sending webhook notification",
		zap.String("url", w.config.URL),
		zap.String("event_type", string(event.Type)),
	)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	// Read response body for error logging
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-success status: %d, body: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Sign computes the "sha256=<hex>" HMAC signature of payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
