package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourusername/mailfeed/internal/models"
)

// WebhookAttachment is the metadata-only attachment view sent to
// consumers; binary content never leaves the store this way.
type WebhookAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// WebhookEmail is the sanitized message representation.
type WebhookEmail struct {
	ID          int64               `json:"id"`
	From        string              `json:"from"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	Attachments []WebhookAttachment `json:"attachments"`
}

// WebhookPayload is the body POSTed to a consumer's callback URL.
type WebhookPayload struct {
	EmailID   int64        `json:"emailId"`
	PluginID  string       `json:"pluginId"`
	EmailData WebhookEmail `json:"emailData"`
}

// permanentStatusError marks a response that retrying will not fix.
type permanentStatusError struct {
	status int
}

func (e *permanentStatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.status)
}

// IsPermanent reports whether a delivery error is a non-retryable 4xx.
func IsPermanent(err error) bool {
	var pse *permanentStatusError
	return errors.As(err, &pse)
}

// WebhookClient POSTs sanitized message payloads to consumer callbacks
// with a bounded timeout per attempt.
type WebhookClient struct {
	httpClient *http.Client
}

func NewWebhookClient(timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send delivers one payload. Network errors and 5xx responses are
// retryable; 4xx responses are permanent.
func (c *WebhookClient) Send(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &permanentStatusError{status: resp.StatusCode}
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}

// Sanitize builds the webhook view of a message: identifier, sender,
// subject, truncated body, attachment names and types only.
func Sanitize(msg *models.Message, bodyLimit int) WebhookEmail {
	if bodyLimit <= 0 {
		bodyLimit = 100
	}
	atts := make([]WebhookAttachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		atts = append(atts, WebhookAttachment{Filename: a.Filename, ContentType: a.MimeType})
	}
	return WebhookEmail{
		ID:          msg.ID,
		From:        msg.FromAddress,
		Subject:     msg.Subject,
		Body:        truncate(msg.Body(), bodyLimit),
		Attachments: atts,
	}
}

func truncate(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
