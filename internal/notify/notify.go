// Package notify delivers fire-and-forget notifications to an external sink.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TemplateKind names the notification template the sink should render.
type TemplateKind string

const (
	// TemplateUnenrolment is sent to guardians when a child is unenrolled.
	TemplateUnenrolment TemplateKind = "unenrolment"
)

// Payload is the template data handed to the sink.
type Payload map[string]any

// Notifier is the outbound notification sink. Delivery is best-effort and
// never part of any transactional boundary.
type Notifier interface {
	Notify(recipient uuid.UUID, kind TemplateKind, payload Payload)
}

// WebhookNotifier posts notifications as JSON to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier constructs a WebhookNotifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookRequest struct {
	Recipient string       `json:"recipient"`
	Template  TemplateKind `json:"template"`
	Payload   Payload      `json:"payload"`
	SentAt    time.Time    `json:"sent_at"`
}

// Notify posts the notification on a goroutine. Failures are logged and
// dropped; they must never affect the operation that triggered them.
func (n *WebhookNotifier) Notify(recipient uuid.UUID, kind TemplateKind, payload Payload) {
	go func() {
		if err := n.send(recipient, kind, payload); err != nil {
			slog.Warn("notification delivery failed",
				"recipient", recipient, "template", kind, "error", err)
		}
	}()
}

func (n *WebhookNotifier) send(recipient uuid.UUID, kind TemplateKind, payload Payload) error {
	body, err := json.Marshal(webhookRequest{
		Recipient: recipient.String(),
		Template:  kind,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification sink returned status %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier discards notifications; used when no sink is configured.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(recipient uuid.UUID, kind TemplateKind, payload Payload) {
	slog.Debug("notification dropped, no sink configured",
		"recipient", recipient, "template", kind)
}
