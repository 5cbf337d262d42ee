package notify

import (
	"context"
	"fmt"

	"OpsPulse/internal/domain/models"
	xhttp "OpsPulse/pkg/http"
)

// webhookEnvelope is the payload POSTed to the configured endpoint.
type webhookEnvelope struct {
	Event string        `json:"event"`
	Alert *models.Alert `json:"alert"`
}

// WebhookSink delivers alerts to an external HTTP endpoint.
type WebhookSink struct {
	url    string
	token  string
	client *xhttp.Client
}

func NewWebhookSink(client *xhttp.Client, url, token string) *WebhookSink {
	return &WebhookSink{client: client, url: url, token: token}
}

func (s *WebhookSink) Channel() models.Channel { return models.ChannelWebhook }

func (s *WebhookSink) Deliver(ctx context.Context, alert *models.Alert) error {
	if s.url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}

	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.url,
		Headers: headers,
		Body:    webhookEnvelope{Event: "alert.created", Alert: alert},
	}, nil)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	return nil
}
