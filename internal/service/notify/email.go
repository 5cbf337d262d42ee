package notify

import (
	"context"
	"fmt"
	"strings"

	"OpsPulse/internal/domain/models"
	"OpsPulse/pkg/queue"
)

// EmailMessageType is the queue message type the mail job consumes.
const EmailMessageType = "alert_email"

// EmailPayload travels through the Redis queue to the mail job.
type EmailPayload struct {
	AlertID  string   `json:"alertId"`
	Severity string   `json:"severity"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
}

// EmailSink enqueues alert emails instead of talking SMTP inline, so a
// slow or flapping relay never holds up dispatch. The queue retries and
// dead-letters on its own.
type EmailSink struct {
	q          queue.QueueService
	recipients []string
}

func NewEmailSink(q queue.QueueService, recipients []string) *EmailSink {
	return &EmailSink{q: q, recipients: recipients}
}

func (s *EmailSink) Channel() models.Channel { return models.ChannelEmail }

func (s *EmailSink) Deliver(ctx context.Context, alert *models.Alert) error {
	if len(s.recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	payload := EmailPayload{
		AlertID:  alert.ID,
		Severity: string(alert.Severity),
		To:       append([]string(nil), s.recipients...),
		Subject:  fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title),
		Body:     emailBody(alert),
	}
	if err := s.q.PublishMessage(ctx, EmailMessageType, payload); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

func emailBody(alert *models.Alert) string {
	var b strings.Builder
	b.WriteString(alert.Message)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Alert:    %s\n", alert.ID)
	fmt.Fprintf(&b, "Kind:     %s\n", alert.Kind)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&b, "Source:   %s\n", alert.Source)
	fmt.Fprintf(&b, "Raised:   %s\n", alert.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}
