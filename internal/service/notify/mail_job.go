package notify

import (
	"context"
	"fmt"

	xhttp "OpsPulse/pkg/http"
	applogger "OpsPulse/pkg/logger"
	"OpsPulse/pkg/queue"
)

// MailJob drains queued alert emails and hands them to the HTTP mail
// relay. Failures bubble up so the queue can retry and eventually
// dead-letter the message.
type MailJob struct {
	relayURL string
	from     string
	client   *xhttp.Client
	l        *applogger.Logger
}

func NewMailJob(client *xhttp.Client, relayURL, from string, l *applogger.Logger) *MailJob {
	return &MailJob{client: client, relayURL: relayURL, from: from, l: l}
}

func (j *MailJob) Name() string { return "alert-email-delivery" }

func (j *MailJob) Type() string { return EmailMessageType }

type relayRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

func (j *MailJob) Handle(ctx context.Context, payload interface{}) error {
	email, err := queue.ParsePayload[EmailPayload](payload)
	if err != nil {
		return fmt.Errorf("parse email payload: %w", err)
	}
	if j.relayURL == "" {
		return fmt.Errorf("mail relay url not configured")
	}

	err = j.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     j.relayURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: relayRequest{
			From:    j.from,
			To:      email.To,
			Subject: email.Subject,
			Body:    email.Body,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("post mail relay: %w", err)
	}

	j.l.Info("alert email sent",
		applogger.String("alert_id", email.AlertID),
		applogger.Int("recipients", len(email.To)))
	return nil
}
