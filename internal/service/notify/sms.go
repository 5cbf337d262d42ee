package notify

import (
	"context"
	"fmt"

	"OpsPulse/internal/domain/models"
)

// EventPublisher abstracts the Kafka producer for the SMS gateway topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// smsEvent is what the downstream SMS gateway consumes off Kafka.
type smsEvent struct {
	AlertID  string `json:"alertId"`
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// SMSSink publishes alerts to the SMS gateway topic. No severity routes
// here by default; rules opt in explicitly via their channel list.
type SMSSink struct {
	pub   EventPublisher
	topic string
}

func NewSMSSink(pub EventPublisher, topic string) *SMSSink {
	return &SMSSink{pub: pub, topic: topic}
}

func (s *SMSSink) Channel() models.Channel { return models.ChannelSMS }

func (s *SMSSink) Deliver(ctx context.Context, alert *models.Alert) error {
	event := smsEvent{
		AlertID:  alert.ID,
		Severity: string(alert.Severity),
		Title:    alert.Title,
		Message:  alert.Message,
	}
	// Key by alert ID so retries for one alert stay on one partition.
	if err := s.pub.Publish(ctx, s.topic, []byte(alert.ID), event); err != nil {
		return fmt.Errorf("publish sms event: %w", err)
	}
	return nil
}
