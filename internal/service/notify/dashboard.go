// Package notify holds the delivery sinks behind the alert engine.
// Each sink owns one channel; the engine treats them uniformly and
// never learns transport details.
package notify

import (
	"context"

	"OpsPulse/internal/domain/models"
)

// Broadcaster pushes events to connected dashboard clients.
type Broadcaster interface {
	Broadcast(event string, data any) error
}

// DashboardSink forwards alerts to the WebSocket hub.
type DashboardSink struct {
	hub Broadcaster
}

func NewDashboardSink(hub Broadcaster) *DashboardSink {
	return &DashboardSink{hub: hub}
}

func (s *DashboardSink) Channel() models.Channel { return models.ChannelDashboard }

func (s *DashboardSink) Deliver(ctx context.Context, alert *models.Alert) error {
	return s.hub.Broadcast("alert.created", alert)
}
