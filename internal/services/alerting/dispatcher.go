package alerting

import (
	"context"
	"sync"

	"OpsPulse/internal/domain/models"
	"OpsPulse/internal/domain/service"
	"OpsPulse/pkg/logger"
)

// dispatch attempts delivery on every channel of the alert. Channels
// run concurrently and independently: one slow or failing sink cannot
// stall or abort the others. Failures are logged and counted, never
// returned.
func (e *Engine) dispatch(ctx context.Context, alert *models.Alert) {
	var wg sync.WaitGroup
	for _, ch := range alert.Channels {
		sink, ok := e.sinks[ch]
		if !ok {
			e.log.Warn("no sink registered for channel",
				logger.String("channel", string(ch)),
				logger.String("alert_id", alert.ID))
			e.metrics.RecordDelivery(string(ch), false)
			continue
		}

		wg.Add(1)
		go func(ch models.Channel, sink service.NotificationSink) {
			defer wg.Done()
			e.deliver(ctx, ch, sink, alert)
		}(ch, sink)
	}
	wg.Wait()
}

func (e *Engine) deliver(ctx context.Context, ch models.Channel, sink service.NotificationSink, alert *models.Alert) {
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DispatchTimeout)
	defer cancel()

	if err := sink.Deliver(dctx, alert); err != nil {
		derr := &models.DeliveryError{Channel: string(ch), Err: err}
		e.log.Error("alert delivery failed",
			logger.String("alert_id", alert.ID),
			logger.String("channel", string(ch)),
			logger.Error(derr))
		e.metrics.RecordDelivery(string(ch), false)
		e.metrics.RecordError("delivery")
		return
	}
	e.metrics.RecordDelivery(string(ch), true)
	e.log.Debug("alert delivered",
		logger.String("alert_id", alert.ID),
		logger.String("channel", string(ch)))
}
