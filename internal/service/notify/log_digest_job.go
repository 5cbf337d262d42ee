package notify

import (
	"context"
	"fmt"

	applogger "OpsPulse/pkg/logger"
	"OpsPulse/pkg/queue"
)

// ErrorLogTopic is the queue message type carrying aggregated error
// logs from the collector.
const ErrorLogTopic = "error_logs"

// LogDigestJob drains aggregated error batches off the queue and
// surfaces them as warn-level roll-ups, one line per distinct error.
// Warn is deliberate: error-level lines would feed the collector again.
type LogDigestJob struct {
	l *applogger.Logger
}

func NewLogDigestJob(l *applogger.Logger) *LogDigestJob {
	return &LogDigestJob{l: l}
}

func (j *LogDigestJob) Name() string { return "error-log-digest" }

func (j *LogDigestJob) Type() string { return ErrorLogTopic }

func (j *LogDigestJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("parse log digest payload: %w", err)
	}

	total := 0
	for _, entry := range *entries {
		total += entry.Count
		j.l.Warn("aggregated error",
			applogger.String("message", entry.Message),
			applogger.String("caller", entry.Caller),
			applogger.Int("count", entry.Count),
			applogger.String("first_seen", entry.FirstSeen.Format("15:04:05")),
			applogger.String("last_seen", entry.LastSeen.Format("15:04:05")))
	}

	j.l.Info("error digest processed",
		applogger.Int("distinct", len(*entries)),
		applogger.Int("occurrences", total))
	return nil
}
