package repository

import (
	"context"
	"time"

	"OpsPulse/internal/domain/models"
)

// MetricSource provides read-only access to warehouse metrics and
// engineered customer features. Implementations shape raw rows into the
// numeric inputs the engines consume; nothing downstream touches SQL.
type MetricSource interface {
	// HourlySeries returns one point per hour bucket, ascending.
	HourlySeries(ctx context.Context, metric string, from, to time.Time) (models.MetricSeries, error)

	// LatestValues returns the most recent value per requested metric.
	// Metrics with no data are absent from the result, not errors.
	LatestValues(ctx context.Context, metrics []string) (map[string]float64, error)

	// CustomerFeatures returns feature vectors for the churn sweep.
	CustomerFeatures(ctx context.Context, limit int) ([]models.FeatureVector, error)

	// CustomerFeature returns the vector for one customer.
	CustomerFeature(ctx context.Context, id string) (models.FeatureVector, error)

	Health(ctx context.Context) error
	Close() error
}

// RuleStore tracks when alert rules last fired. Cooldown reads and
// updates go through here so the engine stays storage-agnostic.
type RuleStore interface {
	LastFired(ruleID string) (time.Time, bool)
	MarkFired(ruleID string, at time.Time)
}

// Metrics records engine observability counters.
type Metrics interface {
	RecordAlertCreated(kind, severity string)
	RecordDelivery(channel string, success bool)
	RecordActiveAlerts(n int)
	RecordRiskScore(tier string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
