package service

import (
	"context"

	"OpsPulse/internal/domain/models"
)

// DemandForecaster projects a metric series forward with confidence
// intervals and flags statistical outliers in history.
type DemandForecaster interface {
	Forecast(series models.MetricSeries, horizon int) ([]models.ForecastPoint, error)
	DetectAnomalies(series models.MetricSeries, thresholdStdDevs float64) []models.AnomalyPoint
	Accuracy(actual, predicted []float64) (models.AccuracyReport, error)
}

// ChurnScorer scores feature vectors into churn probabilities with
// explainable factors and recommended actions.
type ChurnScorer interface {
	Score(vector models.FeatureVector) (models.ScoreResult, error)
	BatchScore(vectors []models.FeatureVector) ([]models.ScoreResult, error)
	TierFor(probability float64) models.RiskTier
	FeatureImportance() []models.FeatureImportance
}

// NotificationSink delivers one alert over one channel. Deliveries are
// best-effort: a non-nil error marks the attempt failed, it must never
// panic or block past ctx.
type NotificationSink interface {
	Channel() models.Channel
	Deliver(ctx context.Context, alert *models.Alert) error
}
