package usecase

import (
	"context"
	"fmt"
	"time"

	"OpsPulse/internal/domain/models"
	domrepo "OpsPulse/internal/domain/repository"
	domservice "OpsPulse/internal/domain/service"
	"OpsPulse/pkg/cache"
)

const (
	defaultHorizonHours = 24
	defaultWindowDays   = 14
	maxWindowDays       = 60
)

// InsightsUseCase orchestrates the read side: window metric history out
// of the warehouse, run the forecaster and scorer, cache what is
// expensive to recompute.
type InsightsUseCase struct {
	source     domrepo.MetricSource
	forecaster domservice.DemandForecaster
	scorer     domservice.ChurnScorer
	cache      cache.Service
	metrics    domrepo.Metrics
	ttl        time.Duration
}

func NewInsightsUseCase(
	source domrepo.MetricSource,
	forecaster domservice.DemandForecaster,
	scorer domservice.ChurnScorer,
	c cache.Service,
	metrics domrepo.Metrics,
	ttl time.Duration,
) *InsightsUseCase {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &InsightsUseCase{
		source:     source,
		forecaster: forecaster,
		scorer:     scorer,
		cache:      c,
		metrics:    metrics,
		ttl:        ttl,
	}
}

type ForecastParams struct {
	Metric     string
	Horizon    int
	WindowDays int
}

type ForecastResult struct {
	Metric      string                 `json:"metric"`
	Horizon     int                    `json:"horizon"`
	WindowDays  int                    `json:"windowDays"`
	Points      []models.ForecastPoint `json:"points"`
	GeneratedAt time.Time              `json:"generatedAt"`
	Cached      bool                   `json:"cached"`
}

func (uc *InsightsUseCase) GetForecast(ctx context.Context, p ForecastParams) (*ForecastResult, error) {
	if p.Metric == "" {
		return nil, &models.InvalidInputError{Field: "metric", Reason: "must not be empty"}
	}
	if p.Horizon <= 0 {
		p.Horizon = defaultHorizonHours
	}
	p.WindowDays = clampWindow(p.WindowDays)

	key := cache.GenerateKeyWithParams("opspulse:forecast", p.Metric, p.Horizon, p.WindowDays)
	var cached ForecastResult
	if err := uc.cache.Get(ctx, key, &cached); err == nil {
		cached.Cached = true
		return &cached, nil
	}

	series, err := uc.windowSeries(ctx, p.Metric, p.WindowDays)
	if err != nil {
		return nil, err
	}

	points, err := uc.forecaster.Forecast(series, p.Horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", p.Metric, err)
	}

	result := &ForecastResult{
		Metric:      p.Metric,
		Horizon:     p.Horizon,
		WindowDays:  p.WindowDays,
		Points:      points,
		GeneratedAt: time.Now().UTC(),
	}
	_ = uc.cache.Set(ctx, key, result, uc.ttl)
	return result, nil
}

type AnomalyParams struct {
	Metric     string
	WindowDays int
	Threshold  float64
}

type AnomalyResult struct {
	Metric     string                `json:"metric"`
	WindowDays int                   `json:"windowDays"`
	Threshold  float64               `json:"threshold"`
	Points     []models.AnomalyPoint `json:"points"`
	ScannedAt  time.Time             `json:"scannedAt"`
}

func (uc *InsightsUseCase) GetAnomalies(ctx context.Context, p AnomalyParams) (*AnomalyResult, error) {
	if p.Metric == "" {
		return nil, &models.InvalidInputError{Field: "metric", Reason: "must not be empty"}
	}
	p.WindowDays = clampWindow(p.WindowDays)

	series, err := uc.windowSeries(ctx, p.Metric, p.WindowDays)
	if err != nil {
		return nil, err
	}

	return &AnomalyResult{
		Metric:     p.Metric,
		WindowDays: p.WindowDays,
		Threshold:  p.Threshold,
		Points:     uc.forecaster.DetectAnomalies(series, p.Threshold),
		ScannedAt:  time.Now().UTC(),
	}, nil
}

type AccuracyParams struct {
	Metric  string
	Horizon int
}

type AccuracyResult struct {
	Metric      string    `json:"metric"`
	Horizon     int       `json:"horizon"`
	SampleHours int       `json:"sampleHours"`
	MAPE        float64   `json:"mape"`
	RMSE        float64   `json:"rmse"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// GetAccuracy backtests the forecaster: the last horizon hours are held
// out, the model is fit on what precedes them, and the projection is
// compared against what actually happened.
func (uc *InsightsUseCase) GetAccuracy(ctx context.Context, p AccuracyParams) (*AccuracyResult, error) {
	if p.Metric == "" {
		return nil, &models.InvalidInputError{Field: "metric", Reason: "must not be empty"}
	}
	if p.Horizon <= 0 {
		p.Horizon = defaultHorizonHours
	}

	series, err := uc.windowSeries(ctx, p.Metric, defaultWindowDays)
	if err != nil {
		return nil, err
	}
	if len(series.Points) <= p.Horizon {
		return nil, &models.InsufficientDataError{
			Metric:   p.Metric,
			Points:   len(series.Points),
			Required: p.Horizon + 1,
		}
	}

	cut := len(series.Points) - p.Horizon
	train := models.MetricSeries{Metric: series.Metric, Points: series.Points[:cut]}
	holdout := series.Points[cut:]

	points, err := uc.forecaster.Forecast(train, p.Horizon)
	if err != nil {
		return nil, fmt.Errorf("backtest %s: %w", p.Metric, err)
	}

	actual := make([]float64, len(holdout))
	predicted := make([]float64, len(points))
	for i, pt := range holdout {
		actual[i] = pt.Value
	}
	for i, pt := range points {
		predicted[i] = pt.Predicted
	}

	report, err := uc.forecaster.Accuracy(actual, predicted)
	if err != nil {
		return nil, err
	}

	return &AccuracyResult{
		Metric:      p.Metric,
		Horizon:     p.Horizon,
		SampleHours: len(actual),
		MAPE:        report.MAPE,
		RMSE:        report.RMSE,
		EvaluatedAt: time.Now().UTC(),
	}, nil
}

// ScoreVector scores one feature vector supplied by the caller.
func (uc *InsightsUseCase) ScoreVector(ctx context.Context, vector models.FeatureVector) (*models.ScoreResult, error) {
	res, err := uc.scorer.Score(vector)
	if err != nil {
		return nil, err
	}
	uc.metrics.RecordRiskScore(string(res.Tier))
	return &res, nil
}

// ScoreCustomer loads the customer's engineered features from the
// warehouse and scores them.
func (uc *InsightsUseCase) ScoreCustomer(ctx context.Context, id string) (*models.ScoreResult, error) {
	if id == "" {
		return nil, &models.InvalidInputError{Field: "id", Reason: "must not be empty"}
	}
	vector, err := uc.source.CustomerFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.ScoreVector(ctx, vector)
}

// ScoreBatch scores a batch of vectors, preserving input order.
func (uc *InsightsUseCase) ScoreBatch(ctx context.Context, vectors []models.FeatureVector) ([]models.ScoreResult, error) {
	results, err := uc.scorer.BatchScore(vectors)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		uc.metrics.RecordRiskScore(string(r.Tier))
	}
	return results, nil
}

// FeatureImportance exposes the model's weight ranking.
func (uc *InsightsUseCase) FeatureImportance() []models.FeatureImportance {
	return uc.scorer.FeatureImportance()
}

func (uc *InsightsUseCase) windowSeries(ctx context.Context, metric string, windowDays int) (models.MetricSeries, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -windowDays)
	series, err := uc.source.HourlySeries(ctx, metric, from, now)
	if err != nil {
		return models.MetricSeries{}, fmt.Errorf("load series %s: %w", metric, err)
	}
	return series, nil
}

func clampWindow(days int) int {
	if days <= 0 {
		return defaultWindowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}
