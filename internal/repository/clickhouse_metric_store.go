package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"OpsPulse/internal/domain/models"
	pkgch "OpsPulse/pkg/clickhouse"
	applogger "OpsPulse/pkg/logger"
)

// Schema holds the idempotent DDL for the tables the store reads.
// Metric points land here from the ingestion pipeline; customer
// features are refreshed by the nightly feature build.
var Schema = []string{
	`CREATE DATABASE IF NOT EXISTS opspulse`,
	`CREATE TABLE IF NOT EXISTS opspulse.metric_points (
        metric LowCardinality(String),
        ts     DateTime('UTC'),
        value  Float64
    ) ENGINE = MergeTree
    ORDER BY (metric, ts)
    TTL ts + INTERVAL 90 DAY`,
	`CREATE TABLE IF NOT EXISTS opspulse.customer_features (
        entity_id  String,
        feature    LowCardinality(String),
        value      Float64,
        updated_at DateTime('UTC')
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY (entity_id, feature)`,
}

// CHMetricStore implements MetricSource backed by ClickHouse.
type CHMetricStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHMetricStore(ch *pkgch.Client) *CHMetricStore {
	return &CHMetricStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHMetricStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHMetricStore) HourlySeries(ctx context.Context, metric string, from, to time.Time) (models.MetricSeries, error) {
	start := time.Now()
	const q = `
        SELECT toStartOfHour(ts) AS bucket, avg(value) AS v
        FROM opspulse.metric_points
        WHERE metric = ? AND ts >= ? AND ts < ?
        GROUP BY bucket
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, q, metric, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse hourly_series query error",
				applogger.String("metric", metric),
				applogger.Error(err),
			)
		}
		return models.MetricSeries{}, fmt.Errorf("hourly series: %w", err)
	}
	defer rows.Close()

	series := models.MetricSeries{Metric: metric, Points: make([]models.MetricPoint, 0, 1024)}
	for rows.Next() {
		var p models.MetricPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse hourly_series scan error",
					applogger.String("metric", metric),
					applogger.Error(err),
				)
			}
			return models.MetricSeries{}, fmt.Errorf("scan metric point: %w", err)
		}
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse hourly_series rows error",
				applogger.String("metric", metric),
				applogger.Error(err),
			)
		}
		return models.MetricSeries{}, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse hourly_series ok",
			applogger.String("metric", metric),
			applogger.Int("rows", len(series.Points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return series, nil
}

func (s *CHMetricStore) LatestValues(ctx context.Context, metrics []string) (map[string]float64, error) {
	start := time.Now()
	if len(metrics) == 0 {
		return map[string]float64{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(metrics)), ",")
	q := fmt.Sprintf(`
        SELECT metric, argMax(value, ts) AS v
        FROM opspulse.metric_points
        WHERE metric IN (%s)
        GROUP BY metric
    `, placeholders)

	args := make([]any, len(metrics))
	for i, m := range metrics {
		args[i] = m
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_values query error",
				applogger.Int("metrics", len(metrics)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest values: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64, len(metrics))
	for rows.Next() {
		var (
			metric string
			value  float64
		)
		if err := rows.Scan(&metric, &value); err != nil {
			return nil, fmt.Errorf("scan latest value: %w", err)
		}
		out[metric] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_values ok",
			applogger.Int("requested", len(metrics)),
			applogger.Int("found", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHMetricStore) CustomerFeatures(ctx context.Context, limit int) ([]models.FeatureVector, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 1000
	}
	// FINAL collapses ReplacingMergeTree duplicates so every feature
	// reads at its latest refresh.
	const q = `
        SELECT entity_id, feature, value
        FROM opspulse.customer_features FINAL
        WHERE entity_id IN (
            SELECT DISTINCT entity_id FROM opspulse.customer_features ORDER BY entity_id LIMIT ?
        )
        ORDER BY entity_id
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse customer_features query error",
				applogger.Int("limit", limit),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("customer features: %w", err)
	}
	defer rows.Close()

	vectors := make([]models.FeatureVector, 0, limit)
	index := make(map[string]int, limit)
	for rows.Next() {
		var (
			entityID string
			feature  string
			value    float64
		)
		if err := rows.Scan(&entityID, &feature, &value); err != nil {
			return nil, fmt.Errorf("scan customer feature: %w", err)
		}
		i, ok := index[entityID]
		if !ok {
			i = len(vectors)
			index[entityID] = i
			vectors = append(vectors, models.FeatureVector{EntityID: entityID, Features: make(map[string]float64)})
		}
		vectors[i].Features[feature] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse customer_features ok",
			applogger.Int("customers", len(vectors)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return vectors, nil
}

func (s *CHMetricStore) CustomerFeature(ctx context.Context, id string) (models.FeatureVector, error) {
	const q = `
        SELECT feature, value
        FROM opspulse.customer_features FINAL
        WHERE entity_id = ?
    `
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse customer_feature query error",
				applogger.String("entity_id", id),
				applogger.Error(err),
			)
		}
		return models.FeatureVector{}, fmt.Errorf("customer feature: %w", err)
	}
	defer rows.Close()

	vector := models.FeatureVector{EntityID: id, Features: make(map[string]float64)}
	for rows.Next() {
		var (
			feature string
			value   float64
		)
		if err := rows.Scan(&feature, &value); err != nil {
			return models.FeatureVector{}, fmt.Errorf("scan customer feature: %w", err)
		}
		vector.Features[feature] = value
	}
	if err := rows.Err(); err != nil {
		return models.FeatureVector{}, fmt.Errorf("rows: %w", err)
	}
	if len(vector.Features) == 0 {
		return models.FeatureVector{}, &models.NotFoundError{Resource: "customer", ID: id}
	}
	return vector, nil
}

func (s *CHMetricStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHMetricStore) Close() error {
	return s.ch.Close()
}
