package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"OpsPulse/internal/domain/models"
	domrepo "OpsPulse/internal/domain/repository"
	domservice "OpsPulse/internal/domain/service"
	"OpsPulse/internal/services/alerting"
	applogger "OpsPulse/pkg/logger"
)

// MonitorConfig tunes the background sweep. Zero values fall back to
// defaults.
type MonitorConfig struct {
	Interval          time.Duration
	WindowDays        int
	AnomalyThreshold  float64
	WatchedMetrics    []string
	DemandMetric      string
	SupplyMetric      string
	SupplyHeadroom    float64
	CapacityHorizon   int
	ChurnBatchSize    int
	SuppressionWindow time.Duration
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.WindowDays <= 0 {
		c.WindowDays = defaultWindowDays
	}
	if c.SupplyHeadroom <= 0 {
		c.SupplyHeadroom = 1.1
	}
	if c.CapacityHorizon <= 0 {
		c.CapacityHorizon = defaultHorizonHours
	}
	if c.ChurnBatchSize <= 0 {
		c.ChurnBatchSize = 500
	}
	if c.SuppressionWindow <= 0 {
		c.SuppressionWindow = 6 * time.Hour
	}
	return c
}

// MonitorUseCase drives the periodic sweep: anomaly scan, capacity
// projection, rule evaluation and the churn sweep. Each stage raises
// alerts through the engine; a local suppression map keeps one
// condition from re-alerting every interval while rule cooldowns stay
// inside the engine.
type MonitorUseCase struct {
	cfg        MonitorConfig
	source     domrepo.MetricSource
	forecaster domservice.DemandForecaster
	scorer     domservice.ChurnScorer
	engine     *alerting.Engine
	metrics    domrepo.Metrics
	l          *applogger.Logger

	mu         sync.Mutex
	lastRaised map[string]time.Time

	now func() time.Time
}

func NewMonitorUseCase(
	cfg MonitorConfig,
	source domrepo.MetricSource,
	forecaster domservice.DemandForecaster,
	scorer domservice.ChurnScorer,
	engine *alerting.Engine,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *MonitorUseCase {
	return &MonitorUseCase{
		cfg:        cfg.withDefaults(),
		source:     source,
		forecaster: forecaster,
		scorer:     scorer,
		engine:     engine,
		metrics:    metrics,
		l:          l,
		lastRaised: make(map[string]time.Time),
		now:        time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping on every interval tick.
func (uc *MonitorUseCase) Run(ctx context.Context) {
	uc.l.Info("monitor started",
		applogger.Duration("interval", uc.cfg.Interval),
		applogger.Strings("watched", uc.cfg.WatchedMetrics))

	ticker := time.NewTicker(uc.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.l.Info("monitor stopped")
			return
		case <-ticker.C:
			uc.Sweep(ctx)
		}
	}
}

// SweepReport summarizes one sweep for logs and tests.
type SweepReport struct {
	AnomalyAlerts  int
	CapacityAlerts int
	RuleAlerts     int
	ChurnAlerts    int
	Errors         map[string]string
	Duration       time.Duration
}

// Sweep runs all stages once. Stages run concurrently; a failing stage
// lands in the report instead of aborting the others.
func (uc *MonitorUseCase) Sweep(ctx context.Context) SweepReport {
	start := time.Now()
	uc.prune()

	report := SweepReport{Errors: map[string]string{}}

	type item struct {
		name   string
		raised int
		err    error
	}
	ch := make(chan item, 4)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := uc.scanAnomalies(ctx)
		ch <- item{"anomalies", n, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := uc.projectCapacity(ctx)
		ch <- item{"capacity", n, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := uc.evaluateRules(ctx)
		ch <- item{"rules", n, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := uc.sweepChurn(ctx)
		ch <- item{"churn", n, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			report.Errors[it.name] = it.err.Error()
			uc.metrics.RecordError("sweep_" + it.name)
			continue
		}
		switch it.name {
		case "anomalies":
			report.AnomalyAlerts = it.raised
		case "capacity":
			report.CapacityAlerts = it.raised
		case "rules":
			report.RuleAlerts = it.raised
		case "churn":
			report.ChurnAlerts = it.raised
		}
	}

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	report.Duration = time.Since(start)
	uc.metrics.RecordLatency("monitor_sweep", report.Duration.Seconds())

	uc.l.Info("monitor sweep complete",
		applogger.Int("anomaly_alerts", report.AnomalyAlerts),
		applogger.Int("capacity_alerts", report.CapacityAlerts),
		applogger.Int("rule_alerts", report.RuleAlerts),
		applogger.Int("churn_alerts", report.ChurnAlerts),
		applogger.Int("errors", len(report.Errors)),
		applogger.Duration("duration_ms", report.Duration))
	for stage, msg := range report.Errors {
		uc.l.Warn("monitor stage failed",
			applogger.String("stage", stage),
			applogger.String("error", msg))
	}
	return report
}

// scanAnomalies flags watched metrics whose freshest hour is a
// statistical outlier.
func (uc *MonitorUseCase) scanAnomalies(ctx context.Context) (int, error) {
	raised := 0
	now := uc.now().UTC()
	from := now.AddDate(0, 0, -uc.cfg.WindowDays)

	for _, metric := range uc.cfg.WatchedMetrics {
		series, err := uc.source.HourlySeries(ctx, metric, from, now)
		if err != nil {
			uc.l.Warn("anomaly scan skipped metric",
				applogger.String("metric", metric),
				applogger.Error(err))
			continue
		}
		if len(series.Points) == 0 {
			continue
		}

		anomalies := uc.forecaster.DetectAnomalies(series, uc.cfg.AnomalyThreshold)
		if len(anomalies) == 0 {
			continue
		}

		// Only the freshest point is actionable; older outliers are
		// history.
		last := anomalies[len(anomalies)-1]
		if !last.Timestamp.Equal(series.Points[len(series.Points)-1].Timestamp) {
			continue
		}
		if !uc.claim("anomaly:" + metric) {
			continue
		}

		_, err = uc.engine.CreateAnomalyAlert(ctx, "Statistical Outlier", severityForZ(last.ZScore),
			last.Value, last.Expected, metric, nil)
		if err != nil {
			uc.l.Error("anomaly alert failed",
				applogger.String("metric", metric),
				applogger.Error(err))
			continue
		}
		raised++
	}
	return raised, nil
}

// projectCapacity forecasts demand against supply and alerts on the
// first projected hour where demand outruns supply plus headroom.
func (uc *MonitorUseCase) projectCapacity(ctx context.Context) (int, error) {
	if uc.cfg.DemandMetric == "" || uc.cfg.SupplyMetric == "" {
		return 0, nil
	}
	now := uc.now().UTC()
	from := now.AddDate(0, 0, -uc.cfg.WindowDays)

	demandSeries, err := uc.source.HourlySeries(ctx, uc.cfg.DemandMetric, from, now)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", uc.cfg.DemandMetric, err)
	}
	supplySeries, err := uc.source.HourlySeries(ctx, uc.cfg.SupplyMetric, from, now)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", uc.cfg.SupplyMetric, err)
	}

	demand, err := uc.forecaster.Forecast(demandSeries, uc.cfg.CapacityHorizon)
	if err != nil {
		return 0, fmt.Errorf("forecast %s: %w", uc.cfg.DemandMetric, err)
	}
	supply, err := uc.forecaster.Forecast(supplySeries, uc.cfg.CapacityHorizon)
	if err != nil {
		return 0, fmt.Errorf("forecast %s: %w", uc.cfg.SupplyMetric, err)
	}

	n := len(demand)
	if len(supply) < n {
		n = len(supply)
	}
	for i := 0; i < n; i++ {
		capacity := supply[i].Predicted * uc.cfg.SupplyHeadroom
		if demand[i].Predicted <= capacity {
			continue
		}
		if !uc.claim("capacity:" + uc.cfg.DemandMetric) {
			return 0, nil
		}

		at := demand[i].Timestamp
		_, err := uc.engine.Create(ctx, alerting.Draft{
			Kind:     models.KindPerformance,
			Severity: models.SeverityHigh,
			Title:    "Projected capacity shortfall",
			Message: fmt.Sprintf("projected %s %.2f exceeds %s capacity %.2f at %s",
				uc.cfg.DemandMetric, demand[i].Predicted, uc.cfg.SupplyMetric, capacity,
				at.Format("2006-01-02 15:04 UTC")),
			Source: "monitor",
			Metadata: models.Metadata{
				models.MetaMetric:  uc.cfg.DemandMetric,
				"projectedDemand":  demand[i].Predicted,
				"projectedSupply":  supply[i].Predicted,
				"headroom":         uc.cfg.SupplyHeadroom,
				"shortfallAt":      at,
				"shortfallInHours": i + 1,
			},
		})
		if err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, nil
}

// evaluateRules feeds the freshest metric values into the engine's rule
// set.
func (uc *MonitorUseCase) evaluateRules(ctx context.Context) (int, error) {
	names := ruleMetrics(uc.engine.Rules())
	if len(names) == 0 {
		return 0, nil
	}

	values, err := uc.source.LatestValues(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("latest values: %w", err)
	}
	return len(uc.engine.EvaluateRules(ctx, values)), nil
}

// sweepChurn scores the customer base and alerts on critical and high
// churn tiers.
func (uc *MonitorUseCase) sweepChurn(ctx context.Context) (int, error) {
	vectors, err := uc.source.CustomerFeatures(ctx, uc.cfg.ChurnBatchSize)
	if err != nil {
		return 0, fmt.Errorf("customer features: %w", err)
	}
	if len(vectors) == 0 {
		return 0, nil
	}

	results, err := uc.scorer.BatchScore(vectors)
	if err != nil {
		return 0, fmt.Errorf("batch score: %w", err)
	}

	raised := 0
	for _, res := range results {
		uc.metrics.RecordRiskScore(string(res.Tier))
		if models.TierRank(res.Tier) > models.TierRank(models.TierHigh) {
			continue
		}
		if !uc.claim("churn:" + res.EntityID) {
			continue
		}

		severity := models.SeverityHigh
		if res.Tier == models.TierCritical {
			severity = models.SeverityCritical
		}
		message := fmt.Sprintf("customer %s scored %.0f%% churn probability", res.EntityID, res.Probability*100)
		if len(res.RankedFactors) > 0 {
			message += ": " + res.RankedFactors[0].Description
		}

		_, err := uc.engine.Create(ctx, alerting.Draft{
			Kind:     models.KindThreshold,
			Severity: severity,
			Title:    fmt.Sprintf("Churn risk %s: %s", res.Tier, res.EntityID),
			Message:  message,
			Source:   "monitor",
			Metadata: models.Metadata{
				models.MetaEntityID:    res.EntityID,
				models.MetaProbability: res.Probability,
				"factors":              res.RankedFactors,
				"recommendedActions":   res.RecommendedActions,
			},
		})
		if err != nil {
			uc.l.Error("churn alert failed",
				applogger.String("entity_id", res.EntityID),
				applogger.Error(err))
			continue
		}
		raised++
	}
	return raised, nil
}

// claim reports whether key may alert now and, if so, stamps it.
func (uc *MonitorUseCase) claim(key string) bool {
	now := uc.now()
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if last, ok := uc.lastRaised[key]; ok && now.Sub(last) < uc.cfg.SuppressionWindow {
		return false
	}
	uc.lastRaised[key] = now
	return true
}

// prune drops suppression entries old enough to be irrelevant so the
// map does not grow with the customer base.
func (uc *MonitorUseCase) prune() {
	cutoff := uc.now().Add(-2 * uc.cfg.SuppressionWindow)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for key, at := range uc.lastRaised {
		if at.Before(cutoff) {
			delete(uc.lastRaised, key)
		}
	}
}

func severityForZ(z float64) models.Severity {
	switch abs := math.Abs(z); {
	case abs >= 4:
		return models.SeverityCritical
	case abs >= 3:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func ruleMetrics(rules []models.AlertRule) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		for _, cond := range rule.Conditions {
			if _, ok := seen[cond.Metric]; ok {
				continue
			}
			seen[cond.Metric] = struct{}{}
			names = append(names, cond.Metric)
		}
	}
	return names
}
