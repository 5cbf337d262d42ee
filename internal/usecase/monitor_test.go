package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"OpsPulse/internal/domain/models"
	internalrepo "OpsPulse/internal/repository"
	"OpsPulse/internal/services/alerting"
	"OpsPulse/internal/services/forecast"
	"OpsPulse/internal/services/risk"
)

func newMonitorHarness(t *testing.T, cfg MonitorConfig, src *fakeSource) (*MonitorUseCase, *alerting.Engine, *recordingMetrics) {
	t.Helper()
	log := testLogger(t)
	metrics := newRecordingMetrics()
	engine := alerting.New(alerting.Config{}, log, metrics, internalrepo.NewMemoryRuleStore())
	uc := NewMonitorUseCase(cfg, src,
		forecast.New(forecast.DefaultConfig()),
		risk.New(risk.DefaultModel()),
		engine, metrics, log)
	return uc, engine, metrics
}

func TestSweepRaisesAnomalyAlertOnce(t *testing.T) {
	src := &fakeSource{series: map[string]models.MetricSeries{
		"payment_failures": hourly("payment_failures", 60, func(i int) float64 {
			if i == 59 {
				return 150
			}
			return 50
		}),
	}}
	uc, engine, _ := newMonitorHarness(t, MonitorConfig{WatchedMetrics: []string{"payment_failures"}}, src)
	ctx := context.Background()

	report := uc.Sweep(ctx)
	if report.AnomalyAlerts != 1 {
		t.Fatalf("anomaly alerts = %d, want 1", report.AnomalyAlerts)
	}
	if report.Errors != nil {
		t.Fatalf("unexpected stage errors: %v", report.Errors)
	}

	active := engine.Active("")
	if len(active) != 1 {
		t.Fatalf("active alerts = %d, want 1", len(active))
	}
	alert := active[0]
	if alert.Kind != models.KindAnomaly {
		t.Errorf("kind = %s", alert.Kind)
	}
	// A flat series with a 3x spike lands far past the critical band.
	if alert.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", alert.Severity)
	}
	if alert.Metadata[models.MetaMetric] != "payment_failures" {
		t.Errorf("metric metadata = %v", alert.Metadata[models.MetaMetric])
	}
	if !strings.Contains(alert.Message, "above") {
		t.Errorf("message %q should say above", alert.Message)
	}

	// Same condition inside the suppression window stays quiet.
	if again := uc.Sweep(ctx); again.AnomalyAlerts != 0 {
		t.Fatalf("resweep raised %d alerts, want 0", again.AnomalyAlerts)
	}
	if total := engine.Statistics().Total; total != 1 {
		t.Fatalf("alert table holds %d, want 1", total)
	}

	// Once the window passes the metric may alert again.
	uc.now = func() time.Time { return time.Now().Add(7 * time.Hour) }
	if later := uc.Sweep(ctx); later.AnomalyAlerts != 1 {
		t.Fatalf("post-window sweep raised %d alerts, want 1", later.AnomalyAlerts)
	}
}

func TestSweepIgnoresStaleOutlier(t *testing.T) {
	src := &fakeSource{series: map[string]models.MetricSeries{
		"signups": hourly("signups", 60, func(i int) float64 {
			if i == 30 {
				return 200
			}
			return 50
		}),
	}}
	uc, engine, _ := newMonitorHarness(t, MonitorConfig{WatchedMetrics: []string{"signups"}}, src)

	report := uc.Sweep(context.Background())
	if report.AnomalyAlerts != 0 {
		t.Fatalf("anomaly alerts = %d, want 0 for a mid-series outlier", report.AnomalyAlerts)
	}
	if total := engine.Statistics().Total; total != 0 {
		t.Fatalf("alert table holds %d, want 0", total)
	}
}

func TestSweepCapacityShortfall(t *testing.T) {
	src := &fakeSource{series: map[string]models.MetricSeries{
		"sessions_booked": hourly("sessions_booked", 336, func(i int) float64 { return 100 }),
		"tutor_hours":     hourly("tutor_hours", 336, func(i int) float64 { return 80 }),
	}}
	cfg := MonitorConfig{
		DemandMetric:    "sessions_booked",
		SupplyMetric:    "tutor_hours",
		CapacityHorizon: 6,
	}
	uc, engine, _ := newMonitorHarness(t, cfg, src)
	ctx := context.Background()

	report := uc.Sweep(ctx)
	if report.CapacityAlerts != 1 {
		t.Fatalf("capacity alerts = %d, want 1 (errors: %v)", report.CapacityAlerts, report.Errors)
	}

	active := engine.Active("")
	if len(active) != 1 {
		t.Fatalf("active alerts = %d, want 1", len(active))
	}
	alert := active[0]
	if alert.Kind != models.KindPerformance || alert.Severity != models.SeverityHigh {
		t.Errorf("kind/severity = %s/%s", alert.Kind, alert.Severity)
	}
	// Demand is flat at 100 against 80*1.1 capacity, so the very first
	// projected hour is already short.
	if got := alert.Metadata["shortfallInHours"]; got != 1 {
		t.Errorf("shortfallInHours = %v, want 1", got)
	}
	if !strings.Contains(alert.Message, "tutor_hours") {
		t.Errorf("message %q should name the supply metric", alert.Message)
	}

	if again := uc.Sweep(ctx); again.CapacityAlerts != 0 {
		t.Fatalf("resweep raised %d capacity alerts, want 0", again.CapacityAlerts)
	}
}

func TestSweepEvaluatesRules(t *testing.T) {
	src := &fakeSource{latest: map[string]float64{"cancellations": 9}}
	uc, engine, _ := newMonitorHarness(t, MonitorConfig{}, src)
	engine.SetRules([]models.AlertRule{{
		ID:   "rule-cancel",
		Name: "High cancellations",
		Conditions: []models.RuleCondition{
			{Metric: "cancellations", Operator: models.OpGreaterThan, Threshold: 5},
		},
		Severity:        models.SeverityMedium,
		CooldownMinutes: 30,
		Enabled:         true,
	}})
	ctx := context.Background()

	report := uc.Sweep(ctx)
	if report.RuleAlerts != 1 {
		t.Fatalf("rule alerts = %d, want 1 (errors: %v)", report.RuleAlerts, report.Errors)
	}

	// The engine-side cooldown keeps the rule quiet on the next sweep.
	if again := uc.Sweep(ctx); again.RuleAlerts != 0 {
		t.Fatalf("resweep raised %d rule alerts, want 0", again.RuleAlerts)
	}
}

func TestSweepChurnAlertsHighTiers(t *testing.T) {
	src := &fakeSource{vectors: []models.FeatureVector{
		{EntityID: "cust-crit", Features: map[string]float64{
			risk.FeatureAverageRating:    2.0,
			risk.FeatureDaysSinceSession: 25,
			risk.FeatureSessionVelocity:  0.2,
		}},
		{EntityID: "cust-ok", Features: map[string]float64{
			risk.FeatureDaysSinceSession: 2,
			risk.FeatureSessionVelocity:  3,
			risk.FeatureAverageRating:    4.8,
			risk.FeatureSupportTickets:   0,
			risk.FeatureCancellationRate: 0,
			risk.FeatureTenureDays:       365,
			risk.FeatureSessionCount:     40,
		}},
	}}
	uc, engine, metrics := newMonitorHarness(t, MonitorConfig{}, src)
	ctx := context.Background()

	report := uc.Sweep(ctx)
	if report.ChurnAlerts != 1 {
		t.Fatalf("churn alerts = %d, want 1 (errors: %v)", report.ChurnAlerts, report.Errors)
	}
	if metrics.tierCount() != 2 {
		t.Errorf("risk tiers recorded %d times, want 2", metrics.tierCount())
	}

	active := engine.Active("")
	if len(active) != 1 {
		t.Fatalf("active alerts = %d, want 1", len(active))
	}
	alert := active[0]
	if alert.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", alert.Severity)
	}
	if alert.Metadata[models.MetaEntityID] != "cust-crit" {
		t.Errorf("entity metadata = %v", alert.Metadata[models.MetaEntityID])
	}
	if !strings.Contains(alert.Message, "churn probability") {
		t.Errorf("message = %q", alert.Message)
	}

	// Suppressed per customer, but every sweep still scores the base.
	again := uc.Sweep(ctx)
	if again.ChurnAlerts != 0 {
		t.Fatalf("resweep raised %d churn alerts, want 0", again.ChurnAlerts)
	}
	if metrics.tierCount() != 4 {
		t.Errorf("risk tiers recorded %d times after resweep, want 4", metrics.tierCount())
	}
}

func TestSweepReportsStageErrors(t *testing.T) {
	src := &fakeSource{
		seriesErr: map[string]error{"sessions_booked": errors.New("warehouse down")},
		series: map[string]models.MetricSeries{
			"tutor_hours": hourly("tutor_hours", 336, func(i int) float64 { return 80 }),
		},
	}
	cfg := MonitorConfig{DemandMetric: "sessions_booked", SupplyMetric: "tutor_hours"}
	uc, _, _ := newMonitorHarness(t, cfg, src)

	report := uc.Sweep(context.Background())
	if report.CapacityAlerts != 0 {
		t.Errorf("capacity alerts = %d, want 0", report.CapacityAlerts)
	}
	msg, ok := report.Errors["capacity"]
	if !ok {
		t.Fatalf("expected a capacity stage error, got %v", report.Errors)
	}
	if !strings.Contains(msg, "sessions_booked") {
		t.Errorf("stage error %q should name the metric", msg)
	}
}

func TestSeverityForZ(t *testing.T) {
	tests := []struct {
		z    float64
		want models.Severity
	}{
		{4.2, models.SeverityCritical},
		{-5.0, models.SeverityCritical},
		{3.5, models.SeverityHigh},
		{-3.0, models.SeverityHigh},
		{2.6, models.SeverityMedium},
	}
	for _, tt := range tests {
		if got := severityForZ(tt.z); got != tt.want {
			t.Errorf("severityForZ(%v) = %s, want %s", tt.z, got, tt.want)
		}
	}
}

func TestRuleMetricsDedupes(t *testing.T) {
	rules := []models.AlertRule{
		{Enabled: true, Conditions: []models.RuleCondition{
			{Metric: "cancellations"}, {Metric: "sessions_booked"},
		}},
		{Enabled: true, Conditions: []models.RuleCondition{
			{Metric: "cancellations"},
		}},
		{Enabled: false, Conditions: []models.RuleCondition{
			{Metric: "disabled_only"},
		}},
	}
	got := ruleMetrics(rules)
	if len(got) != 2 {
		t.Fatalf("ruleMetrics = %v, want 2 unique enabled metrics", got)
	}
	for _, name := range got {
		if name == "disabled_only" {
			t.Errorf("disabled rule metric leaked into %v", got)
		}
	}
}
