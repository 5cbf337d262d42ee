package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	alertsCreated *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	activeAlerts  prometheus.Gauge
	riskScores    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		alertsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opspulse_alerts_created_total",
				Help: "Total number of alerts created",
			},
			[]string{"kind", "severity"},
		),
		deliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opspulse_deliveries_total",
				Help: "Total number of notification delivery attempts",
			},
			[]string{"channel", "outcome"},
		),
		activeAlerts: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "opspulse_active_alerts",
				Help: "Current number of alerts in the active state",
			},
		),
		riskScores: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opspulse_risk_scores_total",
				Help: "Total number of churn risk scores by tier",
			},
			[]string{"tier"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opspulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opspulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAlertCreated counts one created alert.
func (r *Recorder) RecordAlertCreated(kind, severity string) {
	r.alertsCreated.WithLabelValues(kind, severity).Inc()
}

// RecordDelivery counts one notification delivery attempt.
func (r *Recorder) RecordDelivery(channel string, success bool) {
	outcome := "ok"
	if !success {
		outcome = "failed"
	}
	r.deliveries.WithLabelValues(channel, outcome).Inc()
}

// RecordActiveAlerts tracks the current active alert count.
func (r *Recorder) RecordActiveAlerts(n int) {
	r.activeAlerts.Set(float64(n))
}

// RecordRiskScore counts one churn score by resulting tier.
func (r *Recorder) RecordRiskScore(tier string) {
	r.riskScores.WithLabelValues(tier).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
