// Package alerting owns the alert table: creation, channel fan-out,
// the acknowledge/resolve/dismiss lifecycle and rule evaluation.
package alerting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"OpsPulse/internal/domain/models"
	"OpsPulse/internal/domain/repository"
	"OpsPulse/internal/domain/service"
	"OpsPulse/pkg/logger"
)

const defaultDispatchTimeout = 5 * time.Second

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
}

func (c Config) withDefaults() Config {
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = defaultDispatchTimeout
	}
	return c
}

// severityChannels routes alerts by severity. Higher severities fan out
// to a superset of the channels below them; keep it that way when
// editing the table.
var severityChannels = map[models.Severity][]models.Channel{
	models.SeverityCritical: {models.ChannelDashboard, models.ChannelEmail, models.ChannelWebhook},
	models.SeverityHigh:     {models.ChannelDashboard, models.ChannelEmail},
	models.SeverityMedium:   {models.ChannelDashboard},
	models.SeverityLow:      {models.ChannelDashboard},
}

// ChannelsFor returns the delivery channels for a severity.
func ChannelsFor(severity models.Severity) []models.Channel {
	return append([]models.Channel(nil), severityChannels[severity]...)
}

// Draft is the input to Create. Empty Channels means "route by
// severity".
type Draft struct {
	Kind     models.AlertKind
	Severity models.Severity
	Title    string
	Message  string
	Source   string
	Metadata models.Metadata
	Channels []models.Channel
}

func (d Draft) validate() error {
	if !models.IsValidKind(d.Kind) {
		return &models.InvalidInputError{Field: "kind", Reason: fmt.Sprintf("unknown alert kind %q", d.Kind)}
	}
	if !models.IsValidSeverity(d.Severity) {
		return &models.InvalidInputError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", d.Severity)}
	}
	if d.Title == "" {
		return &models.InvalidInputError{Field: "title", Reason: "must not be empty"}
	}
	if d.Message == "" {
		return &models.InvalidInputError{Field: "message", Reason: "must not be empty"}
	}
	for _, ch := range d.Channels {
		if !models.IsValidChannel(ch) {
			return &models.InvalidInputError{Field: "channels", Reason: fmt.Sprintf("unknown channel %q", ch)}
		}
	}
	return nil
}

// Engine serializes every alert mutation behind one mutex; operations
// are short and never block on I/O while holding it. Channel dispatch
// happens outside the lock on a cloned alert.
type Engine struct {
	cfg       Config
	log       *logger.Logger
	metrics   repository.Metrics
	ruleStore repository.RuleStore
	sinks     map[models.Channel]service.NotificationSink

	mu     sync.RWMutex
	alerts map[string]*models.Alert
	order  []string
	seq    uint64
	rules  []models.AlertRule

	now func() time.Time
}

func New(cfg Config, log *logger.Logger, metrics repository.Metrics, ruleStore repository.RuleStore, sinks ...service.NotificationSink) *Engine {
	e := &Engine{
		cfg:       cfg.withDefaults(),
		log:       log,
		metrics:   metrics,
		ruleStore: ruleStore,
		sinks:     make(map[models.Channel]service.NotificationSink, len(sinks)),
		alerts:    make(map[string]*models.Alert),
		now:       time.Now,
	}
	for _, sink := range sinks {
		e.sinks[sink.Channel()] = sink
	}
	return e
}

// Create validates the draft, stores the alert as active and fans it
// out to every channel. Delivery is best-effort: once the draft
// validates, the alert exists no matter what the sinks do.
func (e *Engine) Create(ctx context.Context, draft Draft) (*models.Alert, error) {
	if err := draft.validate(); err != nil {
		e.metrics.RecordError("invalid_alert")
		return nil, err
	}

	channels := draft.Channels
	if len(channels) == 0 {
		channels = ChannelsFor(draft.Severity)
	}
	source := draft.Source
	if source == "" {
		source = "system"
	}

	e.mu.Lock()
	e.seq++
	alert := &models.Alert{
		ID:        fmt.Sprintf("alert-%d-%s", e.seq, uuid.NewString()[:8]),
		Kind:      draft.Kind,
		Severity:  draft.Severity,
		Status:    models.StatusActive,
		Title:     draft.Title,
		Message:   draft.Message,
		Source:    source,
		Metadata:  draft.Metadata,
		Channels:  channels,
		CreatedAt: e.now().UTC(),
	}
	e.alerts[alert.ID] = alert
	e.order = append(e.order, alert.ID)
	active := e.activeCountLocked()
	e.mu.Unlock()

	e.metrics.RecordAlertCreated(string(alert.Kind), string(alert.Severity))
	e.metrics.RecordActiveAlerts(active)
	e.log.Info("alert created",
		logger.String("alert_id", alert.ID),
		logger.String("kind", string(alert.Kind)),
		logger.String("severity", string(alert.Severity)),
		logger.String("source", alert.Source))

	e.dispatch(ctx, alert.Clone())

	return alert.Clone(), nil
}

// CreateAnomalyAlert raises an anomaly alert for a metric that came in
// off its expected value. The message carries the integer percent
// deviation and the direction relative to the baseline.
func (e *Engine) CreateAnomalyAlert(ctx context.Context, anomalyType string, severity models.Severity, current, expected float64, metric string, metadata models.Metadata) (*models.Alert, error) {
	direction := models.DirectionAbove
	if current < expected {
		direction = models.DirectionBelow
	}

	// Against a zero baseline the relative deviation is undefined;
	// report against 1 so the message stays meaningful.
	base := math.Abs(expected)
	if base == 0 {
		base = 1
	}
	pct := int(math.Round(math.Abs(current-expected) / base * 100))

	if metadata == nil {
		metadata = models.Metadata{}
	}
	metadata[models.MetaMetric] = metric
	metadata[models.MetaCurrentValue] = current
	metadata[models.MetaExpectedValue] = expected
	metadata[models.MetaDeviationPct] = pct

	return e.Create(ctx, Draft{
		Kind:     models.KindAnomaly,
		Severity: severity,
		Title:    fmt.Sprintf("%s detected on %s", anomalyType, metric),
		Message:  fmt.Sprintf("%s is %.2f, %d%% %s the expected %.2f", metric, current, pct, direction, expected),
		Source:   "monitor",
		Metadata: metadata,
	})
}

// Acknowledge moves an active alert to acknowledged. Unknown IDs and
// alerts in any other state return false; nothing is raised.
func (e *Engine) Acknowledge(id, by string) bool {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok || alert.Status != models.StatusActive {
		status := rejectedStatus(alert, ok)
		e.mu.Unlock()
		e.logRejected("acknowledge", id, status)
		return false
	}
	now := e.now().UTC()
	alert.Status = models.StatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = by
	active := e.activeCountLocked()
	e.mu.Unlock()

	e.metrics.RecordActiveAlerts(active)
	e.log.Info("alert acknowledged", logger.String("alert_id", id), logger.String("by", by))
	return true
}

// Resolve closes an alert from active or acknowledged. Resolved and
// dismissed alerts are terminal and stay untouched.
func (e *Engine) Resolve(id, by string) bool {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok || (alert.Status != models.StatusActive && alert.Status != models.StatusAcknowledged) {
		status := rejectedStatus(alert, ok)
		e.mu.Unlock()
		e.logRejected("resolve", id, status)
		return false
	}
	now := e.now().UTC()
	alert.Status = models.StatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = by
	active := e.activeCountLocked()
	e.mu.Unlock()

	e.metrics.RecordActiveAlerts(active)
	e.log.Info("alert resolved", logger.String("alert_id", id), logger.String("by", by))
	return true
}

// Dismiss discards an active alert without resolution. Only active
// alerts can be dismissed.
func (e *Engine) Dismiss(id, by string) bool {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok || alert.Status != models.StatusActive {
		status := rejectedStatus(alert, ok)
		e.mu.Unlock()
		e.logRejected("dismiss", id, status)
		return false
	}
	now := e.now().UTC()
	alert.Status = models.StatusDismissed
	alert.ResolvedAt = &now
	alert.ResolvedBy = by
	active := e.activeCountLocked()
	e.mu.Unlock()

	e.metrics.RecordActiveAlerts(active)
	e.log.Info("alert dismissed", logger.String("alert_id", id), logger.String("by", by))
	return true
}

// Get returns a copy of one alert.
func (e *Engine) Get(id string) (*models.Alert, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	alert, ok := e.alerts[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "alert", ID: id}
	}
	return alert.Clone(), nil
}

// List returns alerts newest-first, narrowed by the filter.
func (e *Engine) List(filter models.ListFilter) []*models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*models.Alert, 0)
	for i := len(e.order) - 1; i >= 0; i-- {
		alert := e.alerts[e.order[i]]
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		if filter.Kind != "" && alert.Kind != filter.Kind {
			continue
		}
		out = append(out, alert.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Active returns active alerts ordered by severity, newest first within
// each severity. An empty severity means all severities.
func (e *Engine) Active(severity models.Severity) []*models.Alert {
	e.mu.RLock()
	out := make([]*models.Alert, 0)
	for i := len(e.order) - 1; i >= 0; i-- {
		alert := e.alerts[e.order[i]]
		if alert.Status != models.StatusActive {
			continue
		}
		if severity != "" && alert.Severity != severity {
			continue
		}
		out = append(out, alert.Clone())
	}
	e.mu.RUnlock()

	// Stable sort keeps the newest-first order inside each severity.
	sort.SliceStable(out, func(i, j int) bool {
		return models.SeverityRank(out[i].Severity) < models.SeverityRank(out[j].Severity)
	})
	return out
}

// Statistics counts the alert table by status, severity and kind.
func (e *Engine) Statistics() models.AlertStatistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := models.AlertStatistics{
		ByStatus:   make(map[string]int),
		BySeverity: make(map[string]int),
		ByKind:     make(map[string]int),
	}
	for _, alert := range e.alerts {
		stats.Total++
		stats.ByStatus[string(alert.Status)]++
		stats.BySeverity[string(alert.Severity)]++
		stats.ByKind[string(alert.Kind)]++
	}
	return stats
}

func (e *Engine) activeCountLocked() int {
	n := 0
	for _, alert := range e.alerts {
		if alert.Status == models.StatusActive {
			n++
		}
	}
	return n
}

// rejectedStatus must be called with the engine lock held.
func rejectedStatus(alert *models.Alert, found bool) string {
	if !found {
		return "not_found"
	}
	return string(alert.Status)
}

func (e *Engine) logRejected(op, id, status string) {
	e.log.Warn("alert lifecycle transition rejected",
		logger.String("op", op),
		logger.String("alert_id", id),
		logger.String("status", status))
}
