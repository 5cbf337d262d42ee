package alerting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"OpsPulse/internal/domain/models"
	"OpsPulse/internal/domain/service"
	internalrepo "OpsPulse/internal/repository"
	"OpsPulse/pkg/logger"
)

// --- test doubles ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeMetrics struct {
	mu          sync.Mutex
	created     int
	deliveryOK  int
	deliveryErr int
	active      int
	errs        map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errs: make(map[string]int)}
}

func (m *fakeMetrics) RecordAlertCreated(kind, severity string) {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordDelivery(channel string, success bool) {
	m.mu.Lock()
	if success {
		m.deliveryOK++
	} else {
		m.deliveryErr++
	}
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordActiveAlerts(n int) {
	m.mu.Lock()
	m.active = n
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRiskScore(tier string) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errs[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(op string, seconds float64) {}

func (m *fakeMetrics) deliveries() (ok, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveryOK, m.deliveryErr
}

type fakeSink struct {
	channel models.Channel
	fail    error
	block   time.Duration

	mu        sync.Mutex
	delivered []*models.Alert
}

func (s *fakeSink) Channel() models.Channel { return s.channel }

func (s *fakeSink) Deliver(ctx context.Context, alert *models.Alert) error {
	if s.block > 0 {
		select {
		case <-time.After(s.block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.delivered = append(s.delivered, alert)
	s.mu.Unlock()
	return s.fail
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

// --- helpers ---

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestEngine(t *testing.T, cfg Config, sinks ...*fakeSink) (*Engine, *fakeMetrics, *fakeClock) {
	t.Helper()

	metrics := newFakeMetrics()
	clock := newFakeClock()

	svcSinks := make([]service.NotificationSink, 0, len(sinks))
	for _, s := range sinks {
		svcSinks = append(svcSinks, s)
	}
	e := New(cfg, testLogger(t), metrics, internalrepo.NewMemoryRuleStore(), svcSinks...)
	e.now = clock.Now
	return e, metrics, clock
}

func mustCreate(t *testing.T, e *Engine, draft Draft) *models.Alert {
	t.Helper()
	alert, err := e.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return alert
}

func systemDraft(severity models.Severity) Draft {
	return Draft{
		Kind:     models.KindSystem,
		Severity: severity,
		Title:    "Capacity pressure",
		Message:  "projected demand exceeds tutor supply",
		Source:   "test",
	}
}

// --- tests ---

func TestCreateStoresActiveAlert(t *testing.T) {
	e, _, clock := newTestEngine(t, Config{})

	a1 := mustCreate(t, e, systemDraft(models.SeverityHigh))
	a2 := mustCreate(t, e, systemDraft(models.SeverityHigh))

	if a1.ID == "" || a1.ID == a2.ID {
		t.Fatalf("expected unique non-empty IDs, got %q and %q", a1.ID, a2.ID)
	}
	if a1.Status != models.StatusActive {
		t.Errorf("new alert must be active, got %s", a1.Status)
	}
	if !a1.CreatedAt.Equal(clock.Now()) {
		t.Errorf("createdAt = %v, want %v", a1.CreatedAt, clock.Now())
	}
	want := []models.Channel{models.ChannelDashboard, models.ChannelEmail}
	if len(a1.Channels) != len(want) || a1.Channels[0] != want[0] || a1.Channels[1] != want[1] {
		t.Errorf("high severity channels = %v, want %v", a1.Channels, want)
	}

	// Returned alerts are copies; mutating one must not reach the table.
	a1.Title = "tampered"
	stored, err := e.Get(a1.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Title != "Capacity pressure" {
		t.Errorf("engine state leaked to caller: title = %q", stored.Title)
	}
}

func TestCreateRejectsInvalidDrafts(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	tests := []struct {
		name  string
		draft Draft
	}{
		{"unknown kind", Draft{Kind: "mystery", Severity: models.SeverityLow, Title: "t", Message: "m"}},
		{"unknown severity", Draft{Kind: models.KindSystem, Severity: "urgent", Title: "t", Message: "m"}},
		{"unknown channel", Draft{Kind: models.KindSystem, Severity: models.SeverityLow, Title: "t", Message: "m", Channels: []models.Channel{"pager"}}},
		{"empty title", Draft{Kind: models.KindSystem, Severity: models.SeverityLow, Message: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Create(context.Background(), tt.draft)
			var iie *models.InvalidInputError
			if !errors.As(err, &iie) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
	if got := e.Statistics().Total; got != 0 {
		t.Errorf("rejected drafts must not be stored, table has %d", got)
	}
}

func TestCreateAnomalyAlertMessage(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	alert, err := e.CreateAnomalyAlert(context.Background(), "Statistical Outlier", models.SeverityHigh, 125, 75, "Session Volume", nil)
	if err != nil {
		t.Fatalf("create anomaly alert: %v", err)
	}

	if alert.Kind != models.KindAnomaly {
		t.Errorf("kind = %s, want anomaly", alert.Kind)
	}
	if !strings.Contains(alert.Message, "67%") || !strings.Contains(alert.Message, "above") {
		t.Errorf("message %q should mention the 67%% deviation above baseline", alert.Message)
	}
	want := []models.Channel{models.ChannelDashboard, models.ChannelEmail}
	if len(alert.Channels) != 2 || alert.Channels[0] != want[0] || alert.Channels[1] != want[1] {
		t.Errorf("high severity channels = %v, want %v", alert.Channels, want)
	}
	if pct, ok := alert.Metadata[models.MetaDeviationPct].(int); !ok || pct != 67 {
		t.Errorf("deviation metadata = %v, want 67", alert.Metadata[models.MetaDeviationPct])
	}

	below, err := e.CreateAnomalyAlert(context.Background(), "Statistical Outlier", models.SeverityMedium, 50, 100, "Bookings", nil)
	if err != nil {
		t.Fatalf("create anomaly alert: %v", err)
	}
	if !strings.Contains(below.Message, "50%") || !strings.Contains(below.Message, "below") {
		t.Errorf("message %q should mention the 50%% deviation below baseline", below.Message)
	}
}

func TestSeverityRoutingIsMonotone(t *testing.T) {
	order := []models.Severity{
		models.SeverityLow,
		models.SeverityMedium,
		models.SeverityHigh,
		models.SeverityCritical,
	}
	prev := map[models.Channel]bool{}
	for _, severity := range order {
		channels := ChannelsFor(severity)
		cur := map[models.Channel]bool{}
		for _, ch := range channels {
			cur[ch] = true
		}
		for ch := range prev {
			if !cur[ch] {
				t.Errorf("%s dropped channel %s that a lower severity had", severity, ch)
			}
		}
		prev = cur
	}
	if got := ChannelsFor(models.SeverityCritical); len(got) != 3 {
		t.Errorf("critical should reach 3 channels, got %v", got)
	}
	if got := ChannelsFor(models.SeverityLow); len(got) != 1 || got[0] != models.ChannelDashboard {
		t.Errorf("low should reach dashboard only, got %v", got)
	}
}

func TestDispatchAttemptsAllChannels(t *testing.T) {
	dashboard := &fakeSink{channel: models.ChannelDashboard}
	email := &fakeSink{channel: models.ChannelEmail, fail: errors.New("smtp unreachable")}
	webhook := &fakeSink{channel: models.ChannelWebhook}
	e, metrics, _ := newTestEngine(t, Config{}, dashboard, email, webhook)

	alert := mustCreate(t, e, systemDraft(models.SeverityCritical))

	// The failing email channel must not block the other two or the call.
	if dashboard.count() != 1 || webhook.count() != 1 || email.count() != 1 {
		t.Errorf("every channel must be attempted: dashboard=%d email=%d webhook=%d",
			dashboard.count(), email.count(), webhook.count())
	}
	ok, failed := metrics.deliveries()
	if ok != 2 || failed != 1 {
		t.Errorf("deliveries ok=%d failed=%d, want 2/1", ok, failed)
	}

	stored, err := e.Get(alert.ID)
	if err != nil || stored.Status != models.StatusActive {
		t.Errorf("delivery failure must not affect the stored alert: %v %v", stored, err)
	}
}

func TestDispatchTimeoutIsolatesSlowSink(t *testing.T) {
	slow := &fakeSink{channel: models.ChannelDashboard, block: 2 * time.Second}
	e, metrics, _ := newTestEngine(t, Config{DispatchTimeout: 25 * time.Millisecond}, slow)

	start := time.Now()
	mustCreate(t, e, systemDraft(models.SeverityLow))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("create blocked on a slow sink for %v", elapsed)
	}

	_, failed := metrics.deliveries()
	if failed != 1 {
		t.Errorf("timed-out delivery should count as failed, got %d failures", failed)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	t.Run("acknowledge then resolve", func(t *testing.T) {
		a := mustCreate(t, e, systemDraft(models.SeverityHigh))

		if !e.Acknowledge(a.ID, "maria") {
			t.Fatal("acknowledge from active should succeed")
		}
		got, _ := e.Get(a.ID)
		if got.Status != models.StatusAcknowledged || got.AcknowledgedBy != "maria" || got.AcknowledgedAt == nil {
			t.Errorf("acknowledge did not record actor/time: %+v", got)
		}
		if e.Acknowledge(a.ID, "again") {
			t.Error("acknowledge must only work from active")
		}
		if !e.Resolve(a.ID, "maria") {
			t.Error("resolve from acknowledged should succeed")
		}
	})

	t.Run("resolve directly from active", func(t *testing.T) {
		a := mustCreate(t, e, systemDraft(models.SeverityHigh))
		if !e.Resolve(a.ID, "ops") {
			t.Fatal("resolve from active should succeed")
		}
		got, _ := e.Get(a.ID)
		if got.Status != models.StatusResolved || got.ResolvedBy != "ops" || got.ResolvedAt == nil {
			t.Errorf("resolve did not record actor/time: %+v", got)
		}
	})

	t.Run("terminal states are immutable", func(t *testing.T) {
		a := mustCreate(t, e, systemDraft(models.SeverityHigh))
		e.Resolve(a.ID, "ops")

		if e.Resolve(a.ID, "again") || e.Acknowledge(a.ID, "again") || e.Dismiss(a.ID, "again") {
			t.Error("no transition may leave resolved")
		}
		got, _ := e.Get(a.ID)
		if got.ResolvedBy != "ops" {
			t.Errorf("terminal metadata was overwritten: %+v", got)
		}
	})

	t.Run("dismiss only from active", func(t *testing.T) {
		a := mustCreate(t, e, systemDraft(models.SeverityLow))
		if !e.Dismiss(a.ID, "ops") {
			t.Fatal("dismiss from active should succeed")
		}
		if e.Dismiss(a.ID, "again") || e.Acknowledge(a.ID, "again") || e.Resolve(a.ID, "again") {
			t.Error("no transition may leave dismissed")
		}

		b := mustCreate(t, e, systemDraft(models.SeverityLow))
		e.Acknowledge(b.ID, "ops")
		if e.Dismiss(b.ID, "ops") {
			t.Error("dismiss must only work from active")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if e.Acknowledge("missing", "x") || e.Resolve("missing", "x") || e.Dismiss("missing", "x") {
			t.Error("unknown IDs must return false")
		}
		if _, err := e.Get("missing"); err == nil {
			t.Error("get on unknown ID should fail")
		} else {
			var nfe *models.NotFoundError
			if !errors.As(err, &nfe) {
				t.Errorf("expected NotFoundError, got %v", err)
			}
		}
	})
}

func TestListNewestFirstWithFilters(t *testing.T) {
	e, _, clock := newTestEngine(t, Config{})

	drafts := []Draft{
		{Kind: models.KindSystem, Severity: models.SeverityLow, Title: "first", Message: "m"},
		{Kind: models.KindAnomaly, Severity: models.SeverityHigh, Title: "second", Message: "m"},
		{Kind: models.KindThreshold, Severity: models.SeverityHigh, Title: "third", Message: "m"},
		{Kind: models.KindPerformance, Severity: models.SeverityCritical, Title: "fourth", Message: "m"},
	}
	for _, d := range drafts {
		mustCreate(t, e, d)
		clock.Advance(time.Minute)
	}

	all := e.List(models.ListFilter{})
	if len(all) != 4 {
		t.Fatalf("expected 4 alerts, got %d", len(all))
	}
	for i, want := range []string{"fourth", "third", "second", "first"} {
		if all[i].Title != want {
			t.Errorf("position %d: got %q, want %q", i, all[i].Title, want)
		}
	}

	high := e.List(models.ListFilter{Severity: models.SeverityHigh})
	if len(high) != 2 || high[0].Title != "third" {
		t.Errorf("severity filter broken: %v", high)
	}

	limited := e.List(models.ListFilter{Limit: 2})
	if len(limited) != 2 || limited[0].Title != "fourth" {
		t.Errorf("limit should keep the newest alerts: %v", limited)
	}

	anomalies := e.List(models.ListFilter{Kind: models.KindAnomaly})
	if len(anomalies) != 1 || anomalies[0].Title != "second" {
		t.Errorf("kind filter broken: %v", anomalies)
	}
}

func TestActiveOrdersBySeverityThenRecency(t *testing.T) {
	e, _, clock := newTestEngine(t, Config{})

	mk := func(severity models.Severity, title string) *models.Alert {
		a := mustCreate(t, e, Draft{Kind: models.KindSystem, Severity: severity, Title: title, Message: "m"})
		clock.Advance(time.Minute)
		return a
	}

	mk(models.SeverityLow, "low-1")
	mk(models.SeverityCritical, "crit-old")
	medium := mk(models.SeverityMedium, "med-1")
	mk(models.SeverityCritical, "crit-new")
	mk(models.SeverityHigh, "high-1")

	e.Acknowledge(medium.ID, "ops")

	active := e.Active("")
	titles := make([]string, len(active))
	for i, a := range active {
		titles[i] = a.Title
	}
	want := []string{"crit-new", "crit-old", "high-1", "low-1"}
	if len(titles) != len(want) {
		t.Fatalf("expected %d active alerts, got %v", len(want), titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("active order = %v, want %v", titles, want)
		}
	}

	crits := e.Active(models.SeverityCritical)
	if len(crits) != 2 || crits[0].Title != "crit-new" {
		t.Errorf("severity-filtered active broken: %v", crits)
	}
}

func TestStatistics(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	a := mustCreate(t, e, Draft{Kind: models.KindSystem, Severity: models.SeverityHigh, Title: "a", Message: "m"})
	b := mustCreate(t, e, Draft{Kind: models.KindAnomaly, Severity: models.SeverityHigh, Title: "b", Message: "m"})
	mustCreate(t, e, Draft{Kind: models.KindAnomaly, Severity: models.SeverityLow, Title: "c", Message: "m"})

	e.Acknowledge(a.ID, "ops")
	e.Resolve(b.ID, "ops")

	stats := e.Statistics()
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.ByStatus["active"] != 1 || stats.ByStatus["acknowledged"] != 1 || stats.ByStatus["resolved"] != 1 {
		t.Errorf("byStatus = %v", stats.ByStatus)
	}
	if stats.BySeverity["high"] != 2 || stats.BySeverity["low"] != 1 {
		t.Errorf("bySeverity = %v", stats.BySeverity)
	}
	if stats.ByKind["anomaly"] != 2 || stats.ByKind["system"] != 1 {
		t.Errorf("byKind = %v", stats.ByKind)
	}
}
