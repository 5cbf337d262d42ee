package alerting

import (
	"context"
	"testing"
	"time"

	"OpsPulse/internal/domain/models"
	internalrepo "OpsPulse/internal/repository"
)

func sessionsRule(cooldownMinutes int) models.AlertRule {
	return models.AlertRule{
		ID:   "rule-sessions-low",
		Name: "Session volume below floor",
		Conditions: []models.RuleCondition{
			{Metric: "sessions", Operator: models.OpLessThan, Threshold: 40},
		},
		Severity:        models.SeverityHigh,
		CooldownMinutes: cooldownMinutes,
		Enabled:         true,
	}
}

func newRuleEngine(t *testing.T) (*Engine, *internalrepo.MemoryRuleStore, *fakeClock) {
	t.Helper()
	store := internalrepo.NewMemoryRuleStore()
	clock := newFakeClock()
	e := New(Config{}, testLogger(t), newFakeMetrics(), store)
	e.now = clock.Now
	return e, store, clock
}

func TestEvaluateRulesFiresOnMatch(t *testing.T) {
	e, store, clock := newRuleEngine(t)
	e.SetRules([]models.AlertRule{sessionsRule(10)})

	fired := e.EvaluateRules(context.Background(), map[string]float64{"sessions": 31})
	if len(fired) != 1 {
		t.Fatalf("expected 1 fired alert, got %d", len(fired))
	}

	alert := fired[0]
	if alert.Kind != models.KindThreshold {
		t.Errorf("kind = %s, want threshold", alert.Kind)
	}
	if alert.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", alert.Severity)
	}
	if alert.Title != "Session volume below floor" {
		t.Errorf("title = %q, want the rule name", alert.Title)
	}
	if got := alert.Metadata[models.MetaRuleID]; got != "rule-sessions-low" {
		t.Errorf("rule id metadata = %v", got)
	}

	if at, ok := store.LastFired("rule-sessions-low"); !ok || !at.Equal(clock.Now()) {
		t.Errorf("fire must record lastFiredAt: %v %v", at, ok)
	}
}

func TestEvaluateRulesCooldown(t *testing.T) {
	e, store, clock := newRuleEngine(t)
	e.SetRules([]models.AlertRule{sessionsRule(10)})
	sample := map[string]float64{"sessions": 31}
	ctx := context.Background()

	firstFire := clock.Now()
	if fired := e.EvaluateRules(ctx, sample); len(fired) != 1 {
		t.Fatalf("first evaluation should fire, got %d", len(fired))
	}

	// Still inside the window: suppressed and the mark does not move.
	clock.Advance(9*time.Minute + 59*time.Second)
	if fired := e.EvaluateRules(ctx, sample); len(fired) != 0 {
		t.Fatalf("breach inside cooldown must be suppressed, got %d", len(fired))
	}
	if at, _ := store.LastFired("rule-sessions-low"); !at.Equal(firstFire) {
		t.Errorf("suppressed evaluation moved lastFiredAt to %v", at)
	}

	// Exactly at the boundary the rule is eligible again.
	clock.Advance(time.Second)
	if fired := e.EvaluateRules(ctx, sample); len(fired) != 1 {
		t.Fatalf("evaluation at cooldown boundary should fire, got %d", len(fired))
	}
	if at, _ := store.LastFired("rule-sessions-low"); !at.Equal(clock.Now()) {
		t.Errorf("second fire should move lastFiredAt, got %v", at)
	}
}

func TestEvaluateRulesConditionGating(t *testing.T) {
	e, _, _ := newRuleEngine(t)
	ctx := context.Background()

	twoConditions := models.AlertRule{
		ID:   "rule-two",
		Name: "Low sessions with high cancellations",
		Conditions: []models.RuleCondition{
			{Metric: "sessions", Operator: models.OpLessThan, Threshold: 40},
			{Metric: "cancellations", Operator: models.OpGreaterEqual, Threshold: 5},
		},
		Severity: models.SeverityMedium,
		Enabled:  true,
	}
	disabled := sessionsRule(0)
	disabled.ID = "rule-disabled"
	disabled.Enabled = false

	e.SetRules([]models.AlertRule{twoConditions, disabled})

	tests := []struct {
		name   string
		sample map[string]float64
		fired  int
	}{
		{"both conditions match", map[string]float64{"sessions": 30, "cancellations": 7}, 1},
		{"one condition fails", map[string]float64{"sessions": 30, "cancellations": 2}, 0},
		{"metric absent", map[string]float64{"sessions": 30}, 0},
		{"disabled rule never fires", map[string]float64{"sessions": 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fired := e.EvaluateRules(ctx, tt.sample); len(fired) != tt.fired {
				t.Errorf("fired %d alerts, want %d", len(fired), tt.fired)
			}
		})
	}
}

func TestEvaluateRulesUsesRuleChannels(t *testing.T) {
	e, _, _ := newRuleEngine(t)

	rule := sessionsRule(0)
	rule.Severity = models.SeverityCritical
	rule.Channels = []models.Channel{models.ChannelDashboard}
	e.SetRules([]models.AlertRule{rule})

	fired := e.EvaluateRules(context.Background(), map[string]float64{"sessions": 10})
	if len(fired) != 1 {
		t.Fatalf("expected 1 fired alert, got %d", len(fired))
	}
	// The rule's explicit channel list overrides severity routing.
	if len(fired[0].Channels) != 1 || fired[0].Channels[0] != models.ChannelDashboard {
		t.Errorf("channels = %v, want dashboard only", fired[0].Channels)
	}
}

func TestConditionOperators(t *testing.T) {
	tests := []struct {
		op        models.RuleOperator
		value     float64
		threshold float64
		want      bool
	}{
		{models.OpGreaterThan, 5, 4, true},
		{models.OpGreaterThan, 4, 4, false},
		{models.OpGreaterEqual, 4, 4, true},
		{models.OpLessThan, 3, 4, true},
		{models.OpLessThan, 4, 4, false},
		{models.OpLessEqual, 4, 4, true},
		{models.OpEqual, 0.1 + 0.2, 0.3, true}, // float noise stays inside the tolerance
		{models.OpEqual, 0.31, 0.3, false},
		{"between", 1, 1, false}, // unknown operators never match
	}
	for _, tt := range tests {
		if got := conditionMet(tt.op, tt.value, tt.threshold); got != tt.want {
			t.Errorf("conditionMet(%s, %v, %v) = %v, want %v", tt.op, tt.value, tt.threshold, got, tt.want)
		}
	}
}
