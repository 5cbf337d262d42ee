package alerting

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"OpsPulse/internal/domain/models"
	"OpsPulse/pkg/logger"
)

// floatEqTolerance absorbs float noise in eq comparisons.
const floatEqTolerance = 1e-9

// SetRules replaces the evaluated rule set.
func (e *Engine) SetRules(rules []models.AlertRule) {
	e.mu.Lock()
	e.rules = append([]models.AlertRule(nil), rules...)
	e.mu.Unlock()
}

// Rules returns a copy of the configured rules.
func (e *Engine) Rules() []models.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.AlertRule(nil), e.rules...)
}

// EvaluateRules checks every enabled rule against the metric sample and
// raises a threshold alert for each rule that fires. A rule fires only
// when all of its conditions match on metrics present in the sample and
// its cooldown has elapsed; the last-fired mark moves only on fire, so
// breaches inside the cooldown window are suppressed rather than queued.
func (e *Engine) EvaluateRules(ctx context.Context, sample map[string]float64) []*models.Alert {
	e.mu.RLock()
	rules := append([]models.AlertRule(nil), e.rules...)
	e.mu.RUnlock()

	fired := make([]*models.Alert, 0)
	now := e.now().UTC()

	for _, rule := range rules {
		if !rule.Enabled || len(rule.Conditions) == 0 {
			continue
		}
		if !e.conditionsMatch(rule, sample) {
			continue
		}

		cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
		if last, ok := e.ruleStore.LastFired(rule.ID); ok && now.Sub(last) < cooldown {
			e.log.Debug("rule suppressed by cooldown",
				logger.String("rule_id", rule.ID),
				logger.Duration("since_last_fire", now.Sub(last)))
			continue
		}

		alert, err := e.Create(ctx, e.ruleDraft(rule, sample))
		if err != nil {
			e.log.Error("rule produced an invalid alert",
				logger.String("rule_id", rule.ID),
				logger.Error(err))
			continue
		}
		e.ruleStore.MarkFired(rule.ID, now)
		fired = append(fired, alert)
	}
	return fired
}

func (e *Engine) conditionsMatch(rule models.AlertRule, sample map[string]float64) bool {
	for _, cond := range rule.Conditions {
		value, ok := sample[cond.Metric]
		if !ok || !conditionMet(cond.Operator, value, cond.Threshold) {
			return false
		}
	}
	return true
}

func (e *Engine) ruleDraft(rule models.AlertRule, sample map[string]float64) Draft {
	parts := make([]string, 0, len(rule.Conditions))
	for _, cond := range rule.Conditions {
		parts = append(parts, fmt.Sprintf("%s %s %.2f (observed %.2f)",
			cond.Metric, cond.Operator, cond.Threshold, sample[cond.Metric]))
	}

	return Draft{
		Kind:     models.KindThreshold,
		Severity: rule.Severity,
		Title:    rule.Name,
		Message:  fmt.Sprintf("Rule matched: %s", strings.Join(parts, " and ")),
		Source:   "rule-engine",
		Metadata: models.Metadata{models.MetaRuleID: rule.ID},
		Channels: rule.Channels,
	}
}

func conditionMet(op models.RuleOperator, value, threshold float64) bool {
	switch op {
	case models.OpGreaterThan:
		return value > threshold
	case models.OpGreaterEqual:
		return value >= threshold
	case models.OpLessThan:
		return value < threshold
	case models.OpLessEqual:
		return value <= threshold
	case models.OpEqual:
		return math.Abs(value-threshold) < floatEqTolerance
	default:
		return false
	}
}
