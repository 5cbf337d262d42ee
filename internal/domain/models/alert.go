package models

import "time"

// AlertKind classifies what produced an alert.
type AlertKind string

const (
	KindAnomaly     AlertKind = "anomaly"
	KindThreshold   AlertKind = "threshold"
	KindSystem      AlertKind = "system"
	KindPerformance AlertKind = "performance"
)

// Severity is the operational urgency of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityRank orders severities by urgency (critical first). Unknown
// severities sort last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// AlertStatus is a lifecycle state. Resolved and dismissed are terminal.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusDismissed    AlertStatus = "dismissed"
)

// Channel is a notification delivery target.
type Channel string

const (
	ChannelDashboard Channel = "dashboard"
	ChannelEmail     Channel = "email"
	ChannelWebhook   Channel = "webhook"
	ChannelSMS       Channel = "sms"
)

// IsValidKind reports whether k is a supported alert kind.
func IsValidKind(k AlertKind) bool {
	switch k {
	case KindAnomaly, KindThreshold, KindSystem, KindPerformance:
		return true
	default:
		return false
	}
}

// IsValidSeverity reports whether s is a supported severity.
func IsValidSeverity(s Severity) bool {
	return SeverityRank(s) < 4
}

// IsValidChannel reports whether ch is a supported delivery channel.
func IsValidChannel(ch Channel) bool {
	switch ch {
	case ChannelDashboard, ChannelEmail, ChannelWebhook, ChannelSMS:
		return true
	default:
		return false
	}
}

// Metadata carries alert context for downstream consumers. Well-known
// keys are typed through the Meta* constants; values marshal as JSON.
type Metadata map[string]any

// Well-known metadata keys written by the engine and the monitor.
const (
	MetaMetric        = "metric"
	MetaCurrentValue  = "currentValue"
	MetaExpectedValue = "expectedValue"
	MetaDeviationPct  = "deviationPct"
	MetaEntityID      = "entityId"
	MetaProbability   = "probability"
	MetaRuleID        = "ruleId"
)

// Alert is one raised condition moving through the lifecycle
// active -> acknowledged -> resolved, with active -> resolved and
// active -> dismissed as the other legal transitions.
type Alert struct {
	ID             string      `json:"id"`
	Kind           AlertKind   `json:"kind"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	Source         string      `json:"source"`
	Metadata       Metadata    `json:"metadata,omitempty"`
	Channels       []Channel   `json:"channels"`
	CreatedAt      time.Time   `json:"createdAt"`
	AcknowledgedAt *time.Time  `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string      `json:"acknowledgedBy,omitempty"`
	ResolvedAt     *time.Time  `json:"resolvedAt,omitempty"`
	ResolvedBy     string      `json:"resolvedBy,omitempty"`
}

// Clone returns a deep copy so engine internals never leak to callers.
func (a *Alert) Clone() *Alert {
	cp := *a
	if a.Metadata != nil {
		cp.Metadata = make(Metadata, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	if a.Channels != nil {
		cp.Channels = append([]Channel(nil), a.Channels...)
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		cp.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// RuleOperator compares a metric value against a rule threshold.
type RuleOperator string

const (
	OpGreaterThan  RuleOperator = "gt"
	OpGreaterEqual RuleOperator = "gte"
	OpLessThan     RuleOperator = "lt"
	OpLessEqual    RuleOperator = "lte"
	OpEqual        RuleOperator = "eq"
)

// RuleCondition is one metric comparison inside an alert rule.
type RuleCondition struct {
	Metric    string       `json:"metric"`
	Operator  RuleOperator `json:"operator"`
	Threshold float64      `json:"threshold"`
}

// AlertRule fires an alert when every condition matches and the cooldown
// window since the last fire has elapsed.
type AlertRule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Conditions      []RuleCondition `json:"conditions"`
	Severity        Severity        `json:"severity"`
	Channels        []Channel       `json:"channels,omitempty"`
	CooldownMinutes int             `json:"cooldownMinutes"`
	Enabled         bool            `json:"enabled"`
}

// AlertStatistics is a point-in-time census of the alert table.
type AlertStatistics struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	BySeverity map[string]int `json:"bySeverity"`
	ByKind     map[string]int `json:"byKind"`
}

// ListFilter narrows alert listings. Zero values mean "any"; Limit 0
// means no limit.
type ListFilter struct {
	Status   AlertStatus
	Severity Severity
	Kind     AlertKind
	Limit    int
}
