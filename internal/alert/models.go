package alert

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusSuppressed   Status = "suppressed"
)

type Condition string

const (
	ConditionGT      Condition = "gt"
	ConditionLT      Condition = "lt"
	ConditionEQ      Condition = "eq"
	ConditionAnomaly Condition = "anomaly"
)

// Rule defines when an alert fires. For ConditionAnomaly the threshold is a
// z-score sensitivity rather than an absolute value.
type Rule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Metric           string            `json:"metric"`
	Condition        Condition         `json:"condition"`
	Threshold        float64           `json:"threshold"`
	Severity         Severity          `json:"severity"`
	DurationMinutes  int               `json:"duration_minutes"`
	CooldownMinutes  int               `json:"cooldown_minutes"`
	Tags             map[string]string `json:"tags,omitempty"`
	EscalationPolicy string            `json:"escalation_policy"`
	Enabled          bool              `json:"enabled"`
}

// Validate checks the fields that would make a rule unevaluatable.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Metric == "" {
		return fmt.Errorf("rule metric is required")
	}
	switch r.Condition {
	case ConditionGT, ConditionLT, ConditionEQ, ConditionAnomaly:
	default:
		return fmt.Errorf("invalid condition: %s", r.Condition)
	}
	switch r.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return fmt.Errorf("invalid severity: %s", r.Severity)
	}
	return nil
}

// Alert is a stateful instance of a rule's condition being met. At most one
// active alert exists per rule at any time.
type Alert struct {
	ID             string                 `json:"id"`
	RuleID         string                 `json:"rule_id"`
	RuleName       string                 `json:"rule_name"`
	Message        string                 `json:"message"`
	Severity       Severity               `json:"severity"`
	Status         Status                 `json:"status"`
	MetricValue    float64                `json:"metric_value"`
	Threshold      float64                `json:"threshold"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	AcknowledgedBy string                 `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time             `json:"resolved_at,omitempty"`
	Context        map[string]interface{} `json:"context,omitempty"`
}

// EscalationStep sends to every configured channel for every recipient after
// its delay, provided the owning alert is still active.
type EscalationStep struct {
	Delay      time.Duration `json:"delay"`
	Channels   []string      `json:"channels"`
	Recipients []string      `json:"recipients"`
}

// EscalationPolicy is an ordered sequence of steps; execution halts as soon
// as the alert leaves the active state.
type EscalationPolicy struct {
	Name  string           `json:"name"`
	Steps []EscalationStep `json:"steps"`
}

// SuppressionRule silences alerts matching a severity allow-list and/or an
// exact tag match. Suppressed alerts are recorded but never escalated.
type SuppressionRule struct {
	Severities []Severity        `json:"severities,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Reason     string            `json:"reason"`
}

func (s SuppressionRule) matches(a *Alert) bool {
	if len(s.Severities) > 0 {
		found := false
		for _, sev := range s.Severities {
			if a.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(s.Tags) > 0 {
		tags, _ := a.Context["tags"].(map[string]string)
		for k, v := range s.Tags {
			if tags[k] != v {
				return false
			}
		}
	}
	return true
}

// Summary is the aggregate view exposed by the API.
type Summary struct {
	ActiveAlerts       int              `json:"active_alerts"`
	SeverityBreakdown  map[Severity]int `json:"severity_breakdown"`
	TotalRules         int              `json:"total_rules"`
	EnabledRules       int              `json:"enabled_rules"`
	EscalationPolicies int              `json:"escalation_policies"`
	Channels           int              `json:"channels"`
}
