package alert

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livyflow/observer/internal/anomaly"
	"github.com/livyflow/observer/internal/metrics"
)

const (
	evaluationInterval      = 30 * time.Second
	evaluationErrorInterval = 60 * time.Second
	cleanupInterval         = time.Hour

	historySize      = 10000
	historyRetention = 7 * 24 * time.Hour

	suppressionWindow = time.Hour
	// defaultMaxAlertsPerHour caps created alerts per rule inside the
	// suppression window; overridable via SetMaxAlertsPerHour.
	defaultMaxAlertsPerHour = 10

	floatEqEpsilon = 0.001
)

// Manager owns alert rules, the active-alert set, the bounded history ring
// and the background evaluation, escalation and cleanup machinery.
type Manager struct {
	collector *metrics.Collector
	detector  *anomaly.Detector

	mu          sync.RWMutex
	rules       map[string]*Rule
	active      map[string]*Alert
	history     []*Alert
	channels    map[string]Channel
	policies    map[string]*EscalationPolicy
	suppression []SuppressionRule
	alertTimes  map[string][]time.Time
	escalations map[string]context.CancelFunc

	maxAlertsPerHour int

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	escWg   sync.WaitGroup
	running bool
}

func NewManager(collector *metrics.Collector, detector *anomaly.Detector) *Manager {
	m := &Manager{
		collector:        collector,
		detector:         detector,
		rules:            make(map[string]*Rule),
		active:           make(map[string]*Alert),
		channels:         make(map[string]Channel),
		policies:         make(map[string]*EscalationPolicy),
		alertTimes:       make(map[string][]time.Time),
		escalations:      make(map[string]context.CancelFunc),
		maxAlertsPerHour: defaultMaxAlertsPerHour,
	}
	m.setupDefaultPolicies()
	return m
}

func (m *Manager) setupDefaultPolicies() {
	m.policies["default"] = &EscalationPolicy{
		Name: "default",
		Steps: []EscalationStep{
			{Delay: 0, Channels: []string{"email"}, Recipients: []string{"oncall@livyflow.com"}},
			{Delay: 15 * time.Minute, Channels: []string{"slack"}, Recipients: []string{"#alerts"}},
			{Delay: 30 * time.Minute, Channels: []string{"email", "slack"}, Recipients: []string{"manager@livyflow.com"}},
		},
	}
	m.policies["critical"] = &EscalationPolicy{
		Name: "critical",
		Steps: []EscalationStep{
			{Delay: 0, Channels: []string{"email", "slack"}, Recipients: []string{"oncall@livyflow.com", "#critical-alerts"}},
			{Delay: 5 * time.Minute, Channels: []string{"email"}, Recipients: []string{"manager@livyflow.com"}},
			{Delay: 15 * time.Minute, Channels: []string{"webhook"}, Recipients: []string{"pager_service"}},
		},
	}
}

// Start launches the evaluation and cleanup loops. Idempotent.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(2)
	go m.evaluationLoop(ctx)
	go m.cleanupLoop(ctx)
	log.Println("alert manager started")
}

// Stop cancels the loops and every running escalation, then waits for them.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	for id, esc := range m.escalations {
		esc()
		delete(m.escalations, id)
	}
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.escWg.Wait()
	log.Println("alert manager stopped")
}

// Running reports whether the background loops are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) evaluationLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		delay := evaluationInterval
		if err := m.EvaluateAll(); err != nil {
			log.Printf("alert evaluation: %v", err)
			delay = evaluationErrorInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(cleanupInterval):
			m.pruneHistory(time.Now())
		}
	}
}

// EvaluateAll runs one evaluation cycle over every enabled rule. A single
// rule's failure is logged and does not stop the cycle.
func (m *Manager) EvaluateAll() error {
	snapshot := m.collector.Summary()
	now := time.Now()

	m.mu.RLock()
	rules := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if r.Enabled {
			rules = append(rules, *r)
		}
	}
	m.mu.RUnlock()

	for i := range rules {
		if err := m.evaluateRule(&rules[i], snapshot, now); err != nil {
			log.Printf("alert evaluation: rule %s: %v", rules[i].ID, err)
		}
	}
	return nil
}

func (m *Manager) evaluateRule(rule *Rule, snapshot metrics.Summary, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	value, ok := metricValue(rule.Metric, snapshot)
	if !ok {
		return nil
	}

	// Keeps anomaly baselines warm regardless of the rule's condition type.
	m.detector.AddValue(rule.Metric, value, now)

	met := m.checkCondition(rule, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.activeForRuleLocked(rule.ID)

	if met {
		if existing != nil {
			existing.MetricValue = value
			existing.UpdatedAt = now
			return nil
		}
		if m.cooldownActiveLocked(rule, now) {
			return nil
		}
		a := m.createAlertLocked(rule, value, now)
		if m.shouldSuppressLocked(a, now) {
			return nil
		}
		m.dispatchLocked(a, rule.EscalationPolicy)
		return nil
	}

	if existing != nil && existing.Status == StatusActive {
		m.resolveLocked(existing, now, "")
	}
	return nil
}

// metricValue resolves a rule's target metric from a snapshot: gauges and
// counters directly, histograms by their window average.
func metricValue(name string, s metrics.Summary) (float64, bool) {
	if v, ok := s.Gauges[name]; ok {
		return v, true
	}
	if v, ok := s.Counters[name]; ok {
		return float64(v), true
	}
	if h, ok := s.Histograms[name]; ok {
		return h.Avg, true
	}
	return 0, false
}

func (m *Manager) checkCondition(rule *Rule, value float64) bool {
	switch rule.Condition {
	case ConditionGT:
		return value > rule.Threshold
	case ConditionLT:
		return value < rule.Threshold
	case ConditionEQ:
		return math.Abs(value-rule.Threshold) < floatEqEpsilon
	case ConditionAnomaly:
		return m.detector.IsAnomaly(rule.Metric, value, rule.Threshold)
	default:
		return false
	}
}

func (m *Manager) activeForRuleLocked(ruleID string) *Alert {
	for _, a := range m.active {
		if a.RuleID == ruleID && a.Status == StatusActive {
			return a
		}
	}
	return nil
}

// cooldownActiveLocked reports whether any alert for the rule was created
// within the rule's cooldown window.
func (m *Manager) cooldownActiveLocked(rule *Rule, now time.Time) bool {
	if rule.CooldownMinutes <= 0 {
		return false
	}
	cutoff := now.Add(-time.Duration(rule.CooldownMinutes) * time.Minute)
	for i := len(m.history) - 1; i >= 0; i-- {
		a := m.history[i]
		if a.CreatedAt.Before(cutoff) {
			break
		}
		if a.RuleID == rule.ID {
			return true
		}
	}
	return false
}

func (m *Manager) createAlertLocked(rule *Rule, value float64, now time.Time) *Alert {
	a := &Alert{
		ID:          fmt.Sprintf("alert_%s", uuid.NewString()),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Message:     fmt.Sprintf("%s - Current value: %v, Threshold: %v", rule.Description, value, rule.Threshold),
		Severity:    rule.Severity,
		Status:      StatusActive,
		MetricValue: value,
		Threshold:   rule.Threshold,
		CreatedAt:   now,
		UpdatedAt:   now,
		Context: map[string]interface{}{
			"metric":    rule.Metric,
			"condition": string(rule.Condition),
			"tags":      rule.Tags,
		},
	}
	m.active[a.ID] = a
	m.appendHistoryLocked(a)
	return a
}

// shouldSuppressLocked marks the alert suppressed when the rule exceeded the
// per-hour creation cap or a configured suppression rule matches.
func (m *Manager) shouldSuppressLocked(a *Alert, now time.Time) bool {
	cutoff := now.Add(-suppressionWindow)
	times := m.alertTimes[a.RuleID]
	for len(times) > 0 && times[0].Before(cutoff) {
		times = times[1:]
	}
	times = append(times, now)
	m.alertTimes[a.RuleID] = times

	if len(times) > m.maxAlertsPerHour {
		m.suppressLocked(a, "frequency_limit")
		return true
	}

	for _, rule := range m.suppression {
		if rule.matches(a) {
			reason := rule.Reason
			if reason == "" {
				reason = "custom_rule"
			}
			m.suppressLocked(a, reason)
			return true
		}
	}
	return false
}

func (m *Manager) suppressLocked(a *Alert, reason string) {
	a.Status = StatusSuppressed
	delete(m.active, a.ID)
	log.Printf("alert %s suppressed: %s (rule %s)", a.ID, reason, a.RuleID)
	m.collector.IncrementCounter("alerts_suppressed_total", 1, map[string]string{"reason": reason})
}

func (m *Manager) resolveLocked(a *Alert, now time.Time, by string) {
	a.Status = StatusResolved
	resolvedAt := now
	a.ResolvedAt = &resolvedAt
	a.UpdatedAt = now
	if by != "" {
		a.Context["resolved_by"] = by
	}
	delete(m.active, a.ID)

	if cancel, ok := m.escalations[a.ID]; ok {
		cancel()
		delete(m.escalations, a.ID)
	}
	m.collector.IncrementCounter("alerts_resolved_total", 1, nil)
}

func (m *Manager) appendHistoryLocked(a *Alert) {
	m.history = append(m.history, a)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}
}

// pruneHistory drops resolved and suppressed entries older than the retention
// window. Active and acknowledged alerts are never pruned this way.
func (m *Manager) pruneHistory(now time.Time) {
	cutoff := now.Add(-historyRetention)
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.history[:0]
	for _, a := range m.history {
		terminal := a.Status == StatusResolved || a.Status == StatusSuppressed
		if terminal && a.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	m.history = kept
}

// Record inserts an externally created alert (synthetic check failures, log
// spikes) into the active set and history.
func (m *Manager) Record(a *Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = fmt.Sprintf("alert_%s", uuid.NewString())
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.Status == StatusActive {
		m.active[a.ID] = a
	}
	m.appendHistoryLocked(a)
}

// Acknowledge marks an active alert acknowledged and cancels its escalation.
func (m *Manager) Acknowledge(alertID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[alertID]
	if !ok {
		return fmt.Errorf("alert not found: %s", alertID)
	}
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = userID
	a.UpdatedAt = time.Now()

	if cancel, ok := m.escalations[alertID]; ok {
		cancel()
		delete(m.escalations, alertID)
	}
	return nil
}

// Resolve marks an active or acknowledged alert resolved.
func (m *Manager) Resolve(alertID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[alertID]
	if !ok {
		return fmt.Errorf("alert not found: %s", alertID)
	}
	m.resolveLocked(a, time.Now(), userID)
	return nil
}

// Rule management.

func (m *Manager) AddRule(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[rule.ID]; exists {
		return fmt.Errorf("rule already exists: %s", rule.ID)
	}
	m.rules[rule.ID] = &rule
	return nil
}

func (m *Manager) UpdateRule(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[rule.ID]; !exists {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	m.rules[rule.ID] = &rule
	return nil
}

func (m *Manager) RemoveRule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[id]; !exists {
		return fmt.Errorf("rule not found: %s", id)
	}
	delete(m.rules, id)
	return nil
}

func (m *Manager) GetRule(id string) (Rule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

func (m *Manager) Rules() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, *r)
	}
	return rules
}

func (m *Manager) AddChannel(c Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[c.Name()] = c
}

func (m *Manager) AddPolicy(p EscalationPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.Name] = &p
}

func (m *Manager) AddSuppressionRule(r SuppressionRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppression = append(m.suppression, r)
}

// SetMaxAlertsPerHour overrides the per-rule suppression cap.
func (m *Manager) SetMaxAlertsPerHour(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.maxAlertsPerHour = n
	}
}

// Queries.

func (m *Manager) ActiveAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alerts := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		alerts = append(alerts, *a)
	}
	return alerts
}

// History returns the most recent alerts first, up to limit (0 = all).
func (m *Manager) History(limit int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	alerts := make([]Alert, 0, n)
	for i := len(m.history) - 1; i >= 0 && len(alerts) < n; i-- {
		alerts = append(alerts, *m.history[i])
	}
	return alerts
}

func (m *Manager) GetAlert(id string) (Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.active[id]; ok {
		return *a, true
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == id {
			return *m.history[i], true
		}
	}
	return Alert{}, false
}

func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	breakdown := make(map[Severity]int)
	for _, a := range m.active {
		breakdown[a.Severity]++
	}
	enabled := 0
	for _, r := range m.rules {
		if r.Enabled {
			enabled++
		}
	}
	return Summary{
		ActiveAlerts:       len(m.active),
		SeverityBreakdown:  breakdown,
		TotalRules:         len(m.rules),
		EnabledRules:       enabled,
		EscalationPolicies: len(m.policies),
		Channels:           len(m.channels),
	}
}

// DefaultRules is the baseline rule set installed at startup when no rules
// are configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:               "high_error_rate",
			Name:             "High Error Rate",
			Description:      "HTTP error rate is too high",
			Metric:           "http_errors_total",
			Condition:        ConditionGT,
			Threshold:        10,
			Severity:         SeverityHigh,
			DurationMinutes:  5,
			CooldownMinutes:  30,
			EscalationPolicy: "default",
			Enabled:          true,
		},
		{
			ID:               "slow_response_time",
			Name:             "Slow API Response Time",
			Description:      "API response time is above threshold",
			Metric:           "http_request_duration_ms",
			Condition:        ConditionGT,
			Threshold:        5000,
			Severity:         SeverityMedium,
			DurationMinutes:  10,
			CooldownMinutes:  30,
			EscalationPolicy: "default",
			Enabled:          true,
		},
		{
			ID:               "high_cpu_usage",
			Name:             "High CPU Usage",
			Description:      "System CPU usage is critically high",
			Metric:           "system_cpu_percent",
			Condition:        ConditionGT,
			Threshold:        85,
			Severity:         SeverityCritical,
			DurationMinutes:  3,
			CooldownMinutes:  30,
			EscalationPolicy: "critical",
			Enabled:          true,
		},
		{
			ID:               "high_memory_usage",
			Name:             "High Memory Usage",
			Description:      "System memory usage is too high",
			Metric:           "system_memory_percent",
			Condition:        ConditionGT,
			Threshold:        90,
			Severity:         SeverityHigh,
			DurationMinutes:  5,
			CooldownMinutes:  30,
			EscalationPolicy: "default",
			Enabled:          true,
		},
		{
			ID:               "request_volume_anomaly",
			Name:             "Request Volume Anomaly",
			Description:      "Unusual request volume detected",
			Metric:           "http_requests_total",
			Condition:        ConditionAnomaly,
			Threshold:        2.5,
			Severity:         SeverityMedium,
			DurationMinutes:  15,
			CooldownMinutes:  30,
			EscalationPolicy: "default",
			Enabled:          true,
		},
	}
}
