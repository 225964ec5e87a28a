package alert

import (
	"context"
	"log"
	"time"
)

// dispatchLocked starts an independent escalation task for a freshly created
// alert. The task is keyed by alert id so acknowledge/resolve can cancel it;
// it never blocks the evaluation cycle that spawned it.
func (m *Manager) dispatchLocked(a *Alert, policyName string) {
	policy, ok := m.policies[policyName]
	if !ok {
		policy = m.policies["default"]
	}
	if policy == nil || len(policy.Steps) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.escalations[a.ID] = cancel

	steps := make([]EscalationStep, len(policy.Steps))
	copy(steps, policy.Steps)

	m.escWg.Add(1)
	go m.executeEscalation(ctx, a.ID, steps)
}

func (m *Manager) executeEscalation(ctx context.Context, alertID string, steps []EscalationStep) {
	defer m.escWg.Done()
	defer m.clearEscalation(alertID)

	for _, step := range steps {
		// Re-checked before and after the delay: the whole policy aborts
		// once the alert leaves the active state.
		if m.alertStatus(alertID) != StatusActive {
			return
		}
		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(step.Delay):
			}
		}
		if m.alertStatus(alertID) != StatusActive {
			return
		}

		snapshot, ok := m.GetAlert(alertID)
		if !ok {
			return
		}

		for _, name := range step.Channels {
			ch := m.channel(name)
			if ch == nil {
				continue
			}
			if ch.Send(&snapshot, step.Recipients) {
				log.Printf("alert %s sent via %s to %v", alertID, name, step.Recipients)
				m.collector.IncrementCounter("alerts_sent_total", 1, map[string]string{"channel": name})
			} else {
				log.Printf("alert %s: send via %s failed", alertID, name)
				m.collector.IncrementCounter("alert_send_failures_total", 1, map[string]string{"channel": name})
			}
		}
	}
}

func (m *Manager) alertStatus(alertID string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.active[alertID]; ok {
		return a.Status
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == alertID {
			return m.history[i].Status
		}
	}
	return ""
}

func (m *Manager) channel(name string) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

func (m *Manager) clearEscalation(alertID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.escalations[alertID]; ok {
		cancel()
		delete(m.escalations, alertID)
	}
}
