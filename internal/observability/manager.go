package observability

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/livyflow/observer/internal/alert"
	"github.com/livyflow/observer/internal/logagg"
	"github.com/livyflow/observer/internal/metrics"
	"github.com/livyflow/observer/internal/synthetic"
)

const (
	healthCheckInterval = 5 * time.Minute
	insightsInterval    = 15 * time.Minute
)

// Manager owns the lifecycle of every observability subsystem and starts
// them in dependency order.
type Manager struct {
	Collector *metrics.Collector
	Sampler   *metrics.SystemSampler
	Alerts    *alert.Manager
	Synthetic *synthetic.Monitor
	Logs      *logagg.Aggregator
	Health    *HealthChecker

	mu          sync.Mutex
	initialized bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewManager(collector *metrics.Collector, sampler *metrics.SystemSampler, alerts *alert.Manager, syn *synthetic.Monitor, logs *logagg.Aggregator) *Manager {
	m := &Manager{
		Collector: collector,
		Sampler:   sampler,
		Alerts:    alerts,
		Synthetic: syn,
		Logs:      logs,
		Health:    NewHealthChecker(),
	}
	m.registerComponentChecks()
	return m
}

func (m *Manager) registerComponentChecks() {
	m.Health.Register("metrics", func() CheckResult {
		summary := m.Collector.Summary()
		return CheckResult{
			Status: StatusHealthy,
			Details: map[string]interface{}{
				"counters":   len(summary.Counters),
				"gauges":     len(summary.Gauges),
				"histograms": len(summary.Histograms),
			},
		}
	}, time.Minute)

	m.Health.Register("alerting", func() CheckResult {
		status := StatusHealthy
		if !m.Alerts.Running() {
			status = StatusUnhealthy
		}
		return CheckResult{
			Status:  status,
			Details: map[string]interface{}{"active_alerts": len(m.Alerts.ActiveAlerts())},
		}
	}, time.Minute)

	m.Health.Register("synthetic_monitoring", func() CheckResult {
		overall := m.Synthetic.Overall()
		status := StatusHealthy
		if !overall.Running {
			status = StatusDegraded
		}
		return CheckResult{
			Status: status,
			Details: map[string]interface{}{
				"total_checks": overall.TotalChecks,
				"success_rate": overall.OverallSuccessRate,
			},
		}
	}, time.Minute)

	m.Health.Register("log_aggregation", func() CheckResult {
		status := StatusHealthy
		if !m.Logs.Running() {
			status = StatusDegraded
		}
		return CheckResult{Status: status}
	}, time.Minute)
}

// Initialize starts every subsystem: metrics sampling, then alerting, then
// synthetic monitoring, then log aggregation. Idempotent.
func (m *Manager) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return
	}

	log.Println("initializing observability system")
	var ctx context.Context
	ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Sampler.Run(ctx)
	}()
	m.Alerts.Start()
	m.Synthetic.Start()
	m.Logs.Start()

	m.wg.Add(2)
	go m.healthLoop(ctx)
	go m.insightsLoop(ctx)

	m.initialized = true
	log.Println("observability system initialized")
}

// Shutdown stops subsystems in reverse order. Errors are logged, never
// propagated; shutdown always completes. Idempotent.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return
	}

	log.Println("shutting down observability system")
	m.Logs.Stop()
	m.Synthetic.Stop()
	m.Alerts.Stop()
	m.cancel()
	m.wg.Wait()

	m.initialized = false
	log.Println("observability system shutdown completed")
}

func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Components reports each subsystem's running state.
func (m *Manager) Components() map[string]bool {
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()

	return map[string]bool{
		"metrics":              true,
		"alerting":             initialized && m.Alerts.Running(),
		"synthetic_monitoring": m.Synthetic.Running(),
		"log_aggregation":      m.Logs.Running(),
	}
}

func (m *Manager) healthLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := m.Health.Run()
			if report.Status != StatusHealthy {
				log.Printf("health check status %s", report.Status)
			}
		}
	}
}

func (m *Manager) insightsLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(insightsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, insight := range m.metricsInsights() {
				log.Printf("metrics insight: %s", insight)
			}
		}
	}
}

// metricsInsights derives operational warnings from the current metrics
// summary: elevated error rates, slow p95 latency, resource pressure.
func (m *Manager) metricsInsights() []string {
	summary := m.Collector.Summary()
	var insights []string

	var totalRequests, totalErrors int64
	for key, count := range summary.Counters {
		if strings.Contains(key, "http_requests_total") {
			totalRequests += count
		}
		if strings.Contains(key, "http_errors_total") {
			totalErrors += count
		}
	}
	if totalRequests > 0 {
		errorRate := float64(totalErrors) / float64(totalRequests) * 100
		if errorRate > 5 {
			insights = append(insights, fmt.Sprintf("error rate is %.2f%%", errorRate))
		}
	}

	for key, h := range summary.Histograms {
		if metrics.BaseName(key) == "http_request_duration_ms" && h.P95 > 5000 {
			insights = append(insights, fmt.Sprintf("95th percentile response time is %.0fms", h.P95))
		}
	}

	if cpu := summary.Gauges["system_cpu_percent"]; cpu > 80 {
		insights = append(insights, fmt.Sprintf("CPU usage is %.1f%%", cpu))
	}
	if mem := summary.Gauges["system_memory_percent"]; mem > 85 {
		insights = append(insights, fmt.Sprintf("memory usage is %.1f%%", mem))
	}
	return insights
}
