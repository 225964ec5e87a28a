package observability

import (
	"fmt"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is one health check's outcome.
type CheckResult struct {
	Status    Status                 `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type CheckFunc func() CheckResult

// Report aggregates every registered check.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type registeredCheck struct {
	fn       CheckFunc
	interval time.Duration
	lastRun  time.Time
	last     CheckResult
}

// HealthChecker runs registered checks on demand, caching each result for
// the check's interval so frequent probes stay cheap.
type HealthChecker struct {
	mu     sync.Mutex
	checks map[string]*registeredCheck
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]*registeredCheck)}
}

func (h *HealthChecker) Register(name string, fn CheckFunc, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	h.mu.Lock()
	h.checks[name] = &registeredCheck{fn: fn, interval: interval}
	h.mu.Unlock()
}

// Run evaluates every check, reusing cached results that are still fresh.
// Any unhealthy check makes the report unhealthy; any non-healthy check
// makes it at least degraded.
func (h *HealthChecker) Run() Report {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	report := Report{
		Status:    StatusHealthy,
		Timestamp: now,
		Checks:    make(map[string]CheckResult, len(h.checks)),
	}

	for name, check := range h.checks {
		if !check.lastRun.IsZero() && now.Sub(check.lastRun) < check.interval {
			report.Checks[name] = check.last
			report.Status = worse(report.Status, check.last.Status)
			continue
		}

		result := runCheck(check.fn)
		result.Timestamp = now
		check.last = result
		check.lastRun = now

		report.Checks[name] = result
		report.Status = worse(report.Status, result.Status)
	}
	return report
}

func runCheck(fn CheckFunc) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{
				Status: StatusUnhealthy,
				Error:  fmt.Sprintf("check panicked: %v", r),
			}
		}
	}()
	result = fn()
	if result.Status == "" {
		result.Status = StatusHealthy
	}
	return result
}

func worse(current, candidate Status) Status {
	if current == StatusUnhealthy || candidate == StatusUnhealthy {
		return StatusUnhealthy
	}
	if current == StatusDegraded || (candidate != StatusHealthy && candidate != "") {
		return StatusDegraded
	}
	return StatusHealthy
}
