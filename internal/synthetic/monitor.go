package synthetic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livyflow/observer/internal/alert"
	"github.com/livyflow/observer/internal/metrics"
)

const (
	// resultWindow bounds retained results per check; oldest evicted first.
	resultWindow = 1000

	defaultTimeout      = 30 * time.Second
	defaultInterval     = 5 * time.Minute
	checkErrorInterval  = time.Minute
	journeyErrorInterval = 5 * time.Minute
)

// Monitor schedules synthetic checks and user journeys against the service's
// own HTTP surface, feeding results back into metrics and alerting.
type Monitor struct {
	baseURL   string
	client    *http.Client
	collector *metrics.Collector
	alerts    *alert.Manager

	mu       sync.RWMutex
	checks   map[string]*Check
	journeys map[string]*Journey
	results  map[string][]*Result
	loops    map[string]bool
	running  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(baseURL string, collector *metrics.Collector, alerts *alert.Manager) *Monitor {
	return &Monitor{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{},
		collector: collector,
		alerts:    alerts,
		checks:    make(map[string]*Check),
		journeys:  make(map[string]*Journey),
		results:   make(map[string][]*Result),
		loops:     make(map[string]bool),
	}
}

// AddCheck registers a check; re-adding an id replaces the definition, which
// the running loop picks up on its next iteration.
func (m *Monitor) AddCheck(c Check) {
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.ExpectedStatus == 0 {
		c.ExpectedStatus = http.StatusOK
	}
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}

	m.mu.Lock()
	m.checks[c.ID] = &c
	running := m.running && c.Enabled && !m.loops[c.ID]
	if running {
		m.loops[c.ID] = true
	}
	m.mu.Unlock()

	if running {
		m.wg.Add(1)
		go m.checkLoop(m.ctx, c.ID)
	}
}

// AddJourney registers a journey; re-adding an id replaces it.
func (m *Monitor) AddJourney(j Journey) {
	if j.Timeout == 0 {
		j.Timeout = 2 * time.Minute
	}
	if j.Interval == 0 {
		j.Interval = 15 * time.Minute
	}

	m.mu.Lock()
	m.journeys[j.ID] = &j
	running := m.running && j.Enabled && !m.loops[j.ID]
	if running {
		m.loops[j.ID] = true
	}
	m.mu.Unlock()

	if running {
		m.wg.Add(1)
		go m.journeyLoop(m.ctx, j.ID)
	}
}

// Start launches one loop per enabled check and journey. Idempotent.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(context.Background())

	var checkIDs, journeyIDs []string
	for id, c := range m.checks {
		if c.Enabled {
			checkIDs = append(checkIDs, id)
			m.loops[id] = true
		}
	}
	for id, j := range m.journeys {
		if j.Enabled {
			journeyIDs = append(journeyIDs, id)
			m.loops[id] = true
		}
	}
	ctx := m.ctx
	m.mu.Unlock()

	for _, id := range checkIDs {
		m.wg.Add(1)
		go m.checkLoop(ctx, id)
	}
	for _, id := range journeyIDs {
		m.wg.Add(1)
		go m.journeyLoop(ctx, id)
	}
	log.Printf("synthetic monitor started with %d loops", len(checkIDs)+len(journeyIDs))
}

// Stop signals every loop and waits for them to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.loops = make(map[string]bool)
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	log.Println("synthetic monitor stopped")
}

// Running reports whether the monitoring loops are active.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) checkLoop(ctx context.Context, id string) {
	defer m.wg.Done()
	for {
		delay := checkErrorInterval
		m.mu.RLock()
		check, ok := m.checks[id]
		var c Check
		if ok {
			c = *check
		}
		m.mu.RUnlock()
		if !ok {
			return
		}

		if c.Enabled {
			result := m.executeCheck(&c)
			m.storeResult(id, result)
			m.processResult(result, c.Tags["critical"] == "true")
			delay = c.Interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (m *Monitor) journeyLoop(ctx context.Context, id string) {
	defer m.wg.Done()
	for {
		delay := journeyErrorInterval
		m.mu.RLock()
		journey, ok := m.journeys[id]
		var j Journey
		if ok {
			j = *journey
		}
		m.mu.RUnlock()
		if !ok {
			return
		}

		if j.Enabled {
			result := m.executeJourney(&j)
			m.storeResult(id, result)
			m.processResult(result, j.Critical)
			delay = j.Interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// RunCheck executes a registered check or journey once, outside its schedule.
func (m *Monitor) RunCheck(id string) (*Result, error) {
	m.mu.RLock()
	check, haveCheck := m.checks[id]
	journey, haveJourney := m.journeys[id]
	var c Check
	var j Journey
	if haveCheck {
		c = *check
	}
	if haveJourney {
		j = *journey
	}
	m.mu.RUnlock()

	switch {
	case haveCheck:
		result := m.executeCheck(&c)
		m.storeResult(id, result)
		m.processResult(result, c.Tags["critical"] == "true")
		return result, nil
	case haveJourney:
		result := m.executeJourney(&j)
		m.storeResult(id, result)
		m.processResult(result, j.Critical)
		return result, nil
	default:
		return nil, fmt.Errorf("check not found: %s", id)
	}
}

func (m *Monitor) executeCheck(c *Check) *Result {
	start := time.Now()
	result := &Result{
		CheckID:   c.ID,
		CheckName: c.Name,
		Timestamp: start,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(c.Body) > 0 {
		encoded, err := json.Marshal(c.Body)
		if err != nil {
			result.Status = StatusError
			result.ErrorMessage = fmt.Sprintf("encode body: %v", err)
			return result
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, m.resolveURL(c.URL), bodyReader)
	if err != nil {
		result.Status = StatusError
		result.ErrorMessage = err.Error()
		return result
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	elapsed := time.Since(start)
	result.ResponseTimeMS = float64(elapsed) / float64(time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Status = StatusTimeout
			result.ErrorMessage = fmt.Sprintf("request timed out after %s", c.Timeout)
		} else {
			result.Status = StatusError
			result.ErrorMessage = err.Error()
		}
		return result
	}
	defer resp.Body.Close()

	content, _ := io.ReadAll(resp.Body)
	result.ResponseStatus = resp.StatusCode
	result.ResponseSize = len(content)

	switch {
	case resp.StatusCode != c.ExpectedStatus:
		result.Status = StatusFailure
		result.ErrorMessage = fmt.Sprintf("expected status %d, got %d", c.ExpectedStatus, resp.StatusCode)
	case c.ExpectedResponseTime > 0 && elapsed > c.ExpectedResponseTime:
		result.Status = StatusFailure
		result.ErrorMessage = fmt.Sprintf("response time %s exceeded limit %s", elapsed.Round(time.Millisecond), c.ExpectedResponseTime)
	case c.ExpectedContent != "" && !strings.Contains(string(content), c.ExpectedContent):
		result.Status = StatusFailure
		result.ErrorMessage = fmt.Sprintf("expected content %q not found", c.ExpectedContent)
	default:
		result.Status = StatusSuccess
	}
	return result
}

func (m *Monitor) executeJourney(j *Journey) *Result {
	start := time.Now()
	result := &Result{
		CheckID:   j.ID,
		CheckName: j.Name,
		Timestamp: start,
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.Timeout)
	defer cancel()

	// Steps share a session via a cookie jar.
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, Transport: m.client.Transport}

	for _, step := range j.Steps {
		stepStart := time.Now()
		expected := step.ExpectedStatus
		if expected == 0 {
			expected = http.StatusOK
		}

		var bodyReader io.Reader
		if len(step.Body) > 0 {
			encoded, err := json.Marshal(step.Body)
			if err != nil {
				result.Status = StatusError
				result.ErrorMessage = fmt.Sprintf("step %q: encode body: %v", step.Name, err)
				return result
			}
			bodyReader = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, step.Method, m.resolveURL(step.URL), bodyReader)
		if err != nil {
			result.Status = StatusError
			result.ErrorMessage = fmt.Sprintf("step %q: %v", step.Name, err)
			return result
		}
		if bodyReader != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range step.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			result.ResponseTimeMS = float64(time.Since(start)) / float64(time.Millisecond)
			if errors.Is(err, context.DeadlineExceeded) {
				result.Status = StatusTimeout
				result.ErrorMessage = fmt.Sprintf("journey timed out after %s", j.Timeout)
			} else {
				result.Status = StatusError
				result.ErrorMessage = fmt.Sprintf("step %q: %v", step.Name, err)
			}
			return result
		}
		content, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		stepOK := resp.StatusCode == expected &&
			(step.ExpectedContent == "" || strings.Contains(string(content), step.ExpectedContent))
		result.Steps = append(result.Steps, StepResult{
			Name:           step.Name,
			Status:         resp.StatusCode,
			ResponseTimeMS: float64(time.Since(stepStart)) / float64(time.Millisecond),
			Success:        stepOK,
		})

		if !stepOK {
			result.ResponseTimeMS = float64(time.Since(start)) / float64(time.Millisecond)
			result.ResponseStatus = resp.StatusCode
			result.ResponseSize = len(content)
			result.Status = StatusFailure
			if resp.StatusCode != expected {
				result.ErrorMessage = fmt.Sprintf("step %q failed: expected %d, got %d", step.Name, expected, resp.StatusCode)
			} else {
				result.ErrorMessage = fmt.Sprintf("step %q failed: expected content not found", step.Name)
			}
			return result
		}
	}

	result.ResponseTimeMS = float64(time.Since(start)) / float64(time.Millisecond)
	result.ResponseStatus = http.StatusOK
	result.Status = StatusSuccess
	return result
}

func (m *Monitor) resolveURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return m.baseURL + u
}

func (m *Monitor) storeResult(id string, r *Result) {
	m.mu.Lock()
	ring := append(m.results[id], r)
	if len(ring) > resultWindow {
		ring = ring[1:]
	}
	m.results[id] = ring
	m.mu.Unlock()
}

// processResult converts a run into metric emissions and, on any non-success
// status, a directly recorded alert.
func (m *Monitor) processResult(r *Result, critical bool) {
	m.collector.IncrementCounter("synthetic_checks_total", 1, map[string]string{
		"check_id": r.CheckID,
		"status":   string(r.Status),
	})
	m.collector.RecordHistogram("synthetic_response_time_ms", r.ResponseTimeMS, map[string]string{
		"check_id": r.CheckID,
	})

	if r.Status == StatusSuccess {
		return
	}

	severity := alert.SeverityMedium
	switch {
	case critical:
		severity = alert.SeverityCritical
	case r.Status == StatusTimeout:
		severity = alert.SeverityHigh
	}

	now := time.Now()
	m.alerts.Record(&alert.Alert{
		ID:          fmt.Sprintf("synthetic_%s", uuid.NewString()),
		RuleID:      fmt.Sprintf("synthetic_%s", r.CheckID),
		RuleName:    fmt.Sprintf("Synthetic Check Failure: %s", r.CheckName),
		Message:     fmt.Sprintf("Synthetic check %q failed: %s", r.CheckName, r.ErrorMessage),
		Severity:    severity,
		Status:      alert.StatusActive,
		MetricValue: 0,
		Threshold:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Context: map[string]interface{}{
			"check_id":         r.CheckID,
			"check_type":       "synthetic",
			"response_time_ms": r.ResponseTimeMS,
			"response_status":  r.ResponseStatus,
			"failure_reason":   r.ErrorMessage,
		},
	})
}

// CheckSummaryFor rolls up a check's ten most recent results.
func (m *Monitor) CheckSummaryFor(id string) (CheckSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := m.results[id]
	if len(results) == 0 {
		return CheckSummary{}, false
	}

	recent := results
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	success := 0
	var totalTime float64
	for _, r := range recent {
		if r.Status == StatusSuccess {
			success++
		}
		totalTime += r.ResponseTimeMS
	}
	latest := results[len(results)-1]

	return CheckSummary{
		Status:            latest.Status,
		SuccessRate:       float64(success) / float64(len(recent)) * 100,
		AvgResponseTimeMS: totalTime / float64(len(recent)),
		LastCheck:         latest.Timestamp,
		LastError:         latest.ErrorMessage,
		TotalChecks:       len(results),
	}, true
}

// Results returns the most recent results first for one check, up to limit.
func (m *Monitor) Results(id string, limit int) []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ring := m.results[id]
	n := len(ring)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Result, 0, n)
	for i := len(ring) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *ring[i])
	}
	return out
}

// Overall summarizes every registered check and journey.
func (m *Monitor) Overall() OverallStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	for _, c := range m.checks {
		if c.Enabled {
			active++
		}
	}
	for _, j := range m.journeys {
		if j.Enabled {
			active++
		}
	}

	var rates []float64
	for _, ring := range m.results {
		if len(ring) == 0 {
			continue
		}
		recent := ring
		if len(recent) > 10 {
			recent = recent[len(recent)-10:]
		}
		success := 0
		for _, r := range recent {
			if r.Status == StatusSuccess {
				success++
			}
		}
		rates = append(rates, float64(success)/float64(len(recent))*100)
	}
	var overall float64
	for _, r := range rates {
		overall += r
	}
	if len(rates) > 0 {
		overall /= float64(len(rates))
	}

	return OverallStatus{
		TotalChecks:        len(m.checks) + len(m.journeys),
		ActiveChecks:       active,
		OverallSuccessRate: overall,
		Running:            m.running,
		LastUpdated:        time.Now(),
	}
}

// Checks returns every registered check definition.
func (m *Monitor) Checks() []Check {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		out = append(out, *c)
	}
	return out
}

// Journeys returns every registered journey definition.
func (m *Monitor) Journeys() []Journey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Journey, 0, len(m.journeys))
	for _, j := range m.journeys {
		out = append(out, *j)
	}
	return out
}
