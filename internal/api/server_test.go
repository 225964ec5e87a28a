package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/livyflow/observer/internal/alert"
	"github.com/livyflow/observer/internal/anomaly"
	"github.com/livyflow/observer/internal/logagg"
	"github.com/livyflow/observer/internal/metrics"
	"github.com/livyflow/observer/internal/observability"
	"github.com/livyflow/observer/internal/synthetic"
)

func newTestServer(t *testing.T) (*Server, *observability.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	collector := metrics.NewCollector()
	sampler := metrics.NewSystemSampler(collector)
	alerts := alert.NewManager(collector, anomaly.NewDetector())
	syn := synthetic.NewMonitor("http://localhost:8080", collector, alerts)
	logs, err := logagg.NewAggregator(t.TempDir(), collector, alerts)
	if err != nil {
		t.Fatal(err)
	}
	obs := observability.NewManager(collector, sampler, alerts, syn, logs)
	return NewServer(obs), obs
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestLivenessAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health/live", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("liveness status = %d", w.Code)
	}
	if decodeBody(t, w)["status"] != "alive" {
		t.Errorf("liveness body = %s", w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] == nil || body["checks"] == nil || body["components"] == nil {
		t.Errorf("health body missing fields: %s", w.Body.String())
	}
}

func TestReadinessReflectsSubsystems(t *testing.T) {
	t.Run("not ready before initialization", func(t *testing.T) {
		s, _ := newTestServer(t)
		w := doJSON(t, s, http.MethodGet, "/health/ready", nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("readiness status = %d, want 503", w.Code)
		}
		if decodeBody(t, w)["status"] != "not_ready" {
			t.Errorf("readiness body = %s", w.Body.String())
		}
	})

	t.Run("ready once initialized", func(t *testing.T) {
		s, obs := newTestServer(t)
		obs.Initialize()
		defer obs.Shutdown()

		w := doJSON(t, s, http.MethodGet, "/health/ready", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("readiness status = %d, want 200 (%s)", w.Code, w.Body.String())
		}
	})
}

func TestRequestInstrumentation(t *testing.T) {
	s, obs := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health/live", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	if v, ok := obs.Collector.CounterValue("http_requests_total[endpoint=/health/live,method=GET]"); !ok || v != 1 {
		t.Errorf("request counter = %d (%v), want 1", v, ok)
	}
	if v, ok := obs.Collector.CounterValue("http_responses_total[endpoint=/health/live,method=GET,status=200]"); !ok || v != 1 {
		t.Errorf("response counter = %d (%v), want 1", v, ok)
	}

	doJSON(t, s, http.MethodGet, "/api/v1/alerts/nope", nil)
	if v, _ := obs.Collector.CounterValue("http_errors_total[endpoint=/api/v1/alerts/:id,method=GET,status=404]"); v != 1 {
		t.Errorf("error counter = %d, want 1", v)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	s, obs := newTestServer(t)
	obs.Collector.IncrementCounter("jobs_total", 3, map[string]string{"queue": "default"})

	w := doJSON(t, s, http.MethodGet, "/api/v1/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["counters"] == nil {
		t.Errorf("metrics body missing counters: %s", w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/metrics/prometheus", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("prometheus status = %d", w.Code)
	}
	text := w.Body.String()
	if !strings.Contains(text, "# TYPE jobs_total counter") {
		t.Errorf("prometheus exposition missing counter type line:\n%s", text)
	}
	if !strings.Contains(text, `jobs_total{queue="default"} 3`) {
		t.Errorf("prometheus exposition missing sample:\n%s", text)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/metrics/system", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("system metrics status = %d", w.Code)
	}
}

func TestSubmitClientMetrics(t *testing.T) {
	s, obs := newTestServer(t)

	t.Run("batch", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/metrics", map[string]interface{}{
			"type": "batch",
			"data": map[string]interface{}{
				"metrics": map[string]interface{}{
					"userActions": []interface{}{
						map[string]interface{}{"action": "click", "category": "nav"},
					},
					"apiCalls": []interface{}{
						map[string]interface{}{"url": "/api/orders", "duration": 250.0, "status": 500.0},
					},
				},
			},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("batch status = %d: %s", w.Code, w.Body.String())
		}
		if v, _ := obs.Collector.CounterValue("frontend_user_actions_total[action=click,category=nav]"); v != 1 {
			t.Errorf("user action counter = %d, want 1", v)
		}
		if v, _ := obs.Collector.CounterValue("frontend_api_errors_total[endpoint=/api/orders,status=500]"); v != 1 {
			t.Errorf("api error counter = %d, want 1", v)
		}
	})

	t.Run("error", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/metrics", map[string]interface{}{
			"type": "error",
			"data": map[string]interface{}{"type": "TypeError", "severity": "high"},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("error submission status = %d", w.Code)
		}
		if v, _ := obs.Collector.CounterValue("frontend_errors_total[error_type=TypeError,severity=high]"); v != 1 {
			t.Errorf("frontend error counter = %d, want 1", v)
		}
	})

	t.Run("business event", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/metrics", map[string]interface{}{
			"type": "business_event",
			"data": map[string]interface{}{"type": "signup", "userId": "u7"},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("business event status = %d", w.Code)
		}
		if v, _ := obs.Collector.CounterValue("business_events_signup_total[user_id=u7]"); v != 1 {
			t.Errorf("business event counter = %d, want 1", v)
		}
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/metrics", map[string]interface{}{
			"type": "bogus",
			"data": map[string]interface{}{},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("unknown type status = %d, want 400", w.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rule := map[string]interface{}{
		"id": "high_latency", "name": "High Latency", "metric": "http_request_duration_ms",
		"condition": "gt", "threshold": 1000, "severity": "high", "enabled": true,
	}

	if w := doJSON(t, s, http.MethodPost, "/api/v1/alerts/rules", rule); w.Code != http.StatusCreated {
		t.Fatalf("create rule status = %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/alerts/rules", rule); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate rule status = %d, want 400", w.Code)
	}

	invalid := map[string]interface{}{"id": "x", "name": "X", "condition": "gt", "severity": "high"}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/alerts/rules", invalid); w.Code != http.StatusBadRequest {
		t.Errorf("invalid rule status = %d, want 400", w.Code)
	}

	w := doJSON(t, s, http.MethodGet, "/api/v1/alerts/rules", nil)
	var rules []alert.Rule
	if err := json.Unmarshal(w.Body.Bytes(), &rules); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range rules {
		if r.ID == "high_latency" {
			found = true
		}
	}
	if !found {
		t.Error("created rule not listed")
	}

	rule["threshold"] = 2000
	if w := doJSON(t, s, http.MethodPut, "/api/v1/alerts/rules/high_latency", rule); w.Code != http.StatusOK {
		t.Errorf("update rule status = %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, s, http.MethodPut, "/api/v1/alerts/rules/missing", rule); w.Code != http.StatusNotFound {
		t.Errorf("update missing rule status = %d, want 404", w.Code)
	}

	if w := doJSON(t, s, http.MethodDelete, "/api/v1/alerts/rules/high_latency", nil); w.Code != http.StatusOK {
		t.Errorf("delete rule status = %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodDelete, "/api/v1/alerts/rules/high_latency", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete missing rule status = %d, want 404", w.Code)
	}
}

func TestAlertLifecycleEndpoints(t *testing.T) {
	s, obs := newTestServer(t)
	obs.Alerts.Record(&alert.Alert{
		ID: "a1", RuleID: "r1", RuleName: "Test", Message: "boom",
		Severity: alert.SeverityHigh, Status: alert.StatusActive,
	})

	w := doJSON(t, s, http.MethodGet, "/api/v1/alerts", nil)
	var active []alert.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &active); err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "a1" {
		t.Fatalf("active alerts = %+v", active)
	}

	if w := doJSON(t, s, http.MethodGet, "/api/v1/alerts/a1", nil); w.Code != http.StatusOK {
		t.Errorf("get alert status = %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/v1/alerts/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("get missing alert status = %d, want 404", w.Code)
	}

	if w := doJSON(t, s, http.MethodPost, "/api/v1/alerts/a1/acknowledge", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("acknowledge without user status = %d, want 400", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/alerts/a1/acknowledge", map[string]string{"user_id": "oncall"}); w.Code != http.StatusOK {
		t.Errorf("acknowledge status = %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/alerts/a1/resolve", map[string]string{"user_id": "oncall"}); w.Code != http.StatusOK {
		t.Errorf("resolve status = %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/alerts/a1/resolve", map[string]string{"user_id": "oncall"}); w.Code != http.StatusNotFound {
		t.Errorf("resolve resolved alert status = %d, want 404", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/alerts?history=true", nil)
	var history []alert.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Status != alert.StatusResolved {
		t.Errorf("history = %+v", history)
	}

	if w := doJSON(t, s, http.MethodGet, "/api/v1/alerts/summary", nil); w.Code != http.StatusOK {
		t.Errorf("summary status = %d", w.Code)
	}
}

func TestLogEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doJSON(t, s, http.MethodPost, "/api/v1/logs", map[string]interface{}{"level": "info"}); w.Code != http.StatusBadRequest {
		t.Errorf("log without message status = %d, want 400", w.Code)
	}

	submissions := []map[string]interface{}{
		{"level": "error", "logger": "checkout", "message": "payment declined", "user_id": "u1"},
		{"level": "info", "message": "page viewed", "user_id": "u1"},
	}
	for _, sub := range submissions {
		if w := doJSON(t, s, http.MethodPost, "/api/v1/logs", sub); w.Code != http.StatusOK {
			t.Fatalf("ingest status = %d: %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, s, http.MethodGet, "/api/v1/logs?query=payment&level=error", nil)
	body := decodeBody(t, w)
	if body["total"] != float64(1) {
		t.Errorf("search total = %v, want 1: %s", body["total"], w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/logs/statistics?hours=1", nil)
	stats := decodeBody(t, w)
	if stats["total_logs"] != float64(2) {
		t.Errorf("statistics total = %v, want 2", stats["total_logs"])
	}

	if w := doJSON(t, s, http.MethodGet, "/api/v1/logs/patterns", nil); w.Code != http.StatusOK {
		t.Errorf("patterns status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/logs/users/u1", nil)
	userBody := decodeBody(t, w)
	logs, _ := userBody["logs"].([]interface{})
	if len(logs) != 2 {
		t.Errorf("user activity = %d entries, want 2", len(logs))
	}

	// Unlabelled submissions are attributed to the api logger.
	w = doJSON(t, s, http.MethodGet, "/api/v1/logs?logger=api", nil)
	if body := decodeBody(t, w); body["total"] != float64(1) {
		t.Errorf("api-logger total = %v, want 1", body["total"])
	}
}

func TestSyntheticEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doJSON(t, s, http.MethodPost, "/api/v1/checks", map[string]interface{}{"name": "no id"}); w.Code != http.StatusBadRequest {
		t.Errorf("check without id status = %d, want 400", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/checks", map[string]interface{}{
		"id": "home", "name": "Homepage", "url": "/", "enabled": true,
	}); w.Code != http.StatusCreated {
		t.Errorf("create check status = %d: %s", w.Code, w.Body.String())
	}

	if w := doJSON(t, s, http.MethodPost, "/api/v1/journeys", map[string]interface{}{"id": "j1"}); w.Code != http.StatusBadRequest {
		t.Errorf("journey without steps status = %d, want 400", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/journeys", map[string]interface{}{
		"id": "j1", "name": "Login", "enabled": true,
		"steps": []map[string]interface{}{{"name": "open", "method": "GET", "url": "/login"}},
	}); w.Code != http.StatusCreated {
		t.Errorf("create journey status = %d: %s", w.Code, w.Body.String())
	}

	w := doJSON(t, s, http.MethodGet, "/api/v1/checks/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checks status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["overall"] == nil {
		t.Errorf("checks status body missing overall: %s", w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/checks/home/results", nil)
	if body := decodeBody(t, w); body["total"] != float64(0) {
		t.Errorf("results total = %v, want 0", body["total"])
	}

	if w := doJSON(t, s, http.MethodPost, "/api/v1/checks/unknown/run", nil); w.Code != http.StatusNotFound {
		t.Errorf("run unknown check status = %d, want 404", w.Code)
	}
}
