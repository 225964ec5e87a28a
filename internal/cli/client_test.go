package cli

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/livyflow/observer/internal/alert"
)

func TestClientDecodesAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/alerts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `[{"id":"a1","rule_id":"r1","severity":"high","status":"active"}]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	alerts, err := client.ActiveAlerts()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].ID != "a1" || alerts[0].Severity != alert.SeverityHigh {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"alert not found"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.Acknowledge("missing", "me")
	if err == nil {
		t.Fatal("expected error from 404 response")
	}
	want := "server returned 404: alert not found"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestClientSendsAcknowledgePayload(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.Acknowledge("a1", "oncall"); err != nil {
		t.Fatal(err)
	}
	if gotBody != `{"user_id":"oncall"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestClientSearchLogsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"logs":[{"message":"hello"}],"total":1}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	logs, err := client.SearchLogs("hello", "error", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Message != "hello" {
		t.Errorf("logs = %+v", logs)
	}
	if gotQuery != "level=error&limit=5&query=hello" {
		t.Errorf("query = %s", gotQuery)
	}
}

func TestSetBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"healthy"}`)
	}))
	defer srv.Close()

	client := NewClient("http://wrong.invalid")
	client.SetBaseURL(srv.URL)

	health, err := client.Health()
	if err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("health = %v", health)
	}
}
