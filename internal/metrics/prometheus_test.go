package metrics

import (
	"strings"
	"testing"
)

func TestPrometheusTextCounters(t *testing.T) {
	c := NewCollector()
	c.IncrementCounter("http_requests_total", 3, map[string]string{"method": "GET"})
	c.IncrementCounter("http_requests_total", 1, map[string]string{"method": "POST"})

	out := c.PrometheusText()

	if strings.Count(out, "# TYPE http_requests_total counter") != 1 {
		t.Errorf("expected exactly one TYPE line, got:\n%s", out)
	}
	for _, want := range []string{
		`http_requests_total{method="GET"} 3`,
		`http_requests_total{method="POST"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrometheusTextGauges(t *testing.T) {
	c := NewCollector()
	c.SetGauge("system_cpu_percent", 42.5, nil)

	out := c.PrometheusText()
	for _, want := range []string{
		"# TYPE system_cpu_percent gauge",
		"system_cpu_percent 42.5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrometheusTextHistograms(t *testing.T) {
	c := NewCollector()
	c.RecordHistogram("duration_ms", 100, map[string]string{"endpoint": "/a"})
	c.RecordHistogram("duration_ms", 300, map[string]string{"endpoint": "/a"})

	out := c.PrometheusText()
	for _, want := range []string{
		"# TYPE duration_ms histogram",
		`duration_ms_count{endpoint="/a"} 2`,
		`duration_ms_sum{endpoint="/a"} 400`,
		`duration_ms_bucket{endpoint="/a",le="+Inf"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrometheusTextUntaggedHistogramBucket(t *testing.T) {
	c := NewCollector()
	c.RecordHistogram("duration_ms", 100, nil)

	out := c.PrometheusText()
	if !strings.Contains(out, `duration_ms_bucket{le="+Inf"} 1`) {
		t.Errorf("output missing +Inf bucket:\n%s", out)
	}
}
