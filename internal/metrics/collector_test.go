package metrics

import (
	"fmt"
	"sync"
	"testing"
)

func TestIncrementCounterAggregatesByTags(t *testing.T) {
	c := NewCollector()

	c.IncrementCounter("requests", 1, map[string]string{"method": "GET", "endpoint": "/a"})
	c.IncrementCounter("requests", 2, map[string]string{"endpoint": "/a", "method": "GET"})
	c.IncrementCounter("requests", 5, map[string]string{"method": "POST", "endpoint": "/a"})
	c.IncrementCounter("requests", 7, nil)

	tests := []struct {
		key  string
		want int64
	}{
		{"requests[endpoint=/a,method=GET]", 3},
		{"requests[endpoint=/a,method=POST]", 5},
		{"requests", 7},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := c.CounterValue(tt.key)
			if !ok {
				t.Fatalf("counter %s not found", tt.key)
			}
			if got != tt.want {
				t.Errorf("counter %s = %d, want %d", tt.key, got, tt.want)
			}
		})
	}
}

func TestSetGaugeLastWriteWins(t *testing.T) {
	c := NewCollector()
	c.SetGauge("cpu", 10, nil)
	c.SetGauge("cpu", 42.5, nil)

	if got := c.Summary().Gauges["cpu"]; got != 42.5 {
		t.Errorf("gauge = %v, want 42.5", got)
	}
}

func TestHistogramWindowEviction(t *testing.T) {
	c := NewCollector()

	for i := 0; i < histogramWindow+50; i++ {
		c.RecordHistogram("latency", float64(i), nil)
	}

	h := c.Summary().Histograms["latency"]
	if h.Count != histogramWindow {
		t.Fatalf("count = %d, want %d", h.Count, histogramWindow)
	}
	// The first 50 samples were evicted.
	if h.Min != 50 {
		t.Errorf("min = %v, want 50", h.Min)
	}
	if h.Max != float64(histogramWindow+49) {
		t.Errorf("max = %v, want %d", h.Max, histogramWindow+49)
	}
}

func TestHistogramSummaryStats(t *testing.T) {
	c := NewCollector()
	// 1..100 in reverse order: sorting must not depend on insertion order.
	for i := 100; i >= 1; i-- {
		c.RecordHistogram("latency", float64(i), nil)
	}

	h := c.Summary().Histograms["latency"]
	if h.Avg != 50.5 {
		t.Errorf("avg = %v, want 50.5", h.Avg)
	}
	if h.Min != 1 || h.Max != 100 {
		t.Errorf("min/max = %v/%v, want 1/100", h.Min, h.Max)
	}
	if h.P95 != 96 {
		t.Errorf("p95 = %v, want 96", h.P95)
	}
	if h.P99 != 100 {
		t.Errorf("p99 = %v, want 100", h.P99)
	}
}

func TestPercentileSingleSample(t *testing.T) {
	c := NewCollector()
	c.RecordHistogram("latency", 250, nil)

	h := c.Summary().Histograms["latency"]
	if h.P95 != 250 || h.P99 != 250 {
		t.Errorf("p95/p99 = %v/%v, want 250/250", h.P95, h.P99)
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("requests[method=GET]"); got != "requests" {
		t.Errorf("BaseName = %q, want requests", got)
	}
	if got := BaseName("requests"); got != "requests" {
		t.Errorf("BaseName = %q, want requests", got)
	}
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncrementCounter("ops", 1, map[string]string{"worker": fmt.Sprintf("%d", n)})
				c.SetGauge("load", float64(j), nil)
				c.RecordHistogram("duration", float64(j), nil)
				c.Summary()
			}
		}(i)
	}
	wg.Wait()

	summary := c.Summary()
	var total int64
	for _, v := range summary.Counters {
		total += v
	}
	if total != 1000 {
		t.Errorf("total counter = %d, want 1000", total)
	}
}
