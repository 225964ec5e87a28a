package metrics

import (
	"sort"
	"strings"
	"sync"
)

// histogramWindow bounds how many samples each histogram series retains.
// Oldest samples are evicted first.
const histogramWindow = 100

// HistogramSummary describes the retained window of a histogram series.
type HistogramSummary struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summary is a point-in-time snapshot of every metric series.
type Summary struct {
	Counters   map[string]int64            `json:"counters"`
	Gauges     map[string]float64          `json:"gauges"`
	Histograms map[string]HistogramSummary `json:"histograms"`
}

// Collector is the process-wide in-memory metrics store. Counters are
// monotonically incremented, gauges are last-write-wins and histograms keep a
// bounded sliding window for percentile computation. Safe for concurrent use.
type Collector struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string]*window
}

type window struct {
	values []float64
}

func (w *window) add(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > histogramWindow {
		w.values = w.values[1:]
	}
}

func NewCollector() *Collector {
	return &Collector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]*window),
	}
}

// IncrementCounter adds delta to the counter identified by name and tags.
func (c *Collector) IncrementCounter(name string, delta int64, tags map[string]string) {
	key := buildKey(name, tags)
	c.mu.Lock()
	c.counters[key] += delta
	c.mu.Unlock()
}

// SetGauge sets the gauge identified by name and tags to value.
func (c *Collector) SetGauge(name string, value float64, tags map[string]string) {
	key := buildKey(name, tags)
	c.mu.Lock()
	c.gauges[key] = value
	c.mu.Unlock()
}

// RecordHistogram appends value to the histogram window for name and tags.
func (c *Collector) RecordHistogram(name string, value float64, tags map[string]string) {
	key := buildKey(name, tags)
	c.mu.Lock()
	h, ok := c.histograms[key]
	if !ok {
		h = &window{}
		c.histograms[key] = h
	}
	h.add(value)
	c.mu.Unlock()
}

// CounterValue returns the current value of a counter key, false if absent.
func (c *Collector) CounterValue(key string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.counters[key]
	return v, ok
}

// Summary snapshots every series. Histogram stats are computed over the
// retained window only.
func (c *Collector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		Counters:   make(map[string]int64, len(c.counters)),
		Gauges:     make(map[string]float64, len(c.gauges)),
		Histograms: make(map[string]HistogramSummary, len(c.histograms)),
	}
	for k, v := range c.counters {
		s.Counters[k] = v
	}
	for k, v := range c.gauges {
		s.Gauges[k] = v
	}
	for k, h := range c.histograms {
		s.Histograms[k] = summarize(h.values)
	}
	return s
}

func summarize(values []float64) HistogramSummary {
	if len(values) == 0 {
		return HistogramSummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return HistogramSummary{
		Count: len(sorted),
		Avg:   sum / float64(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
	}
}

// percentile indexes a sorted slice at floor(n*p), clamped to the last element.
func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// buildKey joins a metric name with its sorted tag set so that the same
// name+tags always maps to the same series.
func buildKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	b.WriteByte(']')
	return b.String()
}

// BaseName strips the tag suffix from a metric key.
func BaseName(key string) string {
	if i := strings.IndexByte(key, '['); i >= 0 {
		return key[:i]
	}
	return key
}
