// Package anomaly maintains rolling statistical baselines per metric series
// and flags values that deviate beyond a z-score threshold.
package anomaly

import (
	"math"
	"sync"
	"time"
)

const (
	defaultWindowSize = 100
	// minSamples guards the cold-start phase: no value is flagged anomalous
	// until the baseline has seen this many samples.
	minSamples = 10
	// stdDevFloor prevents z-score blow-up on near-constant series.
	stdDevFloor = 0.1
)

// Baseline is the derived statistical summary of a metric's recent history.
type Baseline struct {
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	UpdatedAt time.Time `json:"updated_at"`
}

type sample struct {
	value float64
	at    time.Time
}

type Detector struct {
	mu         sync.RWMutex
	windowSize int
	histories  map[string][]sample
	baselines  map[string]Baseline
}

func NewDetector() *Detector {
	return &Detector{
		windowSize: defaultWindowSize,
		histories:  make(map[string][]sample),
		baselines:  make(map[string]Baseline),
	}
}

// AddValue appends a sample to the metric's rolling window and recomputes the
// baseline once at least 3 samples exist.
func (d *Detector) AddValue(metric string, value float64, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	history := append(d.histories[metric], sample{value: value, at: at})
	if len(history) > d.windowSize {
		history = history[1:]
	}
	d.histories[metric] = history

	if len(history) < 3 {
		return
	}

	var sum float64
	min, max := history[0].value, history[0].value
	for _, s := range history {
		sum += s.value
		if s.value < min {
			min = s.value
		}
		if s.value > max {
			max = s.value
		}
	}
	mean := sum / float64(len(history))

	var variance float64
	for _, s := range history {
		variance += (s.value - mean) * (s.value - mean)
	}
	variance /= float64(len(history))

	d.baselines[metric] = Baseline{
		Mean:      mean,
		StdDev:    math.Sqrt(variance),
		Min:       min,
		Max:       max,
		UpdatedAt: at,
	}
}

// IsAnomaly reports whether value deviates from the metric's baseline by more
// than sensitivity standard deviations. Always false before minSamples.
func (d *Detector) IsAnomaly(metric string, value, sensitivity float64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	baseline, ok := d.baselines[metric]
	if !ok || len(d.histories[metric]) < minSamples {
		return false
	}

	zScore := math.Abs(value-baseline.Mean) / math.Max(baseline.StdDev, stdDevFloor)
	return zScore > sensitivity
}

// BaselineFor returns the current baseline for a metric, false if none exists.
func (d *Detector) BaselineFor(metric string) (Baseline, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.baselines[metric]
	return b, ok
}

// SampleCount returns how many samples the metric's window currently holds.
func (d *Detector) SampleCount(metric string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.histories[metric])
}
