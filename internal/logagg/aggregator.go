package logagg

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/livyflow/observer/internal/alert"
	"github.com/livyflow/observer/internal/metrics"
)

const (
	maxRecentLogs     = 10000
	maxUserLogs       = 1000
	maxPatternSamples = 5

	// Error signatures past spikeThreshold raise an alert; past
	// spikeHighThreshold the alert is high severity instead of medium.
	spikeThreshold     = 5
	spikeHighThreshold = 10

	analysisInterval = 5 * time.Minute
	cleanupInterval  = time.Hour
	memoryRetention  = 24 * time.Hour
	statsRetention   = 7 * 24 * time.Hour
	compressAfter    = 7 * 24 * time.Hour

	hourKeyLayout = "2006-01-02 15:00"
	dayKeyLayout  = "2006-01-02"
)

// normalizePatterns replace volatile tokens in messages before hashing.
// Order matters: numbers are replaced before emails and API paths.
var normalizePatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`), "<TIMESTAMP>"},
	{regexp.MustCompile(`(?i)\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`), "<TIMESTAMP>"},
	{regexp.MustCompile(`(?i)\b\d+\.\d+\.\d+\.\d+\b`), "<IP_ADDRESS>"},
	{regexp.MustCompile(`(?i)\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "<UUID>"},
	{regexp.MustCompile(`(?i)\b\d+\b`), "<NUMBER>"},
	{regexp.MustCompile(`(?i)\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`), "<EMAIL>"},
	{regexp.MustCompile(`(?i)/api/[^/]+/\d+`), "/api/<RESOURCE>/<ID>"},
	{regexp.MustCompile(`(?i)user_id=\w+`), "user_id=<USER_ID>"},
}

// Aggregator collects structured log entries, indexes them in memory,
// persists them as dated JSONL files and runs periodic analysis.
type Aggregator struct {
	storagePath string
	collector   *metrics.Collector
	alerts      *alert.Manager

	mu              sync.RWMutex
	recent          []*Entry
	patterns        map[string]*Pattern
	userLogs        map[string][]*Entry
	errorSignatures map[string]int
	hourlyStats     map[string]map[string]int
	dailyStats      map[string]map[string]int
	anomalyReported map[string]bool
	running         bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAggregator(storagePath string, collector *metrics.Collector, alerts *alert.Manager) (*Aggregator, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("create log storage dir: %v", err)
	}
	return &Aggregator{
		storagePath:     storagePath,
		collector:       collector,
		alerts:          alerts,
		patterns:        make(map[string]*Pattern),
		userLogs:        make(map[string][]*Entry),
		errorSignatures: make(map[string]int),
		hourlyStats:     make(map[string]map[string]int),
		dailyStats:      make(map[string]map[string]int),
		anomalyReported: make(map[string]bool),
	}, nil
}

// Start launches the analysis and cleanup loops. Idempotent.
func (a *Aggregator) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	var ctx context.Context
	ctx, a.cancel = context.WithCancel(context.Background())
	a.mu.Unlock()

	a.wg.Add(2)
	go a.analysisLoop(ctx)
	go a.cleanupLoop(ctx)
	log.Println("log aggregation started")
}

// Stop cancels the background loops and waits for them.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel := a.cancel
	a.mu.Unlock()

	cancel()
	a.wg.Wait()
	log.Println("log aggregation stopped")
}

func (a *Aggregator) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Ingest indexes one entry, persists it and updates statistics.
func (a *Aggregator) Ingest(e *Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}

	a.mu.Lock()
	a.recent = append(a.recent, e)
	if len(a.recent) > maxRecentLogs {
		a.recent = a.recent[1:]
	}

	if e.UserID != "" {
		logs := append(a.userLogs[e.UserID], e)
		if len(logs) > maxUserLogs {
			logs = logs[1:]
		}
		a.userLogs[e.UserID] = logs
	}

	a.updateStatsLocked(e)
	a.detectPatternLocked(e)
	a.mu.Unlock()

	if err := a.storeEntry(e); err != nil {
		log.Printf("failed to store log entry: %v", err)
	}

	a.collector.IncrementCounter("logs_ingested_total", 1, map[string]string{
		"level":  string(e.Level),
		"logger": e.Logger,
	})

	if e.Level == LevelError || e.Level == LevelCritical {
		a.analyzeError(e)
	}
}

func (a *Aggregator) updateStatsLocked(e *Entry) {
	hourKey := e.Timestamp.Format(hourKeyLayout)
	dayKey := e.Timestamp.Format(dayKeyLayout)

	for key, stats := range map[string]map[string]map[string]int{
		hourKey: a.hourlyStats,
		dayKey:  a.dailyStats,
	} {
		bucket := stats[key]
		if bucket == nil {
			bucket = make(map[string]int)
			stats[key] = bucket
		}
		bucket["total"]++
		bucket[string(e.Level)]++
		bucket[e.Logger]++
	}
}

func (a *Aggregator) detectPatternLocked(e *Entry) {
	sig := Signature(e.Message)

	if p, ok := a.patterns[sig]; ok {
		p.Frequency++
		p.LastSeen = e.Timestamp
		if len(p.SampleMessages) < maxPatternSamples && !containsString(p.SampleMessages, e.Message) {
			p.SampleMessages = append(p.SampleMessages, e.Message)
		}
		return
	}
	a.patterns[sig] = &Pattern{
		ID:             sig,
		Frequency:      1,
		FirstSeen:      e.Timestamp,
		LastSeen:       e.Timestamp,
		Severity:       e.Level,
		SampleMessages: []string{e.Message},
	}
}

// Signature normalizes a message and hashes it, so entries that differ only
// in volatile tokens map to the same pattern.
func Signature(message string) string {
	normalized := message
	for _, p := range normalizePatterns {
		normalized = p.re.ReplaceAllString(normalized, p.replacement)
	}
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

func errorSignature(e *Entry) string {
	joined := e.Logger + "|" + e.Module + "|" + e.Function + "|" + Signature(e.Message)
	sum := md5.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}

func (a *Aggregator) analyzeError(e *Entry) {
	sig := errorSignature(e)

	a.mu.Lock()
	a.errorSignatures[sig]++
	count := a.errorSignatures[sig]
	a.mu.Unlock()

	a.collector.IncrementCounter("error_logs_total", 1, map[string]string{
		"logger":    e.Logger,
		"signature": sig[:8],
	})

	// Alert when a signature first crosses the spike threshold, and once
	// more when it crosses into high severity.
	if count == spikeThreshold+1 || count == spikeHighThreshold+1 {
		a.recordSpikeAlert(sig, count, e)
	}
}

func (a *Aggregator) recordSpikeAlert(sig string, count int, e *Entry) {
	severity := alert.SeverityMedium
	if count > spikeHighThreshold {
		severity = alert.SeverityHigh
	}

	now := time.Now()
	a.alerts.Record(&alert.Alert{
		RuleID:      fmt.Sprintf("error_spike_%s", sig[:8]),
		RuleName:    "Error Log Spike",
		Message:     fmt.Sprintf("Error spike detected: %d occurrences of %s", count, truncate(e.Message, 100)),
		Severity:    severity,
		Status:      alert.StatusActive,
		MetricValue: float64(count),
		Threshold:   spikeThreshold,
		CreatedAt:   now,
		UpdatedAt:   now,
		Context: map[string]interface{}{
			"error_signature": sig,
			"count":           count,
			"logger":          e.Logger,
			"sample_message":  e.Message,
		},
	})
}

func (a *Aggregator) storeEntry(e *Entry) error {
	name := filepath.Join(a.storagePath, e.Timestamp.Format(dayKeyLayout)+".jsonl")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %v", name, err)
	}
	defer f.Close()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %v", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write %s: %v", name, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
