package logagg

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/livyflow/observer/internal/alert"
)

func (a *Aggregator) analysisLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(analysisInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runAnalysis()
		}
	}
}

func (a *Aggregator) cleanupLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cleanupOldData()
		}
	}
}

func (a *Aggregator) runAnalysis() {
	a.detectAnomalies()
	a.analyzePatterns()
	a.generateInsights()
}

// detectAnomalies compares each of the last six hourly buckets against the
// average of the earlier buckets in the last 24 hours. ERROR and WARNING
// volume above max(10, 3x historical average) raises an alert once per hour
// bucket.
func (a *Aggregator) detectAnomalies() {
	a.mu.Lock()
	defer a.mu.Unlock()

	hours := make([]string, 0, len(a.hourlyStats))
	for h := range a.hourlyStats {
		hours = append(hours, h)
	}
	sort.Strings(hours)
	if len(hours) > 24 {
		hours = hours[len(hours)-24:]
	}
	if len(hours) < 6 {
		return
	}

	historical := hours[:len(hours)-6]
	for _, hour := range hours[len(hours)-6:] {
		stats := a.hourlyStats[hour]
		for _, level := range []Level{LevelError, LevelWarning} {
			current := stats[string(level)]

			if len(historical) == 0 {
				continue
			}
			sum := 0
			for _, h := range historical {
				sum += a.hourlyStats[h][string(level)]
			}
			avg := float64(sum) / float64(len(historical))

			limit := 3 * avg
			if limit < 10 {
				limit = 10
			}
			if float64(current) > limit {
				a.recordAnomalyLocked(level, current, avg, hour)
			}
		}
	}
}

func (a *Aggregator) recordAnomalyLocked(level Level, current int, avg float64, hour string) {
	key := string(level) + "|" + hour
	if a.anomalyReported[key] {
		return
	}
	a.anomalyReported[key] = true

	severity := alert.SeverityMedium
	if level == LevelError {
		severity = alert.SeverityHigh
	}
	historicalAvg := avg
	if historicalAvg < 1 {
		historicalAvg = 1
	}

	now := time.Now()
	a.alerts.Record(&alert.Alert{
		RuleID:      fmt.Sprintf("log_anomaly_%s", strings.ToLower(string(level))),
		RuleName:    "Log Volume Anomaly",
		Message:     fmt.Sprintf("Log anomaly: %d %s logs in %s (historical average %.1f)", current, level, hour, avg),
		Severity:    severity,
		Status:      alert.StatusActive,
		MetricValue: float64(current),
		Threshold:   avg * 3,
		CreatedAt:   now,
		UpdatedAt:   now,
		Context: map[string]interface{}{
			"log_level":          string(level),
			"current_count":      current,
			"historical_average": avg,
			"hour":               hour,
			"anomaly_ratio":      float64(current) / historicalAvg,
		},
	})
}

// analyzePatterns surfaces the most frequent recurring patterns at WARNING
// severity or above.
func (a *Aggregator) analyzePatterns() {
	for _, p := range a.TopPatterns(10) {
		if p.Frequency > 100 && p.Severity != LevelDebug && p.Severity != LevelInfo {
			sample := ""
			if len(p.SampleMessages) > 0 {
				sample = p.SampleMessages[0]
			}
			log.Printf("frequent log pattern %s: %d occurrences, severity %s, sample %q",
				p.ID, p.Frequency, p.Severity, truncate(sample, 100))
		}
	}
}

// generateInsights publishes the current hour's error rate as a gauge.
func (a *Aggregator) generateInsights() {
	hourKey := time.Now().Truncate(time.Hour).Format(hourKeyLayout)

	a.mu.RLock()
	stats := a.hourlyStats[hourKey]
	total := stats["total"]
	errorLogs := stats[string(LevelError)] + stats[string(LevelCritical)]
	a.mu.RUnlock()

	if total == 0 {
		return
	}
	rate := float64(errorLogs) / float64(total) * 100
	a.collector.SetGauge("log_error_rate_percent", rate, nil)
	log.Printf("hourly log summary %s: %d logs, %d errors (%.1f%%)", hourKey, total, errorLogs, rate)
}

func (a *Aggregator) cleanupOldData() {
	now := time.Now()
	memoryCutoff := now.Add(-memoryRetention)
	statsCutoff := now.Add(-statsRetention).Format(hourKeyLayout)

	a.mu.Lock()
	kept := a.recent[:0]
	for _, e := range a.recent {
		if e.Timestamp.After(memoryCutoff) {
			kept = append(kept, e)
		}
	}
	a.recent = kept

	for hour := range a.hourlyStats {
		if hour < statsCutoff {
			delete(a.hourlyStats, hour)
		}
	}
	a.mu.Unlock()

	a.compressOldFiles(now)
}

// compressOldFiles gzips dated JSONL files older than the retention window.
// A failure on one file does not stop the others.
func (a *Aggregator) compressOldFiles(now time.Time) {
	files, err := filepath.Glob(filepath.Join(a.storagePath, "*.jsonl"))
	if err != nil {
		log.Printf("log compression scan failed: %v", err)
		return
	}
	cutoff := now.Add(-compressAfter)

	for _, name := range files {
		base := strings.TrimSuffix(filepath.Base(name), ".jsonl")
		fileDate, err := time.Parse(dayKeyLayout, base)
		if err != nil {
			continue
		}
		if !fileDate.Before(cutoff) {
			continue
		}
		if err := compressFile(name); err != nil {
			log.Printf("failed to compress log file %s: %v", name, err)
		}
	}
}

func compressFile(name string) error {
	in, err := os.Open(name)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(name + ".gz")
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
