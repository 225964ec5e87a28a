package logagg

import (
	"sort"
	"strings"
	"time"
)

// SearchFilter narrows a log search; zero values mean "any".
type SearchFilter struct {
	Query  string
	Level  Level
	Logger string
	UserID string
	Start  time.Time
	End    time.Time
	Limit  int
}

// Search scans the in-memory window, most recent first.
func (a *Aggregator) Search(f SearchFilter) []Entry {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	results := make([]Entry, 0, limit)
	for i := len(a.recent) - 1; i >= 0 && len(results) < limit; i-- {
		e := a.recent[i]
		if f.Level != "" && e.Level != f.Level {
			continue
		}
		if f.Logger != "" && e.Logger != f.Logger {
			continue
		}
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && e.Timestamp.After(f.End) {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.Query)) {
			continue
		}
		results = append(results, *e)
	}
	return results
}

// Statistics aggregates the trailing hourly buckets.
func (a *Aggregator) Statistics(hours int) Statistics {
	if hours <= 0 {
		hours = 24
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]string, 0, len(a.hourlyStats))
	for h := range a.hourlyStats {
		keys = append(keys, h)
	}
	sort.Strings(keys)
	if len(keys) > hours {
		keys = keys[len(keys)-hours:]
	}

	total := 0
	levels := make(map[string]int)
	loggers := make(map[string]int)
	for _, h := range keys {
		bucket := a.hourlyStats[h]
		total += bucket["total"]
		for key, count := range bucket {
			switch {
			case isLevel(key):
				levels[key] += count
			case key != "total":
				loggers[key] += count
			}
		}
	}

	errorTotal := levels[string(LevelError)] + levels[string(LevelCritical)]
	denominator := total
	if denominator == 0 {
		denominator = 1
	}

	return Statistics{
		TotalLogs:         total,
		LevelDistribution: levels,
		TopLoggers:        topN(loggers, 10),
		ErrorRate:         float64(errorTotal) / float64(denominator) * 100,
		TimePeriodHours:   hours,
		PatternsDetected:  len(a.patterns),
		UniqueErrors:      len(a.errorSignatures),
	}
}

// UserActivity returns a user's most recent entries, newest first.
func (a *Aggregator) UserActivity(userID string, limit int) []Entry {
	if limit <= 0 {
		limit = 50
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	logs := a.userLogs[userID]
	out := make([]Entry, 0, limit)
	for i := len(logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *logs[i])
	}
	return out
}

// TopPatterns returns the most frequent patterns, highest first.
func (a *Aggregator) TopPatterns(limit int) []Pattern {
	if limit <= 0 {
		limit = 10
	}

	a.mu.RLock()
	patterns := make([]Pattern, 0, len(a.patterns))
	for _, p := range a.patterns {
		copied := *p
		copied.SampleMessages = append([]string(nil), p.SampleMessages...)
		patterns = append(patterns, copied)
	}
	a.mu.RUnlock()

	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Frequency > patterns[j].Frequency
	})
	if len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns
}

func topN(counts map[string]int, n int) map[string]int {
	type kv struct {
		key   string
		count int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].count > pairs[j].count })
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make(map[string]int, len(pairs))
	for _, p := range pairs {
		out[p.key] = p.count
	}
	return out
}
