package logagg

import (
	"fmt"
	"testing"
	"time"
)

func seedEntries(agg *Aggregator) {
	now := time.Now()
	entries := []*Entry{
		{Level: LevelInfo, Logger: "app", Message: "user login ok", UserID: "u1", Timestamp: now.Add(-4 * time.Minute)},
		{Level: LevelWarning, Logger: "db", Message: "slow query detected", Timestamp: now.Add(-3 * time.Minute)},
		{Level: LevelError, Logger: "db", Message: "connection refused", Timestamp: now.Add(-2 * time.Minute)},
		{Level: LevelInfo, Logger: "app", Message: "user logout ok", UserID: "u1", Timestamp: now.Add(-time.Minute)},
		{Level: LevelError, Logger: "app", Message: "login rejected", UserID: "u2", Timestamp: now},
	}
	for _, e := range entries {
		agg.Ingest(e)
	}
}

func TestSearchFilters(t *testing.T) {
	agg, _ := newTestAggregator(t)
	seedEntries(agg)

	t.Run("newest first", func(t *testing.T) {
		results := agg.Search(SearchFilter{})
		if len(results) != 5 {
			t.Fatalf("results = %d, want 5", len(results))
		}
		if results[0].Message != "login rejected" {
			t.Errorf("first result = %q, want the newest entry", results[0].Message)
		}
	})

	t.Run("by level", func(t *testing.T) {
		results := agg.Search(SearchFilter{Level: LevelError})
		if len(results) != 2 {
			t.Fatalf("results = %d, want 2", len(results))
		}
	})

	t.Run("by logger", func(t *testing.T) {
		results := agg.Search(SearchFilter{Logger: "db"})
		if len(results) != 2 {
			t.Fatalf("results = %d, want 2", len(results))
		}
	})

	t.Run("by user", func(t *testing.T) {
		results := agg.Search(SearchFilter{UserID: "u1"})
		if len(results) != 2 {
			t.Fatalf("results = %d, want 2", len(results))
		}
	})

	t.Run("query is case insensitive", func(t *testing.T) {
		results := agg.Search(SearchFilter{Query: "LOGIN"})
		if len(results) != 2 {
			t.Fatalf("results = %d, want 2", len(results))
		}
	})

	t.Run("time range", func(t *testing.T) {
		results := agg.Search(SearchFilter{Start: time.Now().Add(-90 * time.Second)})
		if len(results) != 2 {
			t.Fatalf("results = %d, want 2", len(results))
		}
	})

	t.Run("limit", func(t *testing.T) {
		results := agg.Search(SearchFilter{Limit: 3})
		if len(results) != 3 {
			t.Fatalf("results = %d, want 3", len(results))
		}
	})

	t.Run("combined", func(t *testing.T) {
		results := agg.Search(SearchFilter{Level: LevelError, Logger: "app"})
		if len(results) != 1 || results[0].Message != "login rejected" {
			t.Fatalf("results = %+v", results)
		}
	})
}

func TestStatisticsAggregation(t *testing.T) {
	agg, _ := newTestAggregator(t)
	seedEntries(agg)

	stats := agg.Statistics(24)
	if stats.TotalLogs != 5 {
		t.Errorf("total = %d, want 5", stats.TotalLogs)
	}
	if stats.LevelDistribution[string(LevelError)] != 2 {
		t.Errorf("error count = %d, want 2", stats.LevelDistribution[string(LevelError)])
	}
	if stats.TopLoggers["app"] != 3 || stats.TopLoggers["db"] != 2 {
		t.Errorf("top loggers = %v", stats.TopLoggers)
	}
	if stats.ErrorRate != 40 {
		t.Errorf("error rate = %v, want 40", stats.ErrorRate)
	}
	if stats.TimePeriodHours != 24 {
		t.Errorf("period = %d", stats.TimePeriodHours)
	}
	if stats.PatternsDetected == 0 {
		t.Error("patterns detected should be non-zero")
	}
}

func TestStatisticsEmpty(t *testing.T) {
	agg, _ := newTestAggregator(t)

	stats := agg.Statistics(0)
	if stats.TotalLogs != 0 || stats.ErrorRate != 0 {
		t.Errorf("stats = %+v, want zeroes", stats)
	}
	if stats.TimePeriodHours != 24 {
		t.Errorf("default period = %d, want 24", stats.TimePeriodHours)
	}
}

func TestUserActivityNewestFirst(t *testing.T) {
	agg, _ := newTestAggregator(t)
	seedEntries(agg)

	activity := agg.UserActivity("u1", 0)
	if len(activity) != 2 {
		t.Fatalf("activity = %d, want 2", len(activity))
	}
	if activity[0].Message != "user logout ok" {
		t.Errorf("first = %q, want newest", activity[0].Message)
	}

	if got := agg.UserActivity("nobody", 10); len(got) != 0 {
		t.Errorf("unknown user activity = %d, want 0", len(got))
	}
}

func TestTopPatternsOrdering(t *testing.T) {
	agg, _ := newTestAggregator(t)

	for i := 0; i < 5; i++ {
		agg.Ingest(&Entry{Level: LevelInfo, Logger: "app", Message: "cache miss"})
	}
	for i := 0; i < 3; i++ {
		agg.Ingest(&Entry{Level: LevelInfo, Logger: "app", Message: "cache hit"})
	}
	agg.Ingest(&Entry{Level: LevelInfo, Logger: "app", Message: "cache flush"})

	patterns := agg.TopPatterns(2)
	if len(patterns) != 2 {
		t.Fatalf("patterns = %d, want 2", len(patterns))
	}
	if patterns[0].Frequency != 5 || patterns[1].Frequency != 3 {
		t.Errorf("frequencies = %d, %d, want 5, 3", patterns[0].Frequency, patterns[1].Frequency)
	}
}

func TestTopPatternsCopiesSamples(t *testing.T) {
	agg, _ := newTestAggregator(t)
	agg.Ingest(&Entry{Level: LevelInfo, Logger: "app", Message: "one-off event"})

	patterns := agg.TopPatterns(1)
	if len(patterns) != 1 {
		t.Fatalf("patterns = %d, want 1", len(patterns))
	}
	patterns[0].SampleMessages[0] = "mutated"

	again := agg.TopPatterns(1)
	if again[0].SampleMessages[0] != "one-off event" {
		t.Error("returned pattern shares sample slice with internal state")
	}
}

func TestSearchDefaultLimit(t *testing.T) {
	agg, _ := newTestAggregator(t)
	for i := 0; i < 150; i++ {
		agg.Ingest(&Entry{Level: LevelInfo, Logger: "app", Message: fmt.Sprintf("event %d", i)})
	}
	if got := len(agg.Search(SearchFilter{})); got != 100 {
		t.Errorf("default limit results = %d, want 100", got)
	}
}
