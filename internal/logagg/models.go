package logagg

import (
	"strings"
	"time"
)

type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// ParseLevel maps a string onto a known level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(s)) {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return Level(strings.ToUpper(s))
	default:
		return LevelInfo
	}
}

func isLevel(s string) bool {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

// Entry is a single structured log record.
type Entry struct {
	Timestamp     time.Time              `json:"timestamp"`
	Level         Level                  `json:"level"`
	Logger        string                 `json:"logger"`
	Message       string                 `json:"message"`
	Module        string                 `json:"module,omitempty"`
	Function      string                 `json:"function,omitempty"`
	Line          int                    `json:"line,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
	RequestID     string                 `json:"request_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Extra         map[string]interface{} `json:"extra_fields,omitempty"`
}

// Pattern is a recurring message shape identified by its normalized signature.
type Pattern struct {
	ID             string    `json:"id"`
	Frequency      int       `json:"frequency"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	Severity       Level     `json:"severity"`
	SampleMessages []string  `json:"sample_messages"`
}

// Statistics is an aggregate view over a trailing number of hours.
type Statistics struct {
	TotalLogs         int            `json:"total_logs"`
	LevelDistribution map[string]int `json:"level_distribution"`
	TopLoggers        map[string]int `json:"top_loggers"`
	ErrorRate         float64        `json:"error_rate"`
	TimePeriodHours   int            `json:"time_period_hours"`
	PatternsDetected  int            `json:"patterns_detected"`
	UniqueErrors      int            `json:"unique_errors"`
}
