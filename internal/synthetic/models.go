package synthetic

import "time"

type CheckStatus string

const (
	StatusSuccess CheckStatus = "success"
	StatusFailure CheckStatus = "failure"
	StatusTimeout CheckStatus = "timeout"
	StatusError   CheckStatus = "error"
)

// Check is a single scheduled HTTP probe against one of the service's own
// endpoints.
type Check struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name"`
	Description          string                 `json:"description"`
	URL                  string                 `json:"url"`
	Method               string                 `json:"method"`
	Headers              map[string]string      `json:"headers,omitempty"`
	Body                 map[string]interface{} `json:"body,omitempty"`
	Timeout              time.Duration          `json:"timeout"`
	ExpectedStatus       int                    `json:"expected_status"`
	ExpectedResponseTime time.Duration          `json:"expected_response_time"`
	ExpectedContent      string                 `json:"expected_content,omitempty"`
	Interval             time.Duration          `json:"interval"`
	Enabled              bool                   `json:"enabled"`
	Tags                 map[string]string      `json:"tags,omitempty"`
}

// JourneyStep is one request in a multi-step journey.
type JourneyStep struct {
	Name            string                 `json:"name"`
	Method          string                 `json:"method"`
	URL             string                 `json:"url"`
	Headers         map[string]string      `json:"headers,omitempty"`
	Body            map[string]interface{} `json:"body,omitempty"`
	ExpectedStatus  int                    `json:"expected_status"`
	ExpectedContent string                 `json:"expected_content,omitempty"`
}

// Journey is an ordered sequence of HTTP steps sharing a session; the run
// aborts at the first failing step.
type Journey struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Steps       []JourneyStep `json:"steps"`
	Timeout     time.Duration `json:"timeout"`
	Interval    time.Duration `json:"interval"`
	Enabled     bool          `json:"enabled"`
	Critical    bool          `json:"critical"`
}

// StepResult retains per-step timing detail for journey runs.
type StepResult struct {
	Name           string  `json:"name"`
	Status         int     `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	Success        bool    `json:"success"`
}

// Result is the outcome of one check or journey run.
type Result struct {
	CheckID        string       `json:"check_id"`
	CheckName      string       `json:"check_name"`
	Status         CheckStatus  `json:"status"`
	ResponseTimeMS float64      `json:"response_time_ms"`
	ResponseStatus int          `json:"response_status,omitempty"`
	ResponseSize   int          `json:"response_size"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Steps          []StepResult `json:"steps,omitempty"`
}

// CheckSummary is the rolled-up view of a single check's recent results.
type CheckSummary struct {
	Status            CheckStatus `json:"status"`
	SuccessRate       float64     `json:"success_rate"`
	AvgResponseTimeMS float64     `json:"avg_response_time_ms"`
	LastCheck         time.Time   `json:"last_check"`
	LastError         string      `json:"last_error,omitempty"`
	TotalChecks       int         `json:"total_checks"`
}

// OverallStatus summarizes the whole synthetic monitoring subsystem.
type OverallStatus struct {
	TotalChecks        int       `json:"total_checks"`
	ActiveChecks       int       `json:"active_checks"`
	OverallSuccessRate float64   `json:"overall_success_rate"`
	Running            bool      `json:"running"`
	LastUpdated        time.Time `json:"last_updated"`
}
