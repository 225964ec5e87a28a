package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/livyflow/observer/internal/logagg"
)

type logSubmission struct {
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger"`
	Message   string                 `json:"message" binding:"required"`
	Timestamp *time.Time             `json:"timestamp"`
	UserID    string                 `json:"user_id"`
	RequestID string                 `json:"request_id"`
	Context   map[string]interface{} `json:"context"`
}

func (s *Server) ingestLog(c *gin.Context) {
	var submission logSubmission
	if err := c.ShouldBindJSON(&submission); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := &logagg.Entry{
		Level:     logagg.ParseLevel(submission.Level),
		Logger:    submission.Logger,
		Message:   submission.Message,
		UserID:    submission.UserID,
		RequestID: submission.RequestID,
		Extra:     submission.Context,
	}
	if entry.Logger == "" {
		entry.Logger = "api"
	}
	if submission.Timestamp != nil {
		entry.Timestamp = *submission.Timestamp
	}

	s.obs.Logs.Ingest(entry)
	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}

func (s *Server) searchLogs(c *gin.Context) {
	filter := logagg.SearchFilter{
		Query:  c.Query("query"),
		Logger: c.Query("logger"),
		UserID: c.Query("user_id"),
	}
	if level := c.Query("level"); level != "" {
		filter.Level = logagg.ParseLevel(level)
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	if raw := c.Query("start"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Start = t
		}
	}
	if raw := c.Query("end"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.End = t
		}
	}

	logs := s.obs.Logs.Search(filter)
	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": len(logs)})
}

func (s *Server) getLogStatistics(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			hours = n
		}
	}
	c.JSON(http.StatusOK, s.obs.Logs.Statistics(hours))
}

func (s *Server) getLogPatterns(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"patterns": s.obs.Logs.TopPatterns(limit)})
}

func (s *Server) getUserActivity(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"logs": s.obs.Logs.UserActivity(c.Param("id"), limit)})
}
