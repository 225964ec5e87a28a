package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type metricSubmission struct {
	Type      string                 `json:"type" binding:"required"`
	Data      map[string]interface{} `json:"data" binding:"required"`
	Timestamp float64                `json:"timestamp"`
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.obs.Collector.Summary())
}

func (s *Server) getPrometheusMetrics(c *gin.Context) {
	c.String(http.StatusOK, s.obs.Collector.PrometheusText())
}

func (s *Server) getSystemMetrics(c *gin.Context) {
	summary := s.obs.Collector.Summary()
	c.JSON(http.StatusOK, gin.H{
		"cpu_percent":    summary.Gauges["system_cpu_percent"],
		"memory_percent": summary.Gauges["system_memory_percent"],
		"disk_percent":   summary.Gauges["system_disk_percent"],
		"timestamp":      time.Now(),
	})
}

// submitMetrics receives client-side metrics in batch, error, or
// business_event form.
func (s *Server) submitMetrics(c *gin.Context) {
	var submission metricSubmission
	if err := c.ShouldBindJSON(&submission); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.processClientMetrics(submission.Type, submission.Data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "timestamp": time.Now()})
}

func (s *Server) processClientMetrics(metricType string, data map[string]interface{}) error {
	switch metricType {
	case "batch":
		categories, _ := data["metrics"].(map[string]interface{})
		for category, raw := range categories {
			items, _ := raw.([]interface{})
			for _, item := range items {
				metric, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				s.processClientMetric(category, metric)
			}
		}
	case "error":
		s.obs.Collector.IncrementCounter("frontend_errors_total", 1, map[string]string{
			"error_type": stringField(data, "type", "unknown"),
			"severity":   stringField(data, "severity", "low"),
		})
	case "business_event":
		eventType := stringField(data, "type", "unknown")
		s.obs.Collector.IncrementCounter(fmt.Sprintf("business_events_%s_total", eventType), 1, map[string]string{
			"user_id": stringField(data, "userId", "anonymous"),
		})
	default:
		return fmt.Errorf("unknown metric type: %s", metricType)
	}
	return nil
}

func (s *Server) processClientMetric(category string, metric map[string]interface{}) {
	switch category {
	case "performance":
		perfType := stringField(metric, "type", "unknown")
		switch perfType {
		case "navigation", "lcp", "fid":
			s.obs.Collector.RecordHistogram(fmt.Sprintf("frontend_%s_ms", perfType),
				floatField(metric, "value"),
				map[string]string{"page": stringField(metric, "url", "unknown")})
		}
	case "userActions":
		s.obs.Collector.IncrementCounter("frontend_user_actions_total", 1, map[string]string{
			"action":   stringField(metric, "action", "unknown"),
			"category": stringField(metric, "category", "unknown"),
		})
	case "apiCalls":
		endpoint := stringField(metric, "url", "unknown")
		status := int(floatField(metric, "status"))
		s.obs.Collector.RecordHistogram("frontend_api_duration_ms",
			floatField(metric, "duration"),
			map[string]string{"endpoint": endpoint, "status": fmt.Sprintf("%d", status)})
		if status >= 400 {
			s.obs.Collector.IncrementCounter("frontend_api_errors_total", 1, map[string]string{
				"endpoint": endpoint,
				"status":   fmt.Sprintf("%d", status),
			})
		}
	case "businessEvents":
		eventType := stringField(metric, "type", "unknown")
		s.obs.Collector.IncrementCounter(fmt.Sprintf("frontend_business_%s_total", eventType), 1, map[string]string{
			"user_id": stringField(metric, "userId", "anonymous"),
		})
	}
}

func stringField(m map[string]interface{}, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
