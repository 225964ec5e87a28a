package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const slowRequestMS = 5000

// requestMetrics times every request and feeds the metrics collector. Each
// request is assigned an id exposed as X-Request-ID.
func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()
		durationMS := float64(time.Since(start)) / float64(time.Millisecond)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		status := c.Writer.Status()

		collector := s.obs.Collector
		collector.IncrementCounter("http_requests_total", 1, map[string]string{
			"method":   method,
			"endpoint": endpoint,
		})
		collector.IncrementCounter("http_responses_total", 1, map[string]string{
			"method":   method,
			"endpoint": endpoint,
			"status":   strconv.Itoa(status),
		})
		collector.RecordHistogram("http_request_duration_ms", durationMS, map[string]string{
			"method":   method,
			"endpoint": endpoint,
		})

		if status >= 400 {
			collector.IncrementCounter("http_errors_total", 1, map[string]string{
				"method":   method,
				"endpoint": endpoint,
				"status":   strconv.Itoa(status),
			})
		}
		if durationMS > slowRequestMS {
			collector.IncrementCounter("slow_requests_total", 1, map[string]string{
				"method":   method,
				"endpoint": endpoint,
			})
		}
	}
}
