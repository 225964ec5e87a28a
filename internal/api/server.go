package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/livyflow/observer/internal/observability"
)

type Server struct {
	obs    *observability.Manager
	router *gin.Engine
}

func NewServer(obs *observability.Manager) *Server {
	server := &Server{
		obs:    obs,
		router: gin.Default(),
	}
	server.router.Use(server.requestMetrics())

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.getHealth)
	s.router.GET("/health/ready", s.getReadiness)
	s.router.GET("/health/live", s.getLiveness)

	api := s.router.Group("/api/v1")

	// Metrics endpoints
	api.GET("/metrics", s.getMetrics)
	api.GET("/metrics/prometheus", s.getPrometheusMetrics)
	api.POST("/metrics", s.submitMetrics)
	api.GET("/metrics/system", s.getSystemMetrics)

	// Alert management endpoints
	api.GET("/alerts", s.listAlerts)
	api.GET("/alerts/summary", s.getAlertSummary)
	api.GET("/alerts/:id", s.getAlert)
	api.POST("/alerts/:id/acknowledge", s.acknowledgeAlert)
	api.POST("/alerts/:id/resolve", s.resolveAlert)

	rules := api.Group("/alerts/rules")
	{
		rules.GET("", s.listRules)
		rules.POST("", s.createRule)
		rules.PUT("/:id", s.updateRule)
		rules.DELETE("/:id", s.deleteRule)
	}

	// Synthetic monitoring endpoints
	api.POST("/checks", s.createCheck)
	api.POST("/journeys", s.createJourney)
	api.GET("/checks/status", s.getChecksStatus)
	api.GET("/checks/:id/results", s.getCheckResults)
	api.POST("/checks/:id/run", s.runCheck)

	// Log aggregation endpoints
	api.POST("/logs", s.ingestLog)
	api.GET("/logs", s.searchLogs)
	api.GET("/logs/statistics", s.getLogStatistics)
	api.GET("/logs/patterns", s.getLogPatterns)
	api.GET("/logs/users/:id", s.getUserActivity)
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) getHealth(c *gin.Context) {
	report := s.obs.Health.Run()
	c.JSON(http.StatusOK, gin.H{
		"status":      report.Status,
		"timestamp":   report.Timestamp,
		"checks":      report.Checks,
		"initialized": s.obs.Initialized(),
		"components":  s.obs.Components(),
	})
}

func (s *Server) getReadiness(c *gin.Context) {
	report := s.obs.Health.Run()
	if report.Status == observability.StatusHealthy || report.Status == observability.StatusDegraded {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "timestamp": time.Now()})
}

func (s *Server) getLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now()})
}
