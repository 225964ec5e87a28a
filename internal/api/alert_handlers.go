package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/livyflow/observer/internal/alert"
)

func (s *Server) listAlerts(c *gin.Context) {
	if c.Query("history") == "true" {
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		c.JSON(http.StatusOK, s.obs.Alerts.History(limit))
		return
	}
	c.JSON(http.StatusOK, s.obs.Alerts.ActiveAlerts())
}

func (s *Server) getAlert(c *gin.Context) {
	a, ok := s.obs.Alerts.GetAlert(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) getAlertSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.obs.Alerts.Summary())
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.obs.Alerts.Acknowledge(c.Param("id"), req.UserID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) resolveAlert(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.obs.Alerts.Resolve(c.Param("id"), req.UserID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) listRules(c *gin.Context) {
	c.JSON(http.StatusOK, s.obs.Alerts.Rules())
}

func (s *Server) createRule(c *gin.Context) {
	var rule alert.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.obs.Alerts.AddRule(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	var rule alert.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = c.Param("id")

	if err := s.obs.Alerts.UpdateRule(rule); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	if err := s.obs.Alerts.RemoveRule(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule deleted successfully"})
}
