package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/livyflow/observer/internal/synthetic"
)

func (s *Server) createCheck(c *gin.Context) {
	var check synthetic.Check
	if err := c.ShouldBindJSON(&check); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if check.ID == "" || check.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check id and url are required"})
		return
	}

	s.obs.Synthetic.AddCheck(check)
	c.JSON(http.StatusCreated, check)
}

func (s *Server) createJourney(c *gin.Context) {
	var journey synthetic.Journey
	if err := c.ShouldBindJSON(&journey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if journey.ID == "" || len(journey.Steps) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "journey id and steps are required"})
		return
	}

	s.obs.Synthetic.AddJourney(journey)
	c.JSON(http.StatusCreated, journey)
}

func (s *Server) getChecksStatus(c *gin.Context) {
	checks := make(map[string]synthetic.CheckSummary)
	for _, check := range s.obs.Synthetic.Checks() {
		if summary, ok := s.obs.Synthetic.CheckSummaryFor(check.ID); ok {
			checks[check.ID] = summary
		}
	}
	for _, journey := range s.obs.Synthetic.Journeys() {
		if summary, ok := s.obs.Synthetic.CheckSummaryFor(journey.ID); ok {
			checks[journey.ID] = summary
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"overall": s.obs.Synthetic.Overall(),
		"checks":  checks,
	})
}

func (s *Server) getCheckResults(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	results := s.obs.Synthetic.Results(c.Param("id"), limit)
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

func (s *Server) runCheck(c *gin.Context) {
	result, err := s.obs.Synthetic.RunCheck(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
