package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/surfvision/camtuner/internal/camera"
	"github.com/surfvision/camtuner/internal/health"
)

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/cameras", s.handleListCameras)

		cam := v1.Group("/cameras/:id")
		{
			cam.GET("", s.handleGetCamera)
			cam.GET("/settings", s.handleGetSettings)
			cam.POST("/settings", s.handleSetSettings)
			cam.GET("/samples", s.handleSamples)
			cam.GET("/adjustments", s.handleAdjustments)
			cam.GET("/snapshot", s.handleSnapshot)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.checks.Run(c.Request.Context())

	code := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":  s.version,
		"system":   s.collector.SystemReport(),
		"services": s.manager.GetAllStatuses(),
	})
}

func (s *Server) handleListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cameras": s.collector.Reports(),
	})
}

func (s *Server) handleGetCamera(c *gin.Context) {
	id := c.Param("id")
	report, ok := s.collector.Report(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown camera"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	ctrl, ok := s.controllers[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown camera"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings": ctrl.Settings(),
		"status":   ctrl.Status(),
	})
}

// handleSetSettings forwards operator-supplied values straight to the
// camera, bypassing the advisor
func (s *Server) handleSetSettings(c *gin.Context) {
	ctrl, ok := s.controllers[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown camera"})
		return
	}

	var desired camera.Settings
	if err := c.ShouldBindJSON(&desired); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctrl.ApplySettings(c.Request.Context(), desired); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": ctrl.Settings()})
}

func (s *Server) handleSamples(c *gin.Context) {
	samples, err := s.states.RecentSamples(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

func (s *Server) handleAdjustments(c *gin.Context) {
	adjustments, err := s.states.RecentAdjustments(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustments": adjustments})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	info, err := s.store.Latest(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot available"})
		return
	}
	c.File(info.Path)
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}
