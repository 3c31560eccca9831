package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dbsentry/internal/monitor"
)

// Server exposes the monitoring engine over HTTP. It is a thin read
// layer: all state lives in the monitor.
type Server struct {
	monitor *monitor.Monitor
	router  *gin.Engine
}

func NewServer(m *monitor.Monitor) *Server {
	server := &Server{
		monitor: m,
		router:  gin.Default(),
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	api.GET("/metrics/latest", s.getLatestMetrics)
	api.GET("/metrics/history", s.getMetricsHistory)

	api.GET("/alerts", s.listAlerts)
	api.PUT("/alerts/:id/resolve", s.resolveAlert)

	api.GET("/health", s.getHealthStatus)

	analysis := api.Group("/analysis")
	{
		analysis.GET("/slow-queries", s.getSlowQueries)
		analysis.GET("/table-health", s.getTableHealth)
		analysis.POST("/run", s.runAnalysis)
	}
}

func (s *Server) Start(port int) error {
	return s.router.Run(":" + strconv.Itoa(port))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) getLatestMetrics(c *gin.Context) {
	latest := s.monitor.Latest()
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metrics collected yet"})
		return
	}
	c.JSON(http.StatusOK, latest)
}

func (s *Server) getMetricsHistory(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = h
	}
	c.JSON(http.StatusOK, s.monitor.History(hours))
}

func (s *Server) listAlerts(c *gin.Context) {
	if c.Query("all") == "true" {
		c.JSON(http.StatusOK, s.monitor.AllAlerts())
		return
	}
	c.JSON(http.StatusOK, s.monitor.ActiveAlerts())
}

func (s *Server) resolveAlert(c *gin.Context) {
	id := c.Param("id")
	if !s.monitor.ResolveAlert(id) {
		c.JSON(http.StatusNotFound, gin.H{"resolved": false, "error": "alert not found or already resolved"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

func (s *Server) getHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.HealthStatus())
}

func (s *Server) getSlowQueries(c *gin.Context) {
	report := s.monitor.SlowQueryReport()
	if report == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) getTableHealth(c *gin.Context) {
	report := s.monitor.TableHealthReport()
	if report == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) runAnalysis(c *gin.Context) {
	slow, tables, err := s.monitor.RunAnalysis(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"slow_queries": slow,
		"table_health": tables,
	})
}
