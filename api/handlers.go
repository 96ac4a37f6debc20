// Package api adapts the HTTP wire protocol described in SPEC_FULL.md §6
// onto the distributor's ingest boundary, using the same gin-based
// router and middleware shape the teacher service uses.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"logdistributor/distributor/implementations"
	"logdistributor/distributor/interfaces"
	"logdistributor/models"
	"logdistributor/telemetry"
)

// Handler exposes the distributor over HTTP.
type Handler struct {
	distributor interfaces.Distributor
	metrics     *telemetry.Metrics
	logger      *zap.Logger
}

// NewHandler builds a Handler over a running Distributor.
func NewHandler(d interfaces.Distributor, metrics *telemetry.Metrics, logger *zap.Logger) *Handler {
	return &Handler{distributor: d, metrics: metrics, logger: logger}
}

// SetupRoutes configures the ingest, health, stats, and metrics routes.
func (h *Handler) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(h.loggingMiddleware())
	r.Use(h.corsMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/distribute", h.Distribute)
		v1.POST("/logs", h.Distribute) // historical alias, see SPEC_FULL.md §6
		v1.GET("/health", h.HealthCheck)
		v1.GET("/stats", h.Stats)
	}

	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	return r
}

// Distribute handles POST /api/v1/distribute (and its /logs alias).
func (h *Handler) Distribute(c *gin.Context) {
	var packet models.LogPacket
	if err := c.ShouldBindJSON(&packet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if err := implementations.ValidatePacket(packet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if packet.PacketID == "" {
		packet = models.NewLogPacket(packet.AgentID, packet.Messages)
	}

	// The core contract requires only that counters stay accurate; a
	// rejection (no online analyzer, distributor not running) is still a 202 to
	// the already-committed client, per spec.md §6.
	h.distributor.SubmitPacket(packet)
	c.Status(http.StatusAccepted)
}

// HealthCheck handles GET /api/v1/health.
func (h *Handler) HealthCheck(c *gin.Context) {
	stats := h.distributor.Stats()

	status := "healthy"
	switch {
	case stats.ActiveAnalyzers == 0:
		status = "unhealthy"
	case stats.ActiveAnalyzers < len(stats.Analyzers):
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"active_analyzers": stats.ActiveAnalyzers,
		"total_analyzers":  len(stats.Analyzers),
		"packets_received": stats.PacketsReceived,
		"packets_dropped":  stats.PacketsDropped,
		"timestamp":        time.Now(),
	})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.distributor.Stats())
}

// loggingMiddleware logs every HTTP request except the health endpoint,
// adapted from the teacher's request-logging middleware.
func (h *Handler) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/api/v1/health" {
			return
		}

		latency := time.Since(start)
		level := zap.InfoLevel
		if c.Writer.Status() >= 400 {
			level = zap.ErrorLevel
		}

		if ce := h.logger.Check(level, "http request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("latency", latency),
				zap.String("client_ip", c.ClientIP()),
			)
		}
	}
}

// corsMiddleware mirrors the teacher's permissive CORS configuration.
func (h *Handler) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
