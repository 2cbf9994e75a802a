package handlers

import (
	"net/http"
	"runtime"

	"example.com/concertbot/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsHandler exposes the in-process metrics collector
type MetricsHandler struct {
	collector *metrics.Collector
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(collector *metrics.Collector) *MetricsHandler {
	return &MetricsHandler{collector: collector}
}

// RegisterRoutes registers the metrics routes
func (h *MetricsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", h.GetMetrics)
}

// GetMetrics returns a snapshot of service metrics
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	snapshot := h.collector.Snapshot()
	snapshot["goroutines"] = runtime.NumGoroutine()
	c.JSON(http.StatusOK, snapshot)
}
