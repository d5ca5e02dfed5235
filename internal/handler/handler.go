package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is anything readiness depends on.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Handler serves the operational endpoints.
type Handler struct {
	deps     map[string]Pinger
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

// NewHandler creates a new handler instance. deps are checked by the
// readiness probe, keyed by the name reported on failure.
func NewHandler(deps map[string]Pinger, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		deps:     deps,
		gatherer: gatherer,
		timeout:  2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) MetricsHandler() gin.HandlerFunc {
	ph := promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		ph.ServeHTTP(c.Writer, c.Request)
	}
}
