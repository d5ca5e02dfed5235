package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	h         *handler.Handler
	publicH   Handler
	authH     Handler
	protected []Handler
	metrics   *routerMetrics
	access    *middleware.AuditMiddleware
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	CORSConfig     middleware.CORSConfig
	Security       middleware.SecurityConfig
	RequestTimeout time.Duration
	MaxBodySize    int64
	MetricsPrefix  string
	Registerer     prometheus.Registerer
	// Auditor, when set, records staff reads on the audit trail.
	Auditor audit.Logger
}

// NewRouter wires the middleware chain. publicH and authH are mounted
// without authentication; every handler in protected sits behind
// Authenticate and enforces its own roles.
func NewRouter(
	auth *middleware.AuthMiddleware,
	h *handler.Handler,
	publicH Handler,
	authH Handler,
	protected []Handler,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.UseJSONFieldNames()

	engine := gin.New()

	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "clinic_api"
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	r := &Router{
		engine:    engine,
		auth:      auth,
		h:         h,
		publicH:   publicH,
		authH:     authH,
		protected: protected,
		metrics:   initRouterMetrics(config.MetricsPrefix, config.Registerer),
		access:    middleware.NewAuditMiddleware(config.Auditor),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(config.Security),
		middleware.SizeLimit(config.MaxBodySize),
		middleware.Compress(middleware.DefaultCompressConfig()),
	)
	if config.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(config.RequestTimeout))
	}

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.h.MetricsHandler())

	api := r.engine.Group("/api/v1")
	api.Use(middleware.Version(middleware.DefaultVersionConfig()))

	r.h.RegisterRoutes(api)
	r.publicH.RegisterRoutes(api)
	r.authH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate(), r.access.AccessLog())
	for _, h := range r.protected {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	factory := promauto.With(reg)
	return &routerMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// route template, not the raw path, to keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()
		status := strconv.Itoa(code)

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		switch {
		case code >= 500:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "server").Inc()
		case code >= 400:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "client").Inc()
		}
	}
}
