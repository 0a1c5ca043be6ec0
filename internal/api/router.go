package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/api/handlers"
	"github.com/pvieira/domain-sentry/internal/api/middleware"
	"github.com/pvieira/domain-sentry/internal/config"
)

type Server struct {
	Config *config.Config
	Router *gin.Engine
}

// NewServer wires the HTTP surface: health, Prometheus metrics, and the
// multiplexed monitoring route.
func NewServer(cfg *config.Config, h *handlers.MonitoringHandler, registry *prometheus.Registry, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	monitoring := router.Group("/api/v1/monitoring")
	{
		monitoring.GET("", h.Get)
		monitoring.POST("", h.Post)
		monitoring.PUT("", h.Put)
		monitoring.DELETE("", h.Delete)
	}

	return &Server{Config: cfg, Router: router}
}
