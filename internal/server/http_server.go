package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	ginapi "github.com/pilab-dev/pagepost/api/gin"
	"github.com/pilab-dev/pagepost/config"
	"github.com/pilab-dev/pagepost/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the gin engine with middleware, the LinkedIn routes,
// /health and /metrics.
func NewRouter(cfg *config.ServerConfig, appLogger log.Logger, api *ginapi.LinkedInAPI, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginapi.RequestIDMiddleware())
	router.Use(ginapi.LoggingMiddleware(appLogger))
	router.Use(ginapi.SecurityHeadersMiddleware())

	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware(cfg.OtelServiceName))
	}

	// Multipart parts above this size spill to disk.
	router.MaxMultipartMemory = 8 << 20

	api.RegisterRoutes(router)

	router.GET("/health", ginapi.HealthHandler)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// NewHTTPServer wraps the router in an http.Server. The write timeout leaves
// room for the slowest flow: exchange, profile, pages and an upload.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *ginapi.LinkedInAPI, gatherer prometheus.Gatherer) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           NewRouter(cfg, appLogger, api, gatherer),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
