// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"plc-monitor/internal/config"
	"plc-monitor/internal/database"
	"plc-monitor/internal/handler"
	"plc-monitor/internal/middleware"
	"plc-monitor/internal/service"
	"plc-monitor/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config         *config.Config
	logger         *zap.Logger
	db             *database.DB
	monitorService *service.MonitorService
	wsHandler      *handler.WebSocketHandler
	registry       *prometheus.Registry
}

// NewRouter creates a new router instance. db is nil when the database is
// disabled and registry is nil when metrics are.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	monitorService *service.MonitorService,
	wsHandler *handler.WebSocketHandler,
	registry *prometheus.Registry,
) *Router {
	return &Router{
		config:         config,
		logger:         logger,
		db:             db,
		monitorService: monitorService,
		wsHandler:      wsHandler,
		registry:       registry,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case gin.Mode() == gin.TestMode:
	case r.config.IsDevelopment() || r.config.App.Debug:
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))
	router.Use(middleware.RecoveryMiddleware(r.logger))

	if r.registry != nil {
		router.Use(middleware.MetricsMiddleware(middleware.NewHTTPMetrics(r.registry, r.config.Metrics.Namespace)))
	}

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.monitorService, r.config, r.logger)
	monitorHandler := handler.NewMonitorHandler(r.monitorService, r.logger)

	// Health check routes (no auth required)
	healthHandler.RegisterRoutes(router.Group(""))

	// API v1 routes
	monitorHandler.RegisterRoutes(router.Group("/api/v1"))

	// WebSocket routes
	r.addWebSocketRoutes(router)

	// Metrics
	if r.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})))
	}

	// Documentation routes
	if !r.config.IsProduction() {
		r.addDocumentationRoutes(router)
	}

	r.logger.Info("All routes configured successfully")
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine) {
	if r.wsHandler == nil {
		return
	}
	ws := router.Group("/ws")
	r.wsHandler.RegisterRoutes(ws)
	ws.GET("/stats", func(c *gin.Context) {
		utils.SuccessResponse(c, http.StatusOK, "WebSocket statistics", r.wsHandler.GetConnectionStats())
	})
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
