// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plc-monitor/internal/config"
	"plc-monitor/internal/database"
	"plc-monitor/internal/service"
	"plc-monitor/internal/utils"
	"plc-monitor/pkg/mcclient"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *database.DB
	monitor   *service.MonitorService
	config    *config.Config
	logger    *utils.ServiceLogger
	startedAt time.Time
}

// NewHealthHandler creates a new health handler. db is nil when the
// database is disabled.
func NewHealthHandler(db *database.DB, monitor *service.MonitorService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		monitor:   monitor,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/health/db", h.DatabaseHealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including the controller link and database connectivity
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).String(),
		Checks:    make(map[string]CheckResult),
	}

	// Controller link; a link that is retrying degrades but does not fail
	status := h.monitor.Status()
	plc := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"state":      status.State.String(),
			"host":       status.Host,
			"port":       status.Port,
			"reconnects": status.Engine.Reconnects,
			"last_error": status.Engine.LastError,
		},
	}
	switch status.State {
	case mcclient.StateConnected:
		plc.Message = "PLC connection OK"
	case mcclient.StateStopped:
		plc.Status = "unhealthy"
		plc.Message = "PLC monitor stopped"
		health.Status = "unhealthy"
	default:
		plc.Status = "degraded"
		plc.Message = "PLC not connected"
		if health.Status == "healthy" {
			health.Status = "degraded"
		}
	}
	health.Checks["plc"] = plc

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			health.Status = "unhealthy"
			health.Checks["database"] = CheckResult{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			stats := h.db.GetStats()
			health.Checks["database"] = CheckResult{
				Status:  "healthy",
				Message: "Database connection OK",
				Data: map[string]interface{}{
					"open_connections": stats.OpenConnections,
					"in_use":           stats.InUse,
					"idle":             stats.Idle,
				},
			}
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// DatabaseHealthCheck checks database connectivity
// @Summary Database health check
// @Description Check database connectivity and pool statistics
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse "Database is healthy"
// @Failure 404 {object} utils.APIResponse "Database is disabled"
// @Failure 503 {object} utils.APIResponse "Database is unhealthy"
// @Router /health/db [get]
func (h *HealthHandler) DatabaseHealthCheck(c *gin.Context) {
	if h.db == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Database is disabled", nil)
		return
	}

	startTime := time.Now()

	if err := h.db.HealthCheck(c.Request.Context()); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Database unhealthy", err)
		return
	}

	stats := h.db.GetStats()
	response := gin.H{
		"status":           "healthy",
		"response_time_ms": time.Since(startTime).Milliseconds(),
		"stats": gin.H{
			"open_connections":    stats.OpenConnections,
			"in_use":              stats.InUse,
			"idle":                stats.Idle,
			"wait_count":          stats.WaitCount,
			"wait_duration":       stats.WaitDuration,
			"max_lifetime_closed": stats.MaxLifetimeClosed,
		},
	}

	utils.SuccessResponse(c, http.StatusOK, "Database is healthy", response)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Ready once the monitor runs and, when enabled, the database answers
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.monitor.Status().State == mcclient.StateStopped {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "monitor stopped",
		})
		return
	}

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
