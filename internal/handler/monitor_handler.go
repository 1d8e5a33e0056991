// internal/handler/monitor_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plc-monitor/internal/driver/melsec"
	"plc-monitor/internal/repository"
	"plc-monitor/internal/service"
	"plc-monitor/internal/utils"
)

// maxWait bounds a single POST /monitor/wait
const maxWait = 5 * time.Minute

// MonitorHandler handles target and trigger HTTP requests
type MonitorHandler struct {
	monitorService *service.MonitorService
	logger         *utils.ServiceLogger
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService *service.MonitorService, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		logger:         utils.NewServiceLogger(logger, "monitor-handler"),
	}
}

// RegisterRoutes registers monitor routes
func (h *MonitorHandler) RegisterRoutes(router *gin.RouterGroup) {
	monitor := router.Group("/monitor")
	{
		monitor.GET("", h.GetStatus)
		monitor.PUT("/target", h.SetTarget)
		monitor.POST("/wait", h.Wait)
		monitor.GET("/value", h.GetValue)
	}

	router.GET("/events", h.ListEvents)
	router.GET("/device-types", h.ListDeviceTypes)
}

// WaitRequest bounds a wait for the current target
type WaitRequest struct {
	TimeoutMs int64 `json:"timeout_ms" binding:"min=0" example:"5000"`
}

// ValueResponse carries the last trigger value
type ValueResponse struct {
	Value uint16 `json:"value"`
}

// GetStatus returns the monitor status
// @Summary Get monitor status
// @Description Connection state, current target, last observed value and engine counters
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.MonitorStatus} "Monitor status"
// @Router /monitor [get]
func (h *MonitorHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Monitor status retrieved", h.monitorService.Status())
}

// SetTarget replaces the watched target
// @Summary Set target
// @Description Replace the watched word, value and mask. A malformed address leaves the previous target in effect.
// @Tags Monitor
// @Accept json
// @Produce json
// @Param request body service.TargetRequest true "Target"
// @Success 200 {object} utils.APIResponse{data=service.MonitorStatus} "Target set"
// @Failure 400 {object} utils.APIResponse "Invalid target"
// @Router /monitor/target [put]
func (h *MonitorHandler) SetTarget(c *gin.Context) {
	var req service.TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.monitorService.SetTarget(&req); err != nil {
		var addrErr *melsec.AddressError
		switch {
		case errors.As(err, &addrErr):
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid address", err)
		case errors.Is(err, service.ErrInvalidScale):
			utils.ValidationErrorResponse(c, map[string]string{"scale": err.Error()})
		default:
			h.logger.Error("Failed to set target", zap.Error(err))
			utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to set target", err)
		}
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Target set", h.monitorService.Status())
}

// Wait blocks until the current target matches or the timeout elapses
// @Summary Wait for trigger
// @Description Block until the target matches or timeout_ms elapses. A timeout of 0 waits until the client disconnects, capped at five minutes.
// @Tags Monitor
// @Accept json
// @Produce json
// @Param request body WaitRequest true "Wait bound"
// @Success 200 {object} utils.APIResponse{data=service.WaitResult} "Wait finished"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Router /monitor/wait [post]
func (h *MonitorHandler) Wait(c *gin.Context) {
	var req WaitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 || timeout > maxWait {
		timeout = maxWait
	}

	result := h.monitorService.Wait(c.Request.Context(), timeout)
	message := "Target matched"
	if !result.Matched {
		message = "Target not matched before timeout"
	}
	utils.SuccessResponse(c, http.StatusOK, message, result)
}

// GetValue returns the value of the last raised trigger
// @Summary Current trigger value
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ValueResponse} "Current value"
// @Router /monitor/value [get]
func (h *MonitorHandler) GetValue(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Current value retrieved", &ValueResponse{
		Value: h.monitorService.CurrentValue(),
	})
}

// ListEvents lists stored trigger events newest first
// @Summary List trigger events
// @Tags Events
// @Produce json
// @Param limit query int false "Maximum events" default(100)
// @Param address query string false "Filter by address"
// @Param name query string false "Filter by target name"
// @Param since query string false "RFC3339 lower bound on matched_at"
// @Success 200 {object} utils.APIResponse{data=[]model.TriggerEvent} "Events"
// @Failure 400 {object} utils.APIResponse "Invalid filter"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /events [get]
func (h *MonitorHandler) ListEvents(c *gin.Context) {
	filter := &repository.TriggerEventFilter{Limit: repository.DefaultListLimit}
	errs := map[string]string{}

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		} else {
			errs["limit"] = "must be a positive integer"
		}
	}
	if address := c.Query("address"); address != "" {
		filter.Address = &address
	}
	if name := c.Query("name"); name != "" {
		filter.Name = &name
	}
	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		} else {
			errs["since"] = "must be an RFC3339 timestamp"
		}
	}

	if len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	events, err := h.monitorService.ListEvents(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Events retrieved", events)
}

// ListDeviceTypes lists the device mnemonics accepted in addresses
// @Summary List device types
// @Description Device mnemonics with their MC protocol type code and the numeric base of their offsets
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]melsec.DeviceType} "Device types"
// @Router /device-types [get]
func (h *MonitorHandler) ListDeviceTypes(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Device types retrieved", melsec.DeviceTypes())
}
