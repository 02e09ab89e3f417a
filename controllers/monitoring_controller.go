package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pricewatch_backend/scheduler"
	"pricewatch_backend/services"
)

// MonitoringController handles portfolio registration and scheduler control
type MonitoringController struct {
	registry  *services.PortfolioRegistry
	quotes    services.QuoteSource
	scheduler *scheduler.MonitorScheduler
}

// NewMonitoringController creates a new monitoring controller
func NewMonitoringController(registry *services.PortfolioRegistry, quotes services.QuoteSource, sched *scheduler.MonitorScheduler) *MonitoringController {
	return &MonitoringController{
		registry:  registry,
		quotes:    quotes,
		scheduler: sched,
	}
}

type startMonitoringRequest struct {
	UserID  string   `json:"userId"`
	Tickers []string `json:"tickers"`
}

// StartMonitoring registers a user's portfolio and begins polling it
// POST /monitoring/start
func (mc *MonitoringController) StartMonitoring(c *gin.Context) {
	var req startMonitoringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		errorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}
	if len(req.Tickers) == 0 {
		errorResponse(c, http.StatusBadRequest, "tickers must not be empty")
		return
	}

	mc.registry.AddPortfolio(req.UserID, req.Tickers)

	// Push-style subscription is optional; polling does not depend on it
	if err := mc.quotes.StartMonitoring(req.UserID, req.Tickers); err != nil {
		log.Printf("Error starting push monitoring for user %s: %v", req.UserID, err)
	}

	successResponse(c, http.StatusOK, gin.H{
		"userId":  req.UserID,
		"tickers": mc.registry.GetPortfolio(req.UserID),
	})
}

type stopMonitoringRequest struct {
	UserID string `json:"userId"`
}

// StopMonitoring removes a user's portfolio from polling
// POST /monitoring/stop
func (mc *MonitoringController) StopMonitoring(c *gin.Context) {
	var req stopMonitoringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		errorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}

	mc.registry.RemovePortfolio(req.UserID)
	if err := mc.quotes.StopMonitoring(req.UserID); err != nil {
		log.Printf("Error stopping push monitoring for user %s: %v", req.UserID, err)
	}

	successResponse(c, http.StatusOK, gin.H{"userId": req.UserID})
}

type portfolioRequest struct {
	UserID  string   `json:"userId"`
	Tickers []string `json:"tickers"`
	Action  string   `json:"action"` // add, update
}

// UpsertPortfolio replaces a user's ticker set. Both actions fully
// replace the set; neither merges.
// POST /portfolio
func (mc *MonitoringController) UpsertPortfolio(c *gin.Context) {
	var req portfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		errorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}

	switch req.Action {
	case "add":
		mc.registry.AddPortfolio(req.UserID, req.Tickers)
	case "update":
		mc.registry.UpdatePortfolio(req.UserID, req.Tickers)
	default:
		errorResponse(c, http.StatusBadRequest, "action must be add or update")
		return
	}

	successResponse(c, http.StatusOK, gin.H{
		"userId":  req.UserID,
		"tickers": mc.registry.GetPortfolio(req.UserID),
	})
}

// RemovePortfolio drops a user's portfolio
// DELETE /portfolio?userId=
func (mc *MonitoringController) RemovePortfolio(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		errorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}

	mc.registry.RemovePortfolio(userID)
	successResponse(c, http.StatusOK, gin.H{"userId": userID})
}

// GetSchedulerStatus returns the running state and stats
// GET /scheduler?action=status
func (mc *MonitoringController) GetSchedulerStatus(c *gin.Context) {
	action := c.DefaultQuery("action", "status")
	if action != "status" {
		errorResponse(c, http.StatusBadRequest, "unknown action: "+action)
		return
	}
	successResponse(c, http.StatusOK, mc.scheduler.GetStatus())
}

// StartScheduler activates the recurring tasks
// POST /scheduler
func (mc *MonitoringController) StartScheduler(c *gin.Context) {
	mc.scheduler.Start()
	successResponse(c, http.StatusOK, mc.scheduler.GetStatus())
}

// StopScheduler cancels the recurring tasks
// POST /scheduler/stop
func (mc *MonitoringController) StopScheduler(c *gin.Context) {
	mc.scheduler.Stop()
	successResponse(c, http.StatusOK, mc.scheduler.GetStatus())
}

type schedulerConfigRequest struct {
	Enabled                    *bool `json:"enabled,omitempty"`
	PriceCheckIntervalSeconds  *int  `json:"priceCheckIntervalSeconds,omitempty"`
	HealthCheckIntervalSeconds *int  `json:"healthCheckIntervalSeconds,omitempty"`
	QuotaResetIntervalSeconds  *int  `json:"quotaResetIntervalSeconds,omitempty"`
	BatchSize                  *int  `json:"batchSize,omitempty"`
	BatchDelayMillis           *int  `json:"batchDelayMillis,omitempty"`
	QuoteTimeoutSeconds        *int  `json:"quoteTimeoutSeconds,omitempty"`
}

// UpdateSchedulerConfig merges a partial configuration change, restarting
// the tasks only if scheduling remains enabled
// PUT /scheduler/config
func (mc *MonitoringController) UpdateSchedulerConfig(c *gin.Context) {
	var req schedulerConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	update := scheduler.ConfigUpdate{
		Enabled:   req.Enabled,
		BatchSize: req.BatchSize,
	}
	if req.PriceCheckIntervalSeconds != nil {
		d := time.Duration(*req.PriceCheckIntervalSeconds) * time.Second
		update.PriceCheckInterval = &d
	}
	if req.HealthCheckIntervalSeconds != nil {
		d := time.Duration(*req.HealthCheckIntervalSeconds) * time.Second
		update.HealthCheckInterval = &d
	}
	if req.QuotaResetIntervalSeconds != nil {
		d := time.Duration(*req.QuotaResetIntervalSeconds) * time.Second
		update.QuotaResetInterval = &d
	}
	if req.BatchDelayMillis != nil {
		d := time.Duration(*req.BatchDelayMillis) * time.Millisecond
		update.BatchDelay = &d
	}
	if req.QuoteTimeoutSeconds != nil {
		d := time.Duration(*req.QuoteTimeoutSeconds) * time.Second
		update.QuoteTimeout = &d
	}

	cfg := mc.scheduler.UpdateConfig(update)
	successResponse(c, http.StatusOK, gin.H{
		"enabled":             cfg.Enabled,
		"priceCheckInterval":  cfg.PriceCheckInterval.String(),
		"healthCheckInterval": cfg.HealthCheckInterval.String(),
		"quotaResetInterval":  cfg.QuotaResetInterval.String(),
		"batchSize":           cfg.BatchSize,
		"batchDelay":          cfg.BatchDelay.String(),
		"quoteTimeout":        cfg.QuoteTimeout.String(),
		"isRunning":           mc.scheduler.IsRunning(),
	})
}
