package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"pricewatch_backend/controllers"
	"pricewatch_backend/middleware"
	"pricewatch_backend/scheduler"
	"pricewatch_backend/services"
)

// SetupRoutes sets up all API routes
func SetupRoutes(
	router *gin.Engine,
	registry *services.PortfolioRegistry,
	ledger *services.PositionLedger,
	quotes services.QuoteSource,
	sched *scheduler.MonitorScheduler,
	hub *services.NotifyHub,
) {
	// Initialize controllers
	monitoringController := controllers.NewMonitoringController(registry, quotes, sched)
	positionController := controllers.NewPositionController(ledger)
	quoteController := controllers.NewQuoteController(quotes)

	// Monitoring routes
	monitoring := router.Group("/monitoring")
	{
		monitoring.POST("/start", monitoringController.StartMonitoring)
		monitoring.POST("/stop", monitoringController.StopMonitoring)
	}

	// Portfolio routes
	router.POST("/portfolio", monitoringController.UpsertPortfolio)
	router.DELETE("/portfolio", monitoringController.RemovePortfolio)

	// Scheduler routes
	router.GET("/scheduler", monitoringController.GetSchedulerStatus)
	router.POST("/scheduler", monitoringController.StartScheduler)
	router.POST("/scheduler/stop", monitoringController.StopScheduler)
	router.PUT("/scheduler/config", monitoringController.UpdateSchedulerConfig)

	// Position and alert routes
	positions := router.Group("/positions")
	{
		positions.GET("", positionController.GetPositions)
		positions.POST("", positionController.CreatePosition)
		positions.PUT("", positionController.UpdatePosition)
		positions.DELETE("", positionController.DeletePosition)
		positions.GET("/alerts", positionController.GetAlerts)
		positions.PUT("/alerts", positionController.MarkAlertRead)
	}

	// On-demand quote routes, rate limited per client IP
	quoteLimiter := middleware.NewRateLimiter(60, time.Minute)
	quoteRoutes := router.Group("/quotes", quoteLimiter.Middleware())
	{
		quoteRoutes.GET("", quoteController.GetQuotes)
		quoteRoutes.GET("/status", quoteController.GetStatus)
	}

	// WebSocket attach point for push notifications
	if hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			hub.HandleWebSocket(c.Writer, c.Request)
		})
	}
}
