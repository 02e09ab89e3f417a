package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pricewatch_backend/config"
	"pricewatch_backend/routes"
	"pricewatch_backend/scheduler"
	"pricewatch_backend/services"
)

func main() {
	log.Println("==============================================")
	log.Println("  Pricewatch Backend API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	setupHealthEndpoints(router)

	// Persistence layer
	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Store initialization failed: %v", err)
	}
	defer store.Close()

	// Core services, constructed once and injected everywhere
	registry := services.NewPortfolioRegistry()
	ledger := services.NewPositionLedgerWithPolicy(store, services.AlertPolicy(cfg.AlertPolicy))
	quotes := services.NewHTTPQuoteSource(cfg.QuoteAPIURL, cfg.QuoteTimeout, cfg.QuoteAPILimit)
	hub := services.NewNotifyHub()

	var sink services.NotificationSink = hub
	if cfg.MongoURI != "" {
		archive, err := services.NewMongoNotificationArchive(cfg.MongoURI, hub)
		if err != nil {
			log.Printf("MongoDB archive unavailable, notifications will not be archived: %v", err)
		} else {
			sink = archive
		}
	}

	// Background scheduler, owned here and passed by reference
	monitorScheduler := scheduler.NewMonitorScheduler(scheduler.Config{
		Enabled:             cfg.SchedulerEnabled,
		PriceCheckInterval:  cfg.PriceCheckInterval,
		HealthCheckInterval: cfg.HealthCheckInterval,
		QuotaResetInterval:  cfg.QuotaResetInterval,
		BatchSize:           cfg.BatchSize,
		BatchDelay:          cfg.BatchDelay,
		QuoteTimeout:        cfg.QuoteTimeout,
	}, registry, ledger, quotes, sink)

	routes.SetupRoutes(router, registry, ledger, quotes, monitorScheduler, hub)

	if cfg.SchedulerEnabled {
		monitorScheduler.Start()
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(server, monitorScheduler, hub)
}

// buildStore selects the persistence implementation from configuration
func buildStore(cfg *config.Config) (services.PositionStore, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		log.Printf("Using SQLite position store at %s", cfg.SQLitePath)
		return services.NewSQLitePositionStore(cfg.SQLitePath)
	case "postgres":
		log.Println("Using Postgres position store")
		return services.NewGormPositionStore(cfg.PostgresDSN(), cfg.Environment)
	default:
		log.Println("Using in-memory position store")
		return services.NewInMemoryPositionStore(), nil
	}
}

// setupHealthEndpoints sets up liveness endpoints
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Pricewatch Backend API",
			"version": "1.0.0",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, monitorScheduler *scheduler.MonitorScheduler, hub *services.NotifyHub) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first so no new cycles start
	monitorScheduler.Stop()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown completed")
}
