package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/config"
	"ananse-ntentan/backend/pkg/di"
	"ananse-ntentan/backend/pkg/health"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/router"
	"ananse-ntentan/backend/shared/observability"
)

func main() {
	// Load environment variables
	godotenv.Load()

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	// Tracing and the Prometheus /metrics endpoint
	shutdownTracing := observability.SetupTracing("ananse-backend")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := config.Migrate(db,
		&models.Story{},
		&models.MediaFile{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.ArtisticStyle{},
		&models.AudioStyle{},
		&models.PromptTemplate{},
	); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Composite index the feed query needs; gorm tags cover the rest
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_stories_status_created ON stories(status, created_at DESC)").Error; err != nil {
		log.LogError(err, "Failed to create story feed index", "index", "idx_stories_status_created")
	}

	// Initialize dependency injection container
	container, err := di.New(db, cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	// Periodic component checks for orchestration probes
	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error { return config.TestConnection(db) })
	checker.RegisterRedisCheck(func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return container.Redis.Ping(pingCtx)
	})
	checker.Start()
	r.Engine.GET("/health/components", gin.WrapF(checker.HTTPHandler()))

	// Background sweep for visual messages stuck in generating
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.Features.VisualSweepPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := container.MessageService.SweepStaleVisuals(sweepCtx, cfg.Features.VisualSweepAge); err != nil {
					log.LogError(err, "Visual message sweep failed")
				}
			}
		}
	}()

	// Create HTTP server
	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r.Engine,
		ReadTimeout: cfg.Server.Timeout,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	if err := container.Redis.Close(); err != nil {
		log.LogError(err, "Failed to close redis client")
	}

	log.Info("Server exited gracefully")
}
