// @title           Room FFE API
// @version         1.0
// @description     Room FFE 체크리스트와 워크플로우 단계 관리 API
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /api/ffe

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "room-ffe-api/docs" // Swagger docs import

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/config"
	"room-ffe-api/internal/database"
	"room-ffe-api/internal/job"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/metrics"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/router"
	"room-ffe-api/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Room FFE Service",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Initialize metrics
	m := metrics.NewWithLogger(logger)
	logger.Info("Metrics initialized")

	// Initialize database
	db, err := database.New(database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	if err := database.SafeAutoMigrate(db, logger); err != nil {
		logger.Warn("Failed to run database migrations", zap.Error(err))
	} else {
		logger.Info("Database migrations completed")
	}

	enforceIndex := func() error { return database.EnsureStageUniqueIndex(db) }
	if cfg.Maintenance.EnforceStageUniqueIndex {
		// Refused while duplicates remain; the cleanup job retries after a clean pass
		if err := enforceIndex(); err != nil {
			logger.Warn("Stage unique index not installed", zap.Error(err))
		}
	} else {
		enforceIndex = nil
	}

	if err := database.RegisterMetricsCallbacks(db, m); err != nil {
		logger.Warn("Failed to register database metrics callbacks", zap.Error(err))
	}
	statsDone := database.StartDBStatsCollector(db, m, 15*time.Second)
	defer close(statsDone)

	// Distributed room lock (Redis when configured, in-process otherwise)
	redisClient, err := database.NewRedis(cfg.Redis, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, using in-process locks", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	locker := lock.New(redisClient, cfg.Redis.LockTTL, logger)

	// Activity feed client
	activityClient := client.NewNoOpActivityClient()
	if cfg.Activity.BaseURL != "" {
		activityClient = client.NewActivityClient(cfg.Activity.BaseURL, cfg.Activity.APIKey, cfg.Activity.Timeout, logger, m)
		logger.Info("Activity client initialized", zap.String("activity_url", cfg.Activity.BaseURL))
	} else {
		logger.Warn("Activity service URL not set, activity events disabled")
	}

	// Business gauges
	collector := metrics.NewBusinessMetricsCollector(db, m, logger, 60*time.Second)
	collector.Start()
	defer collector.Stop()

	// Scheduled stage cleanup
	cleanupService := service.NewStageCleanupService(repository.NewStore(db), locker, activityClient, m, logger)
	scheduler, err := job.NewScheduler(
		cfg.Maintenance.StageCleanupCron,
		job.NewStageCleanupJob(cleanupService, enforceIndex, 10*time.Minute, logger),
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to schedule stage cleanup", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	} else {
		logger.Info("Stage cleanup schedule disabled")
	}

	// Setup router with all dependencies
	r := router.Setup(router.Config{
		DB:             db,
		Logger:         logger,
		JWTSecret:      cfg.JWT.Secret,
		BasePath:       cfg.Server.BasePath,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		Locker:         locker,
		ActivityClient: activityClient,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Room FFE Service started successfully",
			zap.String("address", srv.Addr),
			zap.String("swagger", fmt.Sprintf("http://localhost:%s/swagger/index.html", cfg.Server.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := database.Close(db); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
