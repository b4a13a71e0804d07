package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"room-ffe-api/internal/client"
	"room-ffe-api/internal/database"
	"room-ffe-api/internal/handler"
	"room-ffe-api/internal/lock"
	"room-ffe-api/internal/metrics"
	"room-ffe-api/internal/middleware"
	"room-ffe-api/internal/repository"
	"room-ffe-api/internal/service"
)

// Config holds router configuration
type Config struct {
	DB             *gorm.DB
	Logger         *zap.Logger
	JWTSecret      string
	BasePath       string
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Locker         lock.Locker
	ActivityClient client.ActivityClient
}

// Setup sets up the router with all routes
func Setup(cfg Config) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewLocalLocker()
	}

	r := gin.New()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Prometheus metrics endpoint
	metricsHandler := gin.WrapH(promhttp.Handler())
	r.GET("/metrics", metricsHandler)

	health := healthCheck(cfg.DB)
	r.GET("/health", health)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Initialize repositories and services
	store := repository.NewStore(cfg.DB)
	instanceService := service.NewFFEInstanceService(store, cfg.Locker, cfg.ActivityClient, cfg.Metrics, cfg.Logger)
	itemService := service.NewFFEItemService(store, cfg.Locker, cfg.ActivityClient, cfg.Metrics, cfg.Logger)
	stageService := service.NewStageService(store, cfg.Locker, cfg.ActivityClient, cfg.Logger)
	cleanupService := service.NewStageCleanupService(store, cfg.Locker, cfg.ActivityClient, cfg.Metrics, cfg.Logger)

	// Initialize handlers
	ffeHandler := handler.NewFFEHandler(instanceService, itemService)
	stageHandler := handler.NewStageHandler(stageService, cleanupService)

	api := r.Group(cfg.BasePath)
	if cfg.BasePath != "" && cfg.BasePath != "/" {
		api.GET("/metrics", metricsHandler)
		api.GET("/health", health)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(cfg.JWTSecret))

	rooms := authed.Group("/rooms")
	{
		rooms.POST("", stageHandler.CreateRoom)
		rooms.GET("/:roomId/stages", stageHandler.ListRoomStages)
		rooms.POST("/:roomId/ffe-instance", ffeHandler.MaterializeInstance)
		rooms.GET("/:roomId/ffe-instance", ffeHandler.GetInstance)
	}

	authed.PATCH("/ffe-items/:itemId", ffeHandler.UpdateItem)
	authed.PATCH("/stages/:stageId", stageHandler.UpdateStage)

	admin := authed.Group("/admin/stages")
	{
		admin.GET("/duplicates", stageHandler.FindDuplicateStages)
		admin.POST("/merge", stageHandler.MergeDuplicateStages)
		admin.POST("/cleanup", stageHandler.RunStageCleanup)
	}

	return r
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !database.IsConnected(db) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": "room-ffe-api", "database": "disconnected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "room-ffe-api", "database": "connected"})
	}
}
