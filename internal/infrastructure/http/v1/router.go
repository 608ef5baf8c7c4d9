// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"heshbon/internal/domain/documents"
	"heshbon/internal/domain/sequence"
	"heshbon/internal/infrastructure/http/v1/handlers"
	"heshbon/internal/infrastructure/http/v1/middleware"
	"heshbon/internal/infrastructure/storage/postgres"
	"heshbon/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// SequenceService manages sequence locking and allocation
	SequenceService *sequence.Service

	// SequenceQuery serves read-only sequence status
	SequenceQuery *sequence.QueryService

	// DocumentService manages billing documents
	DocumentService *documents.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1 - all routes require a valid token carrying the tenant
	apiv1 := router.Group("/api/v1")
	apiv1.Use(middleware.Auth(cfg.JWTValidator))

	baseHandler := handlers.NewBaseHandler()

	// Sequence management
	{
		handler := handlers.NewSequenceHandler(baseHandler, cfg.SequenceService, cfg.SequenceQuery)
		sequences := apiv1.Group("/sequences")
		sequences.GET("", handler.ListStatuses)
		sequences.GET("/:type", handler.GetStatus)
		// Locking the starting number is irreversible; keep it off limits
		// for regular members.
		sequences.POST("/:type/lock", middleware.RequireRole("owner", "admin"), handler.Lock)
	}

	// Billing documents
	{
		handler := handlers.NewDocumentHandler(baseHandler, cfg.DocumentService)
		docs := apiv1.Group("/documents")
		docs.POST("", handler.Create)
		docs.GET("", handler.List)
		docs.GET("/:id", handler.GetByID)
		docs.PUT("/:id", handler.Update)
		docs.POST("/:id/finalize", handler.Finalize)
	}

	return router
}
