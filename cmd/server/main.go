// Package main is the entry point for the heshbon API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heshbon/internal/domain/auth"
	"heshbon/internal/domain/documents"
	"heshbon/internal/domain/sequence"
	v1 "heshbon/internal/infrastructure/http/v1"
	"heshbon/internal/infrastructure/storage/postgres"
	"heshbon/internal/infrastructure/storage/postgres/document_repo"
	"heshbon/internal/infrastructure/storage/postgres/sequence_repo"
	"heshbon/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting heshbon server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := postgres.Bootstrap(ctx, pool.Unwrap()); err != nil {
		log.Fatalw("failed to bootstrap schema", "error", err)
	}
	log.Info("database connection established")

	// --- Transaction manager and repositories ---
	txManager := postgres.NewTxManager(pool)
	sequenceRepo := sequence_repo.New(txManager)
	documentRepo := document_repo.New(txManager)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- JWT Service ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Domain services ---
	sequenceCfg := sequence.DefaultConfig()
	if attempts := getEnvInt("SEQUENCE_MAX_ATTEMPTS", 0); attempts > 0 {
		sequenceCfg.MaxAttempts = attempts
	}
	if backoff := getEnvDuration("SEQUENCE_RETRY_BACKOFF", 0); backoff > 0 {
		sequenceCfg.RetryBackoff = backoff
	}

	sequenceService := sequence.NewService(sequenceRepo, auditService, sequenceCfg)
	documentService := documents.NewService(documentRepo, sequenceService, auditService, txManager)
	sequenceQuery := sequence.NewQueryService(sequenceRepo, documentService)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:            pool,
		Logger:          log,
		JWTValidator:    jwtService,
		SequenceService: sequenceService,
		SequenceQuery:   sequenceQuery,
		DocumentService: documentService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic pool stats for capacity monitoring
	go func() {
		ticker := time.NewTicker(getEnvDuration("POOL_STATS_INTERVAL", 5*time.Minute))
		defer ticker.Stop()
		for range ticker.C {
			postgres.LogPoolStats(ctx, pool.Unwrap())
		}
	}()

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
