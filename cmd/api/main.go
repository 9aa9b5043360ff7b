package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ivanhe123/jstor-gen/internal/api/router"
	appconfig "github.com/ivanhe123/jstor-gen/internal/config"
	"github.com/ivanhe123/jstor-gen/internal/observability/metrics"
	"github.com/ivanhe123/jstor-gen/internal/platform"
	"github.com/ivanhe123/jstor-gen/internal/querygen"
	"github.com/ivanhe123/jstor-gen/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting query generator API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Session store
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	store := querygen.NewRedisSessionStore(redisClient, cfg.SessionTTL)

	// Generation client
	genClient, err := querygen.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.GenerationModel, cfg.GenerationTimeout)
	if err != nil {
		logger.Error("failed to create generation client", "error", err)
		os.Exit(1)
	}

	// Core service
	registry := platform.NewRegistry()
	genMetrics := metrics.NewGenerationMetrics(nil)
	service := querygen.NewService(registry, genClient, store, genMetrics, logger, querygen.SessionParameters{
		PlatformID:     cfg.DefaultPlatformID,
		VariationCount: cfg.DefaultVariationCount,
	})

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		QueryGenHandler:    querygen.NewHandler(service, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis client", "error", err)
	}

	logger.Info("server stopped")
}
