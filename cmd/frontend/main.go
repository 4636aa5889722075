package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ml-jobs-platform/internal/config"
	"ml-jobs-platform/internal/frontend"
	"ml-jobs-platform/shared/cache"
	"ml-jobs-platform/shared/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("FRONTEND_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/frontend/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateFrontendConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting frontend service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// The cache is best effort: without Redis every request goes upstream.
	var priceCache cache.Cache
	var redisCache *cache.RedisCache
	if cfg.Redis.URL != "" {
		redisCache, err = cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			appLogger.Warn("Redis unreachable, continuing without cache",
				slog.Any("error", err),
			)
			redisCache.Close()
			redisCache = nil
		} else {
			priceCache = redisCache
			appLogger.Info("Redis cache connected")
		}
		pingCancel()
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	fetcher := frontend.NewFetcher(
		cfg.Frontend.PriceAPIURL,
		cfg.Frontend.ItemID,
		cfg.Frontend.FetchTimeout,
		priceCache,
		cfg.Frontend.CacheTTL,
		appLogger.Logger,
	)
	r := frontend.SetupRouter(frontend.NewHandler(fetcher, appLogger.Logger), appLogger.Logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Frontend service is running",
		slog.String("address", addr),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			appLogger.Warn("Failed to close Redis client",
				slog.Any("error", err),
			)
		}
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}
