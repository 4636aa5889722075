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

	"ml-jobs-platform/internal/api/handler"
	"ml-jobs-platform/internal/api/repository"
	"ml-jobs-platform/internal/api/router"
	"ml-jobs-platform/internal/config"
	"ml-jobs-platform/internal/models"
	"ml-jobs-platform/shared/logger"
	"ml-jobs-platform/shared/mongodb"
	"ml-jobs-platform/shared/postgresql"
	"ml-jobs-platform/shared/rabbitmq"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("backend", cfg.Repository.Backend),
	)

	repo, closeRepo, err := initRepository(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer closeRepo()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repo.Initialize(initCtx); err != nil {
		initCancel()
		return fmt.Errorf("failed to initialize %s backend: %w", repo.Type(), err)
	}
	initCancel()

	appLogger.Info("Job repository ready",
		slog.String("backend", repo.Type()),
	)

	// The queue is optional for the API: without it jobs stay queued until
	// a worker picks them up through some other channel.
	var publisher handler.JobPublisher
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		publisher = rabbitClient
		appLogger.Info("RabbitMQ connection established")
	} else {
		appLogger.Warn("RabbitMQ disabled, created jobs will not be dispatched")
	}

	registry := models.NewRegistry(registryModels(cfg))

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:    appLogger.Logger,
		Repo:      repo,
		Registry:  registry,
		Publisher: publisher,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
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

	if err := repo.Cleanup(ctx); err != nil {
		appLogger.Warn("Repository cleanup failed",
			slog.Any("error", err),
		)
	}
	if rabbitClient != nil {
		rabbitClient.Close()
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

// initRepository builds the job repository selected by the configuration.
// The returned closer releases the underlying client, if any.
func initRepository(cfg *config.Config, log *slog.Logger) (repository.JobRepository, func(), error) {
	switch cfg.Repository.Backend {
	case config.BackendMemory:
		return repository.NewMemoryJobRepo(), func() {}, nil

	case config.BackendMongo:
		client, err := mongodb.NewClient(&mongodb.Config{
			URI:                    cfg.MongoDB.URI,
			Database:               cfg.MongoDB.Database,
			ConnectTimeout:         cfg.MongoDB.ConnectTimeout,
			ServerSelectionTimeout: cfg.MongoDB.ServerSelectionTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(ctx); err != nil {
				log.Warn("Failed to close MongoDB client", slog.Any("error", err))
			}
		}
		return repository.NewMongoJobRepo(client, log), closer, nil

	case config.BackendPostgres:
		client, err := postgresql.NewClient(&postgresql.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := client.Close(); err != nil {
				log.Warn("Failed to close PostgreSQL client", slog.Any("error", err))
			}
		}
		return repository.NewPostgresJobRepo(client, log), closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown repository backend: %q", cfg.Repository.Backend)
	}
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// registryModels converts the configured model list into registry entries.
func registryModels(cfg *config.Config) []models.Model {
	entries := make([]models.Model, len(cfg.Models.Available))
	for i, m := range cfg.Models.Available {
		entries[i] = models.Model{
			ID:       m.ID,
			Endpoint: m.Endpoint,
			Timeout:  m.Timeout,
		}
	}
	return entries
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
