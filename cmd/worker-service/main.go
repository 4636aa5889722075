package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ml-jobs-platform/internal/api/repository"
	"ml-jobs-platform/internal/config"
	"ml-jobs-platform/internal/models"
	"ml-jobs-platform/internal/worker"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
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

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	registry := models.NewRegistry(registryModels(cfg))

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Repo:          repo,
		RabbitClient:  rabbitClient,
		Registry:      registry,
		Concurrency:   cfg.Worker.Concurrency,
		JobTimeout:    cfg.Worker.JobTimeout,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if err := rabbitClient.Close(); err != nil {
		appLogger.Warn("Failed to close RabbitMQ client",
			slog.Any("error", err),
		)
	}

	appLogger.Info("Worker service shutdown complete")
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
