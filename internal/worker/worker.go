// Package worker consumes job messages from RabbitMQ and runs them against
// the model inference services, recording results through the job repository.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ml-jobs-platform/internal/api/repository"
	"ml-jobs-platform/internal/modelclient"
	"ml-jobs-platform/internal/models"
	"ml-jobs-platform/internal/worker/domain"
	"ml-jobs-platform/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Repo          repository.JobRepository
	RabbitClient  *rabbitmq.Client
	Registry      *models.Registry
	Concurrency   int
	JobTimeout    time.Duration
	PrefetchCount int
}

// Worker represents the background job worker
type Worker struct {
	logger        *slog.Logger
	repo          repository.JobRepository
	rabbitClient  *rabbitmq.Client
	clients       map[string]*modelclient.Client
	concurrency   int
	jobTimeout    time.Duration
	prefetchCount int
	workerID      string
	jobsChan      chan *domain.JobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance. One model client is built per
// registered model; jobs referencing anything else fail without a retry.
func NewWorker(cfg *Config) *Worker {
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}

	clients := make(map[string]*modelclient.Client, len(cfg.Registry.IDs()))
	for _, id := range cfg.Registry.IDs() {
		model, _ := cfg.Registry.Get(id)
		clients[id] = modelclient.New(model.Endpoint, model.Timeout, cfg.Logger)
	}

	return &Worker{
		logger:        cfg.Logger,
		repo:          cfg.Repo,
		rabbitClient:  cfg.RabbitClient,
		clients:       clients,
		concurrency:   cfg.Concurrency,
		jobTimeout:    cfg.JobTimeout,
		prefetchCount: prefetch,
		workerID:      fmt.Sprintf("worker-%s", uuid.NewString()[:8]),
		jobsChan:      make(chan *domain.JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins processing jobs. It blocks until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	go w.startMessageDispatcher(ctx, deliveries)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
