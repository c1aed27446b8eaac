// Package worker binds the business logic of every domain job to the queue
// registry. Each worker persists its payload and then broadcasts the change
// through the socket handlers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/email"
	"github.com/cuongbtq/social-backbone/internal/queue"
	"github.com/cuongbtq/social-backbone/internal/socket"
	"github.com/cuongbtq/social-backbone/internal/worker/storage"
)

// Config holds worker dependencies
type Config struct {
	Logger   *slog.Logger
	Registry *queue.Registry
	Store    storage.Store
	Sockets  *socket.Handlers
	Sender   email.Sender
	Renderer *email.Renderer
	// Concurrency returns the bound for one (queue, job) pair.
	Concurrency func(queueName, jobName string) int
}

// Worker runs the domain jobs of one process.
type Worker struct {
	logger      *slog.Logger
	registry    *queue.Registry
	store       storage.Store
	sockets     *socket.Handlers
	sender      email.Sender
	renderer    *email.Renderer
	producer    *Producer
	concurrency func(queueName, jobName string) int
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency == nil {
		concurrency = func(string, string) int { return 1 }
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = email.NewRenderer()
	}

	return &Worker{
		logger:      cfg.Logger.With(slog.String("component", "worker")),
		registry:    cfg.Registry,
		store:       cfg.Store,
		sockets:     cfg.Sockets,
		sender:      cfg.Sender,
		renderer:    renderer,
		producer:    NewProducer(cfg.Registry, renderer),
		concurrency: concurrency,
	}
}

// Register binds every domain job to its worker.
func (w *Worker) Register() error {
	for _, p := range w.processors() {
		n := w.concurrency(p.queue, p.job)
		if err := w.registry.Register(p.queue, p.job, n, w.observe(p)); err != nil {
			return fmt.Errorf("failed to register %s/%s: %w", p.queue, p.job, err)
		}
	}
	w.logger.Info("Workers registered", slog.Any("queues", w.registry.Names()))
	return nil
}

// Start registers the workers and starts consuming.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Register(); err != nil {
		return err
	}
	if err := w.registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queues: %w", err)
	}
	w.logger.Info("Worker started")
	return nil
}

// Stop waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.registry.Stop()
	w.logger.Info("Worker stopped")
}

// observe logs the outcome of every invocation of p.
func (w *Worker) observe(p processor) queue.WorkerFunc {
	return func(ctx context.Context, job queue.Job) error {
		logger := w.logger.With(
			slog.String("queue", job.Queue),
			slog.String("job", job.Name),
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
		)

		err := p.fn(ctx, job)
		if err != nil {
			var permanent *queue.PermanentError
			if errors.As(err, &permanent) || errors.Is(err, queue.ErrInvalidPayload) {
				logger.Error("Job rejected", slog.Any("error", err))
			}
			return err
		}

		logger.Debug("Job completed")
		return nil
	}
}
