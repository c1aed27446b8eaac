package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/cuongbtq/social-backbone/internal/metrics"
	"github.com/cuongbtq/social-backbone/shared/broker"
)

// Registry holds every queue of a process, keyed by name, over one shared
// broker client.
type Registry struct {
	client  broker.Client
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	queues  map[string]*Queue
	ctx     context.Context
	started bool
}

func NewRegistry(client broker.Client, config Config, logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		client:  client,
		config:  config,
		logger:  logger,
		metrics: m,
		queues:  make(map[string]*Queue),
	}
}

// Queue returns the named queue, creating it on first use. A queue created
// after Start is started immediately.
func (r *Registry) Queue(name string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[name]; ok {
		return q
	}

	q := New(name, r.client, r.config, r.logger, r.metrics)
	r.queues[name] = q
	if r.started {
		// A fresh queue cannot already be running.
		_ = q.Start(r.ctx)
	}
	return q
}

// Register binds a worker to (queueName, jobName).
func (r *Registry) Register(queueName, jobName string, concurrency int, worker WorkerFunc) error {
	return r.Queue(queueName).RegisterProcessor(jobName, concurrency, worker)
}

// Enqueue writes a job onto (queueName, jobName).
func (r *Registry) Enqueue(ctx context.Context, queueName, jobName string, payload any) error {
	return r.Queue(queueName).Enqueue(ctx, jobName, payload)
}

// Names lists the known queues in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start starts every queue.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	r.ctx = ctx

	for _, q := range r.queues {
		if err := q.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every queue, waiting for in-flight jobs.
func (r *Registry) Stop() {
	r.mu.Lock()
	queues := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.started = false
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func(q *Queue) {
			defer wg.Done()
			q.Stop()
		}(q)
	}
	wg.Wait()
}
