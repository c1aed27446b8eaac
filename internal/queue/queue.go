// Package queue binds named jobs to workers on top of a broker.Client.
//
// Each (queue, jobName) pair maps to its own broker queue "<queue>.<jobName>"
// and gets its own dispatch loop, so queues sharing one broker are isolated by
// naming rather than by locks.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/social-backbone/internal/metrics"
	"github.com/cuongbtq/social-backbone/shared/broker"
)

const defaultReconsumeInterval = 2 * time.Second

// Config holds dispatch settings shared by every loop of a queue.
type Config struct {
	// JobTimeout bounds a single worker invocation; zero means no bound.
	JobTimeout time.Duration
	// ReconsumeInterval is the pause before consuming again after the
	// broker stream closes.
	ReconsumeInterval time.Duration
}

type binding struct {
	worker      WorkerFunc
	concurrency int
}

// Queue is a named set of processors.
type Queue struct {
	name    string
	client  broker.Client
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	bindings map[string]*binding
	loops    map[string]*loop
	ctx      context.Context
	running  bool
}

// New creates a queue. It consumes nothing until Start.
func New(name string, client broker.Client, config Config, logger *slog.Logger, m *metrics.Metrics) *Queue {
	if config.ReconsumeInterval <= 0 {
		config.ReconsumeInterval = defaultReconsumeInterval
	}
	return &Queue{
		name:     name,
		client:   client,
		config:   config,
		logger:   logger.With(slog.String("queue", name)),
		metrics:  m,
		bindings: make(map[string]*binding),
		loops:    make(map[string]*loop),
	}
}

func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) brokerQueue(jobName string) string {
	return q.name + "." + jobName
}

// RegisterProcessor binds worker to jobName. A second registration for the
// same jobName replaces the first. On a running queue the new worker handles
// the next job; a changed concurrency restarts the loop after its in-flight
// jobs finish.
func (q *Queue) RegisterProcessor(jobName string, concurrency int, worker WorkerFunc) error {
	if jobName == "" {
		return fmt.Errorf("job name is required")
	}
	if concurrency < 1 {
		return fmt.Errorf("invalid concurrency %d for %s/%s: must be at least 1", concurrency, q.name, jobName)
	}
	if worker == nil {
		return fmt.Errorf("worker is required for %s/%s", q.name, jobName)
	}

	q.mu.Lock()
	prev, replaced := q.bindings[jobName]
	q.bindings[jobName] = &binding{worker: worker, concurrency: concurrency}
	running := q.running
	old := q.loops[jobName]
	restart := running && (old == nil || prev.concurrency != concurrency)
	if restart {
		delete(q.loops, jobName)
	}
	q.mu.Unlock()

	q.logger.Info("Processor registered",
		slog.String("job", jobName),
		slog.Int("concurrency", concurrency),
		slog.Bool("replaced", replaced),
	)

	if !restart {
		return nil
	}

	// The old loop drains before the new one starts so the two never
	// overlap and exceed the bound together.
	if old != nil {
		old.stop()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running && q.loops[jobName] == nil {
		if b := q.bindings[jobName]; b != nil {
			q.loops[jobName] = q.startLoop(jobName, b.concurrency)
		}
	}
	return nil
}

// Processors returns the registered job names with their concurrency.
func (q *Queue) Processors() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string]int, len(q.bindings))
	for name, b := range q.bindings {
		out[name] = b.concurrency
	}
	return out
}

func (q *Queue) binding(jobName string) *binding {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bindings[jobName]
}

// Enqueue writes a job and returns once the broker has acknowledged it.
// Failures come back as *EnqueueError and are not retried.
func (q *Queue) Enqueue(ctx context.Context, jobName string, payload any) error {
	body, err := encodeJob(q.name, jobName, payload)
	if err != nil {
		return &EnqueueError{Queue: q.name, Job: jobName, Err: err}
	}

	err = q.client.Enqueue(ctx, q.brokerQueue(jobName), broker.Message{Body: body})
	q.metrics.JobEnqueued(q.name, jobName, err)
	if err != nil {
		q.logger.Error("Failed to enqueue job",
			slog.String("job", jobName),
			slog.Any("error", err),
		)
		return &EnqueueError{Queue: q.name, Job: jobName, Err: err}
	}

	q.logger.Debug("Job enqueued", slog.String("job", jobName), slog.Int("body_size", len(body)))
	return nil
}

// Start launches one dispatch loop per registered job name.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return ErrAlreadyStarted
	}
	q.running = true
	q.ctx = ctx

	names := make([]string, 0, len(q.bindings))
	for name := range q.bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		q.loops[name] = q.startLoop(name, q.bindings[name].concurrency)
	}

	q.logger.Info("Queue started", slog.Any("jobs", names))
	return nil
}

// Stop cancels every loop and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	loops := make([]*loop, 0, len(q.loops))
	for name, l := range q.loops {
		loops = append(loops, l)
		delete(q.loops, name)
	}
	q.running = false
	q.mu.Unlock()

	for _, l := range loops {
		l.stop()
	}

	q.logger.Info("Queue stopped")
}
