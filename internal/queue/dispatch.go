package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/social-backbone/internal/metrics"
	"github.com/cuongbtq/social-backbone/shared/broker"
)

// loop consumes one broker queue with exactly concurrency slots. Each slot
// handles one delivery at a time, which is what bounds simultaneous worker
// invocations.
type loop struct {
	queue       *Queue
	jobName     string
	concurrency int
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// startLoop must be called with q.mu held.
func (q *Queue) startLoop(jobName string, concurrency int) *loop {
	ctx, cancel := context.WithCancel(q.ctx)
	l := &loop{
		queue:       q,
		jobName:     jobName,
		concurrency: concurrency,
		logger:      q.logger.With(slog.String("job", jobName)),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

func (l *loop) stop() {
	l.cancel()
	<-l.done
}

func (l *loop) run(ctx context.Context) {
	defer close(l.done)

	source := l.queue.brokerQueue(l.jobName)
	for {
		deliveries, err := l.queue.client.Consume(ctx, source, l.concurrency)
		if err != nil {
			l.logger.Error("Failed to start consumer", slog.Any("error", err))
		} else {
			l.logger.Info("Dispatch loop consuming",
				slog.String("source", source),
				slog.Int("concurrency", l.concurrency),
			)
			l.spawnSlots(ctx, deliveries)
		}

		if ctx.Err() != nil {
			l.logger.Info("Dispatch loop stopped")
			return
		}

		l.logger.Warn("Consumer stream closed, consuming again",
			slog.Duration("retry_after", l.queue.config.ReconsumeInterval),
		)
		select {
		case <-time.After(l.queue.config.ReconsumeInterval):
		case <-ctx.Done():
			return
		}
	}
}

// spawnSlots runs the worker slots until the delivery stream closes.
func (l *loop) spawnSlots(ctx context.Context, deliveries <-chan broker.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < l.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				l.handle(ctx, d)
			}
		}()
	}
	wg.Wait()
}

func (l *loop) handle(ctx context.Context, d broker.Delivery) {
	q := l.queue

	job, err := decodeJob(d, q.name, l.jobName)
	if err != nil {
		l.logger.Error("Discarding malformed job",
			slog.String("job_id", d.ID),
			slog.Any("error", err),
		)
		q.metrics.JobMalformed(q.name, l.jobName)
		l.settle(d.Nack(false), d.ID)
		return
	}

	b := q.binding(l.jobName)
	finish := q.metrics.JobStarted(q.name, l.jobName)

	if err := l.invoke(ctx, b.worker, job); err != nil {
		werr := &WorkerError{Queue: q.name, Job: l.jobName, JobID: job.ID, Attempt: job.Attempt, Err: err}
		requeue := shouldRequeue(err)

		l.logger.Error("Job failed",
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.Bool("requeue", requeue),
			slog.Any("error", werr),
		)
		finish(metrics.OutcomeFailed)
		l.settle(d.Nack(requeue), job.ID)
		return
	}

	finish(metrics.OutcomeCompleted)
	l.settle(d.Ack(), job.ID)
	l.logger.Debug("Job completed", slog.String("job_id", job.ID))
}

// invoke runs the worker in isolation. The job context outlives loop
// cancellation so Stop lets in-flight jobs finish.
func (l *loop) invoke(ctx context.Context, worker WorkerFunc, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()

	jobCtx := context.WithoutCancel(ctx)
	if timeout := l.queue.config.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, timeout)
		defer cancel()
	}

	return worker(jobCtx, job)
}

func (l *loop) settle(err error, jobID string) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	l.logger.Error("Failed to settle delivery",
		slog.String("job_id", jobID),
		slog.Any("error", err),
	)
}
