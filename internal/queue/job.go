package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/social-backbone/shared/broker"
)

// Job is one unit of deferred work handed to a worker.
type Job struct {
	// ID is assigned by the broker when the job is written.
	ID         string
	Queue      string
	Name       string
	Payload    json.RawMessage
	EnqueuedAt time.Time
	// Attempt is the 1-based delivery count reported by the broker.
	Attempt int
}

// Bind decodes the payload into v.
func (j Job) Bind(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// WorkerFunc is the business logic bound to a (queue, jobName) pair.
type WorkerFunc func(ctx context.Context, job Job) error

// Typed adapts a handler that takes a decoded payload. Payloads that do not
// decode fail with ErrInvalidPayload and are dead-lettered without retry.
func Typed[T any](fn func(ctx context.Context, payload T) error) WorkerFunc {
	return func(ctx context.Context, job Job) error {
		var payload T
		if err := job.Bind(&payload); err != nil {
			return err
		}
		return fn(ctx, payload)
	}
}

// envelope is the wire form written to the broker.
type envelope struct {
	Queue      string          `json:"queue"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func encodeJob(queueName, jobName string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return json.Marshal(envelope{
		Queue:      queueName,
		Name:       jobName,
		Data:       data,
		EnqueuedAt: time.Now().UTC(),
	})
}

func decodeJob(d broker.Delivery, queueName, jobName string) (Job, error) {
	var env envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Queue != queueName || env.Name != jobName {
		return Job{}, fmt.Errorf("%w: envelope for %s/%s on %s/%s", ErrInvalidPayload, env.Queue, env.Name, queueName, jobName)
	}

	return Job{
		ID:         d.ID,
		Queue:      env.Queue,
		Name:       env.Name,
		Payload:    env.Data,
		EnqueuedAt: env.EnqueuedAt,
		Attempt:    d.Attempt,
	}, nil
}
