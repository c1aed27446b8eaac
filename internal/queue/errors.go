package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload is returned when a job cannot be encoded or decoded.
	// Jobs failing with it are dead-lettered without redelivery.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrWorkerPanic wraps a recovered worker panic.
	ErrWorkerPanic = errors.New("worker panicked")

	// ErrAlreadyStarted is returned by Start on a running queue.
	ErrAlreadyStarted = errors.New("queue already started")
)

// EnqueueError reports that the broker did not accept a job. The producer
// gets it synchronously; nothing retries it.
type EnqueueError struct {
	Queue string
	Job   string
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("failed to enqueue %s/%s: %v", e.Queue, e.Job, e.Err)
}

func (e *EnqueueError) Unwrap() error {
	return e.Err
}

// WorkerError describes a failed worker invocation.
type WorkerError struct {
	Queue   string
	Job     string
	JobID   string
	Attempt int
	Err     error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("job %s (%s/%s, attempt %d) failed: %v", e.JobID, e.Queue, e.Job, e.Attempt, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// PermanentError marks a worker failure that redelivery cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the delivery is dead-lettered immediately.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// shouldRequeue decides whether a failed delivery goes back to the broker.
// Requeued deliveries are still bounded by the broker's delivery limit.
func shouldRequeue(err error) bool {
	if errors.Is(err, ErrInvalidPayload) {
		return false
	}

	var permanent *PermanentError
	return !errors.As(err, &permanent)
}
