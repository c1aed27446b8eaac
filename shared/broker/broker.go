// Package broker defines the handle every queue and the gateway adapter use to
// reach the shared store. Drivers live in shared/rabbitmq and shared/broker/memory.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a handle after Close.
var ErrClosed = errors.New("broker handle closed")

// Client is one connection to the shared store. Queue operations and
// pub/sub operations must not share a blocking connection, so callers that
// need both obtain a second handle with Duplicate.
type Client interface {
	// Enqueue appends msg to the durable queue and returns once the store
	// has acknowledged the write.
	Enqueue(ctx context.Context, queue string, msg Message) error

	// Consume streams deliveries from queue with at most prefetch
	// unsettled at a time. The channel closes when ctx ends or the
	// connection is lost.
	Consume(ctx context.Context, queue string, prefetch int) (<-chan Delivery, error)

	// Publish fans payload out to every current subscriber of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns payloads published on channel until ctx ends or
	// the connection is lost, at which point the channel closes.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Duplicate opens an independent handle on the same store.
	Duplicate(ctx context.Context) (Client, error)

	Connected() bool
	Close() error
}

// Message is the unit written to a queue.
type Message struct {
	ID        string
	Body      []byte
	Timestamp time.Time
}

// Delivery is a message handed to a consumer. Exactly one settle call takes
// effect; later calls are no-ops.
type Delivery struct {
	Message
	// Attempt is the 1-based number of times the store has delivered this message.
	Attempt int

	once   *sync.Once
	settle func(ack, requeue bool) error
}

// NewDelivery is used by drivers to build a Delivery around their own
// acknowledgement primitive.
func NewDelivery(msg Message, attempt int, settle func(ack, requeue bool) error) Delivery {
	return Delivery{Message: msg, Attempt: attempt, once: &sync.Once{}, settle: settle}
}

// Ack marks the message as processed.
func (d Delivery) Ack() error {
	return d.do(true, false)
}

// Nack rejects the message. With requeue the store redelivers it subject to
// its delivery limit; without requeue it is dead-lettered.
func (d Delivery) Nack(requeue bool) error {
	return d.do(false, requeue)
}

func (d Delivery) do(ack, requeue bool) error {
	if d.settle == nil {
		return nil
	}
	var err error
	d.once.Do(func() {
		err = d.settle(ack, requeue)
	})
	return err
}

// ConnectionError reports that the store could not be reached.
type ConnectionError struct {
	Driver string
	Addr   string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s broker unreachable at %s: %v", e.Driver, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
