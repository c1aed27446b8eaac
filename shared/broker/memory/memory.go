// Package memory is a single-process broker.Client backed by Go channels.
// It is suitable for development, single-node deployments and tests. The
// Broker value plays the role of the shared store; every Handle obtained from
// it behaves like a separate connection.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/social-backbone/shared/broker"
)

// ErrUnavailable is returned while the broker is marked unavailable.
var ErrUnavailable = errors.New("memory broker unavailable")

const (
	// DefaultMaxDeliveries mirrors the delivery limit used for quorum queues.
	DefaultMaxDeliveries = 5

	subscriberBuffer = 256
)

type entry struct {
	msg        broker.Message
	deliveries int
}

type queue struct {
	items []*entry
	ready chan struct{}
}

// Option configures a Broker.
type Option func(*Broker)

// WithMaxDeliveries sets how many times a message is delivered before a
// requeueing Nack dead-letters it instead.
func WithMaxDeliveries(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.maxDeliveries = n
		}
	}
}

// Broker is the in-process store shared by all handles.
type Broker struct {
	mu            sync.Mutex
	queues        map[string]*queue
	dead          map[string][]broker.Message
	subs          map[string]map[string]chan []byte
	available     bool
	outage        chan struct{}
	maxDeliveries int
}

// New creates an available broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		queues:        make(map[string]*queue),
		dead:          make(map[string][]broker.Message),
		subs:          make(map[string]map[string]chan []byte),
		available:     true,
		outage:        make(chan struct{}),
		maxDeliveries: DefaultMaxDeliveries,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect opens a handle on the broker.
func (b *Broker) Connect(_ context.Context) (*Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.available {
		return nil, &broker.ConnectionError{Driver: "memory", Addr: "in-process", Err: ErrUnavailable}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{b: b, ctx: ctx, cancel: cancel}, nil
}

// SetAvailable simulates an outage of the store. Going unavailable closes every
// live consumer and subscription; queued messages survive.
func (b *Broker) SetAvailable(available bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.available == available {
		return
	}
	b.available = available
	if available {
		b.outage = make(chan struct{})
	} else {
		close(b.outage)
	}
}

// Len reports the number of ready messages in a queue.
func (b *Broker) Len(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.queues[name]; ok {
		return len(q.items)
	}
	return 0
}

// DeadLetters returns the messages dead-lettered from a queue.
func (b *Broker) DeadLetters(name string) []broker.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]broker.Message(nil), b.dead[name]...)
}

// queueLocked must be called with b.mu held.
func (b *Broker) queueLocked(name string) *queue {
	q, ok := b.queues[name]
	if !ok {
		q = &queue{ready: make(chan struct{})}
		b.queues[name] = q
	}
	return q
}

func (b *Broker) pushLocked(name string, e *entry, front bool) {
	q := b.queueLocked(name)
	if front {
		q.items = append([]*entry{e}, q.items...)
	} else {
		q.items = append(q.items, e)
	}
	close(q.ready)
	q.ready = make(chan struct{})
}

func (b *Broker) pop(ctx context.Context, name string) (*entry, bool) {
	for {
		b.mu.Lock()
		q := b.queueLocked(name)
		if len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			e.deliveries++
			b.mu.Unlock()
			return e, true
		}
		ready := q.ready
		b.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (b *Broker) settle(name string, e *entry, ack, requeue bool) {
	if ack {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if requeue && e.deliveries < b.maxDeliveries {
		b.pushLocked(name, e, false)
		return
	}
	b.dead[name] = append(b.dead[name], e.msg)
}

func (b *Broker) unconsume(name string, e *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e.deliveries--
	b.pushLocked(name, e, true)
}

// Handle is one connection to a Broker and implements broker.Client.
type Handle struct {
	b *Broker

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

var _ broker.Client = (*Handle)(nil)

// check returns the current outage channel when the handle is usable.
func (h *Handle) check() (<-chan struct{}, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, broker.ErrClosed
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if !h.b.available {
		return nil, ErrUnavailable
	}
	return h.b.outage, nil
}

// scoped derives a context that ends with ctx, with the handle, or with the
// next outage.
func (h *Handle) scoped(ctx context.Context, outage <-chan struct{}) (context.Context, context.CancelFunc) {
	sctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(h.ctx, cancel)
	go func() {
		select {
		case <-outage:
			cancel()
		case <-sctx.Done():
		}
	}()
	return sctx, func() {
		stop()
		cancel()
	}
}

func (h *Handle) Enqueue(ctx context.Context, name string, msg broker.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := h.check(); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if !h.b.available {
		return ErrUnavailable
	}
	h.b.pushLocked(name, &entry{msg: msg}, false)
	return nil
}

func (h *Handle) Consume(ctx context.Context, name string, prefetch int) (<-chan broker.Delivery, error) {
	outage, err := h.check()
	if err != nil {
		return nil, err
	}
	if prefetch < 1 {
		prefetch = 1
	}

	cctx, cancel := h.scoped(ctx, outage)
	out := make(chan broker.Delivery)
	inflight := make(chan struct{}, prefetch)

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case inflight <- struct{}{}:
			case <-cctx.Done():
				return
			}

			e, ok := h.b.pop(cctx, name)
			if !ok {
				<-inflight
				return
			}

			d := broker.NewDelivery(e.msg, e.deliveries, func(ack, requeue bool) error {
				defer func() { <-inflight }()
				h.b.settle(name, e, ack, requeue)
				return nil
			})

			select {
			case out <- d:
			case <-cctx.Done():
				h.b.unconsume(name, e)
				<-inflight
				return
			}
		}
	}()

	return out, nil
}

func (h *Handle) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := h.check(); err != nil {
		return err
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	for _, ch := range h.b.subs[channel] {
		select {
		case ch <- append([]byte(nil), payload...):
		default:
			// Slow subscriber; drop like a saturated socket would.
		}
	}
	return nil
}

func (h *Handle) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	outage, err := h.check()
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	ch := make(chan []byte, subscriberBuffer)

	h.b.mu.Lock()
	if h.b.subs[channel] == nil {
		h.b.subs[channel] = make(map[string]chan []byte)
	}
	h.b.subs[channel][id] = ch
	h.b.mu.Unlock()

	sctx, cancel := h.scoped(ctx, outage)
	go func() {
		<-sctx.Done()
		cancel()

		h.b.mu.Lock()
		delete(h.b.subs[channel], id)
		h.b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (h *Handle) Duplicate(ctx context.Context) (broker.Client, error) {
	if _, err := h.check(); err != nil {
		return nil, err
	}
	dup, err := h.b.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return dup, nil
}

func (h *Handle) Connected() bool {
	_, err := h.check()
	return err == nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.cancel()
	return nil
}
