package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/social-backbone/shared/broker"
)

const (
	defaultChannel        = "gateway.broadcast"
	defaultRetryInterval  = 2 * time.Second
	defaultPublishTimeout = 2 * time.Second
)

// Publisher is the publish half of a pub/sub backend. broker.Client and
// *redis.Client both satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber is the subscribe half of a pub/sub backend. The returned
// channel closes when the subscription is lost.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

type AdapterConfig struct {
	// Backend names the transport in logs and errors.
	Backend        string
	Channel        string
	RetryInterval  time.Duration
	PublishTimeout time.Duration
}

// Adapter replicates broadcasts between gateway processes. It holds separate
// publish and subscribe handles because a subscribed connection cannot be
// used for anything else on some backends.
type Adapter struct {
	pub    Publisher
	sub    Subscriber
	config AdapterConfig
	logger *slog.Logger

	node      string
	deliver   func(Envelope)
	started   atomic.Bool
	connected atomic.Bool
}

func NewAdapter(pub Publisher, sub Subscriber, config AdapterConfig, logger *slog.Logger) *Adapter {
	if config.Channel == "" {
		config.Channel = defaultChannel
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultRetryInterval
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaultPublishTimeout
	}
	if config.Backend == "" {
		config.Backend = "pubsub"
	}
	return &Adapter{
		pub:    pub,
		sub:    sub,
		config: config,
		logger: logger.With(slog.String("backend", config.Backend), slog.String("channel", config.Channel)),
	}
}

// Start subscribes to the broadcast channel and hands every envelope from
// another node to deliver. A failed first subscription is returned as a
// *broker.ConnectionError.
func (a *Adapter) Start(ctx context.Context, node string, deliver func(Envelope)) error {
	if !a.started.CompareAndSwap(false, true) {
		return fmt.Errorf("adapter already started")
	}
	a.node = node
	a.deliver = deliver

	msgs, err := a.sub.Subscribe(ctx, a.config.Channel)
	if err != nil {
		a.started.Store(false)
		return &broker.ConnectionError{Driver: a.config.Backend, Addr: a.config.Channel, Err: err}
	}

	a.connected.Store(true)
	a.logger.Info("Pub/sub adapter subscribed", slog.String("node", node))

	go a.listen(ctx, msgs)
	return nil
}

// Connected reports whether broadcasts are currently replicated.
func (a *Adapter) Connected() bool {
	return a.connected.Load()
}

func (a *Adapter) listen(ctx context.Context, msgs <-chan []byte) {
	for {
		for payload := range msgs {
			a.receive(payload)
		}

		a.connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("Pub/sub adapter lost its subscription, broadcasts are local-only")

		msgs = a.resubscribe(ctx)
		if msgs == nil {
			return
		}
	}
}

func (a *Adapter) resubscribe(ctx context.Context) <-chan []byte {
	ticker := time.NewTicker(a.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		msgs, err := a.sub.Subscribe(ctx, a.config.Channel)
		if err != nil {
			a.logger.Debug("Pub/sub resubscribe failed", slog.Any("error", err))
			continue
		}
		a.connected.Store(true)
		a.logger.Info("Pub/sub adapter resubscribed, replication restored")
		return msgs
	}
}

func (a *Adapter) receive(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		a.logger.Warn("Dropping malformed broadcast envelope", slog.Any("error", err))
		return
	}
	if env.Node == a.node {
		return
	}
	a.deliver(env)
}

// Publish sends env to every peer process. It fails fast with ErrAdapterDown
// while the subscription is lost.
func (a *Adapter) Publish(ctx context.Context, env Envelope) error {
	if !a.connected.Load() {
		return ErrAdapterDown
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.PublishTimeout)
	defer cancel()

	if err := a.pub.Publish(ctx, a.config.Channel, body); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	return nil
}
