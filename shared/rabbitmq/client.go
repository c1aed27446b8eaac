package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/social-backbone/shared/broker"
)

const (
	driverName = "rabbitmq"

	deadLetterSuffix   = ".dead"
	subscriberBuffer   = 256
	deliveryCountField = "x-delivery-count"
)

// Config holds RabbitMQ connection configuration
type Config struct {
	URL                string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	ConfirmTimeout     time.Duration
	MaxDeliveries      int
	DeadLetterExchange string
}

// connection is the part of *amqp.Connection the client uses.
type connection interface {
	Channel() (*amqp.Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Client is a broker.Client over one AMQP connection. Job queues are durable
// quorum queues with a delivery limit and a dead-letter exchange; pub/sub
// channels are fanout exchanges.
//
// A lost connection is redialed every RetryInterval until Close. Consumers
// and subscribers end with the old connection and are reopened by their
// callers.
type Client struct {
	config *Config
	logger *slog.Logger
	dial   func(ctx context.Context) (connection, error)

	connMu sync.RWMutex
	conn   connection

	pubMu sync.Mutex
	pubCh *amqp.Channel

	declared sync.Map

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

var _ broker.Client = (*Client)(nil)

func newClient(config *Config, logger *slog.Logger) *Client {
	c := &Client{config: config, logger: logger, done: make(chan struct{})}
	c.dial = c.dialAMQP
	return c
}

// Connect dials RabbitMQ with a bounded retry loop. Exhausting the attempts
// yields a *broker.ConnectionError.
func Connect(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	c := newClient(config, logger)

	if err := c.connect(ctx); err != nil {
		return nil, &broker.ConnectionError{Driver: driverName, Addr: c.addr(), Err: err}
	}
	return c, nil
}

func (c *Client) addr() string {
	uri, err := amqp.ParseURI(c.config.URL)
	if err != nil {
		return "invalid-url"
	}
	return fmt.Sprintf("%s:%d/%s", uri.Host, uri.Port, strings.TrimPrefix(uri.Vhost, "/"))
}

func (c *Client) dialAMQP(_ context.Context) (connection, error) {
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}
	conn, err := amqp.DialConfig(c.config.URL, amqpConfig)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// current returns the live connection, or nil before the first dial.
func (c *Client) current() connection {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

func (c *Client) channel() (*amqp.Channel, error) {
	conn := c.current()
	if conn == nil {
		return nil, amqp.ErrClosed
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return ch, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Client) connect(ctx context.Context) error {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var (
		conn connection
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.String("addr", c.addr()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err = c.dial(ctx)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			select {
			case <-time.After(c.config.RetryInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
	}
	c.setConn(conn)

	if err := c.openPublisher(); err != nil {
		conn.Close()
		return err
	}

	if err := c.setup(); err != nil {
		c.Close()
		return fmt.Errorf("failed to setup dead-letter exchange: %w", err)
	}

	go c.watch(conn)

	c.logger.Info("Successfully connected to RabbitMQ", slog.String("addr", c.addr()))
	return nil
}

func (c *Client) setConn(conn connection) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// watch waits for conn to close and, unless the client itself was closed,
// starts redialing.
func (c *Client) watch(conn connection) {
	closeErrs := conn.NotifyClose(make(chan *amqp.Error, 1))

	var reason *amqp.Error
	select {
	case <-c.done:
		return
	case reason = <-closeErrs:
	}
	if c.closed.Load() {
		return
	}

	attrs := []any{slog.String("addr", c.addr())}
	if reason != nil {
		attrs = append(attrs, slog.String("error", reason.Error()))
	}
	c.logger.Warn("RabbitMQ connection lost, reconnecting", attrs...)
	c.reset()
	c.reconnect()
}

// reset forgets everything that belonged to the lost connection.
func (c *Client) reset() {
	c.pubMu.Lock()
	c.pubCh = nil
	c.pubMu.Unlock()

	c.declared.Range(func(key, _ any) bool {
		c.declared.Delete(key)
		return true
	})
}

// reconnect redials every RetryInterval until it succeeds or the client is
// closed. Exchanges and queues are declared again on first use.
func (c *Client) reconnect() {
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.config.RetryInterval):
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			c.logger.Warn("Failed to reconnect to RabbitMQ",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}

		if c.closed.Load() {
			conn.Close()
			return
		}
		c.setConn(conn)
		go c.watch(conn)

		c.logger.Info("Reconnected to RabbitMQ",
			slog.String("addr", c.addr()),
			slog.Int("attempt", attempt),
		)
		return
	}
}

// openPublisher opens the confirm-mode channel used by Enqueue and Publish.
// Caller holds pubMu or owns c exclusively.
func (c *Client) openPublisher() error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	c.pubCh = ch
	return nil
}

func (c *Client) setup() error {
	return c.declareDeadLetterExchange()
}

// declareDeadLetterExchange declares the dead-letter exchange once per
// connection.
func (c *Client) declareDeadLetterExchange() error {
	if c.config.DeadLetterExchange == "" {
		return nil
	}
	key := "dlx:" + c.config.DeadLetterExchange
	if _, ok := c.declared.Load(key); ok {
		return nil
	}

	err := c.withChannel(func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(
			c.config.DeadLetterExchange, // name
			amqp.ExchangeDirect,         // type
			true,                        // durable
			false,                       // auto-deleted
			false,                       // internal
			false,                       // no-wait
			nil,                         // arguments
		)
	})
	if err != nil {
		return err
	}

	c.declared.Store(key, struct{}{})
	return nil
}

// withChannel runs fn on a throwaway channel so a failed declaration does not
// close the publisher channel.
func (c *Client) withChannel(fn func(ch *amqp.Channel) error) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return fn(ch)
}

func (c *Client) queueArgs(name string) amqp.Table {
	args := amqp.Table{"x-queue-type": "quorum"}
	if c.config.MaxDeliveries > 0 {
		args["x-delivery-limit"] = int32(c.config.MaxDeliveries)
	}
	if c.config.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = c.config.DeadLetterExchange
		args["x-dead-letter-routing-key"] = name + deadLetterSuffix
	}
	return args
}

// declareQueue declares a job queue and its dead-letter queue once per client.
func (c *Client) declareQueue(name string) error {
	key := "queue:" + name
	if _, ok := c.declared.Load(key); ok {
		return nil
	}
	if err := c.declareDeadLetterExchange(); err != nil {
		return err
	}

	err := c.withChannel(func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(name, true, false, false, false, c.queueArgs(name)); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
		if c.config.DeadLetterExchange == "" {
			return nil
		}

		dead := name + deadLetterSuffix
		if _, err := ch.QueueDeclare(dead, true, false, false, false, amqp.Table{"x-queue-type": "quorum"}); err != nil {
			return fmt.Errorf("failed to declare dead-letter queue %s: %w", dead, err)
		}
		if err := ch.QueueBind(dead, dead, c.config.DeadLetterExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind dead-letter queue %s: %w", dead, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.declared.Store(key, struct{}{})
	return nil
}

func (c *Client) declareFanout(name string) error {
	key := "exchange:" + name
	if _, ok := c.declared.Load(key); ok {
		return nil
	}

	err := c.withChannel(func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}

	c.declared.Store(key, struct{}{})
	return nil
}

// publish sends one message on the confirm channel and waits for the broker
// acknowledgement.
func (c *Client) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	if !c.Connected() {
		return amqp.ErrClosed
	}

	c.pubMu.Lock()
	if c.pubCh == nil || c.pubCh.IsClosed() {
		if err := c.openPublisher(); err != nil {
			c.pubMu.Unlock()
			return err
		}
	}
	confirm, err := c.pubCh.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	c.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	if c.config.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConfirmTimeout)
		defer cancel()
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for publish confirm: %w", err)
	}
	if !acked {
		return errors.New("broker rejected message")
	}
	return nil
}

// Enqueue writes msg to a durable job queue.
func (c *Client) Enqueue(ctx context.Context, queue string, msg broker.Message) error {
	if err := c.declareQueue(queue); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	err := c.publish(ctx, "", queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	})
	if err != nil {
		return err
	}

	c.logger.Debug("Message enqueued",
		slog.String("queue", queue),
		slog.String("message_id", msg.ID),
		slog.Int("body_size", len(msg.Body)),
	)
	return nil
}

// Consume opens a dedicated channel with Qos set to prefetch and streams its
// deliveries. On ctx end the consumer is cancelled and the channel is closed
// once every handed-out delivery has been settled.
func (c *Client) Consume(ctx context.Context, queue string, prefetch int) (<-chan broker.Delivery, error) {
	if err := c.declareQueue(queue); err != nil {
		return nil, err
	}

	ch, err := c.channel()
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	consumerTag := "consumer-" + uuid.New().String()
	msgs, err := ch.Consume(
		queue,       // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", queue),
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch", prefetch),
	)

	out := make(chan broker.Delivery)
	go func() {
		var pending sync.WaitGroup
		defer func() {
			close(out)
			pending.Wait()
			ch.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				if err := ch.Cancel(consumerTag, false); err != nil {
					c.logger.Warn("Failed to cancel consumer", slog.String("queue", queue), slog.Any("error", err))
				}
				return

			case d, ok := <-msgs:
				if !ok {
					c.logger.Warn("RabbitMQ delivery channel closed", slog.String("queue", queue))
					return
				}

				pending.Add(1)
				delivery := toDelivery(d, &pending)
				select {
				case out <- delivery:
				case <-ctx.Done():
					delivery.Nack(true)
				}
			}
		}
	}()

	return out, nil
}

func toDelivery(d amqp.Delivery, pending *sync.WaitGroup) broker.Delivery {
	attempt := 1
	if n, ok := deliveryCount(d.Headers); ok {
		attempt = n + 1
	}

	msg := broker.Message{ID: d.MessageId, Body: d.Body, Timestamp: d.Timestamp}
	return broker.NewDelivery(msg, attempt, func(ack, requeue bool) error {
		defer pending.Done()
		if ack {
			return d.Ack(false)
		}
		return d.Nack(false, requeue)
	})
}

func deliveryCount(headers amqp.Table) (int, bool) {
	switch v := headers[deliveryCountField].(type) {
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// Publish fans payload out through the channel's fanout exchange.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.declareFanout(channel); err != nil {
		return err
	}
	return c.publish(ctx, channel, "", amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        payload,
	})
}

// Subscribe binds an exclusive auto-delete queue to the channel's exchange.
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if err := c.declareFanout(channel); err != nil {
		return nil, err
	}

	ch, err := c.channel()
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", channel, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume subscriber queue: %w", err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Duplicate opens a second connection with the same configuration.
func (c *Client) Duplicate(ctx context.Context) (broker.Client, error) {
	dup, err := Connect(ctx, c.config, c.logger)
	if err != nil {
		return nil, err
	}
	return dup, nil
}

// Connected returns the connection status
func (c *Client) Connected() bool {
	conn := c.current()
	return conn != nil && !conn.IsClosed()
}

// Close closes the RabbitMQ connection and stops reconnecting.
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	c.closed.Store(true)
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
	})

	c.pubMu.Lock()
	if c.pubCh != nil {
		if err := c.pubCh.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Error("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}
	c.pubMu.Unlock()

	if conn := c.current(); conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection", slog.Any("error", err))
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}
