// Package redis provides a publish/subscribe backend for the gateway adapter
// over Redis PUBLISH/SUBSCRIBE.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuongbtq/social-backbone/shared/broker"
)

const (
	driverName       = "redis"
	subscriberBuffer = 256
	pingTimeout      = time.Second

	defaultPingInterval = 5 * time.Second
)

// Config holds Redis connection configuration
type Config struct {
	URL         string
	DialTimeout time.Duration
	// PingInterval is how often a subscription checks that its connection
	// is alive.
	PingInterval time.Duration
}

// Client wraps one go-redis connection pool.
type Client struct {
	opts         *redis.Options
	rdb          *redis.Client
	pingInterval time.Duration
	logger       *slog.Logger
}

// Connect parses the URL, opens a pool and pings it.
func Connect(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if config.DialTimeout > 0 {
		opts.DialTimeout = config.DialTimeout
	}
	c, err := connect(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	if config.PingInterval > 0 {
		c.pingInterval = config.PingInterval
	}
	return c, nil
}

func connect(ctx context.Context, opts *redis.Options, logger *slog.Logger) (*Client, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, &broker.ConnectionError{Driver: driverName, Addr: opts.Addr, Err: err}
	}

	logger.Info("Connected to Redis", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return &Client{opts: opts, rdb: rdb, pingInterval: defaultPingInterval, logger: logger}, nil
}

// Duplicate opens an independent pool with the same options.
func (c *Client) Duplicate(ctx context.Context) (*Client, error) {
	opts := *c.opts
	dup, err := connect(ctx, &opts, c.logger)
	if err != nil {
		return nil, err
	}
	dup.pingInterval = c.pingInterval
	return dup, nil
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning.
// go-redis reconnects a subscription silently, so the returned channel is
// closed as soon as a ping on it fails.
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ps := c.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer ps.Close()
		err := pump(ctx, ps.Channel(), out, c.pingInterval, func(ctx context.Context) error {
			return ps.Ping(ctx)
		})
		if err != nil {
			c.logger.Warn("Redis subscription lost", slog.String("channel", channel), slog.Any("error", err))
		}
	}()

	return out, nil
}

// pump forwards payloads from msgs to out until ctx ends, msgs closes or a
// ping fails, then closes out.
func pump(ctx context.Context, msgs <-chan *redis.Message, out chan<- []byte, interval time.Duration, ping func(context.Context) error) error {
	defer close(out)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := ping(pingCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("ping failed: %w", err)
			}

		case msg, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Client) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err() == nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
