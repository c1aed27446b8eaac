package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/config"
	"github.com/cuongbtq/social-backbone/internal/gateway"
	"github.com/cuongbtq/social-backbone/internal/worker/storage"
	"github.com/cuongbtq/social-backbone/shared/broker"
	"github.com/cuongbtq/social-backbone/shared/broker/memory"
	"github.com/cuongbtq/social-backbone/shared/postgresql"
	"github.com/cuongbtq/social-backbone/shared/rabbitmq"
	"github.com/cuongbtq/social-backbone/shared/redis"
)

// initBroker connects the job broker. An injected client is used as is.
func (a *App) initBroker(ctx context.Context) (broker.Client, error) {
	if a.opts.Broker != nil {
		return a.opts.Broker, nil
	}

	cfg := &a.config.Broker
	logger := a.logger.With(slog.String("component", "broker"))

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("Using the in-process memory broker, jobs are not shared with other processes")
		h, err := memory.New(memory.WithMaxDeliveries(cfg.MaxDeliveries)).Connect(ctx)
		if err != nil {
			return nil, err
		}
		a.onClose(h.Close)
		return h, nil

	case config.DriverRabbitMQ:
		c, err := rabbitmq.Connect(ctx, &rabbitmq.Config{
			URL:                cfg.URL,
			RetryAttempts:      cfg.RetryAttempts,
			RetryInterval:      cfg.RetryInterval,
			Heartbeat:          cfg.Heartbeat,
			ConnectionTimeout:  cfg.ConnectionTimeout,
			ConfirmTimeout:     cfg.ConfirmTimeout,
			MaxDeliveries:      cfg.MaxDeliveries,
			DeadLetterExchange: cfg.DeadLetterExchange,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.onClose(c.Close)
		return c, nil

	default:
		return nil, fmt.Errorf("unknown broker driver: %q", cfg.Driver)
	}
}

// initAdapter opens the two pub/sub handles of the broadcast adapter. Both
// must connect before the process starts.
func (a *App) initAdapter(ctx context.Context) (*gateway.Adapter, error) {
	cfg := &a.config.Adapter
	logger := a.logger.With(slog.String("component", "adapter"))
	adapterCfg := gateway.AdapterConfig{
		Backend:        cfg.Backend,
		Channel:        cfg.Channel,
		RetryInterval:  cfg.RetryInterval,
		PublishTimeout: cfg.PublishTimeout,
	}

	switch cfg.Backend {
	case config.BackendRedis:
		pub, err := redis.Connect(ctx, &redis.Config{
			URL:          cfg.RedisURL,
			DialTimeout:  a.config.Broker.ConnectionTimeout,
			PingInterval: cfg.RetryInterval,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.onClose(pub.Close)

		sub, err := pub.Duplicate(ctx)
		if err != nil {
			return nil, err
		}
		a.onClose(sub.Close)
		return gateway.NewAdapter(pub, sub, adapterCfg, logger), nil

	case config.BackendBroker:
		pub, err := a.broker.Duplicate(ctx)
		if err != nil {
			return nil, err
		}
		a.onClose(pub.Close)

		sub, err := a.broker.Duplicate(ctx)
		if err != nil {
			return nil, err
		}
		a.onClose(sub.Close)
		return gateway.NewAdapter(pub, sub, adapterCfg, logger), nil

	default:
		return nil, fmt.Errorf("unknown adapter backend: %q", cfg.Backend)
	}
}

// initStore returns the injected store, PostgreSQL when a database is
// enabled, or an in-memory store.
func (a *App) initStore(ctx context.Context) (storage.Store, error) {
	if a.opts.Store != nil {
		return a.opts.Store, nil
	}

	cfg := &a.config.Database
	if !cfg.Enabled {
		a.logger.Warn("Database disabled, worker state is kept in memory")
		return storage.NewMemoryStore(), nil
	}

	logger := a.logger.With(slog.String("component", "postgresql"))
	db, err := postgresql.NewClient(ctx, &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.onClose(db.Close)

	store := storage.NewStorage(db, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
