// Package app assembles one process of the backbone from its configuration:
// broker, broadcast adapter, gateway, queues, workers and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/social-backbone/internal/api/handler"
	"github.com/cuongbtq/social-backbone/internal/api/router"
	"github.com/cuongbtq/social-backbone/internal/config"
	"github.com/cuongbtq/social-backbone/internal/email"
	"github.com/cuongbtq/social-backbone/internal/gateway"
	"github.com/cuongbtq/social-backbone/internal/metrics"
	"github.com/cuongbtq/social-backbone/internal/queue"
	"github.com/cuongbtq/social-backbone/internal/socket"
	"github.com/cuongbtq/social-backbone/internal/worker"
	"github.com/cuongbtq/social-backbone/internal/worker/storage"
	"github.com/cuongbtq/social-backbone/shared/broker"
	"github.com/cuongbtq/social-backbone/shared/postgresql"
)

// Options select the role of the process and inject pre-built
// dependencies. Zero values build everything from the configuration.
type Options struct {
	Name string
	// ServeAPI mounts the job API and the websocket endpoint.
	ServeAPI bool
	// RunWorkers consumes the queues in this process.
	RunWorkers bool

	Broker broker.Client
	Store  storage.Store
	Sender email.Sender
}

// App is one running process.
type App struct {
	config  *config.Config
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	broker   broker.Client
	adapter  *gateway.Adapter
	gateway  *gateway.Server
	sockets  *socket.Handlers
	registry *queue.Registry
	worker   *worker.Worker
	db       *postgresql.Client
	store    storage.Store
	handler  http.Handler

	// closers release what New opened, in reverse order.
	closers []func() error

	startOnce sync.Once
	startErr  error
	stopOnce  sync.Once
}

// New connects every dependency and fails fast on the first one that cannot
// be reached. Nothing consumes or accepts connections until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if opts.Name == "" {
		opts.Name = cfg.App.Name
	}

	a := &App{
		config:  cfg,
		opts:    opts,
		logger:  logger,
		metrics: metrics.New(),
	}

	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var err error

	if a.broker, err = a.initBroker(ctx); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}
	if a.adapter, err = a.initAdapter(ctx); err != nil {
		return fmt.Errorf("failed to initialize adapter: %w", err)
	}

	a.gateway = gateway.New(gateway.Config{
		AllowedOrigin:  a.config.Gateway.AllowedOrigin,
		SendBuffer:     a.config.Gateway.SendBuffer,
		MaxMessageSize: a.config.Gateway.MaxMessageSize,
		WriteWait:      a.config.Gateway.WriteWait,
		PongWait:       a.config.Gateway.PongWait,
		InboundRPS:     a.config.Gateway.InboundRPS,
		InboundBurst:   a.config.Gateway.InboundBurst,
	}, a.adapter, a.logger.With(slog.String("component", "gateway")), a.metrics)

	a.sockets = socket.NewHandlers(a.gateway, a.logger.With(slog.String("component", "socket")))
	a.sockets.ListenAll()

	a.registry = queue.NewRegistry(a.broker, queue.Config{
		JobTimeout:        a.config.Queue.JobTimeout,
		ReconsumeInterval: a.config.Queue.ReconsumeInterval,
	}, a.logger.With(slog.String("component", "queue")), a.metrics)

	if a.opts.RunWorkers {
		if err := a.initWorker(ctx); err != nil {
			return err
		}
	}

	a.handler = a.initRouter()
	return nil
}

func (a *App) initWorker(ctx context.Context) error {
	store, err := a.initStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store

	sender := a.opts.Sender
	if sender == nil {
		sender = email.NewSender(email.Config{
			Sender:         a.config.Email.Sender,
			MailgunDomain:  a.config.Email.MailgunDomain,
			MailgunAPIKey:  a.config.Email.MailgunAPIKey,
			MailgunBaseURL: a.config.Email.MailgunBaseURL,
		}, a.logger.With(slog.String("component", "email")))
	}

	a.worker = worker.NewWorker(&worker.Config{
		Logger:      a.logger,
		Registry:    a.registry,
		Store:       a.store,
		Sockets:     a.sockets,
		Sender:      sender,
		Renderer:    email.NewRenderer(),
		Concurrency: a.config.ConcurrencyFor,
	})
	return nil
}

func (a *App) initRouter() http.Handler {
	deps := &handler.Dependencies{
		Logger:      a.logger.With(slog.String("component", "http")),
		ServiceName: a.opts.Name,
		Broker:      a.broker,
		Gateway:     a.gateway,
	}
	if a.db != nil {
		deps.Database = a.db
	}

	opts := router.Options{
		AllowedOrigin: a.config.Gateway.AllowedOrigin,
		Metrics:       a.metrics.Handler(),
	}
	if a.opts.ServeAPI {
		deps.Enqueuer = a.registry
		opts.SocketPath = a.config.Gateway.Path
		opts.Socket = a.gateway
	}
	return router.SetupRouter(deps, opts)
}

// Gateway returns the websocket gateway of this process.
func (a *App) Gateway() *gateway.Server {
	return a.gateway
}

// Registry returns the queue registry of this process.
func (a *App) Registry() *queue.Registry {
	return a.registry
}

// Handler returns the HTTP surface of this process.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Start subscribes the adapter and starts the workers. The gateway accepts
// connections only after both pub/sub handles are connected.
func (a *App) Start(ctx context.Context) error {
	a.startOnce.Do(func() {
		if err := a.gateway.Start(ctx); err != nil {
			a.startErr = fmt.Errorf("failed to start gateway: %w", err)
			return
		}
		if a.worker != nil {
			if err := a.worker.Start(ctx); err != nil {
				a.startErr = fmt.Errorf("failed to start worker: %w", err)
				return
			}
		}
		a.logger.Info("Process started",
			slog.String("service", a.opts.Name),
			slog.String("node", a.gateway.Node()),
			slog.Bool("api", a.opts.ServeAPI),
			slog.Bool("workers", a.worker != nil),
		)
	})
	return a.startErr
}

// Run starts the process and serves HTTP until ctx is canceled, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		a.Stop()
		return err
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(a.config.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()

		a.logger.Info("Shutting down HTTP server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server forced to shutdown", slog.Any("error", err))
		}
		return nil
	})

	err := g.Wait()
	a.Stop()
	return err
}

// Stop closes client connections, waits for in-flight jobs up to the
// worker shutdown timeout and releases every connection New opened.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.gateway.Close()

		if a.worker != nil {
			done := make(chan struct{})
			go func() {
				a.worker.Stop()
				close(done)
			}()

			timeout := a.config.Worker.ShutdownTimeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			select {
			case <-done:
				a.logger.Info("Worker stopped gracefully")
			case <-shutdownCtx.Done():
				a.logger.Warn("Worker shutdown timeout exceeded, forcing exit",
					slog.Duration("timeout", timeout),
				)
			}
		}

		a.close()
		a.logger.Info("Shutdown complete", slog.String("service", a.opts.Name))
	})
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to release resource", slog.Any("error", err))
		}
	}
	a.closers = nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}
