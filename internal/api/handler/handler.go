package handler

import (
	"context"
	"log/slog"
)

// Enqueuer writes one job onto (queueName, jobName).
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload any) error
}

// Broker reports the state of the broker connection.
type Broker interface {
	Connected() bool
}

// Gateway reports the state of the websocket gateway.
type Gateway interface {
	Ready() bool
	Replicating() bool
	ConnectionCount() int
}

// Database is checked by the health endpoint when configured.
type Database interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Enqueuer    Enqueuer
	Broker      Broker
	Gateway     Gateway
	// Database is optional.
	Database Database
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	enqueuer Enqueuer
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		enqueuer: deps.Enqueuer,
	}
}

// HealthHandler reports the readiness of the process.
type HealthHandler struct {
	service  string
	broker   Broker
	gateway  Gateway
	database Database
}

func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		service:  deps.ServiceName,
		broker:   deps.Broker,
		gateway:  deps.Gateway,
		database: deps.Database,
	}
}
