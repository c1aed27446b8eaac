package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/social-backbone/internal/api/handler"
)

// Options mounts the non-JSON endpoints next to the API.
type Options struct {
	AllowedOrigin string
	// SocketPath serves Socket when both are set.
	SocketPath string
	Socket     http.Handler
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigin))

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Socket != nil && opts.SocketPath != "" {
		r.GET(opts.SocketPath, gin.WrapH(opts.Socket))
	}

	if deps.Enqueuer == nil {
		return r
	}

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List queues and their jobs
			jobs.GET("", jobHandler.ListQueues)

			// POST /api/v1/jobs/:queue/:name - Enqueue a job
			jobs.POST("/:queue/:name", jobHandler.EnqueueJob)
		}
	}

	return r
}
