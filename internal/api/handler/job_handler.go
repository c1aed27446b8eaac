package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/social-backbone/internal/api/dto"
	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/queue"
)

// EnqueueJob handles POST /api/v1/jobs/:queue/:name
// The JSON body is handed to the worker unchanged.
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	queueName := c.Param("queue")
	jobName := c.Param("name")

	if !domain.KnownJob(queueName, jobName) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: "unknown job " + queueName + "/" + jobName,
		})
		return
	}

	var payload json.RawMessage
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("Invalid request body",
			slog.String("queue", queueName),
			slog.String("job", jobName),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	requestID := uuid.New().String()
	if err := h.enqueuer.Enqueue(c.Request.Context(), queueName, jobName, payload); err != nil {
		status := http.StatusInternalServerError
		var enqueueErr *queue.EnqueueError
		switch {
		case errors.Is(err, queue.ErrInvalidPayload):
			status = http.StatusBadRequest
		case errors.As(err, &enqueueErr):
			status = http.StatusServiceUnavailable
		}

		h.logger.Error("Failed to enqueue job",
			slog.String("request_id", requestID),
			slog.String("queue", queueName),
			slog.String("job", jobName),
			slog.String("error", err.Error()),
		)
		c.JSON(status, dto.ErrorResponse{
			Error:   "Failed to enqueue job",
			Details: err.Error(),
		})
		return
	}

	h.logger.Info("Job enqueued",
		slog.String("request_id", requestID),
		slog.String("queue", queueName),
		slog.String("job", jobName),
	)
	c.JSON(http.StatusAccepted, dto.EnqueueJobResponse{
		RequestID: requestID,
		Queue:     queueName,
		Job:       jobName,
		Status:    "queued",
	})
}

// ListQueues handles GET /api/v1/jobs
func (h *JobHandler) ListQueues(c *gin.Context) {
	names := make([]string, 0, len(domain.Jobs))
	for name := range domain.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.ListQueuesResponse{Queues: make([]dto.QueueDTO, 0, len(names))}
	for _, name := range names {
		resp.Queues = append(resp.Queues, dto.QueueDTO{Name: name, Jobs: domain.Jobs[name]})
	}
	c.JSON(http.StatusOK, resp)
}
