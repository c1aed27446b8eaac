package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/social-backbone/internal/api/dto"
)

const (
	checkOK       = "ok"
	checkDown     = "down"
	checkDegraded = "degraded"
)

// Health handles GET /health
// The process is unhealthy when the broker or the gateway is down. A lost
// pub/sub subscription only degrades it, since broadcasts still reach local
// clients.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Checks:  make(map[string]string),
	}
	status := http.StatusOK

	if h.broker != nil {
		resp.Checks["broker"] = checkOK
		if !h.broker.Connected() {
			resp.Checks["broker"] = checkDown
			status = http.StatusServiceUnavailable
		}
	}

	if h.gateway != nil {
		resp.Connections = h.gateway.ConnectionCount()
		switch {
		case !h.gateway.Ready():
			resp.Checks["gateway"] = checkDown
			status = http.StatusServiceUnavailable
		case !h.gateway.Replicating():
			resp.Checks["gateway"] = checkDegraded
		default:
			resp.Checks["gateway"] = checkOK
		}
	}

	if h.database != nil {
		resp.Checks["database"] = checkOK
		if err := h.database.HealthCheck(c.Request.Context()); err != nil {
			resp.Checks["database"] = checkDown
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		resp.Status = "unhealthy"
	} else if resp.Checks["gateway"] == checkDegraded {
		resp.Status = checkDegraded
	}
	c.JSON(status, resp)
}
