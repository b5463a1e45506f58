// Package api serves the local HTTP view of a running seatsync session.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/ws"
)

// HealthChecker is implemented by storage backends with a remote server.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	status    StatusProvider
	store     HealthChecker
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. store may be nil.
func NewHealthHandler(status StatusProvider, store HealthChecker, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		status:    status,
		store:     store,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// healthResponse is the JSON payload returned by the health endpoint.
type healthResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	Connection    ws.State `json:"connection"`
	Storage       string   `json:"storage"`
	UptimeSeconds float64  `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health. The process is healthy whenever it
// can answer; connection and storage are reported, not enforced.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Connection:    h.status.Status().State,
		Storage:       "local",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp.Storage = "connected"
		if err := h.store.HealthCheck(ctx); err != nil {
			h.log.WithError(err).Warn("storage health check failed")
			resp.Storage = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Status handles GET /api/v1/status.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Status())
}
