package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/offline"
)

// QueueHandler serves the offline action queue.
type QueueHandler struct {
	svc QueueService
	log *logrus.Logger
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(svc QueueService, log *logrus.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, log: log}
}

type enqueueRequest struct {
	ID      string          `json:"id"`
	URL     string          `json:"url" binding:"required"`
	Method  string          `json:"method" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// List handles GET /api/v1/queue.
func (h *QueueHandler) List(c *gin.Context) {
	actions := h.svc.List()
	c.JSON(http.StatusOK, gin.H{"actions": actions, "count": len(actions)})
}

// Enqueue handles POST /api/v1/queue.
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	action, err := h.svc.Enqueue(c.Request.Context(), offline.Request{
		ID:      req.ID,
		URL:     req.URL,
		Method:  req.Method,
		Payload: req.Payload,
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
			return
		}
		respondInternal(c, h.log.WithError(err), "enqueueing action")
		return
	}

	c.JSON(http.StatusAccepted, action)
}

// Sync handles POST /api/v1/queue/sync: one manual replay pass.
func (h *QueueHandler) Sync(c *gin.Context) {
	n, err := h.svc.ReplayAll(c.Request.Context())

	var rerr *models.ReplayError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"delivered": n, "remaining": len(h.svc.List())})
	case errors.Is(err, offline.ErrReplayInProgress):
		respondError(c, http.StatusConflict, ErrCodeBusy, "replay already in progress")
	case errors.As(err, &rerr):
		c.JSON(http.StatusBadGateway, gin.H{
			"delivered": n,
			"remaining": len(h.svc.List()),
			"failed":    rerr.ActionID,
			"attempt":   rerr.Attempt,
			"error":     rerr.Err.Error(),
		})
	default:
		respondInternal(c, h.log.WithError(err), "replaying queue")
	}
}

// Remove handles DELETE /api/v1/queue/:id.
func (h *QueueHandler) Remove(c *gin.Context) {
	id := c.Param("id")
	if err := validatePathID("id", id); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	ok, err := h.svc.Remove(c.Request.Context(), id)
	if err != nil {
		respondInternal(c, h.log.WithError(err), "removing queued action")
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "action not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/queue.
func (h *QueueHandler) Clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context()); err != nil {
		respondInternal(c, h.log.WithError(err), "clearing queue")
		return
	}

	h.log.WithField("action", "queue.clear").Info("audit")
	c.Status(http.StatusNoContent)
}
