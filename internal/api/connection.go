package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/session"
	"github.com/seatsync/seatsync/internal/ws"
)

// connectWait bounds how long POST /connection holds the request open.
// Dialing goes on in the background after it.
const connectWait = 10 * time.Second

// ConnectionHandler drives the push connection and its credential.
type ConnectionHandler struct {
	svc  ConnectionService
	log  *logrus.Logger
	wait time.Duration
}

// NewConnectionHandler creates a ConnectionHandler.
func NewConnectionHandler(svc ConnectionService, log *logrus.Logger) *ConnectionHandler {
	return &ConnectionHandler{svc: svc, log: log, wait: connectWait}
}

// WithConnectWait overrides how long Connect waits for an outcome.
func (h *ConnectionHandler) WithConnectWait(d time.Duration) *ConnectionHandler {
	h.wait = d
	return h
}

// Connect handles POST /api/v1/connection. A failed or disconnected
// session starts a fresh connect cycle with a new retry budget.
//
// 200 means connected, 202 means still dialing, 502 means the retry
// budget ran out again.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.wait)
	defer cancel()

	err := h.svc.Connect(ctx)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, h.svc.Status())
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusAccepted, h.svc.Status())
	case errors.Is(err, session.ErrClosed):
		respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "session is shutting down")
	case errors.Is(err, ws.ErrClosed):
		respondError(c, http.StatusConflict, ErrCodeConflict, "connect interrupted by disconnect")
	case errors.Is(err, models.ErrTransport):
		h.log.WithError(err).Warn("reconnect requested but push server unreachable")
		respondError(c, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
	default:
		respondInternal(c, h.log.WithError(err), "connecting push channel")
	}
}

// Disconnect handles DELETE /api/v1/connection.
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	h.svc.Disconnect()
	c.JSON(http.StatusOK, h.svc.Status())
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// UpdateToken handles PUT /api/v1/token.
func (h *ConnectionHandler) UpdateToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "token is required")
		return
	}

	err := h.svc.UpdateToken(c.Request.Context(), req.Token)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, h.svc.Status())
	case errors.Is(err, models.ErrValidation):
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
	case errors.Is(err, session.ErrClosed):
		respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "session is shutting down")
	default:
		respondInternal(c, h.log.WithError(err), "rotating token")
	}
}
