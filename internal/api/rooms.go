package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
)

// RoomHandler serves room membership.
type RoomHandler struct {
	svc RoomService
	log *logrus.Logger
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(svc RoomService, log *logrus.Logger) *RoomHandler {
	return &RoomHandler{svc: svc, log: log}
}

// List handles GET /api/v1/rooms.
func (h *RoomHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.svc.Members()})
}

// Join handles POST /api/v1/rooms/:id.
func (h *RoomHandler) Join(c *gin.Context) {
	h.change(c, "join", h.svc.Join)
}

// Leave handles DELETE /api/v1/rooms/:id.
func (h *RoomHandler) Leave(c *gin.Context) {
	h.change(c, "leave", h.svc.Leave)
}

func (h *RoomHandler) change(c *gin.Context, verb string, op func(ctx context.Context, roomID string) error) {
	id := c.Param("id")
	if err := validatePathID("id", id); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	if err := op(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrValidation) {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
			return
		}
		respondInternal(c, h.log.WithError(err).WithField("room", id), "room "+verb+" failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": h.svc.Members()})
}
