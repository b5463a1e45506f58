package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
)

// SeatHandler serves seat map and lock endpoints.
type SeatHandler struct {
	svc SeatService
	log *logrus.Logger
}

// NewSeatHandler creates a SeatHandler.
func NewSeatHandler(svc SeatService, log *logrus.Logger) *SeatHandler {
	return &SeatHandler{svc: svc, log: log}
}

func showtimeParam(c *gin.Context) (models.ID, bool) {
	showtime := c.Param("showtime")
	if err := validatePathID("showtime", showtime); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return "", false
	}
	return models.ID(showtime), true
}

func seatParams(c *gin.Context) (models.ID, string, bool) {
	showtime, ok := showtimeParam(c)
	if !ok {
		return "", "", false
	}

	seat := c.Param("seat")
	if err := validatePathID("seat", seat); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return "", "", false
	}

	return showtime, seat, true
}

// List handles GET /api/v1/seats/:showtime.
func (h *SeatHandler) List(c *gin.Context) {
	showtime, ok := showtimeParam(c)
	if !ok {
		return
	}

	views, err := h.svc.Seats(c.Request.Context(), showtime)
	if err != nil {
		h.respondSeatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"showtimeId": showtime, "seats": views})
}

// Lock handles POST /api/v1/seats/:showtime/:seat/lock. A confirmed lock
// answers 200, one still awaiting the server 202.
func (h *SeatHandler) Lock(c *gin.Context) {
	showtime, seat, ok := seatParams(c)
	if !ok {
		return
	}

	view, err := h.svc.Lock(c.Request.Context(), showtime, seat)
	if err != nil {
		h.respondSeatError(c, err)
		return
	}

	h.log.WithFields(logrus.Fields{"showtime": showtime, "seat": seat, "pending": view.Pending}).Info("seat lock requested")

	if view.Pending {
		c.JSON(http.StatusAccepted, view)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Release handles DELETE /api/v1/seats/:showtime/:seat/lock.
func (h *SeatHandler) Release(c *gin.Context) {
	showtime, seat, ok := seatParams(c)
	if !ok {
		return
	}

	view, err := h.svc.Release(c.Request.Context(), showtime, seat)
	if err != nil {
		h.respondSeatError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *SeatHandler) respondSeatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrConflict):
		respondError(c, http.StatusConflict, ErrCodeConflict, "seat just taken, pick another")
	case errors.Is(err, models.ErrLockExpired):
		respondError(c, http.StatusConflict, ErrCodeConflict, "lock expired before the server confirmed it")
	case errors.Is(err, models.ErrValidation):
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
	case errors.Is(err, models.ErrTransport):
		respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "not connected; the seat state will refresh on reconnect")
	default:
		respondInternal(c, h.log.WithError(err), "seat operation failed")
	}
}
