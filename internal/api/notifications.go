package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/notify"
)

// NotificationHandler serves notifications, banners and preferences.
type NotificationHandler struct {
	svc NotificationService
	log *logrus.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(svc NotificationService, log *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, log: log}
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.svc.List()})
}

// Remove handles DELETE /api/v1/notifications/:id.
func (h *NotificationHandler) Remove(c *gin.Context) {
	id := c.Param("id")
	if err := validatePathID("id", id); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	if !h.svc.Remove(id) {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/notifications.
func (h *NotificationHandler) Clear(c *gin.Context) {
	h.svc.Clear()
	c.Status(http.StatusNoContent)
}

// Banners handles GET /api/v1/banners.
func (h *NotificationHandler) Banners(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"banners": h.svc.Banners()})
}

// DismissBanner handles DELETE /api/v1/banners/:id. Pinned banners need
// ?force=true.
func (h *NotificationHandler) DismissBanner(c *gin.Context) {
	id := c.Param("id")
	if err := validatePathID("id", id); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	err := h.svc.DismissBanner(id, c.Query("force") == "true")
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, notify.ErrNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "banner not found")
	case errors.Is(err, notify.ErrNotDismissible):
		respondError(c, http.StatusConflict, ErrCodeConflict, "banner is not dismissible")
	default:
		respondInternal(c, h.log.WithError(err), "dismissing banner")
	}
}

// preferencesResponse adds the suppressed counters to the preferences.
type preferencesResponse struct {
	notify.Preferences
	Suppressed map[string]int `json:"suppressed"`
}

// GetPreferences handles GET /api/v1/preferences.
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	p := h.svc.Preferences()

	suppressed := make(map[string]int, len(p.Categories))
	for _, category := range []string{
		models.CategorySeatAvailability,
		models.CategoryBookingUpdates,
		models.CategorySystemAnnouncements,
		models.CategoryGeneral,
	} {
		suppressed[category] = h.svc.Suppressed(category)
	}

	c.JSON(http.StatusOK, preferencesResponse{Preferences: p, Suppressed: suppressed})
}

// PutPreferences handles PUT /api/v1/preferences.
func (h *NotificationHandler) PutPreferences(c *gin.Context) {
	var p notify.Preferences
	if err := c.ShouldBindJSON(&p); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if err := h.svc.SetPreferences(c.Request.Context(), p); err != nil {
		respondInternal(c, h.log.WithError(err), "saving preferences")
		return
	}

	c.JSON(http.StatusOK, h.svc.Preferences())
}
