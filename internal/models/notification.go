package models

import "time"

// NotificationType is the visual class of a notification.
type NotificationType string

// Notification types.
const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSuccess, NotificationError, NotificationWarning, NotificationInfo:
		return true
	default:
		return false
	}
}

// Notification categories used by preference filtering.
const (
	CategorySeatAvailability    = "seatAvailability"
	CategoryBookingUpdates      = "bookingUpdates"
	CategorySystemAnnouncements = "systemAnnouncements"
	CategoryGeneral             = "general"
)

// NotificationAction is a button attached to a notification.
type NotificationAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Notification is a transient user-facing message.
type Notification struct {
	ID         string               `json:"id"`
	Type       NotificationType     `json:"type"`
	Category   string               `json:"category,omitempty"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	CreatedAt  time.Time            `json:"createdAt"`
	DurationMs int                  `json:"durationMs,omitempty"`
	Persistent bool                 `json:"persistent"`
	Actions    []NotificationAction `json:"actions,omitempty"`
}

// Validate checks required fields.
func (n *Notification) Validate() error {
	if n.Type == "" {
		n.Type = NotificationInfo
	}

	if !n.Type.Valid() {
		return ErrInvalidValue("type", string(n.Type))
	}

	if n.Title == "" && n.Message == "" {
		return ErrMissingContent
	}

	if n.DurationMs < 0 {
		return ErrInvalidValue("durationMs", "negative")
	}

	return nil
}

// SystemBanner is a site-wide announcement shown above the page content.
type SystemBanner struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	Dismissible bool             `json:"dismissible"`
	Priority    string           `json:"priority,omitempty"`
}
