package notify

import (
	"fmt"
	"strings"

	"github.com/seatsync/seatsync/internal/metrics"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/ws"
)

// frameCategories maps inbound frames to preference categories.
var frameCategories = map[string]string{
	models.EventSeatUpdate:         models.CategorySeatAvailability,
	models.EventBookingUpdate:      models.CategoryBookingUpdates,
	models.EventSystemAnnouncement: models.CategorySystemAnnouncements,
	models.EventUserNotification:   models.CategoryGeneral,
}

// Attach subscribes the store to every frame that can produce a
// notification or banner.
func (s *Store) Attach(r *router.Router) {
	subs := make([]*router.Subscription, 0, len(frameCategories))
	for event := range frameCategories {
		subs = append(subs, r.Subscribe(event, s.HandleFrame))
	}

	s.mu.Lock()
	s.subs = append(s.subs, subs...)
	s.mu.Unlock()
}

// HandleFrame turns a push frame into a notification or banner, unless
// its category or the in-app channel is disabled. Filtered frames only
// bump the suppressed counter.
func (s *Store) HandleFrame(ev ws.Event) error {
	category, ok := frameCategories[ev.Type]
	if !ok {
		return nil
	}

	s.mu.Lock()
	allowed := s.prefs.Allows(category)
	if !allowed {
		s.suppressed[category]++
	}
	s.mu.Unlock()

	if !allowed {
		metrics.NotificationsSuppressed.WithLabelValues(category).Inc()
		s.log.WithField("category", category).Debug("notification suppressed by preferences")
		return nil
	}

	switch ev.Type {
	case models.EventSeatUpdate:
		var u models.SeatUpdate
		if err := ev.Decode(&u); err != nil {
			return err
		}
		if u.Status != models.SeatAvailable {
			return nil
		}
		_, err := s.Add(models.Notification{
			Type:     models.NotificationInfo,
			Category: category,
			Title:    "Seat available",
			Message:  fmt.Sprintf("Seat %s is now available", u.SeatNumber),
		})
		return err

	case models.EventBookingUpdate:
		var u models.BookingUpdate
		if err := ev.Decode(&u); err != nil {
			return err
		}
		_, err := s.Add(models.Notification{
			Type:     bookingType(u.Status),
			Category: category,
			Title:    "Booking " + strings.ToLower(u.Status),
			Message:  u.Message,
		})
		return err

	case models.EventSystemAnnouncement:
		var a models.SystemAnnouncement
		if err := ev.Decode(&a); err != nil {
			return err
		}
		_, err := s.AddBanner(models.SystemBanner{
			ID:          a.ID.String(),
			Type:        coerceType(a.Type),
			Title:       a.Title,
			Message:     a.Message,
			StartTime:   a.StartTime,
			EndTime:     a.EndTime,
			Dismissible: a.Dismissible,
			Priority:    a.Priority,
		})
		return err

	case models.EventUserNotification:
		var u models.UserNotification
		if err := ev.Decode(&u); err != nil {
			return err
		}
		_, err := s.Add(models.Notification{
			Type:     coerceType(u.Type),
			Category: category,
			Title:    u.Title,
			Message:  u.Message,
		})
		return err
	}
	return nil
}

func bookingType(status string) models.NotificationType {
	switch strings.ToLower(status) {
	case "confirmed", "completed", "paid":
		return models.NotificationSuccess
	case "cancelled", "canceled", "failed", "expired":
		return models.NotificationError
	default:
		return models.NotificationInfo
	}
}

func coerceType(t string) models.NotificationType {
	nt := models.NotificationType(strings.ToLower(t))
	if !nt.Valid() {
		return models.NotificationInfo
	}
	return nt
}
