package api

import (
	"context"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/notify"
	"github.com/seatsync/seatsync/internal/offline"
	"github.com/seatsync/seatsync/internal/seats"
	"github.com/seatsync/seatsync/internal/session"
)

// StatusProvider reports the session summary used by HealthHandler.
type StatusProvider interface {
	Status() session.Status
}

// SeatService is the seat surface used by SeatHandler.
type SeatService interface {
	Seats(ctx context.Context, showtimeID models.ID) ([]seats.SeatView, error)
	Lock(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error)
	Release(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error)
}

// NotificationService is implemented by *notify.Store.
type NotificationService interface {
	List() []models.Notification
	Remove(id string) bool
	Clear()
	Banners() []models.SystemBanner
	DismissBanner(id string, force bool) error
	Preferences() notify.Preferences
	SetPreferences(ctx context.Context, p notify.Preferences) error
	Suppressed(category string) int
}

// QueueService is implemented by *offline.Queue.
type QueueService interface {
	List() []models.QueuedAction
	Enqueue(ctx context.Context, req offline.Request) (models.QueuedAction, error)
	ReplayAll(ctx context.Context) (int, error)
	Remove(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
}

// RoomService is implemented by *rooms.Membership.
type RoomService interface {
	Members() []string
	Join(ctx context.Context, roomID string) error
	Leave(ctx context.Context, roomID string) error
}

// ConnectionService is implemented by *session.Session.
type ConnectionService interface {
	Status() session.Status
	Connect(ctx context.Context) error
	Disconnect()
	UpdateToken(ctx context.Context, token string) error
}
