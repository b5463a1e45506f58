// Package models defines wire payloads, domain records, and the error
// taxonomy shared by the coordination core.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Inbound event names.
const (
	EventSeatUpdate         = "seat_update"
	EventBookingUpdate      = "booking_update"
	EventSystemAnnouncement = "system_announcement"
	EventUserNotification   = "user_notification"
	EventRealTimeEvent      = "real_time_event"
	EventSeatLockFailed     = "seat_lock_failed"
	EventReset              = "reset"
)

// Internal event names, published by the client itself.
const (
	EventConnectionState = "connection_state"
	EventResyncRequired  = "resync_required"
)

// Outbound control frame names.
const (
	CmdSubscribe    = "subscribe"
	CmdJoinRoom     = "join_room"
	CmdLeaveRoom    = "leave_room"
	CmdLockSeat     = "lock_seat"
	CmdUnlockSeat   = "unlock_seat"
	CmdRefreshToken = "refresh_token"
)

// ID is an identifier that the backend may encode as a JSON string or
// number. It always marshals as a string.
type ID string

// UnmarshalJSON accepts both "42" and 42.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// SeatStatus is the server-reported state of a seat.
type SeatStatus string

// Seat statuses as they appear on the wire.
const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatBooked    SeatStatus = "booked"
)

// Valid reports whether s is a known status.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatLocked, SeatBooked:
		return true
	default:
		return false
	}
}

// SeatUpdate is the payload of a seat_update frame.
type SeatUpdate struct {
	ShowtimeID ID         `json:"showtimeId"`
	SeatNumber string     `json:"seatNumber"`
	Status     SeatStatus `json:"status"`
	LockedBy   ID         `json:"lockedBy,omitempty"`
}

// SeatLockFailed is sent by the server when it rejects a lock request.
type SeatLockFailed struct {
	ShowtimeID ID     `json:"showtimeId"`
	SeatNumber string `json:"seatNumber"`
	Reason     string `json:"reason,omitempty"`
}

// BookingUpdate is the payload of a booking_update frame.
type BookingUpdate struct {
	BookingID ID     `json:"bookingId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// SystemAnnouncement is the payload of a system_announcement frame.
type SystemAnnouncement struct {
	ID          ID         `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Dismissible bool       `json:"dismissible"`
	Priority    string     `json:"priority"`
}

// UserNotification is the payload of a user_notification frame.
type UserNotification struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// RealTimeEvent is the generic envelope that wraps another frame.
type RealTimeEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RoomRequest is the payload of join_room and leave_room.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// SeatLockRequest is the payload of lock_seat and unlock_seat.
type SeatLockRequest struct {
	ShowtimeID ID     `json:"showtimeId"`
	SeatNumber string `json:"seatNumber"`
	UserID     ID     `json:"userId"`
}

// SubscribeRequest asks the server to replay frames after LastEventID.
type SubscribeRequest struct {
	LastEventID uint64 `json:"last_event_id"`
}

// ResetNotice tells the client that missed frames are gone and state
// must be refreshed from the REST API.
type ResetNotice struct {
	Reason string `json:"reason"`
}

// TokenRefresh carries a rotated credential over a live connection.
type TokenRefresh struct {
	Token string `json:"token"`
}
