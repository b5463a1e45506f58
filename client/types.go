package client

import (
	"encoding/json"
	"time"
)

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Seat is one entry of a showtime seat map.
type Seat struct {
	SeatNumber    string     `json:"seatNumber"`
	Status        string     `json:"status"`
	LockedBy      string     `json:"lockedBy,omitempty"`
	LockExpiresAt *time.Time `json:"lockExpiresAt,omitempty"`
}

// SeatMap is the authoritative seat state of a showtime.
type SeatMap struct {
	ShowtimeID string `json:"showtimeId"`
	Seats      []Seat `json:"seats"`
}

// Booking is a confirmed or pending reservation.
type Booking struct {
	ID         string    `json:"id"`
	ShowtimeID string    `json:"showtimeId"`
	Seats      []string  `json:"seats"`
	Status     string    `json:"status"`
	TotalPrice float64   `json:"totalPrice,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateBookingRequest is the request body for creating a booking.
type CreateBookingRequest struct {
	ShowtimeID string   `json:"showtimeId"`
	Seats      []string `json:"seats"`
}

// ReplayResponse is the raw outcome of a replayed request.
type ReplayResponse struct {
	StatusCode int
	Body       json.RawMessage
}
