package client

import (
	"context"
	"net/url"
)

// BookingService handles booking operations.
type BookingService struct {
	c *Client
}

// Create books seats for a showtime.
func (s *BookingService) Create(ctx context.Context, req *CreateBookingRequest) (*Booking, error) {
	var b Booking
	if err := s.c.post(ctx, "/api/v1/bookings", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Get returns a single booking by ID.
func (s *BookingService) Get(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	if err := s.c.get(ctx, "/api/v1/bookings/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Cancel cancels a booking by ID.
func (s *BookingService) Cancel(ctx context.Context, id string) error {
	return s.c.del(ctx, "/api/v1/bookings/"+url.PathEscape(id), nil)
}
