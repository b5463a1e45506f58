package client

import (
	"context"
	"net/url"
)

// ShowtimeService reads showtime state.
type ShowtimeService struct {
	c *Client
}

// Seats returns the current seat map of a showtime.
func (s *ShowtimeService) Seats(ctx context.Context, showtimeID string) (*SeatMap, error) {
	var m SeatMap
	if err := s.c.get(ctx, "/api/v1/showtimes/"+url.PathEscape(showtimeID)+"/seats", nil, &m); err != nil {
		return nil, err
	}
	if m.ShowtimeID == "" {
		m.ShowtimeID = showtimeID
	}
	return &m, nil
}
