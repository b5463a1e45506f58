package session

import (
	"context"
	"errors"
	"time"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/seats"
)

// DefaultLockWait bounds how long Lock waits for the server's verdict.
const DefaultLockWait = 3 * time.Second

// Seats returns the seat views of a showtime, watching it if needed.
func (s *Session) Seats(ctx context.Context, showtimeID models.ID) ([]seats.SeatView, error) {
	c, err := s.WatchShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// Lock requests a seat lock and waits up to DefaultLockWait for the server
// to confirm or reject it. A view with Pending set means no verdict yet.
// A transport failure returns the current view alongside the error; the
// coordinator re-queries the seat on its own.
func (s *Session) Lock(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error) {
	c, err := s.WatchShowtime(ctx, showtimeID)
	if err != nil {
		return seats.SeatView{}, err
	}

	p, err := c.RequestLock(ctx, seat)
	if err != nil {
		return c.Seat(seat), err
	}

	wctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	if err := p.Wait(wctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return c.Seat(seat), err
	}
	return c.Seat(seat), nil
}

// Release drops a lock held by the current user.
func (s *Session) Release(ctx context.Context, showtimeID models.ID, seat string) (seats.SeatView, error) {
	c, ok := s.Showtime(showtimeID)
	if !ok {
		return seats.SeatView{SeatNumber: seat, Status: seats.StatusAvailable}, nil
	}
	if err := c.ReleaseLock(ctx, seat); err != nil {
		return c.Seat(seat), err
	}
	return c.Seat(seat), nil
}
