package seats

import (
	"context"
	"sync"
)

// PendingLock is the eventual answer to a lock request.
type PendingLock struct {
	seat string
	done chan struct{}
	once sync.Once
	err  error
}

func newPendingLock(seat string) *PendingLock {
	return &PendingLock{seat: seat, done: make(chan struct{})}
}

func resolvedLock(seat string, err error) *PendingLock {
	p := newPendingLock(seat)
	p.resolve(err)
	return p
}

// Seat returns the seat number the lock was requested for.
func (p *PendingLock) Seat() string { return p.seat }

// Done is closed once the request is resolved.
func (p *PendingLock) Done() <-chan struct{} { return p.done }

// Wait blocks until the server confirms the lock (nil), rejects it
// (models.ErrSeatTaken), the TTL elapses without an answer
// (models.ErrLockExpired), or ctx ends.
func (p *PendingLock) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the resolution, or nil while still pending.
func (p *PendingLock) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *PendingLock) resolve(err error) {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
