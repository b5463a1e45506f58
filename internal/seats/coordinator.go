// Package seats reconciles optimistic local seat locks with the server's
// authoritative seat_update stream for one user and one showtime.
//
// The server's last word always wins: a frame reporting a seat booked or
// locked by someone else overrides any local claim, however recent.
package seats

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/seatsync/seatsync/internal/clock"
	"github.com/seatsync/seatsync/internal/metrics"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/ws"
)

const (
	// DefaultTTL is how long a lock is trusted without a fresh frame.
	DefaultTTL = 5 * time.Minute

	refreshTimeout = 15 * time.Second
)

var (
	// ErrReleased resolves a pending lock the caller released first.
	ErrReleased = errors.New("lock released")

	// ErrClosed resolves pending locks when the coordinator shuts down.
	ErrClosed = errors.New("seat coordinator closed")
)

// Status is the coordinator's view of a seat from the current user's side.
type Status string

const (
	StatusAvailable Status = "available"
	StatusMine      Status = "locked-by-me"
	StatusOther     Status = "locked-by-other"
	StatusBooked    Status = "booked"
)

// SeatView is the single coherent state of one seat.
type SeatView struct {
	SeatNumber string    `json:"seatNumber"`
	Status     Status    `json:"status"`
	Owner      models.ID `json:"owner,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitzero"`

	// Pending is set while a lock request awaits the server's answer.
	Pending bool `json:"pending,omitempty"`

	// Stale marks an availability inferred from lock expiry rather than
	// reported by the server.
	Stale bool `json:"stale,omitempty"`
}

// Lockable reports whether the current user may request the seat.
func (v SeatView) Lockable() bool { return v.Status == StatusAvailable }

// Fetcher loads the authoritative seat map for a showtime.
type Fetcher interface {
	FetchSeats(ctx context.Context, showtimeID models.ID) ([]models.SeatUpdate, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, showtimeID models.ID) ([]models.SeatUpdate, error)

// FetchSeats implements Fetcher.
func (f FetcherFunc) FetchSeats(ctx context.Context, showtimeID models.ID) ([]models.SeatUpdate, error) {
	return f(ctx, showtimeID)
}

// Options configures a Coordinator.
type Options struct {
	ShowtimeID models.ID
	UserID     models.ID
	Sender     ws.Sender
	Router     *router.Router
	Fetcher    Fetcher
	Clock      clock.Clock
	TTL        time.Duration
	Log        *logrus.Logger
}

type seatState struct {
	view    SeatView
	gen     uint64
	timer   *clock.Timer
	pending *PendingLock
}

// Coordinator owns seat state for one (user, showtime) pair.
type Coordinator struct {
	showtime models.ID
	user     models.ID
	sender   ws.Sender
	fetcher  Fetcher
	clock    clock.Clock
	ttl      time.Duration
	log      *logrus.Entry

	group  singleflight.Group
	ctx    context.Context //nolint:containedctx // bounds background refreshes.
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	seats     map[string]*seatState
	listeners map[uint64]func(SeatView)
	nextID    uint64
	subs      []*router.Subscription
	closed    bool
}

// New creates a Coordinator. When opts.Router is set it subscribes to
// seat_update, seat_lock_failed, resync_required and connection_state.
func New(opts Options) (*Coordinator, error) {
	if opts.ShowtimeID == "" {
		return nil, models.ErrMissingShowtime
	}
	if opts.UserID == "" {
		return nil, models.ErrMissingUser
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		showtime:  opts.ShowtimeID,
		user:      opts.UserID,
		sender:    opts.Sender,
		fetcher:   opts.Fetcher,
		clock:     opts.Clock,
		ttl:       opts.TTL,
		log:       opts.Log.WithField("showtime", opts.ShowtimeID),
		ctx:       ctx,
		cancel:    cancel,
		seats:     make(map[string]*seatState),
		listeners: make(map[uint64]func(SeatView)),
	}

	if opts.Router != nil {
		c.attach(opts.Router)
	}

	return c, nil
}

func (c *Coordinator) attach(r *router.Router) {
	subs := []*router.Subscription{
		router.SubscribeJSON(r, models.EventSeatUpdate, func(u models.SeatUpdate) error {
			c.HandleSeatUpdate(u)
			return nil
		}),
		router.SubscribeJSON(r, models.EventSeatLockFailed, func(f models.SeatLockFailed) error {
			c.HandleLockFailed(f)
			return nil
		}),
		r.Subscribe(models.EventResyncRequired, func(ws.Event) error {
			c.refreshAsync()
			return nil
		}),
		router.SubscribeJSON(r, models.EventConnectionState, func(sc ws.StateChange) error {
			if sc.To == ws.StateConnected {
				c.refreshAsync()
			}
			return nil
		}),
	}

	c.mu.Lock()
	c.subs = append(c.subs, subs...)
	c.mu.Unlock()
}

// ShowtimeID returns the showtime this coordinator tracks.
func (c *Coordinator) ShowtimeID() models.ID { return c.showtime }

// RequestLock optimistically claims seat and asks the server for the lock.
//
// A seat the server last reported booked or held by someone else fails
// immediately with models.ErrSeatTaken. If the request cannot be sent the
// returned error is a transport error, but the PendingLock is still valid:
// the outcome is unknown until the server answers or the TTL runs out.
func (c *Coordinator) RequestLock(ctx context.Context, seat string) (*PendingLock, error) {
	if seat == "" {
		return nil, models.ErrMissingSeat
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	st := c.stateLocked(seat)
	if st.pending != nil {
		p := st.pending
		c.mu.Unlock()
		return p, nil
	}

	switch st.view.Status {
	case StatusBooked, StatusOther:
		c.mu.Unlock()
		metrics.SeatConflicts.Inc()
		return nil, fmt.Errorf("seat %s: %w", seat, models.ErrSeatTaken)
	case StatusMine:
		c.mu.Unlock()
		return resolvedLock(seat, nil), nil
	case StatusAvailable:
	}

	p := newPendingLock(seat)
	st.pending = p
	view := c.setLocked(st, SeatView{
		Status:    StatusMine,
		Owner:     c.user,
		ExpiresAt: c.clock.Now().Add(c.ttl),
		Pending:   true,
	}, true)
	c.mu.Unlock()

	c.notify(view)

	err := c.sender.Send(ctx, models.CmdLockSeat, models.SeatLockRequest{
		ShowtimeID: c.showtime,
		SeatNumber: seat,
		UserID:     c.user,
	})
	if err != nil {
		c.log.WithError(err).WithField("seat", seat).Warn("lock request not sent, re-querying seat map")
		c.refreshAsync()
		return p, fmt.Errorf("lock seat %s: %w", seat, err)
	}

	return p, nil
}

// ReleaseLock gives up a lock the current user holds. It is a no-op for
// seats the user does not hold.
func (c *Coordinator) ReleaseLock(ctx context.Context, seat string) error {
	if seat == "" {
		return models.ErrMissingSeat
	}

	c.mu.Lock()
	st, ok := c.seats[seat]
	if !ok || st.view.Status != StatusMine {
		c.mu.Unlock()
		return nil
	}

	p := st.pending
	st.pending = nil
	view := c.setLocked(st, SeatView{Status: StatusAvailable}, false)
	c.mu.Unlock()

	p.resolve(ErrReleased)
	c.notify(view)

	err := c.sender.Send(ctx, models.CmdUnlockSeat, models.SeatLockRequest{
		ShowtimeID: c.showtime,
		SeatNumber: seat,
		UserID:     c.user,
	})
	if err != nil {
		return fmt.Errorf("unlock seat %s: %w", seat, err)
	}

	return nil
}

// HandleSeatUpdate applies an authoritative seat frame. Frames for other
// showtimes are ignored.
func (c *Coordinator) HandleSeatUpdate(u models.SeatUpdate) {
	c.apply(u, nil)
}

// apply handles one seat row. With since set, the row comes from a snapshot
// fetched when the seats had those generations, and a seat that changed
// after that keeps its newer state.
func (c *Coordinator) apply(u models.SeatUpdate, since map[string]uint64) {
	if u.ShowtimeID != c.showtime {
		return
	}
	if u.SeatNumber == "" || !u.Status.Valid() {
		c.log.WithFields(logrus.Fields{
			"seat":   u.SeatNumber,
			"status": u.Status,
		}).Warn("ignoring malformed seat update")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if since != nil {
		var cur uint64
		if st, ok := c.seats[u.SeatNumber]; ok {
			cur = st.gen
		}
		if cur != since[u.SeatNumber] {
			c.mu.Unlock()
			c.log.WithField("seat", u.SeatNumber).Debug("snapshot row older than live state, skipped")
			return
		}
	}

	st := c.stateLocked(u.SeatNumber)
	p := st.pending

	var (
		view       SeatView
		resolution error
		resolve    bool
	)

	switch u.Status {
	case models.SeatLocked:
		expires := c.clock.Now().Add(c.ttl)
		if u.LockedBy == c.user {
			view = c.setLocked(st, SeatView{Status: StatusMine, Owner: c.user, ExpiresAt: expires}, true)
			resolve = true
		} else {
			view = c.setLocked(st, SeatView{Status: StatusOther, Owner: u.LockedBy, ExpiresAt: expires}, true)
			resolution, resolve = models.ErrSeatTaken, true
		}

	case models.SeatBooked:
		view = c.setLocked(st, SeatView{Status: StatusBooked, Owner: u.LockedBy}, false)
		resolve = true
		if u.LockedBy != c.user {
			resolution = models.ErrSeatTaken
		}

	case models.SeatAvailable:
		if p != nil {
			// Our lock may not have reached the server yet; keep the TTL
			// running so the pending request still resolves.
			view = c.setLocked(st, SeatView{Status: StatusAvailable, Pending: true}, true)
		} else {
			view = c.setLocked(st, SeatView{Status: StatusAvailable}, false)
		}
	}

	if resolve {
		st.pending = nil
	} else {
		p = nil
	}
	c.mu.Unlock()

	if p != nil {
		if errors.Is(resolution, models.ErrConflict) {
			metrics.SeatConflicts.Inc()
		}
		p.resolve(resolution)
	}
	c.notify(view)
}

// HandleLockFailed applies a server rejection of our lock request.
func (c *Coordinator) HandleLockFailed(f models.SeatLockFailed) {
	if f.ShowtimeID != c.showtime || f.SeatNumber == "" {
		return
	}

	c.mu.Lock()
	st, ok := c.seats[f.SeatNumber]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}

	p := st.pending
	st.pending = nil

	var view SeatView
	changed := st.view.Status == StatusMine
	if changed {
		// Someone else holds it; the owner arrives with the next frame or refresh.
		view = c.setLocked(st, SeatView{Status: StatusOther, ExpiresAt: c.clock.Now().Add(c.ttl)}, true)
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"seat": f.SeatNumber, "reason": f.Reason}).Info("seat lock rejected")

	if p != nil {
		metrics.SeatConflicts.Inc()
		p.resolve(models.ErrSeatTaken)
	}
	if changed {
		c.notify(view)
		c.refreshAsync()
	}
}

// Refresh re-queries the seat map and applies it. Concurrent calls share
// one request. Seats that change while the request is in flight keep the
// newer state.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.fetcher == nil {
		return nil
	}

	_, err, _ := c.group.Do(string(c.showtime), func() (any, error) {
		since := c.generations()

		updates, err := c.fetcher.FetchSeats(ctx, c.showtime)
		if err != nil {
			return nil, fmt.Errorf("fetch seats: %w", err)
		}

		for _, u := range updates {
			if u.ShowtimeID == "" {
				u.ShowtimeID = c.showtime
			}
			c.apply(u, since)
		}

		return nil, nil
	})

	return err
}

func (c *Coordinator) generations() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]uint64, len(c.seats))
	for seat, st := range c.seats {
		out[seat] = st.gen
	}
	return out
}

func (c *Coordinator) refreshAsync() {
	if c.fetcher == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.ctx, refreshTimeout)
		defer cancel()

		if err := c.Refresh(ctx); err != nil && c.ctx.Err() == nil {
			c.log.WithError(err).Warn("seat map refresh failed")
		}
	}()
}

// Seat returns the current view of one seat. Unknown seats are available.
func (c *Coordinator) Seat(seat string) SeatView {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.seats[seat]; ok {
		return st.view
	}
	return SeatView{SeatNumber: seat, Status: StatusAvailable}
}

// Snapshot returns every known seat, sorted by seat number.
func (c *Coordinator) Snapshot() []SeatView {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SeatView, 0, len(c.seats))
	for _, st := range c.seats {
		out = append(out, st.view)
	}
	slices.SortFunc(out, func(a, b SeatView) int {
		switch {
		case a.SeatNumber < b.SeatNumber:
			return -1
		case a.SeatNumber > b.SeatNumber:
			return 1
		}
		return 0
	})
	return out
}

// OnChange registers fn to observe every seat view change. The returned
// function removes it.
func (c *Coordinator) OnChange(fn func(SeatView)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close stops every timer, detaches from the router and fails pending
// locks with ErrClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	var pending []*PendingLock
	for _, st := range c.seats {
		st.timer.Stop()
		st.timer = nil
		st.gen++
		if st.pending != nil {
			pending = append(pending, st.pending)
			st.pending = nil
		}
	}
	subs := c.subs
	c.subs = nil
	clear(c.listeners)
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	for _, p := range pending {
		p.resolve(ErrClosed)
	}

	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) stateLocked(seat string) *seatState {
	st, ok := c.seats[seat]
	if !ok {
		st = &seatState{view: SeatView{SeatNumber: seat, Status: StatusAvailable}}
		c.seats[seat] = st
	}
	return st
}

// setLocked replaces the seat's view, cancelling the previous TTL timer.
// With withTTL a fresh timer is armed.
func (c *Coordinator) setLocked(st *seatState, view SeatView, withTTL bool) SeatView {
	view.SeatNumber = st.view.SeatNumber
	if withTTL && view.ExpiresAt.IsZero() {
		view.ExpiresAt = c.clock.Now().Add(c.ttl)
	}

	st.gen++
	st.timer.Stop()
	st.timer = nil
	st.view = view

	if withTTL {
		seat, gen := view.SeatNumber, st.gen
		st.timer = c.clock.AfterFunc(view.ExpiresAt.Sub(c.clock.Now()), func() { c.expire(seat, gen) })
	}

	return view
}

// expire reverts an unrefreshed lock to a stale availability.
func (c *Coordinator) expire(seat string, gen uint64) {
	c.mu.Lock()
	st, ok := c.seats[seat]
	if !ok || st.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}

	prev := st.view
	p := st.pending
	st.pending = nil
	view := c.setLocked(st, SeatView{Status: StatusAvailable, Stale: true}, false)
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"seat":   seat,
		"status": prev.Status,
		"owner":  prev.Owner,
	}).Info("seat lock expired without confirmation")

	p.resolve(models.ErrLockExpired)
	c.notify(view)
	c.refreshAsync()
}

func (c *Coordinator) notify(view SeatView) {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(SeatView), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}
