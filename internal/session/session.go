// Package session wires the coordination components into one explicitly
// owned client session: connection, router, rooms, offline queue,
// notifications and per-showtime seat coordinators.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/client"
	"github.com/seatsync/seatsync/internal/clock"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/notify"
	"github.com/seatsync/seatsync/internal/offline"
	"github.com/seatsync/seatsync/internal/rooms"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/seats"
	"github.com/seatsync/seatsync/internal/storage"
	"github.com/seatsync/seatsync/internal/ws"
)

// ConnectionLostBanner is the ID of the banner shown while the push
// connection has given up.
const ConnectionLostBanner = "connection-lost"

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("session closed")

// Options configures a Session.
type Options struct {
	PushURL string
	Token   string

	// UserID overrides the identity read from Token.
	UserID models.ID

	API     *client.Client
	Store   storage.Store
	Dialer  ws.Dialer
	Clock   clock.Clock
	Backoff ws.Backoff
	LockTTL time.Duration

	// LockWait bounds how long Lock waits for a verdict.
	LockWait time.Duration

	MaxNotifications int
	Log              *logrus.Logger
}

// Status summarizes the session for the local API and the CLI.
type Status struct {
	State       ws.State    `json:"state"`
	Attempt     int         `json:"attempt"`
	LastEventID uint64      `json:"lastEventId"`
	UserID      models.ID   `json:"userId"`
	Queued      int         `json:"queued"`
	Replaying   bool        `json:"replaying"`
	Rooms       []string    `json:"rooms"`
	Showtimes   []models.ID `json:"showtimes"`
}

// Session is the composition root. Create it with New and release it
// with Close.
type Session struct {
	Router        *router.Router
	Conn          *ws.Manager
	Rooms         *rooms.Membership
	Queue         *offline.Queue
	Notifications *notify.Store

	api      *client.Client
	pushURL  string
	clock    clock.Clock
	ttl      time.Duration
	lockWait time.Duration
	log      *logrus.Logger

	mu        sync.Mutex
	token     string
	userID    models.ID
	showtimes map[models.ID]*seats.Coordinator
	subs      []*router.Subscription
	closed    bool
}

// New builds every component and attaches it to the router. It does not
// connect; call Connect or Start. On error everything already built is
// released.
func New(ctx context.Context, opts Options) (_ *Session, err error) {
	if opts.PushURL == "" {
		return nil, fmt.Errorf("%w: push url is required", models.ErrValidation)
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemory()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = seats.DefaultTTL
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}

	userID := opts.UserID
	if userID == "" && opts.Token != "" {
		if id, err := UserIDFromToken(opts.Token); err == nil {
			userID = id
		} else {
			opts.Log.WithError(err).Warn("could not read user identity from token")
		}
	}

	s := &Session{
		api:       opts.API,
		pushURL:   opts.PushURL,
		clock:     opts.Clock,
		ttl:       opts.LockTTL,
		lockWait:  opts.LockWait,
		log:       opts.Log,
		token:     opts.Token,
		userID:    userID,
		showtimes: make(map[models.ID]*seats.Coordinator),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	s.Router = router.New(opts.Log)
	s.Conn = ws.NewManager(ws.Options{
		Dialer:    opts.Dialer,
		Publisher: s.Router,
		Clock:     opts.Clock,
		Backoff:   opts.Backoff,
		Log:       opts.Log,
	})

	s.Rooms = rooms.New(s.Conn, opts.Log)
	s.Rooms.Attach(s.Router)
	s.Conn.AddResyncer(s.Rooms)

	s.Notifications, err = notify.New(ctx, notify.Options{
		Clock:      opts.Clock,
		Log:        opts.Log,
		MaxVisible: opts.MaxNotifications,
		Persist:    opts.Store,
	})
	if err != nil {
		return nil, err
	}
	s.Notifications.Attach(s.Router)

	var exec offline.Executor = offline.ExecutorFunc(func(context.Context, models.QueuedAction) error {
		return fmt.Errorf("%w: no booking API configured", models.ErrTransport)
	})
	if opts.API != nil {
		exec = offline.HTTPExecutor{Client: opts.API}
	}

	s.Queue, err = offline.Open(ctx, opts.Store, exec, offline.Options{
		Clock:  opts.Clock,
		Log:    opts.Log,
		Online: func() bool { return s.Conn.State() == ws.StateConnected },
	})
	if err != nil {
		return nil, err
	}
	s.Queue.Attach(s.Router)

	s.subs = append(s.subs, router.SubscribeJSON(s.Router, models.EventConnectionState, s.onConnectionState))

	return s, nil
}

// onConnectionState keeps the connection-lost banner in sync with the
// connection. An explicit disconnect also drops every seat coordinator,
// since the rooms feeding them were forgotten with it.
func (s *Session) onConnectionState(sc ws.StateChange) error {
	if sc.To == ws.StateDisconnected && sc.Explicit {
		if ids := s.dropShowtimes(); len(ids) > 0 {
			s.log.WithField("showtimes", ids).Debug("released seat state on disconnect")
		}
	}

	switch sc.To {
	case ws.StateFailed:
		_, err := s.Notifications.AddBanner(models.SystemBanner{
			ID:       ConnectionLostBanner,
			Type:     models.NotificationError,
			Title:    "Connection lost",
			Message:  "Live seat updates are paused. Reconnect to resume.",
			Priority: "critical",
		})
		return err
	case ws.StateConnected, ws.StateDisconnected:
		if err := s.Notifications.DismissBanner(ConnectionLostBanner, true); err != nil && !errors.Is(err, notify.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Connect dials the push server and blocks until the first successful
// connection, a terminal failure, or ctx is done.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	token := s.token
	s.mu.Unlock()

	return s.Conn.Connect(ctx, s.pushURL, token)
}

// Start begins connecting in the background.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	token := s.token
	s.mu.Unlock()

	return s.Conn.Start(s.pushURL, token)
}

// Disconnect closes the push connection and forgets the rooms and seat
// state derived from it. The offline queue and notifications are kept.
// Connect may be called again afterwards.
func (s *Session) Disconnect() {
	s.Conn.Disconnect()
	s.dropShowtimes()
}

// UpdateToken rotates the credential on the push connection and the REST
// client, and re-reads the user identity from it. When the user changes,
// watched showtimes are rebuilt so lock requests carry the new identity.
func (s *Session) UpdateToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", models.ErrValidation)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.token = token
	var changed bool
	if id, err := UserIDFromToken(token); err == nil {
		if id != s.userID {
			changed = true
			s.log.WithFields(logrus.Fields{"from": s.userID, "to": id}).Info("session user changed")
		}
		s.userID = id
	}
	s.mu.Unlock()

	if s.api != nil {
		s.api.SetToken(token)
	}
	if err := s.Conn.UpdateToken(ctx, token); err != nil {
		return err
	}

	if changed {
		for _, id := range s.dropShowtimes() {
			if _, err := s.WatchShowtime(ctx, id); err != nil {
				s.log.WithError(err).WithField("showtime", id).Warn("re-watching showtime for new user failed")
			}
		}
	}
	return nil
}

// UserID returns the current user identity.
func (s *Session) UserID() models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// RoomForShowtime names the push room carrying a showtime's seat frames.
func RoomForShowtime(id models.ID) string {
	return "showtime:" + id.String()
}

// WatchShowtime returns the seat coordinator for id, creating it and
// joining its room on first use.
func (s *Session) WatchShowtime(ctx context.Context, id models.ID) (*seats.Coordinator, error) {
	if id == "" {
		return nil, models.ErrMissingShowtime
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if c, ok := s.showtimes[id]; ok {
		s.mu.Unlock()
		if err := s.Rooms.Join(ctx, RoomForShowtime(id)); err != nil {
			return nil, err
		}
		return c, nil
	}

	var fetcher seats.Fetcher
	if s.api != nil {
		fetcher = apiFetcher(s.api)
	}

	c, err := seats.New(seats.Options{
		ShowtimeID: id,
		UserID:     s.userID,
		Sender:     s.Conn,
		Router:     s.Router,
		Fetcher:    fetcher,
		Clock:      s.clock,
		TTL:        s.ttl,
		Log:        s.log,
	})
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.showtimes[id] = c
	s.mu.Unlock()

	if err := s.Rooms.Join(ctx, RoomForShowtime(id)); err != nil {
		s.dropShowtime(id)
		return nil, err
	}

	if fetcher != nil {
		if err := c.Refresh(ctx); err != nil {
			s.log.WithError(err).WithField("showtime", id).Warn("initial seat snapshot failed")
		}
	}

	s.log.WithField("showtime", id).Info("watching showtime")
	return c, nil
}

// UnwatchShowtime leaves the showtime room and releases its coordinator.
func (s *Session) UnwatchShowtime(ctx context.Context, id models.ID) error {
	if !s.dropShowtime(id) {
		return nil
	}
	return s.Rooms.Leave(ctx, RoomForShowtime(id))
}

func (s *Session) dropShowtime(id models.ID) bool {
	s.mu.Lock()
	c, ok := s.showtimes[id]
	delete(s.showtimes, id)
	s.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// dropShowtimes closes every coordinator and returns the showtimes they
// tracked, sorted.
func (s *Session) dropShowtimes() []models.ID {
	s.mu.Lock()
	ids := slices.Sorted(maps.Keys(s.showtimes))
	coords := slices.Collect(maps.Values(s.showtimes))
	clear(s.showtimes)
	s.mu.Unlock()

	for _, c := range coords {
		c.Close()
	}
	return ids
}

// Showtime returns the coordinator for a watched showtime.
func (s *Session) Showtime(id models.ID) (*seats.Coordinator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.showtimes[id]
	return c, ok
}

// Status returns a point-in-time summary.
func (s *Session) Status() Status {
	s.mu.Lock()
	userID := s.userID
	showtimes := slices.Sorted(maps.Keys(s.showtimes))
	s.mu.Unlock()

	return Status{
		State:       s.Conn.State(),
		Attempt:     s.Conn.Attempt(),
		LastEventID: s.Conn.LastEventID(),
		UserID:      userID,
		Queued:      s.Queue.Len(),
		Replaying:   s.Queue.Replaying(),
		Rooms:       s.Rooms.Members(),
		Showtimes:   showtimes,
	}
}

// Close disconnects and releases every subscription and timer. It is
// safe to call more than once and on a partially built Session.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	coords := slices.Collect(maps.Values(s.showtimes))
	clear(s.showtimes)
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	if s.Conn != nil {
		s.Conn.Disconnect()
	}
	for _, c := range coords {
		c.Close()
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if s.Queue != nil {
		s.Queue.Close()
	}
	if s.Notifications != nil {
		s.Notifications.Close()
	}
	if s.Rooms != nil {
		s.Rooms.Close()
	}
	if s.Router != nil {
		s.Router.Close()
	}

	s.log.Debug("session closed")
}

// apiFetcher reads authoritative seat state from the booking API.
func apiFetcher(api *client.Client) seats.Fetcher {
	return seats.FetcherFunc(func(ctx context.Context, id models.ID) ([]models.SeatUpdate, error) {
		m, err := api.Showtimes.Seats(ctx, id.String())
		if err != nil {
			return nil, err
		}

		out := make([]models.SeatUpdate, 0, len(m.Seats))
		for _, seat := range m.Seats {
			out = append(out, models.SeatUpdate{
				ShowtimeID: id,
				SeatNumber: seat.SeatNumber,
				Status:     models.SeatStatus(seat.Status),
				LockedBy:   models.ID(seat.LockedBy),
			})
		}
		return out, nil
	})
}
