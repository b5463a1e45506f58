// Package rooms tracks the push-channel rooms the client belongs to and
// re-announces them on every reconnect.
package rooms

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/ws"
)

// Membership is the client-authoritative room set. It implements
// ws.Resyncer.
type Membership struct {
	sender ws.Sender
	log    *logrus.Logger

	// sendMu orders announcements against Resync so a room is never
	// announced twice on one transport nor skipped by both.
	sendMu sync.Mutex

	mu      sync.Mutex
	members map[string]struct{}
	unsent  map[string]struct{}
	sub     *router.Subscription
}

// New creates an empty Membership that announces changes through sender.
func New(sender ws.Sender, log *logrus.Logger) *Membership {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Membership{
		sender:  sender,
		log:     log,
		members: make(map[string]struct{}),
		unsent:  make(map[string]struct{}),
	}
}

// Attach clears the set whenever r reports an explicit disconnect, and
// announces rooms joined after the last resync once connected.
func (m *Membership) Attach(r *router.Router) {
	sub := router.SubscribeJSON(r, models.EventConnectionState, func(sc ws.StateChange) error {
		switch {
		case sc.To == ws.StateDisconnected && sc.Explicit:
			m.Reset()
		case sc.To == ws.StateConnected:
			m.flushUnsent(context.Background())
		}
		return nil
	})

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
}

// Join adds roomID and announces it if connected. Joining twice is a no-op.
func (m *Membership) Join(ctx context.Context, roomID string) error {
	if roomID == "" {
		return models.ErrMissingRoom
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	if _, ok := m.members[roomID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.members[roomID] = struct{}{}
	m.mu.Unlock()

	if !m.announce(ctx, models.CmdJoinRoom, roomID) {
		m.mu.Lock()
		m.unsent[roomID] = struct{}{}
		m.mu.Unlock()
	}
	return nil
}

// Leave removes roomID and tells the server if connected.
func (m *Membership) Leave(ctx context.Context, roomID string) error {
	if roomID == "" {
		return models.ErrMissingRoom
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	if _, ok := m.members[roomID]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.members, roomID)
	delete(m.unsent, roomID)
	m.mu.Unlock()

	m.announce(ctx, models.CmdLeaveRoom, roomID)
	return nil
}

// announce is best effort and reports whether the frame went out; the
// next resync or connect covers a lost join.
func (m *Membership) announce(ctx context.Context, cmd, roomID string) bool {
	err := m.sender.Send(ctx, cmd, models.RoomRequest{RoomID: roomID})
	switch {
	case err == nil:
		return true
	case errors.Is(err, models.ErrNotConnected):
		m.log.WithField("room", roomID).Debugf("%s deferred until connected", cmd)
	default:
		m.log.WithError(err).WithField("room", roomID).Warnf("%s not sent", cmd)
	}
	return false
}

// Resync sends join_room once for every member, in sorted order.
func (m *Membership) Resync(ctx context.Context, s ws.Sender) error {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	for _, roomID := range m.Members() {
		if err := s.Send(ctx, models.CmdJoinRoom, models.RoomRequest{RoomID: roomID}); err != nil {
			return err
		}
		m.mu.Lock()
		delete(m.unsent, roomID)
		m.mu.Unlock()
	}
	return nil
}

// flushUnsent announces rooms whose join could not be sent when made.
func (m *Membership) flushUnsent(ctx context.Context) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	pending := make([]string, 0, len(m.unsent))
	for id := range m.unsent {
		pending = append(pending, id)
	}
	m.mu.Unlock()
	slices.Sort(pending)

	for _, roomID := range pending {
		if !m.announce(ctx, models.CmdJoinRoom, roomID) {
			return
		}
		m.mu.Lock()
		delete(m.unsent, roomID)
		m.mu.Unlock()
	}
}

// Members returns the current rooms, sorted.
func (m *Membership) Members() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.members))
	for id := range m.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Contains reports membership of roomID.
func (m *Membership) Contains(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[roomID]
	return ok
}

// Reset forgets every room without telling the server.
func (m *Membership) Reset() {
	m.mu.Lock()
	clear(m.members)
	clear(m.unsent)
	m.mu.Unlock()
}

// Close detaches from the router.
func (m *Membership) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	sub.Unsubscribe()
}
