// Package ws maintains the single live push connection to the booking
// server: dialing, reconnecting with backoff, resyncing room membership and
// publishing inbound frames and state changes to the event router.
package ws

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/clock"
	"github.com/seatsync/seatsync/internal/metrics"
	"github.com/seatsync/seatsync/internal/models"
)

// State is the lifecycle state of the push connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

var allStates = []State{StateDisconnected, StateConnecting, StateConnected, StateReconnecting, StateFailed}

var (
	// ErrMaxAttempts is returned by Connect when the reconnect budget is spent.
	ErrMaxAttempts = fmt.Errorf("%w: reconnect attempts exhausted", models.ErrTransport)

	// ErrClosed is returned by Connect when Disconnect interrupts it.
	ErrClosed = errors.New("connection closed")
)

const defaultDialTimeout = 15 * time.Second

// StateChange is the payload of the connection_state event.
type StateChange struct {
	From     State  `json:"from"`
	To       State  `json:"to"`
	Attempt  int    `json:"attempt"`
	Explicit bool   `json:"explicit,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Publisher receives inbound frames and connection_state events.
type Publisher interface {
	Dispatch(ev Event)
}

// Sender writes outbound control frames.
type Sender interface {
	Send(ctx context.Context, eventType string, payload any) error
}

// Resyncer re-announces client state on a fresh transport before the
// connection is reported as connected.
type Resyncer interface {
	Resync(ctx context.Context, s Sender) error
}

// ResyncFunc adapts a function to Resyncer.
type ResyncFunc func(ctx context.Context, s Sender) error

// Resync implements Resyncer.
func (f ResyncFunc) Resync(ctx context.Context, s Sender) error { return f(ctx, s) }

// Options configures a Manager.
type Options struct {
	Dialer      Dialer
	Publisher   Publisher
	Clock       clock.Clock
	Backoff     Backoff
	DialTimeout time.Duration
	Log         *logrus.Logger
}

// Manager owns the push connection. All methods are safe for concurrent use.
type Manager struct {
	dialer      Dialer
	pub         Publisher
	clock       clock.Clock
	backoff     Backoff
	dialTimeout time.Duration
	log         *logrus.Logger

	mu          sync.Mutex
	state       State
	attempt     int
	url         string
	token       string
	conn        Conn
	pending     Conn
	gen         uint64
	timer       *clock.Timer
	waiters     []chan error
	resyncers   []Resyncer
	lastEventID uint64
	runCtx      context.Context //nolint:containedctx // lifetime of one connect cycle.
	cancel      context.CancelFunc
	outbox      []StateChange

	pubMu sync.Mutex
}

// NewManager creates a disconnected Manager.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Backoff.Base <= 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Dialer == nil {
		opts.Dialer = &WebSocketDialer{Log: opts.Log}
	}

	m := &Manager{
		dialer:      opts.Dialer,
		pub:         opts.Publisher,
		clock:       opts.Clock,
		backoff:     opts.Backoff,
		dialTimeout: opts.DialTimeout,
		log:         opts.Log,
		state:       StateDisconnected,
	}
	m.recordState(StateDisconnected)

	return m
}

// AddResyncer registers r to run on every transition into connected, in
// registration order.
func (m *Manager) AddResyncer(r Resyncer) {
	m.mu.Lock()
	m.resyncers = append(m.resyncers, r)
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the number of consecutive failed dials.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// LastEventID returns the highest inbound frame ID seen.
func (m *Manager) LastEventID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastEventID
}

// Connect dials url and blocks until the first successful connection,
// terminal failure, Disconnect or ctx end. While a connect is already in
// progress the call joins it; while connected it returns nil.
func (m *Manager) Connect(ctx context.Context, url, token string) error {
	w, gen, err := m.begin(url, token)
	if err != nil {
		return err
	}
	m.flush()

	if gen != 0 {
		go m.dial(gen)
	}

	if w == nil {
		return nil
	}

	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start is Connect without waiting: the first dial runs on the calling
// goroutine and any failure is handled by the reconnect schedule.
func (m *Manager) Start(url, token string) error {
	_, gen, err := m.begin(url, token)
	if err != nil {
		return err
	}
	m.flush()

	if gen != 0 {
		m.dial(gen)
	}

	return nil
}

func (m *Manager) begin(url, token string) (<-chan error, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateConnected:
		return nil, 0, nil
	case StateConnecting, StateReconnecting:
		return m.addWaiterLocked(), 0, nil
	case StateDisconnected, StateFailed:
	}

	if url == "" {
		return nil, 0, models.ErrMissingURL
	}

	m.url, m.token = url, token
	m.attempt = 0
	m.gen++
	m.runCtx, m.cancel = context.WithCancel(context.Background())
	w := m.addWaiterLocked()
	m.transitionLocked(StateConnecting, false, nil)

	return w, m.gen, nil
}

// Disconnect tears the connection down. Pending reconnects are cancelled
// and subscribers see an explicit transition to disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}

	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	conn, pending := m.conn, m.pending
	m.conn, m.pending = nil, nil
	m.attempt = 0
	m.transitionLocked(StateDisconnected, true, nil)
	waiters := m.takeWaitersLocked()
	m.mu.Unlock()

	for _, c := range []Conn{conn, pending} {
		if c != nil {
			c.Close() //nolint:errcheck // best-effort close on teardown.
		}
	}
	m.flush()
	resolve(waiters, ErrClosed)
}

// UpdateToken rotates the credential. A live transport that supports it
// is refreshed in place; otherwise the connection is cycled.
func (m *Manager) UpdateToken(ctx context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	conn, pending := m.conn, m.pending
	m.mu.Unlock()

	// A transport still handshaking was dialed with the old token; failing
	// it makes the retry dial with the new one.
	if pending != nil {
		pending.Close() //nolint:errcheck // handshake will report the drop.
	}
	if conn == nil {
		return nil
	}

	if r, ok := conn.(TokenRefresher); ok {
		err := r.RefreshToken(ctx, token)
		if err == nil {
			return nil
		}
		m.log.WithError(err).Warn("in-place token refresh failed, reconnecting")
	}

	// Closing makes the read loop observe the drop and schedule a redial
	// with the new token.
	return conn.Close()
}

// Send writes an outbound control frame on the live transport. A transport
// that is still replaying subscriptions and room joins does not count as
// live, so frames sent meanwhile fail with models.ErrNotConnected.
func (m *Manager) Send(ctx context.Context, eventType string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return models.ErrNotConnected
	}

	return connSender{conn: conn}.Send(ctx, eventType, payload)
}

func (m *Manager) dial(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	url, token, lastID, runCtx := m.url, m.token, m.lastEventID, m.runCtx
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(runCtx, m.dialTimeout)
	conn, err := m.dialer.Dial(dialCtx, url, token)
	cancel()

	if err != nil {
		m.dialFailed(gen, nil, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close() //nolint:errcheck // superseded connection.
		return
	}
	m.pending = conn
	m.mu.Unlock()

	if err := m.handshake(runCtx, conn, lastID); err != nil {
		m.dialFailed(gen, conn, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.pending != conn {
		m.mu.Unlock()
		conn.Close() //nolint:errcheck // superseded connection.
		return
	}
	m.pending = nil
	m.conn = conn
	m.attempt = 0
	m.transitionLocked(StateConnected, false, nil)
	waiters := m.takeWaitersLocked()
	m.mu.Unlock()

	m.flush()
	resolve(waiters, nil)

	go m.readLoop(runCtx, conn)
}

// handshake asks for replay of missed frames, then runs every resyncer.
func (m *Manager) handshake(ctx context.Context, conn Conn, lastID uint64) error {
	ctx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	defer cancel()

	s := connSender{conn: conn}
	if err := s.Send(ctx, models.CmdSubscribe, models.SubscribeRequest{LastEventID: lastID}); err != nil {
		return err
	}

	m.mu.Lock()
	resyncers := slices.Clone(m.resyncers)
	m.mu.Unlock()

	for _, r := range resyncers {
		if err := r.Resync(ctx, s); err != nil {
			return fmt.Errorf("resync: %w", err)
		}
	}

	return nil
}

func (m *Manager) dialFailed(gen uint64, conn Conn, cause error) {
	if conn != nil {
		conn.Close() //nolint:errcheck // handshake failed, drop it.
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if conn != nil && m.pending == conn {
		m.pending = nil
	}

	m.attempt++
	metrics.ReconnectAttempts.Inc()

	logger := m.log.WithError(cause).WithField("attempt", m.attempt)

	if m.backoff.MaxAttempts > 0 && m.attempt >= m.backoff.MaxAttempts {
		attempts := m.attempt
		m.transitionLocked(StateFailed, false, cause)
		waiters := m.takeWaitersLocked()
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Unlock()

		logger.Error("push connection failed, giving up")
		m.flush()
		resolve(waiters, fmt.Errorf("%w after %d attempts: %w", ErrMaxAttempts, attempts, cause))

		return
	}

	m.transitionLocked(StateReconnecting, false, cause)
	delay := m.scheduleLocked(gen)
	m.mu.Unlock()

	logger.WithField("retry_in", delay).Warn("push connection dial failed")
	m.flush()
}

// scheduleLocked arms the single reconnect timer.
func (m *Manager) scheduleLocked(gen uint64) time.Duration {
	if m.timer != nil {
		m.timer.Stop()
	}

	delay := m.backoff.Delay(max(m.attempt, 1))
	m.timer = m.clock.AfterFunc(delay, func() { m.retry(gen) })

	return delay
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.transitionLocked(StateConnecting, false, nil)
	m.mu.Unlock()

	m.flush()
	m.dial(gen)
}

// readLoop delivers frames in order until the transport drops.
func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		ev, err := conn.Read(ctx)
		if err != nil {
			m.connLost(conn, err)
			return
		}

		m.mu.Lock()
		if m.conn != conn {
			m.mu.Unlock()
			return
		}
		if ev.ID > m.lastEventID {
			m.lastEventID = ev.ID
		}
		m.mu.Unlock()

		metrics.FramesReceived.WithLabelValues(ev.Type).Inc()

		if m.pub == nil {
			continue
		}

		m.pub.Dispatch(ev)

		if ev.Type == models.EventReset {
			m.log.WithField("last_event_id", ev.ID).Info("server reset event stream, resync required")
			m.pub.Dispatch(Event{Type: models.EventResyncRequired, Data: ev.Data, Time: m.clock.Now()})
		}
	}
}

// connLost handles a peer drop: a fresh retry budget starts at once.
func (m *Manager) connLost(conn Conn, cause error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.attempt = 0
	m.transitionLocked(StateReconnecting, false, cause)
	delay := m.scheduleLocked(m.gen)
	m.mu.Unlock()

	conn.Close() //nolint:errcheck // already dropped.
	m.log.WithError(cause).WithField("retry_in", delay).Warn("push connection lost")
	m.flush()
}

func (m *Manager) transitionLocked(to State, explicit bool, cause error) {
	change := StateChange{From: m.state, To: to, Attempt: m.attempt, Explicit: explicit}
	if cause != nil {
		change.Error = cause.Error()
	}
	m.state = to
	m.outbox = append(m.outbox, change)
}

// flush publishes queued state changes in transition order. A publish
// that triggers another transition on the same goroutine is drained by
// the outer loop instead of recursing.
func (m *Manager) flush() {
	for {
		if !m.pubMu.TryLock() {
			return
		}

		for {
			m.mu.Lock()
			if len(m.outbox) == 0 {
				m.mu.Unlock()
				break
			}
			change := m.outbox[0]
			m.outbox = m.outbox[1:]
			m.mu.Unlock()

			m.publish(change)
		}

		m.pubMu.Unlock()

		m.mu.Lock()
		empty := len(m.outbox) == 0
		m.mu.Unlock()

		if empty {
			return
		}
	}
}

func (m *Manager) publish(change StateChange) {
	m.recordState(change.To)

	m.log.WithFields(logrus.Fields{
		"from":    change.From,
		"to":      change.To,
		"attempt": change.Attempt,
	}).Debug("connection state changed")

	if m.pub == nil {
		return
	}

	ev, err := NewEvent(models.EventConnectionState, change)
	if err != nil {
		m.log.WithError(err).Error("encoding state change")
		return
	}
	ev.Time = m.clock.Now()

	m.pub.Dispatch(ev)
}

func (m *Manager) recordState(current State) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		metrics.ConnectionState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Manager) addWaiterLocked() chan error {
	w := make(chan error, 1)
	m.waiters = append(m.waiters, w)
	return w
}

func (m *Manager) takeWaitersLocked() []chan error {
	w := m.waiters
	m.waiters = nil
	return w
}

func resolve(waiters []chan error, err error) {
	for _, w := range waiters {
		w <- err
	}
}

// DecodeStateChange reads the payload of a connection_state event.
func DecodeStateChange(ev Event) (StateChange, error) {
	var sc StateChange
	if err := ev.Decode(&sc); err != nil {
		return StateChange{}, err
	}
	return sc, nil
}

// connSender writes frames on one specific transport.
type connSender struct {
	conn Conn
}

func (s connSender) Send(ctx context.Context, eventType string, payload any) error {
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrValidation, err)
	}

	if err := s.conn.Write(ctx, ev); err != nil {
		if errors.Is(err, models.ErrTransport) {
			return err
		}
		return fmt.Errorf("%w: send %s: %w", models.ErrTransport, eventType, err)
	}

	return nil
}
