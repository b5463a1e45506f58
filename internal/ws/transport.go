package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
)

const (
	writeTimeout    = 10 * time.Second
	wsReadLimit     = 64 << 10
	pingInterval    = 30 * time.Second
	pingTimeout     = 10 * time.Second
	maxMissedPongs  = int32(2)
	closeReasonUser = "client disconnect"
)

// Conn is one live transport connection.
type Conn interface {
	// Read blocks until the next inbound frame or a transport error.
	Read(ctx context.Context) (Event, error)
	Write(ctx context.Context, ev Event) error
	Close() error
}

// Dialer opens transport connections.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// TokenRefresher is implemented by connections that can rotate their
// credential without reconnecting.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, token string) error
}

// WebSocketDialer dials the push channel over WebSocket. The token is
// sent as a bearer Authorization header.
type WebSocketDialer struct {
	Log          *logrus.Logger
	HTTPClient   *http.Client
	PingInterval time.Duration
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, url, token string) (Conn, error) {
	opts := &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: http.Header{},
	}
	if token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
	}

	c, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", models.ErrTransport, err)
	}
	c.SetReadLimit(wsReadLimit)

	interval := d.PingInterval
	if interval <= 0 {
		interval = pingInterval
	}

	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	wc := &wsConn{
		conn: c,
		log:  log,
		done: make(chan struct{}),
	}
	go wc.keepAlive(interval)

	return wc, nil
}

// wsConn adapts a coder/websocket connection to Conn.
type wsConn struct {
	conn      *websocket.Conn
	log       *logrus.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// Read skips binary and malformed frames; only transport failures end it.
func (c *wsConn) Read(ctx context.Context) (Event, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.WithField("status", status).Debug("server closed connection")
			}
			return Event{}, fmt.Errorf("%w: read: %w", models.ErrTransport, err)
		}

		if typ != websocket.MessageText {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			c.log.WithField("size", len(data)).Warn("dropping malformed frame")
			continue
		}

		return ev, nil
	}
}

func (c *wsConn) Write(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", models.ErrTransport, ev.Type, err)
	}

	return nil
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close(websocket.StatusNormalClosure, closeReasonUser)
	})
	return err
}

// RefreshToken sends the rotated credential over the live connection.
func (c *wsConn) RefreshToken(ctx context.Context, token string) error {
	ev, err := NewEvent(models.CmdRefreshToken, models.TokenRefresh{Token: token})
	if err != nil {
		return err
	}
	return c.Write(ctx, ev)
}

// keepAlive pings the server and drops the connection after two
// consecutive missed pongs, which surfaces as a read error.
func (c *wsConn) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var missed atomic.Int32

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			err := c.conn.Ping(ctx)
			cancel()

			if err == nil {
				missed.Store(0)
				continue
			}

			if missed.Add(1) >= maxMissedPongs {
				c.log.Debug("closing: consecutive missed pongs")
				c.conn.CloseNow() //nolint:errcheck // best-effort close on dead peer.

				return
			}
		}
	}
}
