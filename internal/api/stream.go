package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/router"
	"github.com/seatsync/seatsync/internal/ws"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamSendBuffer   = 256
)

// streamedEvents are forwarded to local event-stream clients.
var streamedEvents = []string{
	models.EventConnectionState,
	models.EventSeatUpdate,
	models.EventBookingUpdate,
	models.EventSystemAnnouncement,
	models.EventUserNotification,
	models.EventSeatLockFailed,
}

// EventSource is implemented by *router.Router.
type EventSource interface {
	Subscribe(event string, fn router.Handler) *router.Subscription
}

// streamHandler upgrades to a WebSocket and mirrors session frames to a
// local UI. Slow clients drop frames rather than stall the router.
func streamHandler(appCtx context.Context, log *logrus.Logger, src EventSource, corsOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns: corsOrigins,
		})
		if err != nil {
			log.WithError(err).Error("websocket accept failed")
			return
		}
		defer conn.CloseNow() //nolint:errcheck // best-effort close on teardown

		send := make(chan ws.Event, streamSendBuffer)
		subs := make([]*router.Subscription, 0, len(streamedEvents))
		for _, name := range streamedEvents {
			subs = append(subs, src.Subscribe(name, func(ev ws.Event) error {
				select {
				case send <- ev:
				default:
					log.WithField("event", ev.Type).Debug("event stream client too slow, dropping frame")
				}
				return nil
			}))
		}
		defer func() {
			for _, s := range subs {
				s.Unsubscribe()
			}
		}()

		ctx, cancel := context.WithCancel(appCtx)
		defer cancel()
		go func() {
			select {
			case <-c.Request.Context().Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		// Inbound messages are ignored; CloseRead cancels on disconnect.
		ctx = conn.CloseRead(ctx)

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // best-effort
				return
			case ev := <-send:
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, streamWriteTimeout)
				err = conn.Write(wctx, websocket.MessageText, data)
				wcancel()
				if err != nil {
					log.WithError(err).Debug("event stream write failed")
					return
				}
			}
		}
	}
}
