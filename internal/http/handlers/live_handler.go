package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/qris-donation-backend/internal/events"
	"github.com/tbourn/qris-donation-backend/internal/http/middleware"
)

const (
	defaultPingInterval = 54 * time.Second
	liveReadTimeout     = 60 * time.Second
	liveWriteTimeout    = 10 * time.Second
)

// Live godoc
// @ID          liveDonations
// @Summary     Live donation events
// @Description Upgrades to a websocket that streams donation.matched, session.created and session.cleared events as JSON.
// @Tags        Donations
//
// @Success     101  {object}  events.Event  "Switching Protocols"
// @Failure     426  {object}  handlers.ErrorResponse  "Not a websocket request"
// @Failure     503  {object}  handlers.ErrorResponse  "Stream disabled"
// @Router      /donations/live [get]
func (h *Handlers) Live(c *gin.Context) {
	if h.Stream == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "live stream disabled")
		return
	}
	if !websocket.IsWebSocketUpgrade(c.Request) {
		fail(c, http.StatusUpgradeRequired, ErrCodeUpgradeUnsupported, "websocket upgrade required")
		return
	}

	lg := middleware.LoggerFrom(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	stream, cancelSub := h.Stream.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Inbound frames are ignored; reading keeps pong and close handling alive.
	conn.SetReadDeadline(time.Now().Add(liveReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(liveReadTimeout))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					lg.Debug().Err(err).Msg("websocket read ended")
				}
				return
			}
		}
	}()

	interval := h.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := writeEvent(conn, events.New("connected", nil)); err != nil {
		return
	}
	lg.Debug().Msg("live subscriber connected")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-stream:
			if !open {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				lg.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return conn.WriteJSON(ev)
}
