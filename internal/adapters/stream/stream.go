// Package stream pushes membership events of one room to WebSocket clients
// as they are appended.
package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Membership/internal/app"
	"github.com/dkeye/Membership/internal/core"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

type Controller struct {
	Hub        *app.Hub
	ReadLimit  int64
	PingPeriod time.Duration
	Buffer     int
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleStream upgrades the request and subscribes the connection to the
// room named by the :room path parameter until either side goes away.
func (ctl *Controller) HandleStream(ctx context.Context, c *gin.Context) {
	room := domain.RoomID(c.Param("room"))
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.stream").Msg("ws upgrade")
		return
	}

	conn := newWsConn(ws, ctl.Buffer)
	id := ctl.Hub.Subscribe(room, conn)
	ctx, cancel := context.WithCancel(ctx)
	log.Info().Str("module", "adapters.stream").Str("room", string(room)).Str("sub", string(id)).Msg("stream opened")

	go ctl.writePump(ctx, conn)
	go func() {
		defer func() {
			cancel()
			ctl.Hub.Unsubscribe(room, id)
			conn.Close()
			log.Info().Str("module", "adapters.stream").Str("room", string(room)).Str("sub", string(id)).Msg("stream closed")
		}()
		ctl.readPump(conn)
	}()
}

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			c.Close()
			return
		case e, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.stream").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteJSON(core.NewEventDTO(e)); err != nil {
				log.Error().Err(err).Str("module", "adapters.stream").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "adapters.stream").Msg("writePump ping failed")
				c.Close()
				return
			}
		}
	}
}

// readPump discards client frames; it only exists to process control frames
// and notice when the client leaves.
func (ctl *Controller) readPump(c *WsConn) {
	pongWait := ctl.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "adapters.stream").Msg("readPump read error")
			}
			return
		}
	}
}
