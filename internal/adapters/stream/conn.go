package stream

import (
	"errors"
	"sync"

	"github.com/dkeye/Membership/internal/app"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

var _ app.Subscriber = (*WsConn)(nil)

// WsConn queues events for one WebSocket client. The write pump drains the
// queue; TrySend never blocks.
type WsConn struct {
	conn *websocket.Conn
	send chan domain.MembershipEvent

	mu     sync.RWMutex
	closed bool
}

func newWsConn(conn *websocket.Conn, buffer int) *WsConn {
	return &WsConn{
		conn: conn,
		send: make(chan domain.MembershipEvent, buffer),
	}
}

func (c *WsConn) TrySend(e domain.MembershipEvent) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- e:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}
