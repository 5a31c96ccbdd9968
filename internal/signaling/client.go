package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/warpvideo/signaling-relay/internal/relaycore"
)

const wsWriteWait = 1 * time.Second

// client adapts one WebSocket connection into the relaycore.Sender
// capability. Send never blocks the dispatch loop: messages go into a
// bounded queue drained by the write pump, and a full queue or closed
// transport is reported as a drop.
type client struct {
	conn *websocket.Conn

	send chan any
	done chan struct{}

	pingInterval time.Duration

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, queueLen int, pingInterval time.Duration) *client {
	return &client{
		conn:         conn,
		send:         make(chan any, queueLen),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
	}
}

// Send implements relaycore.Sender.
func (c *client) Send(v any) error {
	select {
	case <-c.done:
		return relaycore.ErrSendClosed
	default:
	}
	select {
	case c.send <- v:
		return nil
	case <-c.done:
		return relaycore.ErrSendClosed
	default:
		return relaycore.ErrSendQueueFull
	}
}

// writePump owns all writes to the transport: queued messages and
// keepalive pings. It exits when the queue closes or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case v := <-c.send:
			data, err := json.Marshal(v)
			if err != nil {
				// A non-serializable push is a programming error; skip it
				// rather than kill the connection.
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) closeWith(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	c.close()
}
