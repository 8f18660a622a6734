package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 5 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 30 * time.Second
	sendQueueSize = 256
	maxFrameSize  = 1 << 20 // 1MB
)

// Client is one live websocket session. UserID is empty until the
// connection binds an identity; a connection binds at most one user.
// Send is drained by a single writer goroutine, so fan-out order from one
// sender is preserved per connection.
type Client struct {
	ConnID string
	UserID string
	WS     *websocket.Conn
	Send   chan []byte

	done     chan struct{}
	doneOnce sync.Once
}

func NewClient(connID string, ws *websocket.Conn) *Client {
	return &Client{
		ConnID: connID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// close releases the writer goroutine. Send is never closed: fan-out may
// still hold a reference to a just-removed client, and a send on a closed
// channel would take the whole process down.
func (c *Client) close() {
	c.doneOnce.Do(func() { close(c.done) })
}

// writePump is the single writer for this connection: outbound frames and
// keepalive pings. gorilla conns do not allow concurrent writes.
func (c *Client) writePump() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	defer func() { _ = c.WS.Close() }()

	for {
		select {
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-t.C:
			if err := c.WS.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
