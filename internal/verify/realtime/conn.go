package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a websocket to Conn. Frames go through a bounded queue
// drained by a single writer goroutine; the send channel is never closed,
// done signals shutdown instead.
type wsConn struct {
	ws   *websocket.Conn
	cfg  Config
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, cfg Config) *wsConn {
	return &wsConn{
		ws:   ws,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendQueue),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(c.cfg.WriteTimeout),
		)
		err = c.ws.Close()
	})
	return err
}

// writeLoop drains the queue and keeps the peer alive with pings. Any write
// error closes the connection, which in turn ends the read loop.
func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return

		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
