package arenaserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the deadline for a single outbound frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before it is
	// considered dead.
	pongWait = 60 * time.Second
	// pingPeriod is the keepalive interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize bounds inbound frames; game events are small.
	maxFrameSize = 4096
)

// connection pairs one WebSocket with a buffered outbound queue, written by
// a dedicated pump so that fan-out never blocks on a slow client.
type connection struct {
	id     string
	sock   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
}

func newConnection(id string, sock *websocket.Conn, sendBuffer int, logger *zap.Logger) *connection {
	return &connection{
		id:     id,
		sock:   sock,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// enqueue stages a frame for the write pump without blocking.
//
// Postcondition: Returns false when the buffer is full; the frame is dropped
// and the caller should treat the connection as dead.
func (c *connection) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close tears the connection down exactly once. The socket close unblocks
// the read pump, which performs the unregister and disconnect notification.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// readPump consumes inbound frames and hands them to the handler. It owns
// the read side: deadlines, pongs, and size limits. Returns when the
// connection dies.
func (c *connection) readPump(handler Handler) {
	c.sock.SetReadLimit(maxFrameSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read failed", zap.String("sid", c.id), zap.Error(err))
			}
			return
		}
		handler.HandleFrame(c.id, frame)
	}
}

// writePump drains the send queue to the socket and emits keepalive pings.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.sock.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
