package arenaserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler reacts to connection lifecycle transitions and inbound frames.
// The Router implements it.
type Handler interface {
	HandleConnect(connID string)
	HandleDisconnect(connID string)
	HandleFrame(connID string, frame []byte)
}

// outboundFrame is the wire shape of every server-to-client event.
type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub owns all live WebSocket connections. It assigns each new socket a
// connection id, runs its pumps, and delivers outbound events by id. Room
// membership is not tracked here; the Router resolves recipients from the
// Store and addresses them individually.
type Hub struct {
	logger     *zap.Logger
	sendBuffer int
	upgrader   websocket.Upgrader
	handler    Handler

	mu    sync.RWMutex
	conns map[string]*connection

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHub creates a Hub that accepts upgrades from the given origins.
// An empty origin header is always accepted (non-browser clients); the
// single element "*" accepts every origin.
//
// Precondition: logger must be non-nil; sendBuffer must be >= 1.
func NewHub(allowedOrigins []string, sendBuffer int, logger *zap.Logger) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &Hub{
		logger:     logger,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || allowed[origin]
			},
		},
		conns:  make(map[string]*connection),
		stopCh: make(chan struct{}),
	}
}

// SetHandler wires the event handler.
//
// Precondition: must be called exactly once, before ServeWS serves traffic.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// ServeWS upgrades an HTTP request to a WebSocket connection, assigns it a
// connection id, and serves it until disconnect.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newConnection(uuid.NewString(), sock, h.sendBuffer, h.logger)

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.handler.HandleConnect(c.id)

	go c.writePump()
	c.readPump(h.handler)

	h.drop(c)
}

// Send marshals and delivers one event to one connection. Delivery is
// non-blocking: a connection whose buffer is full is dropped. Sends to
// unknown ids are ignored.
func (h *Hub) Send(connID, event string, payload any) {
	frame, err := json.Marshal(outboundFrame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("marshalling event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if !c.enqueue(frame) {
		h.logger.Warn("send buffer full, dropping connection", zap.String("sid", connID))
		c.close()
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// drop unregisters a dead connection and notifies the handler. The slot is
// released before this returns, so later events for the same id observe the
// disconnect.
func (h *Hub) drop(c *connection) {
	h.mu.Lock()
	current, ok := h.conns[c.id]
	if ok && current == c {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()

	c.close()
	if ok && current == c {
		h.handler.HandleDisconnect(c.id)
	}
}

// Start blocks until Stop is called. It exists to let the Hub participate
// in the server lifecycle.
func (h *Hub) Start() error {
	<-h.stopCh
	return nil
}

// Stop closes every live connection and releases Start.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mu.RLock()
		conns := make([]*connection, 0, len(h.conns))
		for _, c := range h.conns {
			conns = append(conns, c)
		}
		h.mu.RUnlock()

		for _, c := range conns {
			c.close()
		}
		close(h.stopCh)
	})
}
