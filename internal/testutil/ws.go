// Package testutil provides test clients for integration testing the arena
// server's network surface.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSEvent is one decoded server-to-client frame.
type WSEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSClient is a WebSocket test client speaking the arena event protocol.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// DialWS connects to the /ws endpoint of an httptest server.
//
// Precondition: srv must serve the websocket upgrade at path.
// Postcondition: Returns a connected WSClient or fails the test.
func DialWS(t *testing.T, srv *httptest.Server, path string) *WSClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialling %s: %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return &WSClient{conn: conn, t: t}
}

// Send writes one event frame.
//
// Postcondition: {"event": event, "data": payload} is written, or the test fails.
func (c *WSClient) Send(event string, payload any) {
	c.t.Helper()

	frame := map[string]any{"event": event}
	if payload != nil {
		frame["data"] = payload
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(frame); err != nil {
		c.t.Fatalf("sending %s: %v", event, err)
	}
}

// ReadEvent reads the next frame, failing the test on timeout.
func (c *WSClient) ReadEvent() WSEvent {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt WSEvent
	if err := c.conn.ReadJSON(&evt); err != nil {
		c.t.Fatalf("reading event: %v", err)
	}
	return evt
}

// Expect reads the next frame, fails unless it carries the given event name,
// and decodes its payload into dst when dst is non-nil.
func (c *WSClient) Expect(event string, dst any) {
	c.t.Helper()

	evt := c.ReadEvent()
	if evt.Event != event {
		c.t.Fatalf("expected event %q, got %q (payload %s)", event, evt.Event, evt.Data)
	}
	if dst != nil {
		if err := json.Unmarshal(evt.Data, dst); err != nil {
			c.t.Fatalf("decoding %s payload: %v", event, err)
		}
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	_ = c.conn.Close()
}
