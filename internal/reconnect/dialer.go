// Package reconnect implements the client-side recovery contract of the
// real-time layer: on transport loss every room membership is void, so the
// controller redials with a bounded retry policy, re-joins every tracked room,
// and re-synchronizes feature state (chat history, whiteboard snapshot)
// instead of trusting its in-memory view.
package reconnect

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Conn is the controller's view of one established transport connection.
type Conn interface {
	// ReadMessage blocks until the next server event arrives.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one client envelope.
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes transport connections. Swappable for tests.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials real WebSocket connections.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewDialer returns a dialer with default handshake settings.
func NewDialer() *WebsocketDialer {
	return &WebsocketDialer{dialer: websocket.DefaultDialer}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &gorillaConn{conn: conn}, nil
}

type gorillaConn struct {
	conn *websocket.Conn
}

func (g *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := g.conn.ReadMessage()
	return data, err
}

func (g *gorillaConn) WriteMessage(data []byte) error {
	return g.conn.WriteMessage(websocket.TextMessage, data)
}

func (g *gorillaConn) Close() error {
	return g.conn.Close()
}
