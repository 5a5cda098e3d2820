package websocket

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Client represents a single connected WebSocket client. Each browser tab gets
// its own Client; the same user may hold several at once.
type Client struct {
	id       string
	username string
	conn     *websocket.Conn
	send     chan []byte
	mu       sync.RWMutex
}

// NewClient wraps an accepted connection. The id must be unique per
// connection, not per user.
func NewClient(id, username string, conn *websocket.Conn) *Client {
	return &Client{
		id:       id,
		username: username,
		conn:     conn,
		send:     make(chan []byte, 256),
	}
}

// ID returns the unique connection identifier.
func (c *Client) ID() string { return c.id }

// Username returns the verified identity of the connected user.
func (c *Client) Username() string { return c.username }

// Send queues a message for delivery to the client. It uses a read lock to
// ensure the channel is not closed concurrently. A full buffer drops the
// message rather than blocking the sender.
func (c *Client) Send(msg []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return
	}

	select {
	case c.send <- msg:
	default:
		slog.Warn("Client send channel full, dropping message", "clientID", c.id)
	}
}

// Close safely closes the client's send channel, stopping the write pump.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// writePump pumps queued messages to the WebSocket connection. It exits when
// Close is called or a write fails. The channel is captured once up front;
// Close nils the field under the lock, so re-reading it mid-loop would race
// and a nil read would block forever.
func (c *Client) writePump() {
	c.mu.RLock()
	send := c.send
	c.mu.RUnlock()
	if send == nil {
		return
	}

	defer func() {
		c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")
	}()

	for message := range send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "clientID", c.id, "error", err)
			return
		}
	}
}

// readLoop reads raw client messages until the connection closes, passing each
// to handle. It returns once the peer disconnects.
func (c *Client) readLoop(ctx context.Context, handle func(data []byte)) {
	for {
		_, message, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("WebSocket closed normally by client", "clientID", c.id)
			} else if err != io.EOF && ctx.Err() == nil {
				slog.Error("WebSocket read error", "clientID", c.id, "error", err)
			}
			return
		}
		handle(message)
	}
}
