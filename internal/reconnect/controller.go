package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nfrund/projecthub/internal/retry"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/websocket"
)

// ErrNotConnected is returned when a send is attempted while the transport is
// down. The caller decides whether to drop or queue; the controller does not
// buffer outbound traffic across outages.
var ErrNotConnected = errors.New("transport not connected")

// Hooks are the controller's callbacks into the presentation tier.
type Hooks struct {
	// OnEvent receives every server event in arrival order. Whiteboard update
	// events for a room whose snapshot has not arrived yet are held back and
	// replayed right after the boardInit, so the snapshot can never be applied
	// on top of newer buffered edits.
	OnEvent func(ev websocket.Event)
	// OnRejoin fires once per tracked room on every (re)connect, after the
	// join envelope is sent. Chat rooms re-fetch recent history here rather
	// than assume no messages were missed.
	OnRejoin func(ctx context.Context, key rooms.Key)
}

// Options configure a Controller.
type Options struct {
	// URL of the server's WebSocket endpoint.
	URL string
	// Header is sent with the handshake; it carries the session cookie.
	Header http.Header
	// Dialer establishes connections. Defaults to NewDialer().
	Dialer Dialer
	// Policy bounds how often a lost transport is redialed before the
	// controller gives up and surfaces a terminal failure.
	Policy retry.Policy
	Hooks  Hooks
}

// Controller maintains the desired set of room memberships and keeps a live
// transport serving them, redialing and re-joining after every loss.
type Controller struct {
	url    string
	header http.Header
	dialer Dialer
	policy retry.Policy
	hooks  Hooks
	logger *slog.Logger

	mu        sync.Mutex
	tracked   map[rooms.Key]struct{}
	conn      Conn
	buffering map[string][]websocket.Event // projectID -> updates held until boardInit
}

// NewController creates a controller. It does nothing until Run is called.
func NewController(opts Options) *Controller {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = NewDialer()
	}
	return &Controller{
		url:       opts.URL,
		header:    opts.Header,
		dialer:    dialer,
		policy:    opts.Policy,
		hooks:     opts.Hooks,
		logger:    slog.Default().With("service", "reconnect"),
		tracked:   make(map[rooms.Key]struct{}),
		buffering: make(map[string][]websocket.Event),
	}
}

// Track adds a room to the desired membership set. If the transport is up the
// join is sent immediately; either way the room is re-joined after every
// reconnect until Untrack is called.
func (c *Controller) Track(ctx context.Context, projectID string, feature rooms.Feature) error {
	key := rooms.Key{ProjectID: projectID, Feature: feature}

	c.mu.Lock()
	c.tracked[key] = struct{}{}
	connected := c.conn != nil
	if connected && feature == rooms.FeatureWhiteboard {
		c.startBuffering(projectID)
	}
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.joinRoom(ctx, key)
}

// Untrack removes a room from the desired set and leaves it if connected.
func (c *Controller) Untrack(ctx context.Context, projectID string, feature rooms.Feature) error {
	key := rooms.Key{ProjectID: projectID, Feature: feature}

	c.mu.Lock()
	delete(c.tracked, key)
	if feature == rooms.FeatureWhiteboard {
		delete(c.buffering, projectID)
	}
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.send(websocket.Envelope{
		Action:  websocket.ActionRoomLeave,
		Project: projectID,
		Payload: roomPayload(feature),
	})
}

// Send publishes a client action over the live transport.
func (c *Controller) Send(action, projectID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.send(websocket.Envelope{Action: action, Project: projectID, Payload: raw})
}

// Run drives the connect/serve/redial loop until the context is canceled or
// the retry policy is exhausted, which is returned as a terminal error.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := c.policy.Do(ctx, c.connect); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("giving up on transport", "error", err)
			return err
		}

		c.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("transport lost, redialing")
	}
}

// connect dials and re-establishes every tracked membership. Whiteboard rooms
// start buffering before their join is sent: any update that races ahead of
// the boardInit is held, never applied early.
func (c *Controller) connect(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx, c.url, c.header)
	if err != nil {
		c.logger.Warn("dial failed", "url", c.url, "error", err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	keys := make([]rooms.Key, 0, len(c.tracked))
	for key := range c.tracked {
		keys = append(keys, key)
		if key.Feature == rooms.FeatureWhiteboard {
			c.startBuffering(key.ProjectID)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		if err := c.joinRoom(ctx, key); err != nil {
			c.teardown()
			return err
		}
	}

	c.logger.Info("transport established", "rooms", len(keys))
	return nil
}

func (c *Controller) joinRoom(ctx context.Context, key rooms.Key) error {
	err := c.send(websocket.Envelope{
		Action:  websocket.ActionRoomJoin,
		Project: key.ProjectID,
		Payload: roomPayload(key.Feature),
	})
	if err != nil {
		return err
	}
	if c.hooks.OnRejoin != nil {
		c.hooks.OnRejoin(ctx, key)
	}
	return nil
}

// serve reads server events until the transport fails or the context ends.
func (c *Controller) serve(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.teardown()
			return
		}
		c.handle(data)
	}
}

func (c *Controller) handle(data []byte) {
	var ev websocket.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn("dropping malformed server event", "error", err)
		return
	}

	switch ev.Event {
	case websocket.EventBoardInit:
		c.mu.Lock()
		held, buffering := c.buffering[ev.Project]
		delete(c.buffering, ev.Project)
		c.mu.Unlock()

		c.deliver(ev)
		if buffering {
			// Replay updates that arrived before the snapshot, in order.
			for _, update := range held {
				c.deliver(update)
			}
		}
	case websocket.EventBoardSync:
		c.mu.Lock()
		_, buffering := c.buffering[ev.Project]
		if buffering {
			c.buffering[ev.Project] = append(c.buffering[ev.Project], ev)
		}
		c.mu.Unlock()
		if !buffering {
			c.deliver(ev)
		}
	default:
		c.deliver(ev)
	}
}

func (c *Controller) deliver(ev websocket.Event) {
	if c.hooks.OnEvent != nil {
		c.hooks.OnEvent(ev)
	}
}

func (c *Controller) send(env websocket.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(data)
}

func (c *Controller) teardown() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.buffering = make(map[string][]websocket.Event)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// startBuffering is called with c.mu held.
func (c *Controller) startBuffering(projectID string) {
	if _, ok := c.buffering[projectID]; !ok {
		c.buffering[projectID] = []websocket.Event{}
	}
}

func roomPayload(feature rooms.Feature) json.RawMessage {
	raw, _ := json.Marshal(websocket.RoomPayload{Feature: string(feature)})
	return raw
}
