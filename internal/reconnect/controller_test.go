package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/projecthub/internal/retry"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/websocket"
)

// scriptedConn is a fake transport fed from the test. Closing it unblocks the
// reader with an error, like a dropped connection.
type scriptedConn struct {
	incoming chan []byte
	done     chan struct{}
	once     sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (c *scriptedConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.done:
		return nil, io.ErrUnexpectedEOF
	}
}

func (c *scriptedConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *scriptedConn) feed(t *testing.T, ev websocket.Event) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	c.incoming <- data
}

func (c *scriptedConn) envelopes(t *testing.T) []websocket.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]websocket.Envelope, 0, len(c.written))
	for _, data := range c.written {
		var env websocket.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		out = append(out, env)
	}
	return out
}

// scriptedDialer returns pre-arranged connections, or errors when the script
// says so.
type scriptedDialer struct {
	mu    sync.Mutex
	conns []*scriptedConn
	fails int
	dials int
}

func (d *scriptedDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fails > 0 {
		d.fails--
		return nil, errors.New("connection refused")
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no more scripted connections")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// eventRecorder collects delivered events and signals each arrival.
type eventRecorder struct {
	mu     sync.Mutex
	events []websocket.Event
	signal chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{signal: make(chan struct{}, 64)}
}

func (r *eventRecorder) record(ev websocket.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *eventRecorder) wait(t *testing.T, n int) []websocket.Event {
	t.Helper()
	for {
		r.mu.Lock()
		if len(r.events) >= n {
			out := append([]websocket.Event(nil), r.events...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()

		select {
		case <-r.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
}

func quickPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Interval: time.Millisecond}
}

func TestController_RejoinsTrackedRoomsOnConnect(t *testing.T) {
	conn := newScriptedConn()
	dialer := &scriptedDialer{conns: []*scriptedConn{conn}}

	var rejoinMu sync.Mutex
	var rejoined []rooms.Key
	rejoinDone := make(chan struct{}, 4)

	ctrl := NewController(Options{
		URL:    "ws://example/ws",
		Dialer: dialer,
		Policy: quickPolicy(),
		Hooks: Hooks{
			OnRejoin: func(ctx context.Context, key rooms.Key) {
				rejoinMu.Lock()
				rejoined = append(rejoined, key)
				rejoinMu.Unlock()
				rejoinDone <- struct{}{}
			},
		},
	})
	require.NoError(t, ctrl.Track(context.Background(), "p1", rooms.FeatureChat))
	require.NoError(t, ctrl.Track(context.Background(), "p1", rooms.FeatureWhiteboard))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-rejoinDone:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for rejoin")
		}
	}

	envelopes := conn.envelopes(t)
	require.Len(t, envelopes, 2)
	features := make(map[string]bool)
	for _, env := range envelopes {
		assert.Equal(t, websocket.ActionRoomJoin, env.Action)
		assert.Equal(t, "p1", env.Project)
		var payload websocket.RoomPayload
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		features[payload.Feature] = true
	}
	assert.True(t, features["chat"])
	assert.True(t, features["whiteboard"])

	rejoinMu.Lock()
	assert.Len(t, rejoined, 2)
	rejoinMu.Unlock()
}

func TestController_BuffersBoardUpdatesUntilInit(t *testing.T) {
	conn := newScriptedConn()
	dialer := &scriptedDialer{conns: []*scriptedConn{conn}}
	recorder := newEventRecorder()

	ctrl := NewController(Options{
		URL:    "ws://example/ws",
		Dialer: dialer,
		Policy: quickPolicy(),
		Hooks:  Hooks{OnEvent: recorder.record},
	})
	require.NoError(t, ctrl.Track(context.Background(), "p1", rooms.FeatureWhiteboard))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	// An update races ahead of the snapshot: it must be held, then replayed
	// right after the boardInit so the snapshot never lands on top of it.
	conn.feed(t, websocket.Event{Event: websocket.EventBoardSync, Project: "p1", Payload: map[string]any{"sender": "bob"}})
	conn.feed(t, websocket.Event{Event: websocket.EventBoardInit, Project: "p1"})

	events := recorder.wait(t, 2)
	assert.Equal(t, websocket.EventBoardInit, events[0].Event)
	assert.Equal(t, websocket.EventBoardSync, events[1].Event)

	// Once initialized, updates flow straight through.
	conn.feed(t, websocket.Event{Event: websocket.EventBoardSync, Project: "p1"})
	events = recorder.wait(t, 3)
	assert.Equal(t, websocket.EventBoardSync, events[2].Event)
}

func TestController_OtherEventsAreNeverBuffered(t *testing.T) {
	conn := newScriptedConn()
	dialer := &scriptedDialer{conns: []*scriptedConn{conn}}
	recorder := newEventRecorder()

	ctrl := NewController(Options{
		URL:    "ws://example/ws",
		Dialer: dialer,
		Policy: quickPolicy(),
		Hooks:  Hooks{OnEvent: recorder.record},
	})
	require.NoError(t, ctrl.Track(context.Background(), "p1", rooms.FeatureWhiteboard))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	// Chat and presence traffic is independent of whiteboard hydration.
	conn.feed(t, websocket.Event{Event: websocket.EventPresence, Project: "p1"})
	conn.feed(t, websocket.Event{Event: websocket.EventNewMessage, Project: "p1"})

	events := recorder.wait(t, 2)
	assert.Equal(t, websocket.EventPresence, events[0].Event)
	assert.Equal(t, websocket.EventNewMessage, events[1].Event)
}

func TestController_RedialsAndRejoinsAfterTransportLoss(t *testing.T) {
	first := newScriptedConn()
	second := newScriptedConn()
	dialer := &scriptedDialer{conns: []*scriptedConn{first, second}}

	rejoinDone := make(chan struct{}, 8)
	ctrl := NewController(Options{
		URL:    "ws://example/ws",
		Dialer: dialer,
		Policy: quickPolicy(),
		Hooks: Hooks{
			OnRejoin: func(ctx context.Context, key rooms.Key) { rejoinDone <- struct{}{} },
		},
	})
	require.NoError(t, ctrl.Track(context.Background(), "p1", rooms.FeatureChat))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	select {
	case <-rejoinDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first join")
	}

	// Drop the transport; the controller must dial again and re-join.
	first.Close()

	select {
	case <-rejoinDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rejoin after redial")
	}

	assert.GreaterOrEqual(t, dialer.dialCount(), 2)
	envelopes := second.envelopes(t)
	require.Len(t, envelopes, 1)
	assert.Equal(t, websocket.ActionRoomJoin, envelopes[0].Action)
}

func TestController_RunSurfacesTerminalFailure(t *testing.T) {
	dialer := &scriptedDialer{fails: 100}
	ctrl := NewController(Options{
		URL:    "ws://example/ws",
		Dialer: dialer,
		Policy: retry.Policy{MaxAttempts: 2, Interval: time.Millisecond},
	})

	err := ctrl.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrAttemptsExhausted)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestController_SendWhileDisconnected(t *testing.T) {
	ctrl := NewController(Options{Policy: quickPolicy()})
	err := ctrl.Send("client.chat.typing", "p1", struct{}{})
	assert.ErrorIs(t, err, ErrNotConnected)
}
