package whiteboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/projecthub/internal/domain"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/websocket"
)

// memoryStore implements SnapshotStore for tests, with injectable failures.
type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string]*Snapshot
	putErr    error
	puts      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: make(map[string]*Snapshot)}
}

func (s *memoryStore) Get(ctx context.Context, projectID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[projectID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (s *memoryStore) Put(ctx context.Context, projectID string, elements []json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.snapshots[projectID] = &Snapshot{Elements: elements, SavedAt: time.Now().UTC()}
	return nil
}

func (s *memoryStore) stored(projectID string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[projectID]
}

// boardConn implements rooms.Conn and decodes received envelopes.
type boardConn struct {
	id       string
	username string
	mu       sync.Mutex
	received [][]byte
}

func (c *boardConn) ID() string       { return c.id }
func (c *boardConn) Username() string { return c.username }
func (c *boardConn) Send(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, p)
}

func (c *boardConn) events(t *testing.T) []websocket.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]websocket.Event, 0, len(c.received))
	for _, p := range c.received {
		var ev websocket.Event
		require.NoError(t, json.Unmarshal(p, &ev))
		out = append(out, ev)
	}
	return out
}

func decodePayload[T any](t *testing.T, ev websocket.Event) T {
	t.Helper()
	raw, err := json.Marshal(ev.Payload)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func elems(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		out = append(out, json.RawMessage(`{"id":"`+v+`"}`))
	}
	return out
}

func TestEngine_SendInitDeliversStoredSnapshot(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Put(context.Background(), "p1", elems("a", "b")))

	reg := rooms.NewRegistry(nil)
	joiner := &boardConn{id: "c1", username: "alice"}
	reg.Join(joiner, "p1", rooms.FeatureWhiteboard)

	engine := NewEngine(store, reg, time.Minute)
	require.NoError(t, engine.SendInit(context.Background(), "p1", joiner.ID()))

	events := joiner.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, websocket.EventBoardInit, events[0].Event)

	state := decodePayload[BoardState](t, events[0])
	require.Len(t, state.Elements, 2)
	assert.JSONEq(t, `{"id":"a"}`, string(state.Elements[0]))
	assert.JSONEq(t, `{"id":"b"}`, string(state.Elements[1]))
	assert.NotNil(t, state.SavedAt)
}

func TestEngine_SendInitWithoutSnapshotSendsEmptyScene(t *testing.T) {
	reg := rooms.NewRegistry(nil)
	joiner := &boardConn{id: "c1", username: "alice"}
	reg.Join(joiner, "p1", rooms.FeatureWhiteboard)

	engine := NewEngine(newMemoryStore(), reg, time.Minute)
	require.NoError(t, engine.SendInit(context.Background(), "p1", joiner.ID()))

	events := joiner.events(t)
	require.Len(t, events, 1)
	state := decodePayload[BoardState](t, events[0])
	assert.NotNil(t, state.Elements, "empty scene is a list, never null")
	assert.Empty(t, state.Elements)
	assert.Nil(t, state.SavedAt)
}

func TestEngine_SendInitForVanishedConnIsNoOp(t *testing.T) {
	engine := NewEngine(newMemoryStore(), rooms.NewRegistry(nil), time.Minute)
	assert.NoError(t, engine.SendInit(context.Background(), "p1", "gone"))
}

func TestEngine_BroadcastUpdateExcludesSender(t *testing.T) {
	reg := rooms.NewRegistry(nil)
	sender := &boardConn{id: "c1", username: "alice"}
	receiver := &boardConn{id: "c2", username: "bob"}
	reg.Join(sender, "p1", rooms.FeatureWhiteboard)
	reg.Join(receiver, "p1", rooms.FeatureWhiteboard)

	engine := NewEngine(newMemoryStore(), reg, time.Minute)
	engine.BroadcastUpdate("p1", sender.ID(), "alice", elems("x"))

	assert.Empty(t, sender.events(t))
	events := receiver.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, websocket.EventBoardSync, events[0].Event)

	update := decodePayload[BoardUpdate](t, events[0])
	assert.Equal(t, "alice", update.Sender)
	require.Len(t, update.Elements, 1)
}

func TestEngine_LastWriterWins(t *testing.T) {
	// A sends [x], then B sends [y]. A third member receiving both in order
	// ends with [y] as its latest remote-applied state: the full-sequence
	// update replaces prior state wholesale. Documented behavior, not a bug.
	reg := rooms.NewRegistry(nil)
	a := &boardConn{id: "cA", username: "alice"}
	b := &boardConn{id: "cB", username: "bob"}
	observer := &boardConn{id: "cO", username: "olga"}
	reg.Join(a, "p1", rooms.FeatureWhiteboard)
	reg.Join(b, "p1", rooms.FeatureWhiteboard)
	reg.Join(observer, "p1", rooms.FeatureWhiteboard)

	engine := NewEngine(newMemoryStore(), reg, time.Minute)
	engine.BroadcastUpdate("p1", a.ID(), "alice", elems("x"))
	engine.BroadcastUpdate("p1", b.ID(), "bob", elems("y"))

	events := observer.events(t)
	require.Len(t, events, 2)
	last := decodePayload[BoardUpdate](t, events[1])
	require.Len(t, last.Elements, 1)
	assert.JSONEq(t, `{"id":"y"}`, string(last.Elements[0]))

	// A fresh observer joining after both sees correct presence, not stale
	// membership.
	assert.Equal(t, []string{"alice", "bob", "olga"}, reg.Usernames(rooms.Key{ProjectID: "p1", Feature: rooms.FeatureWhiteboard}))
}

func TestEngine_SaveRejectsEmptyElements(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Put(context.Background(), "p1", elems("keep")))

	engine := NewEngine(store, rooms.NewRegistry(nil), time.Minute)

	err := engine.Save(context.Background(), "p1", nil)
	assert.ErrorIs(t, err, domain.ErrEmptySnapshot)
	err = engine.Save(context.Background(), "p1", []json.RawMessage{})
	assert.ErrorIs(t, err, domain.ErrEmptySnapshot)

	snap := store.stored("p1")
	require.NotNil(t, snap)
	require.Len(t, snap.Elements, 1, "prior snapshot must be left unchanged")
	assert.JSONEq(t, `{"id":"keep"}`, string(snap.Elements[0]))
}

func TestEngine_HandleExplicitSaveReportsStatus(t *testing.T) {
	store := newMemoryStore()
	reg := rooms.NewRegistry(nil)
	conn := &boardConn{id: "c1", username: "alice"}
	reg.Join(conn, "p1", rooms.FeatureWhiteboard)

	engine := NewEngine(store, reg, time.Minute)

	engine.HandleExplicitSave(context.Background(), "p1", conn.ID(), elems("a"))
	events := conn.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, websocket.EventSaveStatus, events[0].Event)
	status := decodePayload[SaveStatus](t, events[0])
	assert.Equal(t, "ok", status.Status)
	assert.NotNil(t, status.SavedAt)

	// Failed saves surface to the originating client.
	store.putErr = errors.New("store unavailable")
	engine.HandleExplicitSave(context.Background(), "p1", conn.ID(), elems("b"))
	events = conn.events(t)
	require.Len(t, events, 2)
	status = decodePayload[SaveStatus](t, events[1])
	assert.Equal(t, "error", status.Status)
	assert.NotEmpty(t, status.Error)
}

func TestEngine_AutosavePersistsDirtyBoards(t *testing.T) {
	store := newMemoryStore()
	reg := rooms.NewRegistry(nil)
	sender := &boardConn{id: "c1", username: "alice"}
	reg.Join(sender, "p1", rooms.FeatureWhiteboard)

	engine := NewEngine(store, reg, time.Minute)
	engine.BroadcastUpdate("p1", sender.ID(), "alice", elems("a", "b"))

	engine.autosaveTick(context.Background())

	snap := store.stored("p1")
	require.NotNil(t, snap)
	assert.Len(t, snap.Elements, 2)

	// Nothing dirty: the next tick writes nothing.
	before := store.puts
	engine.autosaveTick(context.Background())
	assert.Equal(t, before, store.puts)
}

func TestEngine_AutosaveRetriesNextTickThenGivesUp(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("store unavailable")
	reg := rooms.NewRegistry(nil)
	member := &boardConn{id: "c1", username: "alice"}
	reg.Join(member, "p1", rooms.FeatureWhiteboard)

	engine := NewEngine(store, reg, time.Minute)
	engine.BroadcastUpdate("p1", "other", "bob", elems("a"))

	// Each failed tick performs exactly one attempt per project, no inner loop.
	for i := 0; i < maxAutosaveFailures; i++ {
		before := store.puts
		engine.autosaveTick(context.Background())
		assert.Equal(t, before+1, store.puts)
	}

	// The failure cap was reached: pending state dropped, no further attempts.
	before := store.puts
	engine.autosaveTick(context.Background())
	assert.Equal(t, before, store.puts)

	// Every failure surfaced a saveStatus event to the room.
	statuses := 0
	for _, ev := range member.events(t) {
		if ev.Event == websocket.EventSaveStatus {
			statuses++
		}
	}
	assert.Equal(t, maxAutosaveFailures, statuses)
}

func TestEngine_FlushSavesOnLastLeave(t *testing.T) {
	store := newMemoryStore()
	reg := rooms.NewRegistry(nil)
	engine := NewEngine(store, reg, time.Minute)

	engine.BroadcastUpdate("p1", "c1", "alice", elems("a"))
	engine.Flush(context.Background(), "p1")

	snap := store.stored("p1")
	require.NotNil(t, snap)
	assert.Len(t, snap.Elements, 1)

	// Flushing with nothing pending is a no-op.
	before := store.puts
	engine.Flush(context.Background(), "p1")
	assert.Equal(t, before, store.puts)
}
