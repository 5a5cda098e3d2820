package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/projecthub/internal/chat"
	"github.com/nfrund/projecthub/internal/middleware"
	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/registry"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/testutils"
	"github.com/nfrund/projecthub/internal/whiteboard"
)

type memoryChatStore struct {
	mu       sync.Mutex
	messages map[string][]chat.Message
}

func newMemoryChatStore() *memoryChatStore {
	return &memoryChatStore{messages: make(map[string][]chat.Message)}
}

func (s *memoryChatStore) Append(ctx context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ProjectID] = append(s.messages[msg.ProjectID], msg)
	return nil
}

func (s *memoryChatStore) List(ctx context.Context, projectID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.messages[projectID]
	out := make([]chat.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

type memorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]*whiteboard.Snapshot
}

func newMemorySnapshotStore() *memorySnapshotStore {
	return &memorySnapshotStore{snapshots: make(map[string]*whiteboard.Snapshot)}
}

func (s *memorySnapshotStore) Get(ctx context.Context, projectID string) (*whiteboard.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[projectID], nil
}

func (s *memorySnapshotStore) Put(ctx context.Context, projectID string, elements []json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[projectID] = &whiteboard.Snapshot{Elements: elements, SavedAt: time.Now().UTC()}
	return nil
}

type testConn struct {
	id       string
	username string
	mu       sync.Mutex
	received [][]byte
}

func (c *testConn) ID() string       { return c.id }
func (c *testConn) Username() string { return c.username }
func (c *testConn) Send(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, p)
}

func (c *testConn) payloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.received...)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Options{
		Cfg:           testutils.ConfigForTests(t),
		ChatStore:     newMemoryChatStore(),
		SnapshotStore: newMemorySnapshotStore(),
	})
	s.RegisterRoutes()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, s.Boot(ctx))
	t.Cleanup(func() { s.Bus.Close() })
	return s
}

// sessionCookie forges a session the identity middleware accepts, using the
// same secret the test config hands the server.
func sessionCookie(t *testing.T, username string) *http.Cookie {
	t.Helper()
	store := sessions.NewCookieStore([]byte("test-session-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess, err := store.Get(req, middleware.SessionName)
	require.NoError(t, err)
	sess.Values["username"] = username
	require.NoError(t, sess.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestServer_HealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_RejectsUnauthenticatedClients(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/ws", "/api/projects/p1/messages"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestServer_HistoryEndpointWithSession(t *testing.T) {
	s := newTestServer(t)

	svc, ok := chatServiceFromRegistry(s)
	require.True(t, ok)
	_, err := svc.Send(context.Background(), "p1", "alice", "conn-1", "hello")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/p1/messages", nil)
	req.AddCookie(sessionCookie(t, "alice"))
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Messages []chat.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "alice", body.Messages[0].Sender)
	assert.Equal(t, "hello", body.Messages[0].Text)
}

// Publishing a client chat action on the bus must reach every other chat room
// member as a newMessage event, with the sender excluded.
func TestServer_ChatActionFansOutThroughBus(t *testing.T) {
	s := newTestServer(t)

	sender := &testConn{id: "conn-a", username: "alice"}
	receiver := &testConn{id: "conn-b", username: "bob"}
	s.Rooms.Register(sender)
	s.Rooms.Register(receiver)
	s.Rooms.Join(sender, "p1", rooms.FeatureChat)
	s.Rooms.Join(receiver, "p1", rooms.FeatureChat)

	payload, err := json.Marshal(chat.NewMessagePayload{Text: "hi from the bus"})
	require.NoError(t, err)
	err = s.Bus.Publish(context.Background(), pubsub.Message{
		Topic:   chat.EventClientMessage.Name(),
		UserID:  "alice",
		Payload: payload,
		Metadata: map[string]string{
			pubsub.MetaClientID: sender.ID(),
			pubsub.MetaProject:  "p1",
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, raw := range receiver.payloads() {
			if jsonContains(raw, `"newMessage"`) && jsonContains(raw, "hi from the bus") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "receiver never saw the message")

	for _, raw := range sender.payloads() {
		assert.False(t, jsonContains(raw, "hi from the bus"), "sender must not receive its own message")
	}
}

func chatServiceFromRegistry(s *Server) (*chat.Service, bool) {
	return registry.Get(s.registry, chat.ServiceKey)
}

func jsonContains(raw []byte, substr string) bool {
	return json.Valid(raw) && strings.Contains(string(raw), substr)
}
