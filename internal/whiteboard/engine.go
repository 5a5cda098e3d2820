package whiteboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nfrund/projecthub/internal/domain"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/websocket"
)

// Broadcaster is the slice of the room registry the engine needs for fan-out.
type Broadcaster interface {
	Publish(key rooms.Key, payload []byte, excludeConnID string) int
	Find(connID string) (rooms.Conn, bool)
}

// BoardState is the payload of a boardInit event: the last durable snapshot
// (or an empty scene) a joining client initializes its canvas from. Clients
// buffer live updates until this arrives, so the snapshot can never overwrite
// newer concurrent edits on their side.
type BoardState struct {
	Elements []json.RawMessage `json:"elements"`
	SavedAt  *time.Time        `json:"savedAt,omitempty"`
}

// BoardUpdate is the payload of a boardUpdate event fanned out to the room.
type BoardUpdate struct {
	Sender   string            `json:"sender"`
	Elements []json.RawMessage `json:"elements"`
}

// SaveStatus reports the outcome of a snapshot save to clients.
type SaveStatus struct {
	Status  string     `json:"status"` // "ok" or "error"
	SavedAt *time.Time `json:"savedAt,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// maxAutosaveFailures is how many consecutive periodic save attempts may fail
// for one project before the engine stops retrying and surfaces a terminal
// failure. A later successful explicit save resets the counter.
const maxAutosaveFailures = 5

// Engine accepts incremental scene updates, republishes them to the room,
// and periodically persists the latest full scene snapshot.
//
// Updates carry the sender's entire element sequence, so delivery is
// last-writer-wins: concurrent edits by two users can clobber each other if
// their updates interleave. That trade-off is kept deliberately; upgrading to
// an operation-based merge is out of scope here.
type Engine struct {
	store       SnapshotStore
	broadcaster Broadcaster
	interval    time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	dirty    map[string][]json.RawMessage // projectID -> latest unsaved elements
	failures map[string]int               // projectID -> consecutive autosave failures
}

// NewEngine creates a whiteboard engine. interval is the periodic autosave
// cadence for dirty boards.
func NewEngine(store SnapshotStore, b Broadcaster, interval time.Duration) *Engine {
	return &Engine{
		store:       store,
		broadcaster: b,
		interval:    interval,
		logger:      slog.Default().With("service", "whiteboard"),
		dirty:       make(map[string][]json.RawMessage),
		failures:    make(map[string]int),
	}
}

// SendInit loads the project's last durable snapshot and delivers it to the
// named connection as a boardInit event. Called right after the connection
// joins the whiteboard room, so the client can initialize its canvas before
// applying any live updates.
func (e *Engine) SendInit(ctx context.Context, projectID, connID string) error {
	conn, ok := e.broadcaster.Find(connID)
	if !ok {
		// The client disconnected between joining and hydration. Nothing to do.
		return nil
	}

	snapshot, err := e.store.Get(ctx, projectID)
	if err != nil {
		return err
	}

	state := BoardState{Elements: []json.RawMessage{}}
	if snapshot != nil {
		state.Elements = snapshot.Elements
		savedAt := snapshot.SavedAt
		state.SavedAt = &savedAt
	}

	payload, err := websocket.MarshalEvent(websocket.EventBoardInit, projectID, state)
	if err != nil {
		return err
	}
	conn.Send(payload)
	e.logger.Debug("board hydrated", "project", projectID, "clientID", connID, "elements", len(state.Elements))
	return nil
}

// BroadcastUpdate republishes the sender's full element sequence to every
// other member of the project's whiteboard room and marks the project dirty
// for the next autosave. Delivery failures to individual peers are contained
// in the fan-out and never surface here.
func (e *Engine) BroadcastUpdate(projectID, senderConnID, sender string, elements []json.RawMessage) {
	payload, err := websocket.MarshalEvent(websocket.EventBoardSync, projectID, BoardUpdate{
		Sender:   sender,
		Elements: elements,
	})
	if err != nil {
		e.logger.Error("failed to marshal board update", "project", projectID, "error", err)
		return
	}

	key := rooms.Key{ProjectID: projectID, Feature: rooms.FeatureWhiteboard}
	e.broadcaster.Publish(key, payload, senderConnID)

	// An empty sequence is never a save candidate; persisting it could wipe a
	// non-empty snapshot from a client that hasn't finished loading.
	if len(elements) == 0 {
		return
	}

	e.mu.Lock()
	e.dirty[projectID] = elements
	e.mu.Unlock()
}

// Save persists the element sequence as the project's new snapshot,
// overwriting any prior one. Empty sequences are rejected.
func (e *Engine) Save(ctx context.Context, projectID string, elements []json.RawMessage) error {
	if len(elements) == 0 {
		return domain.ErrEmptySnapshot
	}

	if err := e.store.Put(ctx, projectID, elements); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.dirty, projectID)
	delete(e.failures, projectID)
	e.mu.Unlock()
	return nil
}

// HandleExplicitSave performs a user-triggered save and reports the outcome
// to the originating connection as a saveStatus event.
func (e *Engine) HandleExplicitSave(ctx context.Context, projectID, connID string, elements []json.RawMessage) {
	err := e.Save(ctx, projectID, elements)

	status := SaveStatus{Status: "ok"}
	if err != nil {
		status = SaveStatus{Status: "error", Error: err.Error()}
		e.logger.Error("explicit snapshot save failed", "project", projectID, "error", err)
	} else {
		now := time.Now().UTC()
		status.SavedAt = &now
	}

	payload, merr := websocket.MarshalEvent(websocket.EventSaveStatus, projectID, status)
	if merr != nil {
		e.logger.Error("failed to marshal save status", "project", projectID, "error", merr)
		return
	}
	if conn, ok := e.broadcaster.Find(connID); ok {
		conn.Send(payload)
	}
}

// Flush attempts a best-effort save of any unsaved update for the project.
// Called when the last member leaves the whiteboard room; a failure is logged
// and dropped, since nobody is left to retry for.
func (e *Engine) Flush(ctx context.Context, projectID string) {
	e.mu.Lock()
	elements, ok := e.dirty[projectID]
	e.mu.Unlock()
	if !ok {
		return
	}

	if err := e.Save(ctx, projectID, elements); err != nil {
		e.logger.Warn("best-effort save on room teardown failed", "project", projectID, "error", err)
		return
	}
	e.logger.Info("saved whiteboard on last leave", "project", projectID, "elements", len(elements))
}

// Run drives the periodic autosave loop until the context is canceled. A
// failed save stays dirty and is retried at the next tick, never in a tight
// loop; after maxAutosaveFailures consecutive failures the project's pending
// state is dropped and a terminal saveStatus is broadcast to the room.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.autosaveTick(ctx)
		}
	}
}

func (e *Engine) autosaveTick(ctx context.Context) {
	e.mu.Lock()
	pending := make(map[string][]json.RawMessage, len(e.dirty))
	for projectID, elements := range e.dirty {
		pending[projectID] = elements
	}
	e.mu.Unlock()

	for projectID, elements := range pending {
		if err := e.Save(ctx, projectID, elements); err != nil {
			e.recordAutosaveFailure(projectID, err)
			continue
		}
		e.logger.Debug("autosaved whiteboard", "project", projectID, "elements", len(elements))
	}
}

func (e *Engine) recordAutosaveFailure(projectID string, err error) {
	e.mu.Lock()
	e.failures[projectID]++
	count := e.failures[projectID]
	terminal := count >= maxAutosaveFailures
	if terminal {
		delete(e.dirty, projectID)
		delete(e.failures, projectID)
	}
	e.mu.Unlock()

	status := SaveStatus{Status: "error", Error: err.Error()}
	payload, merr := websocket.MarshalEvent(websocket.EventSaveStatus, projectID, status)
	if merr == nil {
		key := rooms.Key{ProjectID: projectID, Feature: rooms.FeatureWhiteboard}
		e.broadcaster.Publish(key, payload, "")
	}

	if terminal {
		e.logger.Error("autosave giving up after repeated failures", "project", projectID, "attempts", count, "error", err)
		return
	}
	e.logger.Warn("autosave failed, will retry at next interval", "project", projectID, "attempt", count, "error", err)
}
