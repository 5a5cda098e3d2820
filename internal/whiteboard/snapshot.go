package whiteboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/projecthub/internal/database"
)

// Snapshot is the last durably saved full whiteboard state of a project.
// Elements are opaque serializable records; their visual semantics belong to
// the drawing layer, not to this one. One snapshot per project, overwritten
// on each save, never versioned.
type Snapshot struct {
	Elements []json.RawMessage `json:"elements"`
	SavedAt  time.Time         `json:"savedAt"`
}

// SnapshotStore is the durable snapshot storage of a project's whiteboard.
// Overwrite-only semantics: Put replaces the prior snapshot wholesale.
type SnapshotStore interface {
	// Get returns the project's snapshot, or nil if none has been saved yet.
	Get(ctx context.Context, projectID string) (*Snapshot, error)
	// Put overwrites the project's snapshot.
	Put(ctx context.Context, projectID string, elements []json.RawMessage) error
}

// snapshotRecord is the persisted shape. Elements are stored as a JSON text
// blob so the database never needs to understand the element schema.
type snapshotRecord struct {
	Elements string    `json:"elements"`
	SavedAt  time.Time `json:"savedAt"`
}

// SurrealStore persists snapshots in SurrealDB, one record per project.
type SurrealStore struct {
	db *surrealdb.DB
}

// NewSurrealStore creates a snapshot store backed by the given connection.
func NewSurrealStore(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

// Get implements SnapshotStore.
func (s *SurrealStore) Get(ctx context.Context, projectID string) (*Snapshot, error) {
	query := "SELECT elements, savedAt FROM whiteboard_snapshot WHERE projectId = $projectId"
	params := map[string]any{
		"projectId": projectID,
	}

	record, err := database.QueryOne[snapshotRecord](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if record == nil {
		return nil, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(record.Elements), &elements); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot elements: %w", err)
	}

	return &Snapshot{Elements: elements, SavedAt: record.SavedAt}, nil
}

// Put implements SnapshotStore.
func (s *SurrealStore) Put(ctx context.Context, projectID string, elements []json.RawMessage) error {
	blob, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot elements: %w", err)
	}

	query := "UPSERT type::thing('whiteboard_snapshot', $projectId) SET projectId = $projectId, elements = $elements, savedAt = $savedAt"
	params := map[string]any{
		"projectId": projectID,
		"elements":  string(blob),
		"savedAt":   time.Now().UTC(),
	}

	if err := database.Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
