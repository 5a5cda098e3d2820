package chat

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/projecthub/internal/database"
)

// MessageStore is the durable, append-only message log of a project. The
// store is assumed durable once Append returns nil.
type MessageStore interface {
	// Append adds a message to the project's log.
	Append(ctx context.Context, msg Message) error
	// List returns the project's messages, most recent first.
	List(ctx context.Context, projectID string) ([]Message, error)
}

// SurrealStore persists messages in SurrealDB.
type SurrealStore struct {
	db *surrealdb.DB
}

// NewSurrealStore creates a message store backed by the given connection.
func NewSurrealStore(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

// Append implements MessageStore.
func (s *SurrealStore) Append(ctx context.Context, msg Message) error {
	query := "CREATE message SET msgId = $msgId, projectId = $projectId, sender = $sender, text = $text, sentAt = $sentAt"
	params := map[string]any{
		"msgId":     msg.ID,
		"projectId": msg.ProjectID,
		"sender":    msg.Sender,
		"text":      msg.Text,
		"sentAt":    msg.SentAt,
	}

	if err := database.Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// List implements MessageStore.
func (s *SurrealStore) List(ctx context.Context, projectID string) ([]Message, error) {
	query := "SELECT msgId AS id, projectId, sender, text, sentAt FROM message WHERE projectId = $projectId ORDER BY sentAt DESC"
	params := map[string]any{
		"projectId": projectID,
	}

	messages, err := database.Query[Message](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
