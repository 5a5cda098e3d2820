package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/projecthub/internal/domain"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/websocket"
)

// Broadcaster is the slice of the room registry the chat service needs.
type Broadcaster interface {
	Publish(key rooms.Key, payload []byte, excludeConnID string) int
}

// Service accepts outgoing chat messages, persists them, and republishes them
// to the project's chat room. Persistence strictly precedes broadcast: a
// client that queries the durable log after receiving the broadcast will
// always find the message.
type Service struct {
	store       MessageStore
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewService creates a chat service.
func NewService(store MessageStore, b Broadcaster) *Service {
	return &Service{
		store:       store,
		broadcaster: b,
		logger:      slog.Default().With("service", "chat"),
	}
}

// Send validates, persists, and broadcasts a chat message. The sender
// connection is excluded from the broadcast. A persistence failure aborts the
// send with no broadcast side effect; retrying is the caller's decision.
func (s *Service) Send(ctx context.Context, projectID, sender, senderConnID, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, domain.ErrEmptyMessage
	}

	msg := Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Sender:    sender,
		Text:      text,
		SentAt:    time.Now().UTC(),
	}

	if err := s.store.Append(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("persist message: %w", err)
	}

	payload, err := websocket.MarshalEvent(websocket.EventNewMessage, projectID, msg)
	if err != nil {
		// The message is already durable; a marshal failure only loses the
		// live broadcast. Clients recover it from history.
		s.logger.Error("failed to marshal newMessage event", "project", projectID, "error", err)
		return msg, nil
	}

	key := rooms.Key{ProjectID: projectID, Feature: rooms.FeatureChat}
	s.broadcaster.Publish(key, payload, senderConnID)
	return msg, nil
}

// Typing publishes an ephemeral typing event to the project's chat room,
// excluding the sender. Fire-and-forget: the server tracks nothing, receivers
// expire the indicator after TypingTTL.
func (s *Service) Typing(projectID, username, senderConnID string) {
	payload, err := websocket.MarshalEvent(websocket.EventTyping, projectID, TypingNotice{Username: username})
	if err != nil {
		s.logger.Error("failed to marshal typing event", "project", projectID, "error", err)
		return
	}

	key := rooms.Key{ProjectID: projectID, Feature: rooms.FeatureChat}
	s.broadcaster.Publish(key, payload, senderConnID)
}

// History returns the persisted message log, most recent first. Used to
// hydrate a client at room-join time; not part of the live broadcast path.
func (s *Service) History(ctx context.Context, projectID string) ([]Message, error) {
	messages, err := s.store.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return messages, nil
}
