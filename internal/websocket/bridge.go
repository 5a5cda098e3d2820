package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/projecthub/internal/domain"
	"github.com/nfrund/projecthub/internal/middleware"
	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/topics"
)

// Bridge accepts WebSocket connections and routes client envelopes: room
// management actions are applied to the session registry directly, everything
// else is published to the bus under the action's topic name. Actions not
// registered as client-publishable never reach the bus.
type Bridge struct {
	registry  *rooms.Registry
	publisher pubsub.Publisher
	topics    *topics.Registry
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewBridge creates a bridge routing through the given session registry and
// publisher. Client actions are checked against the topic registry.
func NewBridge(reg *rooms.Registry, pub pubsub.Publisher, topicReg *topics.Registry) *Bridge {
	return &Bridge{
		registry:  reg,
		publisher: pub,
		topics:    topicReg,
		validate:  validator.New(),
		logger:    slog.Default().With("service", "websocket"),
	}
}

// Handler returns the echo handler that upgrades requests to WebSocket
// connections. It blocks for the lifetime of the connection and always tears
// down room membership on exit, however the connection ends.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get(middleware.UserContextKey).(*domain.User)
		if !ok || user == nil {
			b.logger.Error("Could not get user from context for WebSocket connection")
			return c.String(http.StatusUnauthorized, "User not authenticated")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			b.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := NewClient(uuid.NewString(), user.Username, conn)
		b.registry.Register(client)
		b.logger.Info("client connected", "clientID", client.ID(), "username", client.Username())

		go client.writePump()

		ctx := c.Request().Context()
		client.readLoop(ctx, func(data []byte) {
			b.dispatch(ctx, client, data)
		})

		// Disconnect leaves every joined room so presence updates fire for the
		// remaining members, whether the close was clean or abrupt.
		b.registry.Disconnect(client)
		client.Close()
		conn.Close(websocket.StatusNormalClosure, "Client disconnected")
		b.logger.Info("client disconnected", "clientID", client.ID(), "username", client.Username())
		return nil
	}
}

// dispatch parses one inbound envelope and routes it. Malformed or
// unauthorized input is logged and dropped; a misbehaving client never
// disturbs the rest of the room.
func (b *Bridge) dispatch(ctx context.Context, client *Client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Warn("dropping malformed envelope", "clientID", client.ID(), "error", err)
		return
	}
	if err := b.validate.Struct(env); err != nil {
		b.logger.Warn("dropping invalid envelope", "clientID", client.ID(), "error", err)
		return
	}

	switch env.Action {
	case ActionRoomJoin, ActionRoomLeave:
		b.handleRoomAction(client, env)
	default:
		b.forward(ctx, client, env)
	}
}

func (b *Bridge) handleRoomAction(client *Client, env Envelope) {
	var payload RoomPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		b.logger.Warn("dropping malformed room action", "clientID", client.ID(), "error", err)
		return
	}
	if err := b.validate.Struct(payload); err != nil {
		b.logger.Warn("dropping invalid room action", "clientID", client.ID(), "error", err)
		return
	}

	feature, err := rooms.ParseFeature(payload.Feature)
	if err != nil {
		b.logger.Warn("dropping room action with unknown feature", "clientID", client.ID(), "feature", payload.Feature)
		return
	}

	if env.Action == ActionRoomJoin {
		b.registry.Join(client, env.Project, feature)
		return
	}
	b.registry.Leave(client, env.Project, feature)
}

// forward publishes a client action onto the bus. The action name is the
// topic; only registered client-publishable topics pass.
func (b *Bridge) forward(ctx context.Context, client *Client, env Envelope) {
	if !b.topics.IsClientAction(env.Action) {
		b.logger.Warn("rejecting client action", "clientID", client.ID(), "action", env.Action, "error", domain.ErrUnknownAction)
		return
	}

	msg := pubsub.Message{
		Topic:   env.Action,
		UserID:  client.Username(),
		Payload: env.Payload,
		Metadata: map[string]string{
			pubsub.MetaClientID: client.ID(),
			pubsub.MetaProject:  env.Project,
		},
	}
	if err := b.publisher.Publish(ctx, msg); err != nil {
		b.logger.Error("failed to publish client action", "clientID", client.ID(), "action", env.Action, "error", err)
	}
}
