package chat

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/projecthub/internal/module"
	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/registry"
)

// ServiceKey exposes the chat service to other modules through the registry.
var ServiceKey = registry.Key[*Service]("chat.service")

// Module wires the chat feature into the application.
type Module struct {
	module.BaseModule
	service    *Service
	subscriber pubsub.Subscriber
}

// Dependencies holds all the services that the chat module requires.
type Dependencies struct {
	Store       MessageStore
	Broadcaster Broadcaster
	Subscriber  pubsub.Subscriber
}

// New creates a new instance of the chat module, injecting its dependencies.
func New(deps Dependencies) *Module {
	return &Module{
		service:    NewService(deps.Store, deps.Broadcaster),
		subscriber: deps.Subscriber,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Register publishes the chat service for other modules.
func (m *Module) Register(reg *registry.Registry) error {
	registry.Set(reg, ServiceKey, m.service)
	return nil
}

// Boot starts the bus subscriber and registers the hydration route.
func (m *Module) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	slog.Info("Booting chat module")

	sub := NewSubscriber(m.subscriber, m.service)
	if err := sub.Start(ctx); err != nil {
		return err
	}

	handler := NewHandler(m.service)
	g.GET("/projects/:projectID/messages", handler.HistoryGet)
	return nil
}

// Shutdown is called on application termination.
func (m *Module) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down chat module")
	return nil
}
