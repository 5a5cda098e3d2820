// Package server wires the real-time collaboration layer into a serving
// process: config, logging, the durable stores, the in-memory bus, the
// session registry, the WebSocket bridge, and the feature modules.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/projecthub/internal/app"
	"github.com/nfrund/projecthub/internal/chat"
	"github.com/nfrund/projecthub/internal/config"
	"github.com/nfrund/projecthub/internal/database"
	"github.com/nfrund/projecthub/internal/logging"
	"github.com/nfrund/projecthub/internal/middleware"
	"github.com/nfrund/projecthub/internal/module"
	"github.com/nfrund/projecthub/internal/presence"
	"github.com/nfrund/projecthub/internal/pubsub"
	"github.com/nfrund/projecthub/internal/registry"
	"github.com/nfrund/projecthub/internal/rooms"
	"github.com/nfrund/projecthub/internal/topics"
	"github.com/nfrund/projecthub/internal/websocket"
	"github.com/nfrund/projecthub/internal/whiteboard"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E     *echo.Echo
	DB    *surrealdb.DB
	Cfg   config.Provider
	Bus   *pubsub.WatermillBridge
	Rooms *rooms.Registry

	bridge   *websocket.Bridge
	tracker  *presence.Tracker
	registry *registry.Registry
	modules  []module.Module
}

// Options configure server construction. Leaving both stores nil connects to
// SurrealDB per the environment configuration; tests inject in-memory stores
// instead and never touch a database.
type Options struct {
	Cfg           config.Provider
	ChatStore     chat.MessageStore
	SnapshotStore whiteboard.SnapshotStore
}

// New creates a new Server instance.
func New(opts Options) *Server {
	logging.New() // Initialize the structured logger

	cfg := opts.Cfg
	if cfg == nil {
		cfg = config.New()
	}

	var db *surrealdb.DB
	chatStore := opts.ChatStore
	snapshotStore := opts.SnapshotStore
	if chatStore == nil || snapshotStore == nil {
		conn, err := database.NewDB(context.Background(), cfg)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		db = conn
		if chatStore == nil {
			chatStore = chat.NewSurrealStore(db)
		}
		if snapshotStore == nil {
			snapshotStore = whiteboard.NewSurrealStore(db)
		}
	}

	bus := pubsub.NewWatermillBridge()
	roomRegistry := rooms.NewRegistry(bus)
	tracker := presence.NewTracker(roomRegistry)
	bridge := websocket.NewBridge(roomRegistry, bus, topics.Default())

	reg := registry.New(cfg)
	modules := app.NewModules(app.Dependencies{
		Publisher:        bus,
		Subscriber:       bus,
		Rooms:            roomRegistry,
		ChatStore:        chatStore,
		SnapshotStore:    snapshotStore,
		AutosaveInterval: cfg.GetAutosaveInterval(),
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())

	// Configure and use session middleware. The session is written by the
	// surrounding application's login flow; this layer only reads it.
	store := sessions.NewCookieStore([]byte(cfg.GetSessionSecret()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
	}
	e.Use(session.Middleware(store))

	return &Server{
		E:        e,
		DB:       db,
		Cfg:      cfg,
		Bus:      bus,
		Rooms:    roomRegistry,
		bridge:   bridge,
		tracker:  tracker,
		registry: reg,
		modules:  modules,
	}
}

// Registry is a getter for the service registry, useful for testing.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}
