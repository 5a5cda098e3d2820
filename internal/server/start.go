package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Start boots the server, runs it until an interrupt or terminate signal
// arrives, then shuts everything down gracefully.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Boot(ctx); err != nil {
		slog.Error("Failed to boot server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := s.E.Start(s.Cfg.GetAddr()); err != nil && err != http.ErrServerClosed {
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()

	waitForShutdown()
	slog.Info("shutdown signal received")

	// Stop background loops (autosave, subscribers) before closing transports.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	s.shutdownModules(shutdownCtx)

	if err := s.Bus.Close(); err != nil {
		slog.Error("failed to close message bus", "error", err)
	}
	if s.DB != nil {
		s.DB.Close(shutdownCtx)
	}
	if err := s.E.Shutdown(shutdownCtx); err != nil {
		s.E.Logger.Fatal(err)
	}
}
