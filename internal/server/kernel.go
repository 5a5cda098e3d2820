package server

import (
	"context"
	"fmt"
	"log/slog"
)

// Boot brings the server to a serving state: the presence tracker subscribes
// to membership events, every module registers its services, and every module
// boots against the authenticated API group. Background processes started
// here run until ctx is canceled.
func (s *Server) Boot(ctx context.Context) error {
	if err := s.tracker.Start(ctx, s.Bus); err != nil {
		return fmt.Errorf("start presence tracker: %w", err)
	}

	for _, m := range s.modules {
		if err := m.Register(s.registry); err != nil {
			return fmt.Errorf("register module %s: %w", m.Name(), err)
		}
	}

	api := s.E.Group("/api", s.identity())
	for _, m := range s.modules {
		if err := m.Boot(ctx, api, s.registry); err != nil {
			return fmt.Errorf("boot module %s: %w", m.Name(), err)
		}
		slog.Info("module booted", "module", m.Name())
	}

	return nil
}

// shutdownModules runs every module's Shutdown hook in reverse boot order.
func (s *Server) shutdownModules(ctx context.Context) {
	for i := len(s.modules) - 1; i >= 0; i-- {
		if err := s.modules[i].Shutdown(ctx); err != nil {
			slog.Error("module shutdown failed", "module", s.modules[i].Name(), "error", err)
		}
	}
}
