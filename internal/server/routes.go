package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/projecthub/internal/middleware"
)

// RegisterRoutes sets up the transport and operational routes. Feature routes
// are registered by the modules themselves during Boot.
func (s *Server) RegisterRoutes() {
	// The WebSocket endpoint is the single transport connection per browsing
	// session. The rate limit only throttles handshakes, not traffic on an
	// established connection.
	s.E.GET("/ws", s.bridge.Handler(), s.identity(), middleware.RateLimiter(5))

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

func (s *Server) identity() echo.MiddlewareFunc {
	return middleware.Identity()
}
