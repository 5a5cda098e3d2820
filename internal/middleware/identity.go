package middleware

import (
	"net/http"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/projecthub/internal/domain"
)

// UserContextKey is where the verified user is stored on the echo context.
const UserContextKey = "user"

// SessionName is the cookie session shared with the surrounding application.
const SessionName = "projecthub_session"

// sessionUsernameKey is the session value the login flow writes after
// verifying the user's identity.
const sessionUsernameKey = "username"

// Identity protects routes that require an authenticated user. The real-time
// layer never verifies credentials itself: it trusts the identity the outer
// application's login flow stored in the session, and rejects requests that
// carry none.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := session.Get(SessionName, c)
			if err != nil {
				return c.String(http.StatusUnauthorized, "Invalid session")
			}

			username, ok := sess.Values[sessionUsernameKey].(string)
			if !ok || username == "" {
				return c.String(http.StatusUnauthorized, "User not authenticated")
			}

			c.Set(UserContextKey, &domain.User{Username: username})
			return next(c)
		}
	}
}
