package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const UsernameContextKey = "username"

// Verifier checks an access token and returns the username it asserts.
type Verifier interface {
	Verify(tokenString string) (username string, ok bool)
}

// Auth creates a middleware that protects routes requiring a valid access
// token. The token travels in the Authorization header as a bearer
// credential; on success the asserted username is stored in the echo context
// under UsernameContextKey.
func Auth(tokens Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, found := strings.CutPrefix(raw, "Bearer ")
			if !found || tokenString == "" {
				return c.String(http.StatusUnauthorized, "Missing Token")
			}

			username, ok := tokens.Verify(tokenString)
			if !ok {
				// Invalid and expired tokens are indistinguishable to
				// the client.
				return c.String(http.StatusUnauthorized, "Invalid Token")
			}

			c.Set(UsernameContextKey, username)
			return next(c)
		}
	}
}
