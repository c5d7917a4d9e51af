package middleware

// identity.go holds helpers shared across middleware files.  Currently
// it provides the user identifier used for per-user rate limit keys.

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's id as a string for
// rate limit keying, or "anon" when no user is authenticated.  JWTAuth
// stores the raw claim value, so numeric and string subjects both work.
func currentUserID(c echo.Context) string {
	v := c.Get("user_id")
	if v == nil {
		return "anon"
	}
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		return fmt.Sprintf("%.0f", t)
	case uint64:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	}
	return "anon"
}
