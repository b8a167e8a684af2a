package middleware

// identity.go holds helpers shared by the rate limiter and the response
// cache for telling callers apart.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID returns the authenticated planner id as a string, or "guest"
// when JWTAuth has not run or found no token.
func userID(c echo.Context) string {
	if id, ok := c.Get(CtxUserID).(uint64); ok && id > 0 {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}

// UserName returns the planner name stored by JWTAuth.
func UserName(c echo.Context) string {
	name, _ := c.Get(CtxUserName).(string)
	return name
}
