package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TimeoutConfig returns timeout middleware configuration
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: timeout,
	})
}

// SelectiveTimeoutConfig returns selective timeout middleware that applies different timeouts based on route
func SelectiveTimeoutConfig(defaultTimeout time.Duration, longTimeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			// The WebSocket fabric holds its connections open far longer
			// than any HTTP timeout; it manages its own liveness via
			// ping/pong instead.
			if strings.HasPrefix(path, "/ws") {
				return next(c)
			}

			// Apply longer timeout for execute calls, which may run
			// long-running actions like pdf or evaluate.
			if strings.Contains(path, "/execute") {
				timeoutMiddleware := middleware.TimeoutWithConfig(middleware.TimeoutConfig{
					Timeout: longTimeout,
				})
				return timeoutMiddleware(next)(c)
			}

			// Apply default timeout for other endpoints
			timeoutMiddleware := middleware.TimeoutWithConfig(middleware.TimeoutConfig{
				Timeout: defaultTimeout,
			})
			return timeoutMiddleware(next)(c)
		}
	}
}
