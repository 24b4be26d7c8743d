package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"browserctl/internal/auth"
)

// errAuthBody mirrors errorBody but lives in this file so Authentication
// doesn't need to reach into validation.go for an unrelated type.
type errAuthBody struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

// Authentication verifies the bearer token on every request and attaches
// the resulting auth.Principal to the request's context.Context, where
// controlplane.Service reads it back for ownership checks. Requests
// without a valid token are rejected before they reach a handler.
func Authentication(verifier *auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID, _ := c.Get("request_id").(string)

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized, errAuthBody{
					Error:     "UNAUTHENTICATED",
					Message:   "missing bearer token",
					RequestID: reqID,
					Timestamp: time.Now(),
				})
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errAuthBody{
					Error:     "UNAUTHENTICATED",
					Message:   "invalid bearer token",
					RequestID: reqID,
					Timestamp: time.Now(),
				})
			}

			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), principal)))
			return next(c)
		}
	}
}
