package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"browserctl/pkg/idgen"
)

// errorBody is the minimal JSON envelope this middleware writes directly,
// before a request ever reaches a handler capable of building the full
// apierrors-backed response.
type errorBody struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestValidation middleware stamps every request with a request ID and
// rejects oversized POST bodies before they reach a handler.
func RequestValidation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := idgen.NewRequestID()
			c.Set("request_id", requestID)
			c.Response().Header().Set("X-Request-ID", requestID)

			if c.Request().Method == http.MethodPost {
				if c.Request().ContentLength > 1024*1024 {
					return c.JSON(http.StatusRequestEntityTooLarge, errorBody{
						Error:     "request_too_large",
						Message:   "request body too large",
						RequestID: requestID,
						Timestamp: time.Now(),
					})
				}
			}

			return next(c)
		}
	}
}
