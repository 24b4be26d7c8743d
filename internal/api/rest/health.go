package rest

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"browserctl/pkg/models"
)

var startTime = time.Now()

const serviceVersion = "0.1.0"

// Version returns the control plane's build version string.
func Version() string { return serviceVersion }

// HealthHandler reports basic liveness of the HTTP layer itself.
func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Uptime:    time.Since(startTime),
		Checks:    map[string]string{"api": "ok"},
	})
}

// ReadinessHandler reports whether the service is ready to accept work.
func ReadinessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Uptime:    time.Since(startTime),
		Checks:    map[string]string{"api": "ok", "browser_pool": "ok"},
	})
}

// LivenessHandler reports the minimal liveness probe used by orchestrators.
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Uptime:    time.Since(startTime),
	})
}

// StatusHandler returns a more detailed operational snapshot.
func (h *Handler) StatusHandler(c echo.Context) error {
	metrics := h.pool.Metrics()
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "operational",
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api":            "operational",
			"browsers_active": itoa(metrics.CurrentActive),
			"browsers_idle":   itoa(metrics.CurrentIdle),
			"queue_length":    itoa(metrics.QueueLength),
		},
	})
}
