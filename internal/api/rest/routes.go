package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"browserctl/internal/api/middleware"
	"browserctl/internal/auth"
	"browserctl/internal/browserpool"
	"browserctl/internal/config"
	"browserctl/internal/controlplane"
	"browserctl/internal/fabric"
	"browserctl/internal/logging"
	"browserctl/internal/metrics"
	"browserctl/pkg/idgen"
)

// NewRouter builds the echo.Echo serving the control plane's REST
// surface: session CRUD under /sessions, context CRUD under
// /sessions/{id}/contexts, page CRUD under
// /sessions/{id}/contexts/{contextId}/pages, execute under
// /sessions/{id}/execute, and the WebSocket fabric under /ws. collector
// and fab may be nil when metrics/the fabric are disabled.
func NewRouter(cfg *config.Config, svc controlplane.Service, pool *browserpool.Pool, collector *metrics.Collector, fab *fabric.Fabric) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newBodyValidator()

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation())
	e.Use(middleware.SelectiveTimeoutConfig(cfg.Server.ReadTimeout, cfg.BrowserPool.AcquisitionTimeout+cfg.Server.ReadTimeout))

	h := NewHandler(cfg, svc, pool)

	signingKey := cfg.Security.JWTSigningKey
	if signingKey == "" {
		signingKey = idgen.NewRequestID()
		logging.GetGlobalLogger().Warn("no jwt_signing_key configured, generating an ephemeral key for this process; tokens won't survive a restart", nil)
	}
	verifier, err := auth.NewVerifier(signingKey, cfg.Security.JWTIssuer)
	if err != nil {
		logging.GetGlobalLogger().Error("failed to build jwt verifier", map[string]interface{}{"error": err.Error()})
	}

	health := e.Group("/health")
	{
		health.GET("", HealthHandler)
		health.GET("/ready", ReadinessHandler)
		health.GET("/live", LivenessHandler)
	}
	e.GET("/status", h.StatusHandler)

	if collector != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(collector.Handler()))
	}

	if fab != nil {
		e.GET("/ws", fab.Handler)
	}

	sessions := e.Group("/sessions")
	sessions.Use(middleware.Authentication(verifier))
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.DeleteSession)

		sessions.POST("/:id/execute", h.Execute)

		sessions.POST("/:id/contexts", h.CreateContext)
		sessions.GET("/:id/contexts/:contextId", h.GetContext)
		sessions.DELETE("/:id/contexts/:contextId", h.DeleteContext)

		sessions.POST("/:id/contexts/:contextId/pages", h.CreatePage)
		sessions.GET("/:id/contexts/:contextId/pages/:pageId", h.GetPage)
		sessions.DELETE("/:id/contexts/:contextId/pages/:pageId", h.DeletePage)
	}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "browserctl",
			"version": serviceVersion,
			"status":  "running",
		})
	})

	return e
}
