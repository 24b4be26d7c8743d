// Package rest implements the REST transport: a thin echo.v4 encoding
// layer over controlplane.Service. It carries no business logic of its
// own — every handler binds a request, calls the service, and maps the
// result (or error) onto the wire.
package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"browserctl/internal/browserpool"
	"browserctl/internal/config"
	"browserctl/internal/controlplane"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/idgen"
	"browserctl/pkg/models"
)

// Handler groups the REST endpoints' dependencies: the application
// service every operation delegates to, plus the pool it reports
// metrics from on the status route.
type Handler struct {
	svc    controlplane.Service
	pool   *browserpool.Pool
	cfg    *config.Config
	logger types.Logger
}

// NewHandler builds the REST handler set.
func NewHandler(cfg *config.Config, svc controlplane.Service, pool *browserpool.Pool) *Handler {
	return &Handler{svc: svc, pool: pool, cfg: cfg, logger: logging.GetGlobalLogger()}
}

func itoa(n int) string { return strconv.Itoa(n) }

// writeError maps err onto the fixed HTTP status table and writes the
// ErrorResponse envelope every handler shares.
func writeError(c echo.Context, requestID string, err error) error {
	apiErr := apierrors.As(err)
	return c.JSON(apierrors.MapHTTPStatus(apiErr.Kind), models.ErrorResponse{
		Error:     string(apiErr.Kind),
		Message:   apiErr.Message,
		Detail:    apiErr.Detail,
		RequestID: requestID,
		Timestamp: time.Now(),
	})
}

func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok && id != "" {
		return id
	}
	return idgen.NewRequestID()
}

// --- sessions -------------------------------------------------------

type createSessionBody struct {
	UserID   string                 `json:"userId" validate:"required"`
	Username string                 `json:"username"`
	Roles    []string               `json:"roles,omitempty"`
	Scopes   []string               `json:"scopes,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	TTLSecs  int64                  `json:"ttlSecs,omitempty"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	reqID := requestID(c)
	var body createSessionBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, reqID, apierrors.ValidationFailed(err.Error()))
	}
	if verr := validateBody(c, &body); verr != nil {
		return writeError(c, reqID, verr)
	}

	ttl := h.cfg.Session.TTLDefault
	if body.TTLSecs > 0 {
		ttl = time.Duration(body.TTLSecs) * time.Second
	}

	sess, err := h.svc.CreateSession(c.Request().Context(), controlplane.CreateSessionRequest{
		UserID:   body.UserID,
		Username: body.Username,
		Roles:    body.Roles,
		Scopes:   body.Scopes,
		Metadata: body.Metadata,
		TTL:      ttl,
	})
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) GetSession(c echo.Context) error {
	reqID := requestID(c)
	sess, err := h.svc.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) ListSessions(c echo.Context) error {
	reqID := requestID(c)
	filter := models.SessionFilter{UserID: c.QueryParam("userId")}
	sessions, err := h.svc.ListSessions(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *Handler) DeleteSession(c echo.Context) error {
	reqID := requestID(c)
	if err := h.svc.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, reqID, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- contexts --------------------------------------------------------

type createContextBody struct {
	Type string `json:"type,omitempty"`
}

func (h *Handler) CreateContext(c echo.Context) error {
	reqID := requestID(c)
	var body createContextBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, reqID, apierrors.ValidationFailed(err.Error()))
	}

	ctxType := models.ContextDefault
	if body.Type != "" {
		ctxType = models.ContextType(body.Type)
	}

	browserCtx, err := h.svc.CreateContext(c.Request().Context(), controlplane.CreateContextRequest{
		SessionID: c.Param("id"),
		Type:      ctxType,
	})
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusCreated, browserCtx)
}

func (h *Handler) GetContext(c echo.Context) error {
	reqID := requestID(c)
	browserCtx, err := h.svc.GetContext(c.Request().Context(), c.Param("id"), c.Param("contextId"))
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusOK, browserCtx)
}

func (h *Handler) DeleteContext(c echo.Context) error {
	reqID := requestID(c)
	if err := h.svc.DeleteContext(c.Request().Context(), c.Param("id"), c.Param("contextId")); err != nil {
		return writeError(c, reqID, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- pages -------------------------------------------------------------

type createPageBody struct {
	Options models.PageOptions `json:"options,omitempty"`
}

func (h *Handler) CreatePage(c echo.Context) error {
	reqID := requestID(c)
	var body createPageBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, reqID, apierrors.ValidationFailed(err.Error()))
	}

	page, err := h.svc.CreatePage(c.Request().Context(), controlplane.CreatePageRequest{
		ContextID: c.Param("contextId"),
		Options:   body.Options,
	})
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusCreated, page)
}

func (h *Handler) GetPage(c echo.Context) error {
	reqID := requestID(c)
	page, err := h.svc.GetPage(c.Request().Context(), c.Param("contextId"), c.Param("pageId"))
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) DeletePage(c echo.Context) error {
	reqID := requestID(c)
	if err := h.svc.DeletePage(c.Request().Context(), c.Param("contextId"), c.Param("pageId")); err != nil {
		return writeError(c, reqID, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- execute -------------------------------------------------------------

type executeBody struct {
	PageID  string          `json:"pageId" validate:"required"`
	Actions []models.Action `json:"actions" validate:"required,min=1"`
}

func (h *Handler) Execute(c echo.Context) error {
	reqID := requestID(c)
	var body executeBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, reqID, apierrors.ValidationFailed(err.Error()))
	}
	if verr := validateBody(c, &body); verr != nil {
		return writeError(c, reqID, verr)
	}

	results, err := h.svc.Execute(c.Request().Context(), controlplane.ExecuteRequest{
		SessionID: c.Param("id"),
		PageID:    body.PageID,
		Actions:   body.Actions,
	})
	if err != nil {
		return writeError(c, reqID, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}
