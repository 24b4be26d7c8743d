package controlplane

import (
	"context"
	"time"

	"browserctl/internal/action"
	"browserctl/internal/auth"
	"browserctl/internal/browserpool"
	"browserctl/internal/contextreg"
	"browserctl/internal/fabric"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/internal/metrics"
	"browserctl/internal/pagemanager"
	"browserctl/internal/session"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

// service is the concrete Service: the single facade REST, gRPC, the
// WebSocket fabric, and the tool adapter all call into. It owns no state of
// its own beyond wiring — every table lives in the component it delegates
// to (sessions, contexts, pages, actions).
type service struct {
	sessions *session.Store
	contexts *contextreg.Registry
	pages    *pagemanager.Manager
	pool     *browserpool.Pool
	executor *action.Executor
	metrics  *metrics.Collector
	fabric   *fabric.Fabric
	logger   types.Logger
}

// NewService wires the application facade from its already-constructed
// components. Called once from cmd/server/root.go's startup sequence.
// collector and fab may be nil, in which case metrics observation and
// event fan-out are skipped respectively.
func NewService(pool *browserpool.Pool, sessions *session.Store, contexts *contextreg.Registry, pages *pagemanager.Manager, executor *action.Executor, collector *metrics.Collector, fab *fabric.Fabric) Service {
	svc := &service{
		sessions: sessions,
		contexts: contexts,
		pages:    pages,
		pool:     pool,
		executor: executor,
		metrics:  collector,
		fabric:   fab,
		logger:   logging.GetGlobalLogger(),
	}

	pages.OnEvent(svc.onPageEvent)
	executor.OnAudit(svc.onAudit)
	if fab != nil {
		go svc.forwardSessionEvents()
	}

	return svc
}

// forwardSessionEvents relays every session lifecycle event into the
// fabric for "session:events" subscribers. It runs for the service's
// whole lifetime, alongside the store's own cleanup loop.
func (s *service) forwardSessionEvents() {
	ch, _ := s.sessions.Subscribe(session.EventFilter{})
	for ev := range ch {
		s.fabric.PublishSessionEvent(ev.SessionID, ev.UserID, ev)
	}
}

// authorize enforces caller.userId == ownerUserID OR caller is admin,
// using the auth.Principal the transport's auth middleware attached to
// ctx. Every operation on an existing resource calls this with the
// resource's owning session's userID before acting on it.
func (s *service) authorize(ctx context.Context, ownerUserID string) error {
	principal, ok := auth.FromContext(ctx)
	if !ok {
		return apierrors.Unauthenticated("no caller identity on context")
	}
	if principal.IsAdmin() || principal.UserID == ownerUserID {
		return nil
	}
	return apierrors.AccessDenied("caller does not own this resource")
}

func (s *service) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	principal, ok := auth.FromContext(ctx)
	if !ok {
		return nil, apierrors.Unauthenticated("no caller identity on context")
	}
	if !principal.IsAdmin() && principal.UserID != req.UserID {
		return nil, apierrors.AccessDenied("cannot create a session for another user")
	}

	sess, err := s.sessions.Create(ctx, req.UserID, req.Username, req.Roles, req.Scopes, req.Metadata, req.TTL)
	if err == nil {
		s.reportSessionCount()
	}
	return sess, err
}

func (s *service) reportSessionCount() {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionsActive.Set(float64(len(s.sessions.List(models.SessionFilter{}))))
}

func (s *service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions restricts the result to the caller's own sessions unless
// the caller is admin, regardless of what filter.UserID asks for.
func (s *service) ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	principal, ok := auth.FromContext(ctx)
	if !ok {
		return nil, apierrors.Unauthenticated("no caller identity on context")
	}
	if !principal.IsAdmin() {
		filter.UserID = principal.UserID
	}
	return s.sessions.List(filter), nil
}

func (s *service) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return err
	}

	pageIDs := s.contexts.DeleteBySession(id)
	s.pages.CloseAll(pageIDs)
	err = s.sessions.Delete(ctx, id)
	if err == nil {
		s.reportSessionCount()
	}
	return err
}

func (s *service) CreateContext(ctx context.Context, req CreateContextRequest) (*models.Context, error) {
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, sess.ID); err != nil {
		return nil, err
	}
	return s.contexts.Create(req.SessionID, req.Type, ""), nil
}

func (s *service) GetContext(ctx context.Context, sessionID, contextID string) (*models.Context, error) {
	if err := s.contexts.CheckOwnership(contextID, sessionID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return nil, err
	}
	return s.contexts.Get(contextID)
}

func (s *service) DeleteContext(ctx context.Context, sessionID, contextID string) error {
	if err := s.contexts.CheckOwnership(contextID, sessionID); err != nil {
		return err
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return err
	}

	pageIDs, err := s.contexts.Delete(contextID)
	if err != nil {
		return err
	}
	s.pages.CloseAll(pageIDs)
	return nil
}

func (s *service) CreatePage(ctx context.Context, req CreatePageRequest) (*models.Page, error) {
	cc, err := s.contexts.Get(req.ContextID)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(cc.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return nil, err
	}

	page, err := s.pages.Create(ctx, cc.ID, cc.SessionID, req.Options)
	if err != nil {
		return nil, err
	}

	if err := s.contexts.AddPage(cc.ID, page.ID); err != nil {
		_ = s.pages.Close(page.ID, true)
		return nil, err
	}
	return page, nil
}

// sessionOwnerOfPage walks pageID's context up to its owning session,
// verifying contextID is really the page's context along the way.
func (s *service) sessionOwnerOfPage(contextID, pageID string) (*models.Page, *models.Session, error) {
	if err := s.pages.CheckOwnership(pageID, contextID); err != nil {
		return nil, nil, err
	}
	page, err := s.pages.Get(pageID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.sessions.Get(page.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return page, sess, nil
}

func (s *service) GetPage(ctx context.Context, contextID, pageID string) (*models.Page, error) {
	page, sess, err := s.sessionOwnerOfPage(contextID, pageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *service) DeletePage(ctx context.Context, contextID, pageID string) error {
	_, sess, err := s.sessionOwnerOfPage(contextID, pageID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return err
	}

	if err := s.pages.Close(pageID, false); err != nil {
		return err
	}
	s.contexts.RemovePage(contextID, pageID)
	return nil
}

func (s *service) Execute(ctx context.Context, req ExecuteRequest) ([]models.ActionResult, error) {
	if len(req.Actions) == 0 {
		return nil, apierrors.ValidationFailed("execute requires at least one action")
	}

	page, err := s.pages.Get(req.PageID)
	if err != nil {
		return nil, err
	}
	if err := s.contexts.CheckOwnership(page.ContextID, req.SessionID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, sess.UserID); err != nil {
		return nil, err
	}

	for i := range req.Actions {
		req.Actions[i].PageID = req.PageID
	}

	return s.executor.ExecuteBatch(ctx, page.SessionID, page.ContextID, req.Actions)
}

// StreamEvents narrows filter to the caller's own userID unless the
// caller is admin, the same rule ListSessions applies.
func (s *service) StreamEvents(ctx context.Context, filter EventFilter) (<-chan models.SessionEvent, func(), error) {
	principal, ok := auth.FromContext(ctx)
	if !ok {
		return nil, nil, apierrors.Unauthenticated("no caller identity on context")
	}
	if !principal.IsAdmin() {
		filter.UserID = principal.UserID
	}
	ch, cancel := s.sessions.Subscribe(session.EventFilter{SessionID: filter.SessionID, UserID: filter.UserID})
	return ch, cancel, nil
}

func (s *service) onPageEvent(ev models.PageEvent) {
	s.logger.Debug("page event", map[string]interface{}{
		"type": ev.Type, "page_id": ev.PageID, "context_id": ev.ContextID, "session_id": ev.SessionID,
	})

	if s.fabric == nil {
		return
	}
	var userID string
	if sess, err := s.sessions.Get(ev.SessionID); err == nil {
		userID = sess.UserID
	}
	s.fabric.PublishBrowserEvent(ev.SessionID, userID, models.BrowserEvent{
		SessionID: ev.SessionID, ContextID: ev.ContextID, PageID: ev.PageID,
		Event: ev.Type, Data: ev.Data, Timestamp: ev.Timestamp,
	})
}

func (s *service) onAudit(event string, a models.Action, extra map[string]interface{}) {
	fields := map[string]interface{}{"action_type": string(a.Type)}
	for k, v := range extra {
		fields[k] = v
	}
	s.logger.Info(event, fields)

	if s.metrics == nil || event != "command_end" {
		return
	}
	success, _ := extra["success"].(bool)
	durationMs, _ := extra["durationMs"].(int64)
	retries, _ := extra["retries"].(int)
	s.metrics.ObserveAction(string(a.Type), success, retries, time.Duration(durationMs)*time.Millisecond)
	s.metrics.ObservePool(s.pool.Metrics())

	if s.fabric != nil {
		s.fabric.PublishMetric(models.PerformanceMetric{
			Metric: "action_dispatch_duration_ms", Value: float64(durationMs),
			PageID: a.PageID, Timestamp: time.Now(),
		})
	}
}
