package controlplane

import (
	"context"
	"testing"
	"time"

	"browserctl/internal/action"
	"browserctl/internal/auth"
	"browserctl/internal/browserpool"
	"browserctl/internal/config"
	"browserctl/internal/contextreg"
	"browserctl/internal/pagemanager"
	"browserctl/internal/session"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	pool := browserpool.New(config.BrowserPoolConfig{
		MaxBrowsers:         1,
		HealthCheckInterval: time.Hour,
		IdleTimeout:         time.Hour,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	sessions := session.NewStore(config.SessionConfig{TTLDefault: time.Hour, CleanupInterval: time.Hour}, nil)
	t.Cleanup(sessions.Close)

	contexts := contextreg.NewRegistry()
	pages := pagemanager.NewManager(pool)

	var actionCfg config.Config
	actionCfg.Limits.ActionMaxBatch = 10
	actionCfg.RateLimit.RequestsPerMinute = 6000
	actionCfg.RateLimit.Burst = 1000
	actionCfg.RateLimit.MaxFailures = 10
	actionCfg.RateLimit.ResetTimeout = time.Second
	executor := action.NewExecutor(actionCfg, pages, action.NewRegistry(), action.NewLimiter(actionCfg))

	svc := NewService(pool, sessions, contexts, pages, executor, nil, nil)
	return svc.(*service)
}

func ctxAs(userID string, admin bool) context.Context {
	roles := []string{}
	if admin {
		roles = append(roles, auth.AdminRole)
	}
	return auth.WithPrincipal(context.Background(), &auth.Principal{UserID: userID, Roles: roles})
}

func TestCreateSessionRejectsSpoofedUserID(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-2"})
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Kind != apierrors.KindAccessDenied {
		t.Fatalf("CreateSession(spoofed user) = %v, want ACCESS_DENIED", err)
	}
}

func TestCreateSessionAllowsAdminOnBehalfOfOthers(t *testing.T) {
	s := newTestService(t)
	sess, err := s.CreateSession(ctxAs("admin-1", true), CreateSessionRequest{UserID: "user-2"})
	if err != nil {
		t.Fatalf("CreateSession(admin on behalf of another user): %v", err)
	}
	if sess.UserID != "user-2" {
		t.Fatalf("UserID = %q, want user-2", sess.UserID)
	}
}

func TestCreateSessionRequiresCallerIdentity(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateSession(context.Background(), CreateSessionRequest{UserID: "user-1"})
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Kind != apierrors.KindUnauthenticated {
		t.Fatalf("CreateSession(no principal) = %v, want UNAUTHENTICATED", err)
	}
}

func TestGetSessionRejectsOtherUsersSession(t *testing.T) {
	s := newTestService(t)
	sess, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := s.GetSession(ctxAs("user-1", false), sess.ID); err != nil {
		t.Fatalf("GetSession(owner): %v", err)
	}
	_, err = s.GetSession(ctxAs("user-2", false), sess.ID)
	if apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindAccessDenied {
		t.Fatalf("GetSession(non-owner) = %v, want ACCESS_DENIED", err)
	}
	if _, err := s.GetSession(ctxAs("admin-1", true), sess.ID); err != nil {
		t.Fatalf("GetSession(admin): %v", err)
	}
}

func TestListSessionsNarrowsToCallerUnlessAdmin(t *testing.T) {
	s := newTestService(t)
	if _, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-1"}); err != nil {
		t.Fatalf("CreateSession user-1: %v", err)
	}
	if _, err := s.CreateSession(ctxAs("user-2", false), CreateSessionRequest{UserID: "user-2"}); err != nil {
		t.Fatalf("CreateSession user-2: %v", err)
	}

	got, err := s.ListSessions(ctxAs("user-1", false), models.SessionFilter{UserID: "user-2"})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	for _, sess := range got {
		if sess.UserID != "user-1" {
			t.Fatalf("ListSessions(non-admin requesting user-2) leaked %+v", sess)
		}
	}

	all, err := s.ListSessions(ctxAs("admin-1", true), models.SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessions(admin): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListSessions(admin, unfiltered) = %d, want 2", len(all))
	}
}

func TestDeleteSessionEnforcesOwnership(t *testing.T) {
	s := newTestService(t)
	sess, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := s.DeleteSession(ctxAs("user-2", false), sess.ID); apierrors.As(err).Kind != apierrors.KindAccessDenied {
		t.Fatalf("DeleteSession(non-owner) = %v, want ACCESS_DENIED", err)
	}
	if err := s.DeleteSession(ctxAs("user-1", false), sess.ID); err != nil {
		t.Fatalf("DeleteSession(owner): %v", err)
	}
}

func TestContextLifecycleEnforcesOwnershipChain(t *testing.T) {
	s := newTestService(t)
	sess, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	cc, err := s.CreateContext(ctxAs("user-1", false), CreateContextRequest{SessionID: sess.ID, Type: models.ContextDefault})
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	// Claiming the wrong session for a real context must fail ownership,
	// not fall through to the session-level authorize check.
	if _, err := s.GetContext(ctxAs("user-1", false), "wrong-session", cc.ID); apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindAccessDenied {
		t.Fatalf("GetContext(wrong claimed session) = %v, want ACCESS_DENIED", err)
	}

	if _, err := s.GetContext(ctxAs("user-2", false), sess.ID, cc.ID); apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindAccessDenied {
		t.Fatalf("GetContext(non-owning caller) = %v, want ACCESS_DENIED", err)
	}

	got, err := s.GetContext(ctxAs("user-1", false), sess.ID, cc.ID)
	if err != nil {
		t.Fatalf("GetContext(owner): %v", err)
	}
	if got.ID != cc.ID {
		t.Fatalf("GetContext returned %+v, want id %s", got, cc.ID)
	}

	if err := s.DeleteContext(ctxAs("user-2", false), sess.ID, cc.ID); apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindAccessDenied {
		t.Fatalf("DeleteContext(non-owning caller) = %v, want ACCESS_DENIED", err)
	}
	if err := s.DeleteContext(ctxAs("user-1", false), sess.ID, cc.ID); err != nil {
		t.Fatalf("DeleteContext(owner): %v", err)
	}
}

func TestExecuteRejectsEmptyBatchBeforeTouchingThePage(t *testing.T) {
	s := newTestService(t)
	sess, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// An empty action list is rejected up front, before the page lookup a
	// real call would need a live *rod.Page for.
	_, err = s.Execute(ctxAs("user-1", false), ExecuteRequest{SessionID: sess.ID, PageID: "does-not-exist"})
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Kind != apierrors.KindValidationFailed {
		t.Fatalf("Execute(no actions) = %v, want VALIDATION_FAILED", err)
	}
}

func TestExecuteUnknownPageReturnsNotFound(t *testing.T) {
	s := newTestService(t)
	sess, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = s.Execute(ctxAs("user-1", false), ExecuteRequest{
		SessionID: sess.ID,
		PageID:    "does-not-exist",
		Actions:   []models.Action{{Type: models.ActionScreenshot}},
	})
	if apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("Execute(unknown page) = %v, want NOT_FOUND", err)
	}
}

func TestGetPageAndDeletePageUnknownReturnNotFound(t *testing.T) {
	s := newTestService(t)
	if _, err := s.GetPage(ctxAs("user-1", false), "ctx-1", "does-not-exist"); apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("GetPage(unknown) = %v, want NOT_FOUND", err)
	}
	if err := s.DeletePage(ctxAs("user-1", false), "ctx-1", "does-not-exist"); apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("DeletePage(unknown) = %v, want NOT_FOUND", err)
	}
}

func TestStreamEventsNarrowsFilterForNonAdmin(t *testing.T) {
	s := newTestService(t)
	ch, cancel, err := s.StreamEvents(ctxAs("user-1", false), EventFilter{UserID: "someone-else"})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	defer cancel()

	if _, err := s.CreateSession(ctxAs("user-1", false), CreateSessionRequest{UserID: "user-1"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.UserID != "user-1" {
			t.Fatalf("received event for %q, want user-1 (filter.UserID should have been overridden)", ev.UserID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
	}
}

func TestStreamEventsRequiresCallerIdentity(t *testing.T) {
	s := newTestService(t)
	_, _, err := s.StreamEvents(context.Background(), EventFilter{})
	if apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindUnauthenticated {
		t.Fatalf("StreamEvents(no principal) = %v, want UNAUTHENTICATED", err)
	}
}
