// Package controlplane defines the application-facing surface shared by
// the REST, gRPC, and tool-adapter transports. Each transport is a thin
// encoding layer over this interface; none of them carry business logic
// of their own.
package controlplane

import (
	"context"
	"time"

	"browserctl/pkg/models"
)

// CreateSessionRequest carries the claims the authenticator already
// verified; the service trusts them as given.
type CreateSessionRequest struct {
	UserID   string
	Username string
	Roles    []string
	Scopes   []string
	Metadata map[string]interface{}
	TTL      time.Duration
}

// CreateContextRequest configures a new browser context within a session.
type CreateContextRequest struct {
	SessionID string
	Type      models.ContextType
}

// CreatePageRequest configures a new page within a context.
type CreatePageRequest struct {
	ContextID string
	Options   models.PageOptions
}

// ExecuteRequest is a batch of actions submitted against a single page.
// SessionID is the caller's claimed owning session, checked against the
// page's actual context/session chain before any action runs.
type ExecuteRequest struct {
	SessionID string
	PageID    string
	Actions   []models.Action
}

// EventFilter narrows a StreamEvents subscription.
type EventFilter struct {
	SessionID string
	UserID    string
}

// Service is the application's single entry point. Callers identify
// themselves via ctx, which carries the auth.Principal the transport's
// auth middleware/interceptor attached after verifying the caller's
// bearer token. Every operation on an existing resource checks that
// principal against the resource's owning session (or the Principal's
// admin role) before acting, per the ownership rule: caller.userId ==
// resource owner's userId, or caller is admin.
type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	CreateContext(ctx context.Context, req CreateContextRequest) (*models.Context, error)
	// GetContext and DeleteContext take the caller's claimed sessionID
	// alongside contextID, checked with contextreg.CheckOwnership before
	// the session-level authorization check runs.
	GetContext(ctx context.Context, sessionID, contextID string) (*models.Context, error)
	DeleteContext(ctx context.Context, sessionID, contextID string) error

	CreatePage(ctx context.Context, req CreatePageRequest) (*models.Page, error)
	// GetPage and DeletePage take the caller's claimed contextID
	// alongside pageID, checked with pagemanager.CheckOwnership before
	// the session-level authorization check runs.
	GetPage(ctx context.Context, contextID, pageID string) (*models.Page, error)
	DeletePage(ctx context.Context, contextID, pageID string) error

	Execute(ctx context.Context, req ExecuteRequest) ([]models.ActionResult, error)

	// StreamEvents returns a channel of events matching filter and a
	// cancel func the caller must invoke to release the subscription.
	// The channel is closed once cancel is called; ctx only identifies the
	// caller and does not close the channel when it is done.
	StreamEvents(ctx context.Context, filter EventFilter) (<-chan models.SessionEvent, func(), error)
}
