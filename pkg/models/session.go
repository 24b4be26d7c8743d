package models

import "time"

// SessionState is one node of the session lifecycle machine described in
// the control plane's component design.
type SessionState string

const (
	SessionCreating  SessionState = "creating"
	SessionActive    SessionState = "active"
	SessionIdle      SessionState = "idle"
	SessionExpiring  SessionState = "expiring"
	SessionTerminated SessionState = "terminated"
)

// Session is the authenticated principal's bucket of work: it owns a set
// of contexts, which in turn own pages.
type Session struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"userId"`
	Username       string                 `json:"username"`
	Roles          []string               `json:"roles"`
	Scopes         []string               `json:"scopes,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ConnectionIDs  map[string]struct{}    `json:"-"`
	State          SessionState           `json:"state"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	LastAccessedAt time.Time              `json:"lastAccessedAt"`
	ExpiresAt      time.Time              `json:"expiresAt"`
}

// HasRole reports whether the session's principal carries the given role.
func (s *Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is a convenience wrapper around HasRole("admin"), the one role
// the access-control checks across the module treat specially.
func (s *Session) IsAdmin() bool {
	return s.HasRole("admin")
}

// Touch bumps LastAccessedAt without otherwise changing session semantics.
func (s *Session) Touch(now time.Time) {
	s.LastAccessedAt = now
	s.UpdatedAt = now
}

// Refresh extends ExpiresAt strictly forward from now, and touches the
// session in the same step.
func (s *Session) Refresh(now time.Time, ttl time.Duration) {
	s.Touch(now)
	newExpiry := now.Add(ttl)
	if newExpiry.After(s.ExpiresAt) {
		s.ExpiresAt = newExpiry
	}
}

// SessionFilter narrows a Store.List call.
type SessionFilter struct {
	UserID string
	IDs    []string
	Status SessionState
}

// SessionEvent is emitted when a session is created and when it is deleted
// or expires, consumed by the WebSocket fabric's session:events channel and
// by gRPC's StreamSessionEvents. Touch emits no event.
type SessionEvent struct {
	Type      string    `json:"type"` // session_created, session_deleted
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Session   *Session  `json:"session,omitempty"`
}
