package models

import "time"

// ContextType distinguishes a default browser context from an incognito
// (non-persistent storage) one.
type ContextType string

const (
	ContextDefault   ContextType = "default"
	ContextIncognito ContextType = "incognito"
)

// ContextStatus tracks the lifecycle of a browser context.
type ContextStatus string

const (
	ContextActive  ContextStatus = "active"
	ContextClosing ContextStatus = "closing"
	ContextClosed  ContextStatus = "closed"
)

// Context is an isolation unit inside a session: the unit that owns a set
// of pages and, ultimately, a slot in a browser instance.
type Context struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	BrowserID string        `json:"browserId,omitempty"`
	Type      ContextType   `json:"type"`
	Status    ContextStatus `json:"status"`
	PageIDs   []string      `json:"pageIds"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
