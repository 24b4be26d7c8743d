// Package idgen generates the identifiers the control plane hands out for
// sessions, contexts, pages and actions.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// NewSessionID returns a new session identifier.
func NewSessionID() string {
	return "sess_" + uuid.New().String()
}

// NewContextID returns a new browser-context identifier.
func NewContextID() string {
	return "ctx_" + uuid.New().String()
}

// NewPageID returns a new page identifier.
func NewPageID() string {
	return "page_" + uuid.New().String()
}

// NewActionID returns a new action identifier.
func NewActionID() string {
	return "act_" + uuid.New().String()
}

// NewRequestID returns a unique request ID for tracing a single inbound call.
func NewRequestID() string {
	return uuid.New().String()
}

// NewSubscriptionID returns a new event-subscription identifier.
func NewSubscriptionID() string {
	return "sub_" + uuid.New().String()
}

// NewBrowserID returns a new pooled-browser-instance identifier.
func NewBrowserID() string {
	return "browser_" + uuid.New().String()
}

// NewConnectionID returns a new fabric (WebSocket) connection identifier.
func NewConnectionID() string {
	return "conn_" + uuid.New().String()
}

// IsValid reports whether id carries one of the recognized prefixes and a
// parsable UUID suffix.
func IsValid(prefix, id string) bool {
	want := prefix + "_"
	if len(id) <= len(want) || id[:len(want)] != want {
		return false
	}
	_, err := uuid.Parse(id[len(want):])
	return err == nil
}

// Prefixed renders a human-readable label combining a prefix and a short id,
// used in log fields where the full UUID would be noise.
func Prefixed(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}
