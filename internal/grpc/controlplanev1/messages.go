// Package controlplanev1 is the gRPC wire contract for the control plane.
// Its request/response types are marshaled by internal/grpc/codec's JSON
// codec, so they're plain Go structs rather than protoc-generated message
// types; the method set below is what a controlplane.proto service
// definition would describe.
package controlplanev1

import "browserctl/pkg/models"

type CreateSessionRequest struct {
	UserID   string                 `json:"userId"`
	Username string                 `json:"username"`
	Roles    []string               `json:"roles,omitempty"`
	Scopes   []string               `json:"scopes,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	TTLSecs  int64                  `json:"ttlSecs,omitempty"`
}

type SessionResponse struct {
	Session *models.Session `json:"session"`
}

type GetSessionRequest struct {
	ID string `json:"id"`
}

type ListSessionsRequest struct {
	UserID string `json:"userId,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []*models.Session `json:"sessions"`
}

type DeleteSessionRequest struct {
	ID string `json:"id"`
}

type DeleteSessionResponse struct {
	Deleted bool `json:"deleted"`
}

type CreateContextRequest struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type,omitempty"`
}

type ContextResponse struct {
	Context *models.Context `json:"context"`
}

type DeleteContextRequest struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
}

type CreatePageRequest struct {
	ContextID string             `json:"contextId"`
	Options   models.PageOptions `json:"options,omitempty"`
}

type PageResponse struct {
	Page *models.Page `json:"page"`
}

type DeletePageRequest struct {
	ID        string `json:"id"`
	ContextID string `json:"contextId"`
}

type ExecuteRequest struct {
	SessionID string          `json:"sessionId"`
	PageID    string          `json:"pageId"`
	Actions   []models.Action `json:"actions"`
}

type ExecuteResponse struct {
	Results []models.ActionResult `json:"results"`
}

type StreamSessionEventsRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// SessionEventMessage is the streamed payload for StreamSessionEvents,
// one per models.SessionEvent emitted by the session store.
type SessionEventMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId"`
	Session   *models.Session `json:"session,omitempty"`
}
