package tooladapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"browserctl/internal/controlplane"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

// RegisterControlPlaneTools wires the same operation set rest.Handler
// exposes over HTTP onto named tools backed by svc, using defaultTTL
// wherever a tool omits a session TTL.
func RegisterControlPlaneTools(r *Registry, svc controlplane.Service, defaultTTL time.Duration) error {
	registrations := []struct {
		name        string
		description string
		schema      map[string]any
		handler     Handler
	}{
		{"create_session", "Create a new browser automation session for a user.", createSessionSchema, createSessionHandler(svc, defaultTTL)},
		{"get_session", "Fetch a session by id.", idSchema("sessionId"), getSessionHandler(svc)},
		{"list_sessions", "List sessions, optionally filtered by userId.", listSessionsSchema, listSessionsHandler(svc)},
		{"delete_session", "Delete a session and everything it owns.", idSchema("sessionId"), deleteSessionHandler(svc)},
		{"create_context", "Create a browser context (default or incognito) within a session.", createContextSchema, createContextHandler(svc)},
		{"get_context", "Fetch a browser context by id.", sessionScopedIDSchema("sessionId", "contextId"), getContextHandler(svc)},
		{"delete_context", "Delete a browser context and its pages.", sessionScopedIDSchema("sessionId", "contextId"), deleteContextHandler(svc)},
		{"create_page", "Open a new page within a browser context.", createPageSchema, createPageHandler(svc)},
		{"get_page", "Fetch a page by id.", sessionScopedIDSchema("contextId", "pageId"), getPageHandler(svc)},
		{"delete_page", "Close a page.", sessionScopedIDSchema("contextId", "pageId"), deletePageHandler(svc)},
		{"execute_actions", "Run a batch of browser actions (navigate, click, type, screenshot, ...) against a page.", executeActionsSchema, executeActionsHandler(svc)},
	}

	for _, reg := range registrations {
		if err := r.Register(reg.name, reg.description, reg.schema, reg.handler); err != nil {
			return err
		}
	}
	return nil
}

func idSchema(field string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{field: map[string]any{"type": "string"}},
		"required":             []string{field},
		"additionalProperties": false,
	}
}

// sessionScopedIDSchema describes a tool argument carrying both the
// resource's own id and the parent id it must be checked against
// (sessionId for a context, contextId for a page).
func sessionScopedIDSchema(parentField, field string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			parentField: map[string]any{"type": "string"},
			field:       map[string]any{"type": "string"},
		},
		"required":             []string{parentField, field},
		"additionalProperties": false,
	}
}

func unmarshalArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return apierrors.ValidationFailed("arguments are required")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return apierrors.ValidationFailed(err.Error())
	}
	return nil
}

// marshalResult renders any JSON-serializable value as a single text
// content block, per the tool-adapter's {content:[{type,text}]} shape.
func marshalResult(v any) (*Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}

// --- sessions ------------------------------------------------------------

var createSessionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"userId":   map[string]any{"type": "string"},
		"username": map[string]any{"type": "string"},
		"roles":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"scopes":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"ttlSecs":  map[string]any{"type": "integer"},
	},
	"required":             []string{"userId"},
	"additionalProperties": false,
}

func createSessionHandler(svc controlplane.Service, defaultTTL time.Duration) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			UserID   string   `json:"userId"`
			Username string   `json:"username"`
			Roles    []string `json:"roles"`
			Scopes   []string `json:"scopes"`
			TTLSecs  int64    `json:"ttlSecs"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		if body.UserID == "" {
			return nil, apierrors.ValidationFailed("userId is required")
		}
		ttl := defaultTTL
		if body.TTLSecs > 0 {
			ttl = time.Duration(body.TTLSecs) * time.Second
		}
		sess, err := svc.CreateSession(ctx, controlplane.CreateSessionRequest{
			UserID: body.UserID, Username: body.Username, Roles: body.Roles, Scopes: body.Scopes, TTL: ttl,
		})
		if err != nil {
			return nil, err
		}
		return marshalResult(sess)
	}
}

func getSessionHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			SessionID string `json:"sessionId"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		sess, err := svc.GetSession(ctx, body.SessionID)
		if err != nil {
			return nil, err
		}
		return marshalResult(sess)
	}
}

var listSessionsSchema = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"userId": map[string]any{"type": "string"}},
	"additionalProperties": false,
}

func listSessionsHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			UserID string `json:"userId"`
		}
		// Listing takes no required fields; absent/empty args means "all".
		if len(args) > 0 {
			if err := unmarshalArgs(args, &body); err != nil {
				return nil, err
			}
		}
		sessions, err := svc.ListSessions(ctx, models.SessionFilter{UserID: body.UserID})
		if err != nil {
			return nil, err
		}
		return marshalResult(map[string]any{"sessions": sessions})
	}
}

func deleteSessionHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			SessionID string `json:"sessionId"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		if err := svc.DeleteSession(ctx, body.SessionID); err != nil {
			return nil, err
		}
		return textResult(fmt.Sprintf("session %s deleted", body.SessionID)), nil
	}
}

// --- contexts --------------------------------------------------------------

var createContextSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sessionId": map[string]any{"type": "string"},
		"type":      map[string]any{"type": "string", "enum": []string{"default", "incognito"}},
	},
	"required":             []string{"sessionId"},
	"additionalProperties": false,
}

func createContextHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			SessionID string `json:"sessionId"`
			Type      string `json:"type"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		ctxType := models.ContextDefault
		if body.Type != "" {
			ctxType = models.ContextType(body.Type)
		}
		browserCtx, err := svc.CreateContext(ctx, controlplane.CreateContextRequest{SessionID: body.SessionID, Type: ctxType})
		if err != nil {
			return nil, err
		}
		return marshalResult(browserCtx)
	}
}

func getContextHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			SessionID string `json:"sessionId"`
			ContextID string `json:"contextId"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		browserCtx, err := svc.GetContext(ctx, body.SessionID, body.ContextID)
		if err != nil {
			return nil, err
		}
		return marshalResult(browserCtx)
	}
}

func deleteContextHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			SessionID string `json:"sessionId"`
			ContextID string `json:"contextId"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		if err := svc.DeleteContext(ctx, body.SessionID, body.ContextID); err != nil {
			return nil, err
		}
		return textResult(fmt.Sprintf("context %s deleted", body.ContextID)), nil
	}
}

// --- pages -------------------------------------------------------------------

var createPageSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"contextId": map[string]any{"type": "string"},
		"options": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"userAgent":         map[string]any{"type": "string"},
				"javaScriptEnabled": map[string]any{"type": "boolean"},
				"bypassCSP":         map[string]any{"type": "boolean"},
			},
		},
	},
	"required":             []string{"contextId"},
	"additionalProperties": false,
}

func createPageHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			ContextID string             `json:"contextId"`
			Options   models.PageOptions `json:"options"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		page, err := svc.CreatePage(ctx, controlplane.CreatePageRequest{ContextID: body.ContextID, Options: body.Options})
		if err != nil {
			return nil, err
		}
		return marshalResult(page)
	}
}

func getPageHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			ContextID string `json:"contextId"`
			PageID    string `json:"pageId"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		page, err := svc.GetPage(ctx, body.ContextID, body.PageID)
		if err != nil {
			return nil, err
		}
		return marshalResult(page)
	}
}

func deletePageHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			ContextID string `json:"contextId"`
			PageID    string `json:"pageId"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		if err := svc.DeletePage(ctx, body.ContextID, body.PageID); err != nil {
			return nil, err
		}
		return textResult(fmt.Sprintf("page %s closed", body.PageID)), nil
	}
}

// --- execute -------------------------------------------------------------------

var executeActionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sessionId": map[string]any{"type": "string"},
		"pageId":    map[string]any{"type": "string"},
		"actions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":     map[string]any{"type": "string"},
					"url":      map[string]any{"type": "string"},
					"selector": map[string]any{"type": "string"},
					"text":     map[string]any{"type": "string"},
				},
				"required": []string{"type"},
			},
		},
	},
	"required":             []string{"sessionId", "pageId", "actions"},
	"additionalProperties": false,
}

func executeActionsHandler(svc controlplane.Service) Handler {
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		var body struct {
			SessionID string          `json:"sessionId"`
			PageID    string          `json:"pageId"`
			Actions   []models.Action `json:"actions"`
		}
		if err := unmarshalArgs(args, &body); err != nil {
			return nil, err
		}
		if len(body.Actions) == 0 {
			return nil, apierrors.ValidationFailed("actions must not be empty")
		}
		results, err := svc.Execute(ctx, controlplane.ExecuteRequest{SessionID: body.SessionID, PageID: body.PageID, Actions: body.Actions})
		if err != nil {
			return nil, err
		}
		return marshalResult(map[string]any{"results": results})
	}
}
