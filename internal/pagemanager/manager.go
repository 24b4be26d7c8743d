// Package pagemanager owns the live mapping from page ID to its *rod.Page
// handle, applying PageOptions at creation time and enforcing that every
// operation against a page comes from the context that created it.
package pagemanager

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"browserctl/internal/browserpool"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/idgen"
	"browserctl/pkg/models"
)

// handle pairs a Page's public metadata with the live *rod.Page and the
// pool instance it was opened against, so Manager can release the instance
// back to the pool on close.
type handle struct {
	mu      sync.Mutex
	meta    *models.Page
	rodPage *rod.Page
	inst    *browserpool.Instance
}

// Manager is the in-memory table of live Page handles.
type Manager struct {
	pool   *browserpool.Pool
	logger types.Logger

	mu      sync.RWMutex
	handles map[string]*handle

	eventsMu sync.Mutex
	eventSub func(models.PageEvent)
}

func NewManager(pool *browserpool.Pool) *Manager {
	return &Manager{
		pool:    pool,
		logger:  logging.GetGlobalLogger(),
		handles: make(map[string]*handle),
	}
}

// OnEvent installs a single sink for page lifecycle events, called by the
// application service to bridge into the session event stream.
func (m *Manager) OnEvent(fn func(models.PageEvent)) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	m.eventSub = fn
}

func (m *Manager) emit(ev models.PageEvent) {
	m.eventsMu.Lock()
	fn := m.eventSub
	m.eventsMu.Unlock()
	if fn != nil {
		ev.Timestamp = time.Now()
		fn(ev)
	}
}

// maxCreateAttempts bounds the retry loop CreatePage can force: a cap
// rejection just means the checked-out instance is already full, not that
// the request itself failed, so Create tries a handful of other instances
// before giving up.
const maxCreateAttempts = 3

// Create acquires a browser instance from the pool, opens a page on it
// (retrying against another instance if the first is at its page cap),
// applies opts, and registers the result under contextID/sessionID.
func (m *Manager) Create(ctx context.Context, contextID, sessionID string, opts models.PageOptions) (*models.Page, error) {
	var inst *browserpool.Instance
	var page *rod.Page

	for attempt := 0; ; attempt++ {
		var err error
		inst, err = m.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		page, err = m.pool.CreatePage(ctx, inst, sessionID)
		if err == nil {
			break
		}
		if !browserpool.IsPageCapError(err) || attempt >= maxCreateAttempts-1 {
			m.pool.Release(inst, false)
			return nil, err
		}
		m.pool.Release(inst, false)
	}

	if err := applyOptions(page, opts); err != nil {
		m.pool.Release(inst, true)
		return nil, apierrors.Wrap(apierrors.KindValidationFailed, "failed to apply page options", err)
	}

	now := time.Now()
	meta := &models.Page{
		ID:             idgen.NewPageID(),
		ContextID:      contextID,
		SessionID:      sessionID,
		BrowserID:      inst.ID,
		State:          models.PageNew,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	h := &handle{meta: meta, rodPage: page, inst: inst}
	m.mu.Lock()
	m.handles[meta.ID] = h
	m.mu.Unlock()

	meta.State = models.PageActive
	m.emit(models.PageEvent{Type: "page:created", PageID: meta.ID, ContextID: contextID, SessionID: sessionID})
	return meta, nil
}

// Get returns a page's current metadata snapshot.
func (m *Manager) Get(id string) (*models.Page, error) {
	h, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	metaCopy := *h.meta
	return &metaCopy, nil
}

// CheckOwnership verifies contextID owns page id.
func (m *Manager) CheckOwnership(id, contextID string) error {
	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.meta.ContextID != contextID {
		return apierrors.AccessDenied("page does not belong to context")
	}
	return nil
}

func (m *Manager) lookup(id string) (*handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[id]
	if !ok {
		return nil, apierrors.NotFound("page", id)
	}
	return h, nil
}

// Navigate drives the page to url, recording it in navigation history.
func (m *Manager) Navigate(id, url string) error {
	h, err := m.lookup(id)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.meta.State = models.PageNavigating
	h.mu.Unlock()

	if err := h.rodPage.Navigate(url); err != nil {
		h.mu.Lock()
		h.meta.State = models.PageErrored
		h.meta.ErrorCount++
		h.mu.Unlock()
		m.pool.RecordError(h.inst)
		return apierrors.Wrap(apierrors.KindTransient, "navigation failed", err)
	}

	h.mu.Lock()
	h.meta.State = models.PageActive
	h.meta.URL = url
	h.meta.LastActivityAt = time.Now()
	h.meta.AppendHistory(url)
	h.mu.Unlock()

	m.emit(models.PageEvent{Type: "page:navigated", PageID: id, Data: url})
	return nil
}

// Touch refreshes a page's activity timestamp, called after any successful
// action against it.
func (m *Manager) Touch(id string) {
	h, err := m.lookup(id)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.meta.LastActivityAt = time.Now()
	h.mu.Unlock()
}

// MarkError records an action failure against page id, used by the action
// executor's cleanup phase.
func (m *Manager) MarkError(id string) {
	h, err := m.lookup(id)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.meta.ErrorCount++
	h.mu.Unlock()
	m.pool.RecordError(h.inst)
}

// Handle returns the live *rod.Page for direct use by the action executor
// (clicks, evals, screenshots, etc.), plus the state it should check before
// dispatch.
func (m *Manager) Handle(id string) (*rod.Page, models.PageState, error) {
	h, err := m.lookup(id)
	if err != nil {
		return nil, "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rodPage, h.meta.State, nil
}

// Close shuts down the page and releases its browser instance back to the
// pool. forceRecycle signals the instance should not be reused (e.g. the
// page crashed the renderer).
func (m *Manager) Close(id string, forceRecycle bool) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
	}
	m.mu.Unlock()
	if !ok {
		return apierrors.NotFound("page", id)
	}

	h.mu.Lock()
	h.meta.State = models.PageClosed
	contextID, sessionID := h.meta.ContextID, h.meta.SessionID
	h.mu.Unlock()

	_ = h.rodPage.Close()
	m.pool.Release(h.inst, forceRecycle)

	m.emit(models.PageEvent{Type: "page:closed", PageID: id, ContextID: contextID, SessionID: sessionID})
	return nil
}

// CloseAll closes every page whose ID is in ids, best-effort.
func (m *Manager) CloseAll(ids []string) {
	for _, id := range ids {
		_ = m.Close(id, false)
	}
}

func applyOptions(page *rod.Page, opts models.PageOptions) error {
	if opts.Viewport != nil {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Viewport.Width,
			Height:            opts.Viewport.Height,
			Mobile:            opts.Viewport.Mobile,
			DeviceScaleFactor: 1,
		}); err != nil {
			return err
		}
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			return err
		}
	}
	if len(opts.ExtraHeaders) > 0 {
		headers := make([]string, 0, len(opts.ExtraHeaders)*2)
		for k, v := range opts.ExtraHeaders {
			headers = append(headers, k, v)
		}
		if _, err := page.SetExtraHeaders(headers); err != nil {
			return err
		}
	}
	return nil
}
