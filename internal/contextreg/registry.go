// Package contextreg owns the Context Registry: CRUD over browser
// contexts, their ownership checks against the session that created them,
// and cascade destroy down to their pages.
package contextreg

import (
	"sync"
	"time"

	"browserctl/pkg/apierrors"
	"browserctl/pkg/idgen"
	"browserctl/pkg/models"
)

// Registry is the in-memory table of live Contexts, keyed by ID with a
// secondary index by owning session.
type Registry struct {
	mu        sync.RWMutex
	contexts  map[string]*models.Context
	bySession map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		contexts:  make(map[string]*models.Context),
		bySession: make(map[string]map[string]struct{}),
	}
}

// Create registers a new Context owned by sessionID.
func (r *Registry) Create(sessionID string, ctxType models.ContextType, browserID string) *models.Context {
	now := time.Now()
	c := &models.Context{
		ID:        idgen.NewContextID(),
		SessionID: sessionID,
		BrowserID: browserID,
		Type:      ctxType,
		Status:    models.ContextActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[c.ID] = c
	if r.bySession[sessionID] == nil {
		r.bySession[sessionID] = make(map[string]struct{})
	}
	r.bySession[sessionID][c.ID] = struct{}{}
	return c
}

// Get returns the context by id.
func (r *Registry) Get(id string) (*models.Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[id]
	if !ok {
		return nil, apierrors.NotFound("context", id)
	}
	return c, nil
}

// CheckOwnership verifies sessionID owns context id, returning ACCESS_DENIED
// otherwise.
func (r *Registry) CheckOwnership(id, sessionID string) error {
	c, err := r.Get(id)
	if err != nil {
		return err
	}
	if c.SessionID != sessionID {
		return apierrors.AccessDenied("context does not belong to session")
	}
	return nil
}

// AddPage records pageID as belonging to context id.
func (r *Registry) AddPage(id, pageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[id]
	if !ok {
		return apierrors.NotFound("context", id)
	}
	c.PageIDs = append(c.PageIDs, pageID)
	c.UpdatedAt = time.Now()
	return nil
}

// RemovePage drops pageID from context id's page list.
func (r *Registry) RemovePage(id, pageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[id]
	if !ok {
		return
	}
	for i, p := range c.PageIDs {
		if p == pageID {
			c.PageIDs = append(c.PageIDs[:i], c.PageIDs[i+1:]...)
			break
		}
	}
	c.UpdatedAt = time.Now()
}

// ListBySession returns every context owned by sessionID.
func (r *Registry) ListBySession(sessionID string) []*models.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bySession[sessionID]
	out := make([]*models.Context, 0, len(ids))
	for id := range ids {
		if c, ok := r.contexts[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Delete marks a context closed and removes it from the registry. It
// returns the page IDs that were owned by the context so the caller
// (the application service) can cascade-close them.
func (r *Registry) Delete(id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contexts[id]
	if !ok {
		return nil, apierrors.NotFound("context", id)
	}
	c.Status = models.ContextClosed
	delete(r.contexts, id)
	if bySession, ok := r.bySession[c.SessionID]; ok {
		delete(bySession, id)
	}
	return c.PageIDs, nil
}

// DeleteBySession cascade-deletes every context owned by sessionID,
// returning the union of page IDs that belonged to them.
func (r *Registry) DeleteBySession(sessionID string) []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.bySession[sessionID]))
	for id := range r.bySession[sessionID] {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var pageIDs []string
	for _, id := range ids {
		if pages, err := r.Delete(id); err == nil {
			pageIDs = append(pageIDs, pages...)
		}
	}
	return pageIDs
}
