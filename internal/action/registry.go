package action

import (
	"sync"

	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

// Registry is the actionType -> Handler dispatch table. It ships with the
// canonical handler set but third parties may register or unregister
// additional types at runtime.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.ActionType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: defaultHandlers()}
}

// Register installs (or overwrites) the handler for actionType.
func (r *Registry) Register(actionType models.ActionType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = h
}

// Unregister removes actionType's handler, if any.
func (r *Registry) Unregister(actionType models.ActionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, actionType)
}

func (r *Registry) lookup(actionType models.ActionType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	if !ok {
		return nil, apierrors.New(apierrors.KindNotSupported, "unsupported action type").WithCode("UNSUPPORTED_ACTION").WithDetail(string(actionType))
	}
	return h, nil
}
