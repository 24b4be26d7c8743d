// Package action implements the action validator, dispatch registry,
// rate limiter/circuit breaker, and the six-phase execution pipeline that
// turns a submitted Action into an ActionResult against a live page.
package action

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"browserctl/internal/config"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/internal/pagemanager"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

const historySize = 1000

// ring is a fixed-capacity FIFO of ActionResults, oldest evicted first.
type ring struct {
	mu   sync.Mutex
	buf  []models.ActionResult
	head int
}

func (r *ring) push(res models.ActionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) < historySize {
		r.buf = append(r.buf, res)
		return
	}
	r.buf[r.head] = res
	r.head = (r.head + 1) % historySize
}

func (r *ring) snapshot() []models.ActionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ActionResult, 0, len(r.buf))
	out = append(out, r.buf[r.head:]...)
	out = append(out, r.buf[:r.head]...)
	return out
}

// Executor drives submitted Actions through the validate -> resolve page ->
// dispatch+retry -> record pipeline, against pages owned by a Page Manager.
type Executor struct {
	cfg      config.Config
	pages    *pagemanager.Manager
	registry *Registry
	limiter  *Limiter
	logger   types.Logger

	historyMu sync.Mutex
	history   map[string]*ring

	auditMu sync.Mutex
	onAudit func(event string, a models.Action, extra map[string]interface{})
}

func NewExecutor(cfg config.Config, pages *pagemanager.Manager, registry *Registry, limiter *Limiter) *Executor {
	return &Executor{
		cfg:      cfg,
		pages:    pages,
		registry: registry,
		limiter:  limiter,
		logger:   logging.GetGlobalLogger(),
		history:  make(map[string]*ring),
	}
}

// OnAudit installs a sink for the pipeline's structured audit events
// (command-start / command-end), bridged into the session event stream by
// the application service.
func (e *Executor) OnAudit(fn func(event string, a models.Action, extra map[string]interface{})) {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	e.onAudit = fn
}

func (e *Executor) audit(event string, a models.Action, extra map[string]interface{}) {
	e.auditMu.Lock()
	fn := e.onAudit
	e.auditMu.Unlock()
	if fn != nil {
		fn(event, a, extra)
	}
}

func historyKey(sessionID, contextID string) string {
	return sessionID + "/" + contextID
}

func (e *Executor) ring(sessionID, contextID string) *ring {
	key := historyKey(sessionID, contextID)
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	r, ok := e.history[key]
	if !ok {
		r = &ring{}
		e.history[key] = r
	}
	return r
}

// History returns the recorded ActionResults for a (session, context) pair,
// oldest first.
func (e *Executor) History(sessionID, contextID string) []models.ActionResult {
	return e.ring(sessionID, contextID).snapshot()
}

// Execute runs the full six-phase pipeline for one action.
func (e *Executor) Execute(ctx context.Context, sessionID, contextID string, a models.Action) models.ActionResult {
	start := time.Now()

	// Phase 1: audit start.
	e.audit("command_start", a, map[string]interface{}{
		"sessionId": sessionID, "contextId": contextID, "pageId": a.PageID, "requestId": a.RequestID,
	})

	result, retries := e.run(ctx, sessionID, contextID, a)
	result.Duration = time.Since(start)
	result.Timestamp = time.Now()

	// Phase 6: cleanup and record.
	e.ring(sessionID, contextID).push(result)
	e.audit("command_end", a, map[string]interface{}{
		"sessionId": sessionID, "contextId": contextID, "pageId": a.PageID,
		"requestId": a.RequestID, "success": result.Success, "durationMs": result.Duration.Milliseconds(),
		"retries": retries,
	})

	return result
}

// ExecuteBatch runs Execute for every action in order, stopping to reject
// the whole batch up front if it exceeds ActionMaxBatch.
func (e *Executor) ExecuteBatch(ctx context.Context, sessionID, contextID string, actions []models.Action) ([]models.ActionResult, error) {
	limit := e.cfg.Limits.ActionMaxBatch
	if limit <= 0 {
		limit = models.BatchLimit
	}
	if len(actions) > limit {
		return nil, apierrors.ValidationFailed("batch exceeds maximum size").WithCode("BATCH_TOO_LARGE")
	}

	results := make([]models.ActionResult, 0, len(actions))
	for _, a := range actions {
		results = append(results, e.Execute(ctx, sessionID, contextID, a))
	}
	return results, nil
}

func (e *Executor) run(ctx context.Context, sessionID, contextID string, a models.Action) (models.ActionResult, int) {
	// Phase 2: validate.
	handler, err := e.registry.lookup(a.Type)
	if err != nil {
		return errorResult(a, err), 0
	}
	if _, err := Validate(a); err != nil {
		return errorResult(a, err), 0
	}

	// Phase 3: resolve page.
	page, state, err := e.pages.Handle(a.PageID)
	if err != nil {
		return errorResult(a, apierrors.New(apierrors.KindNotFound, "page not found").WithCode("PAGE_NOT_FOUND").WithDetail(a.PageID)), 0
	}
	if state == models.PageClosed || state == models.PageErrored {
		return errorResult(a, apierrors.New(apierrors.KindPageClosed, "page is not usable").WithDetail(string(state))), 0
	}

	// Phase 4: setup (scoped per-action timeout, reverted on exit).
	runCtx := ctx
	if a.Timeout != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, *a.Timeout)
		defer cancel()
	}

	// Phase 5: dispatch + retry.
	data, retries, dispatchErr := e.dispatchWithRetry(runCtx, a, page, handler)

	e.pages.Touch(a.PageID)
	if dispatchErr != nil {
		e.pages.MarkError(a.PageID)
		return errorResult(a, dispatchErr), retries
	}
	return models.ActionResult{Success: true, ActionType: a.Type, Data: data}, retries
}

// dispatchWithRetry calls handler, retrying on a retryable failure up to
// cfg.Limits.MaxRetries times with exponential backoff. Rate-limited /
// circuit-open attempts count toward the same retry budget. The second
// return value is the number of retries actually spent (0 on a first-try
// success or a non-retryable failure).
func (e *Executor) dispatchWithRetry(ctx context.Context, a models.Action, page *rod.Page, handler Handler) (any, int, error) {
	maxRetries := e.cfg.Limits.MaxRetries

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(e.cfg, attempt)):
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			}
		}

		if !e.limiter.Allow(a.Type) {
			lastErr = apierrors.RateLimited("action type temporarily throttled")
			continue
		}

		data, err := handler(ctx, a, page)
		if err == nil {
			e.limiter.RecordSuccess(a.Type)
			return data, attempt, nil
		}

		lastErr = err
		e.limiter.RecordFailure(a.Type)

		if !isRetryable(err.Error()) {
			return nil, attempt, err
		}
	}
	return nil, maxRetries, lastErr
}

func backoffDelay(cfg config.Config, attempt int) time.Duration {
	base := cfg.Retry.BaseDelay
	backoff := cfg.Retry.Backoff
	maxDelay := cfg.Retry.MaxDelay

	delay := time.Duration(float64(base) * math.Pow(backoff, float64(attempt-1)))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func errorResult(a models.Action, err error) models.ActionResult {
	apiErr := apierrors.As(err)
	return models.ActionResult{
		Success:    false,
		ActionType: a.Type,
		Error: &models.ActionError{
			Kind:    string(apiErr.Kind),
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Detail:  apiErr.Detail,
		},
	}
}
