package action

import (
	"context"
	"testing"
	"time"

	"browserctl/internal/browserpool"
	"browserctl/internal/config"
	"browserctl/internal/pagemanager"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

func testExecutorConfig() config.Config {
	var cfg config.Config
	cfg.Limits.ActionMaxBatch = 2
	cfg.Limits.MaxRetries = 0
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.Backoff = 2
	cfg.Retry.MaxDelay = 10 * time.Millisecond
	cfg.RateLimit.RequestsPerMinute = 6000
	cfg.RateLimit.Burst = 1000
	cfg.RateLimit.MaxFailures = 10
	cfg.RateLimit.ResetTimeout = time.Second
	return cfg
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	pool := browserpool.New(config.BrowserPoolConfig{
		MaxBrowsers:         1,
		HealthCheckInterval: time.Hour,
		IdleTimeout:         time.Hour,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	pages := pagemanager.NewManager(pool)
	cfg := testExecutorConfig()
	return NewExecutor(cfg, pages, NewRegistry(), NewLimiter(cfg))
}

func TestExecuteUnknownPageReturnsPageNotFound(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), "sess-1", "ctx-1", models.Action{Type: models.ActionNavigate, URL: "https://example.com", PageID: "missing"})
	if result.Success {
		t.Fatal("Execute(missing page) succeeded, want failure")
	}
	if result.Error == nil || result.Error.Code != "PAGE_NOT_FOUND" {
		t.Fatalf("Error = %+v, want PAGE_NOT_FOUND", result.Error)
	}
}

func TestExecuteValidationFailureNeverTouchesPageManager(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), "sess-1", "ctx-1", models.Action{Type: models.ActionNavigate, PageID: "missing"})
	if result.Success {
		t.Fatal("Execute(navigate without url) succeeded, want failure")
	}
	// A validation failure is reported on its own terms, not remapped to
	// PAGE_NOT_FOUND, because it never got as far as resolving the page.
	if result.Error == nil || result.Error.Code == "PAGE_NOT_FOUND" {
		t.Fatalf("Error = %+v, want a validation failure, not PAGE_NOT_FOUND", result.Error)
	}
}

func TestExecuteUnsupportedActionType(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), "sess-1", "ctx-1", models.Action{Type: "bogus", PageID: "missing"})
	if result.Error == nil || result.Error.Code != "UNSUPPORTED_ACTION" {
		t.Fatalf("Error = %+v, want UNSUPPORTED_ACTION", result.Error)
	}
}

func TestExecuteRecordsHistory(t *testing.T) {
	e := newTestExecutor(t)

	e.Execute(context.Background(), "sess-1", "ctx-1", models.Action{Type: "bogus", PageID: "missing"})
	history := e.History("sess-1", "ctx-1")
	if len(history) != 1 {
		t.Fatalf("History = %v, want 1 entry", history)
	}
	if history[0].Success {
		t.Fatal("recorded result reports success, want failure")
	}
}

func TestExecuteBatchRejectsOversizedBatch(t *testing.T) {
	e := newTestExecutor(t)

	actions := []models.Action{
		{Type: models.ActionScreenshot, PageID: "p"},
		{Type: models.ActionScreenshot, PageID: "p"},
		{Type: models.ActionScreenshot, PageID: "p"},
	}
	_, err := e.ExecuteBatch(context.Background(), "sess-1", "ctx-1", actions)
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Code != "BATCH_TOO_LARGE" {
		t.Fatalf("ExecuteBatch(3 actions, max 2) = %v, want BATCH_TOO_LARGE", err)
	}
}

func TestExecuteBatchRunsEachActionInOrder(t *testing.T) {
	e := newTestExecutor(t)

	actions := []models.Action{
		{Type: "bogus-1", PageID: "missing"},
		{Type: "bogus-2", PageID: "missing"},
	}
	results, err := e.ExecuteBatch(context.Background(), "sess-1", "ctx-1", actions)
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2", results)
	}
	for _, r := range results {
		if r.Success {
			t.Fatalf("result %+v succeeded, want failure for an unsupported type", r)
		}
	}
}

func TestBackoffDelayGrowsThenCapsAtMaxDelay(t *testing.T) {
	cfg := testExecutorConfig()
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.Backoff = 4
	cfg.Retry.MaxDelay = 5 * time.Millisecond

	d1 := backoffDelay(cfg, 1)
	d2 := backoffDelay(cfg, 2)
	if d2 <= d1 {
		t.Fatalf("backoffDelay should grow: attempt1=%v attempt2=%v", d1, d2)
	}
	if d3 := backoffDelay(cfg, 5); d3 != cfg.Retry.MaxDelay {
		t.Fatalf("backoffDelay(5) = %v, want capped at %v", d3, cfg.Retry.MaxDelay)
	}
}

func TestAuditFiresOnCommandStartAndEnd(t *testing.T) {
	e := newTestExecutor(t)

	var events []string
	e.OnAudit(func(event string, a models.Action, extra map[string]interface{}) {
		events = append(events, event)
	})

	e.Execute(context.Background(), "sess-1", "ctx-1", models.Action{Type: "bogus", PageID: "missing"})

	if len(events) != 2 || events[0] != "command_start" || events[1] != "command_end" {
		t.Fatalf("events = %v, want [command_start command_end]", events)
	}
}
