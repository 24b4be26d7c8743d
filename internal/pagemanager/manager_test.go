package pagemanager

import (
	"context"
	"testing"
	"time"

	"browserctl/internal/browserpool"
	"browserctl/internal/config"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	pool := browserpool.New(config.BrowserPoolConfig{
		MaxBrowsers:         1,
		MinBrowsers:         0,
		HealthCheckInterval: time.Hour,
		IdleTimeout:         time.Hour,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return NewManager(pool)
}

func TestGetUnknownPageReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Get("missing")
	if apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("Get(missing) = %v, want NOT_FOUND", err)
	}
}

func TestCheckOwnershipRejectsWrongContext(t *testing.T) {
	m := newTestManager(t)
	h := &handle{meta: &models.Page{ID: "page-1", ContextID: "ctx-1"}}
	m.mu.Lock()
	m.handles["page-1"] = h
	m.mu.Unlock()

	if err := m.CheckOwnership("page-1", "ctx-1"); err != nil {
		t.Fatalf("CheckOwnership(owner): %v", err)
	}
	err := m.CheckOwnership("page-1", "ctx-2")
	if apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindAccessDenied {
		t.Fatalf("CheckOwnership(wrong context) = %v, want ACCESS_DENIED", err)
	}
}

func TestCheckOwnershipUnknownPageReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	err := m.CheckOwnership("missing", "ctx-1")
	if apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("CheckOwnership(missing) = %v, want NOT_FOUND", err)
	}
}

func TestCloseUnknownPageReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	if err := m.Close("missing", false); apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("Close(missing) = %v, want NOT_FOUND", err)
	}
}

func TestTouchAndMarkErrorOnUnknownPageAreNoops(t *testing.T) {
	m := newTestManager(t)
	// Neither should panic when the page doesn't exist.
	m.Touch("missing")
	m.MarkError("missing")
}

func TestOnEventFiresOnEmit(t *testing.T) {
	m := newTestManager(t)

	var got models.PageEvent
	received := make(chan struct{})
	m.OnEvent(func(ev models.PageEvent) {
		got = ev
		close(received)
	})

	m.emit(models.PageEvent{Type: "page:created", PageID: "page-1"})

	select {
	case <-received:
	default:
		t.Fatal("emit did not invoke the registered event sink synchronously")
	}
	if got.Type != "page:created" || got.PageID != "page-1" {
		t.Fatalf("got event %+v, want page:created/page-1", got)
	}
}

func TestCloseAllIsBestEffort(t *testing.T) {
	m := newTestManager(t)
	// Closing a mix of unknown page IDs must not panic or stop partway.
	m.CloseAll([]string{"missing-1", "missing-2"})
}
