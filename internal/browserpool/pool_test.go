package browserpool

import (
	"context"
	"testing"
	"time"

	"browserctl/internal/config"
	"browserctl/pkg/apierrors"
)

func testConfig() config.BrowserPoolConfig {
	return config.BrowserPoolConfig{
		MaxBrowsers:         2,
		MinBrowsers:         1,
		MaxPagesPerBrowser:  2,
		IdleTimeout:         time.Hour,
		AcquisitionTimeout:  50 * time.Millisecond,
		HealthCheckInterval: time.Hour,
		RecycleAfterUses:    200,
		RecycleThreshold:    80,
	}
}

func newTestPool(t *testing.T, cfg config.BrowserPoolConfig) *Pool {
	t.Helper()
	p := New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func TestClamp01(t *testing.T) {
	cases := []struct {
		in, want float64
	}{{-1, 0}, {0, 0}, {0.5, 0.5}, {1, 1}, {2, 1}}
	for _, c := range cases {
		if got := clamp01(c.in); got != c.want {
			t.Errorf("clamp01(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMaxi(t *testing.T) {
	if maxi(3, 1) != 3 {
		t.Fatalf("maxi(3,1) != 3")
	}
	if maxi(0, 1) != 1 {
		t.Fatalf("maxi(0,1) != 1, zero MaxPagesPerBrowser must floor to 1")
	}
}

func TestIsPageCapError(t *testing.T) {
	capErr := apierrors.Conflict("full").WithCode(codePageCapExceeded)
	if !IsPageCapError(capErr) {
		t.Fatalf("IsPageCapError(cap error) = false, want true")
	}
	if IsPageCapError(apierrors.Conflict("other")) {
		t.Fatalf("IsPageCapError(unrelated conflict) = true, want false")
	}
	if IsPageCapError(nil) {
		t.Fatalf("IsPageCapError(nil) = true, want false")
	}
}

func TestRecycleScoreWeighsUsageAndErrors(t *testing.T) {
	cfg := testConfig()
	p := newTestPool(t, cfg)

	fresh := &Instance{CreatedAt: time.Now()}
	freshScore := p.recycleScore(fresh)
	// The age term grows from the first nanosecond, so a fresh instance
	// scores just above zero rather than exactly zero.
	if freshScore > 0.001 {
		t.Fatalf("fresh instance score = %v, want ~0", freshScore)
	}

	heavilyUsed := &Instance{CreatedAt: time.Now(), UseCount: int(cfg.RecycleAfterUses) * 2}
	usedScore := p.recycleScore(heavilyUsed)
	if usedScore <= freshScore {
		t.Fatalf("usedScore %v should exceed freshScore %v", usedScore, freshScore)
	}

	errored := &Instance{CreatedAt: time.Now(), ErrorCount: 10}
	erroredScore := p.recycleScore(errored)
	if erroredScore <= freshScore {
		t.Fatalf("erroredScore %v should exceed freshScore %v", erroredScore, freshScore)
	}
}

func TestCreatePageRejectsAtCap(t *testing.T) {
	cfg := testConfig()
	p := newTestPool(t, cfg)

	inst := &Instance{PageCount: cfg.MaxPagesPerBrowser}
	_, err := p.CreatePage(context.Background(), inst, "sess-1")
	if !IsPageCapError(err) {
		t.Fatalf("CreatePage at cap = %v, want a page-cap error", err)
	}
}

func TestSweepIdleRespectsMinBrowsersFloor(t *testing.T) {
	cfg := testConfig()
	cfg.MinBrowsers = 2
	cfg.IdleTimeout = time.Millisecond
	p := newTestPool(t, cfg)

	old := time.Now().Add(-time.Hour)
	a := &Instance{ID: "a", CreatedAt: old, LastUsedAt: old}
	b := &Instance{ID: "b", CreatedAt: old, LastUsedAt: old}
	p.mu.Lock()
	p.instances = append(p.instances, a, b)
	p.mu.Unlock()

	p.sweepIdle()

	p.mu.Lock()
	live := len(p.instances)
	p.mu.Unlock()
	if live != cfg.MinBrowsers {
		t.Fatalf("live instances after sweepIdle = %d, want floor %d", live, cfg.MinBrowsers)
	}
}

func TestSweepUnhealthyDestroysDeadInstances(t *testing.T) {
	cfg := testConfig()
	p := newTestPool(t, cfg)

	dead := &Instance{ID: "dead"} // nil Browser => unhealthy
	p.mu.Lock()
	p.instances = append(p.instances, dead)
	p.mu.Unlock()

	p.sweepUnhealthy()

	p.mu.Lock()
	n := len(p.instances)
	p.mu.Unlock()
	if n != 0 {
		t.Fatalf("instances after sweepUnhealthy = %d, want 0", n)
	}
}

func TestAcquireTimesOutAndClearsQueueLength(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBrowsers = 0 // force straight into the wait path, no real launch
	p := newTestPool(t, cfg)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := p.Acquire(ctx)
		if apierrors.As(err) == nil || apierrors.As(err).Kind != apierrors.KindTimeout {
			t.Errorf("Acquire() err = %v, want TIMEOUT", err)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	if got := p.Metrics().QueueLength; got != 1 {
		t.Errorf("QueueLength while waiting = %d, want 1", got)
	}

	<-done
	if got := p.Metrics().QueueLength; got != 0 {
		t.Errorf("QueueLength after Acquire returns = %d, want 0", got)
	}
}

func TestMetricsReflectsCumulativeCounters(t *testing.T) {
	cfg := testConfig()
	p := newTestPool(t, cfg)

	p.mu.Lock()
	p.createdTotal = 5
	p.destroyedTotal = 2
	p.recycledTotal = 1
	p.errorTotal = 1
	p.acquireTotal = 4
	p.instances = append(p.instances, &Instance{ID: "a", inUse: true}, &Instance{ID: "b"})
	p.mu.Unlock()

	m := p.Metrics()
	if m.Created != 5 || m.Destroyed != 2 || m.Recycled != 1 {
		t.Fatalf("cumulative counters not reflected: %+v", m)
	}
	if m.CurrentActive != 1 || m.CurrentIdle != 1 {
		t.Fatalf("active/idle split wrong: %+v", m)
	}
	if m.ErrorRate != 0.25 {
		t.Fatalf("ErrorRate = %v, want 0.25", m.ErrorRate)
	}
}

func TestReleaseForceRecycleDestroysInstead(t *testing.T) {
	cfg := testConfig()
	p := newTestPool(t, cfg)

	inst := &Instance{ID: "x", CreatedAt: time.Now()}
	p.mu.Lock()
	p.instances = append(p.instances, inst)
	p.mu.Unlock()

	p.Release(inst, true)

	select {
	case <-p.available:
		t.Fatalf("force-recycled instance should not be returned to the available channel")
	default:
	}
	p.mu.Lock()
	n := len(p.instances)
	p.mu.Unlock()
	if n != 0 {
		t.Fatalf("instances after forced Release = %d, want destroyed (0)", n)
	}
}

func TestReleaseReturnsHealthyInstanceToAvailable(t *testing.T) {
	cfg := testConfig()
	p := newTestPool(t, cfg)

	inst := &Instance{ID: "y", CreatedAt: time.Now(), PageCount: 1}
	p.Release(inst, false)

	select {
	case got := <-p.available:
		if got.ID != "y" {
			t.Fatalf("got instance %q, want y", got.ID)
		}
	default:
		t.Fatalf("instance below recycle threshold should be returned to available")
	}
}
