// Package browserpool manages a shared pool of headless-Chrome instances,
// handing out pages to the rest of the control plane and recycling browser
// instances once their weighted health score crosses a threshold.
package browserpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/sync/errgroup"

	"browserctl/internal/config"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/idgen"
	"browserctl/pkg/models"
)

// codePageCapExceeded flags a CreatePage rejection caused by the
// per-browser page cap, distinct from a real browser/page failure, so
// callers know to retry against a different instance instead of giving up.
const codePageCapExceeded = "PAGE_CAP_EXCEEDED"

// Instance wraps a *rod.Browser with the bookkeeping the pool needs to
// score it for recycling.
type Instance struct {
	ID         string
	Browser    *rod.Browser
	State      models.BrowserState
	CreatedAt  time.Time
	LastUsedAt time.Time
	UseCount   int
	PageCount  int
	ErrorCount int
	inUse      bool
	mu         sync.Mutex
}

// Pool is a bounded set of browser instances, acquired by callers that
// need a page and released back (with a success/failure signal) once done.
type Pool struct {
	cfg      config.BrowserPoolConfig
	launcher *launcher.Launcher
	logger   types.Logger

	mu        sync.Mutex
	instances []*Instance
	launching int // reserved slots, counted toward MaxBrowsers while launch() is in flight
	available chan *Instance
	waiters   int

	createdTotal   int64
	destroyedTotal int64
	recycledTotal  int64
	errorTotal     int64
	acquireTotal   int64
	waitNanos      int64
	waitSamples    int64
	lifetimeNanos  int64
	lifetimeCount  int64

	ctx           context.Context
	cancel        context.CancelFunc
	healthTicker  *time.Ticker
	cleanupTicker *time.Ticker
	group         *errgroup.Group
}

// New builds a Pool from cfg but does not launch any browsers; Warm
// launches MinBrowsers up front, and Acquire launches more lazily up to
// MaxBrowsers.
func New(cfg config.BrowserPoolConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check")

	group, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		cfg:       cfg,
		launcher:  l,
		logger:    logging.GetGlobalLogger(),
		instances: make([]*Instance, 0, cfg.MaxBrowsers),
		available: make(chan *Instance, cfg.MaxBrowsers),
		ctx:       ctx,
		cancel:    cancel,
		group:     group,
	}

	p.healthTicker = time.NewTicker(cfg.HealthCheckInterval)
	p.cleanupTicker = time.NewTicker(cfg.IdleTimeout / 2)

	// Health and idle sweeps run as independent supervised goroutines
	// instead of one loop multiplexing both tickers, so a panic recovered
	// elsewhere in one sweep doesn't also starve the other of its ticks.
	group.Go(func() error { p.healthLoop(gctx); return nil })
	group.Go(func() error { p.idleLoop(gctx); return nil })

	return p
}

// Warm launches MinBrowsers instances up front so the first callers don't
// pay launch latency.
func (p *Pool) Warm() error {
	p.mu.Lock()
	toCreate := p.cfg.MinBrowsers - len(p.instances)
	p.mu.Unlock()

	for i := 0; i < toCreate; i++ {
		inst, err := p.launch()
		if err != nil {
			return err
		}
		p.available <- inst
	}
	return nil
}

// Acquire checks out a browser instance for the caller, launching a new
// one if the pool is under MaxBrowsers or waiting for one to free up
// otherwise. The caller must eventually call Release, whether or not
// CreatePage ever succeeds against the returned instance.
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	start := time.Now()

	select {
	case inst := <-p.available:
		if p.healthy(inst) {
			return p.checkout(inst), nil
		}
		p.destroy(inst)
	default:
	}

	// The instance count and launch decision are read and acted on under
	// the same lock acquisition (via the launching reservation below) so
	// two concurrent callers can't both observe room and both launch.
	p.mu.Lock()
	if len(p.instances)+p.launching < p.cfg.MaxBrowsers {
		p.launching++
		p.mu.Unlock()

		inst, err := p.launch()

		p.mu.Lock()
		p.launching--
		p.mu.Unlock()

		if err != nil {
			return nil, apierrors.Transient("failed to launch browser instance").WithDetail(err.Error())
		}
		return p.checkout(inst), nil
	}
	p.mu.Unlock()

	return p.waitForInstance(ctx, start)
}

// waitForInstance blocks for an available instance up to
// cfg.AcquisitionTimeout, recording the wait in the waiters gauge and the
// wait-time histogram input regardless of outcome.
func (p *Pool) waitForInstance(ctx context.Context, start time.Time) (*Instance, error) {
	p.mu.Lock()
	p.waiters++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.waiters--
		p.mu.Unlock()
	}()

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquisitionTimeout)
	defer cancel()

	select {
	case inst := <-p.available:
		p.recordWait(start)
		if !p.healthy(inst) {
			p.destroy(inst)
			return nil, apierrors.Transient("acquired unhealthy browser instance")
		}
		return p.checkout(inst), nil
	case <-waitCtx.Done():
		p.recordWait(start)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apierrors.Timeout("timed out waiting for a browser instance")
	}
}

func (p *Pool) recordWait(start time.Time) {
	p.mu.Lock()
	p.waitNanos += int64(time.Since(start))
	p.waitSamples++
	p.mu.Unlock()
}

// checkout marks inst in-use and bumps UseCount, the bookkeeping every
// successful Acquire performs regardless of how the instance was obtained.
func (p *Pool) checkout(inst *Instance) *Instance {
	inst.mu.Lock()
	inst.inUse = true
	inst.LastUsedAt = time.Now()
	inst.UseCount++
	inst.mu.Unlock()

	p.mu.Lock()
	p.acquireTotal++
	p.mu.Unlock()

	return inst
}

// CreatePage opens a new page against an already-acquired instance,
// rejecting the request once inst has reached MaxPagesPerBrowser rather
// than letting PageCount grow without bound. sessionID is carried through
// for log correlation only; the pool itself is session-agnostic.
func (p *Pool) CreatePage(ctx context.Context, inst *Instance, sessionID string) (*rod.Page, error) {
	cap := maxi(p.cfg.MaxPagesPerBrowser, 1)

	inst.mu.Lock()
	if inst.PageCount >= cap {
		inst.mu.Unlock()
		return nil, apierrors.Conflict("browser instance has reached its page capacity").WithCode(codePageCapExceeded)
	}
	inst.mu.Unlock()

	pageCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	browser := inst.Browser.Context(pageCtx)

	var page *rod.Page
	var err error
	if p.cfg.StealthMode {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		p.destroy(inst)
		return nil, apierrors.Wrap(apierrors.KindBrowserClosed, "failed to open page", err)
	}

	inst.mu.Lock()
	inst.PageCount++
	pageCount := inst.PageCount
	inst.mu.Unlock()

	p.logger.Debug("page opened", map[string]interface{}{
		"browser_id": inst.ID, "session_id": sessionID, "page_count": pageCount,
	})
	return page, nil
}

// IsPageCapError reports whether err is the capacity rejection CreatePage
// returns, letting a caller retry against a different instance instead of
// surfacing the error to the original request.
func IsPageCapError(err error) bool {
	apiErr := apierrors.As(err)
	return apiErr != nil && apiErr.Code == codePageCapExceeded
}

// Release returns inst to the pool, decrementing its page count and
// recording the outcome for the recycling score. forceRecycle overrides the
// score when a caller already knows the browser/page is unusable (e.g. a
// PAGE_CLOSED/BROWSER_CLOSED error).
func (p *Pool) Release(inst *Instance, forceRecycle bool) {
	inst.mu.Lock()
	inst.inUse = false
	inst.LastUsedAt = time.Now()
	if inst.PageCount > 0 {
		inst.PageCount--
	}
	score := p.recycleScore(inst)
	inst.mu.Unlock()

	if forceRecycle || score >= p.cfg.RecycleThreshold {
		p.mu.Lock()
		p.recycledTotal++
		p.mu.Unlock()
		p.destroy(inst)
		return
	}

	select {
	case p.available <- inst:
	default:
		p.destroy(inst)
	}
}

// RecordError increments inst's consecutive error count, used by the
// action executor when an action against this browser's page fails.
func (p *Pool) RecordError(inst *Instance) {
	inst.mu.Lock()
	inst.ErrorCount++
	inst.mu.Unlock()

	p.mu.Lock()
	p.errorTotal++
	p.mu.Unlock()
}

// recycleScore blends age, usage, health, and resource signals into a
// single 0..100 score, the same scale as cfg.RecycleThreshold; callers
// scoring at or above threshold are retired instead of returned to the
// pool. Caller must hold inst.mu.
func (p *Pool) recycleScore(inst *Instance) float64 {
	w := models.DefaultRecycleWeights
	age := time.Since(inst.CreatedAt)

	recycleAfterUses := p.cfg.RecycleAfterUses
	if recycleAfterUses <= 0 {
		recycleAfterUses = 200
	}

	ageScore := clamp01(float64(age) / float64(6*time.Hour))
	usageScore := clamp01(float64(inst.UseCount) / float64(recycleAfterUses))
	healthScore := clamp01(float64(inst.ErrorCount) / 5.0)
	resourceScore := clamp01(float64(inst.PageCount) / float64(maxi(p.cfg.MaxPagesPerBrowser, 1)))

	return 100 * (w.Time*ageScore + w.Usage*usageScore + w.Health*healthScore + w.Resources*resourceScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *Pool) launch() (*Instance, error) {
	browserCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	url, err := p.launcher.Context(browserCtx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().Context(browserCtx).ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	inst := &Instance{
		ID:         idgen.NewBrowserID(),
		Browser:    browser,
		State:      models.BrowserIdle,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
	}

	p.mu.Lock()
	p.instances = append(p.instances, inst)
	p.createdTotal++
	count := len(p.instances)
	p.mu.Unlock()

	p.logger.Info("browser instance launched", map[string]interface{}{"browser_id": inst.ID, "pool_size": count})
	return inst, nil
}

func (p *Pool) healthy(inst *Instance) bool {
	if inst.Browser == nil {
		return false
	}
	_, err := inst.Browser.Pages()
	return err == nil
}

func (p *Pool) destroy(inst *Instance) {
	if inst.Browser != nil {
		if err := inst.Browser.Close(); err != nil {
			p.logger.Warn("browser close failed", map[string]interface{}{"browser_id": inst.ID, "error": err.Error()})
		}
	}

	p.mu.Lock()
	for i, b := range p.instances {
		if b.ID == inst.ID {
			p.instances = append(p.instances[:i], p.instances[i+1:]...)
			break
		}
	}
	p.destroyedTotal++
	p.lifetimeNanos += int64(time.Since(inst.CreatedAt))
	p.lifetimeCount++
	p.mu.Unlock()

	p.logger.Info("browser instance destroyed", map[string]interface{}{"browser_id": inst.ID})
}

func (p *Pool) healthLoop(ctx context.Context) {
	for {
		select {
		case <-p.healthTicker.C:
			p.sweepUnhealthy()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) idleLoop(ctx context.Context) {
	for {
		select {
		case <-p.cleanupTicker.C:
			p.sweepIdle()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) sweepUnhealthy() {
	p.mu.Lock()
	snapshot := make([]*Instance, len(p.instances))
	copy(snapshot, p.instances)
	p.mu.Unlock()

	for _, inst := range snapshot {
		inst.mu.Lock()
		inUse := inst.inUse
		inst.mu.Unlock()
		if !inUse && !p.healthy(inst) {
			p.destroy(inst)
		}
	}
}

// sweepIdle reaps instances idle past cfg.IdleTimeout, but never below
// cfg.MinBrowsers live instances: the floor is checked against the live
// count as each candidate is reaped, not just once against the snapshot,
// so a burst of simultaneously-idle instances can't all pass the check
// before any of them is actually destroyed.
func (p *Pool) sweepIdle() {
	now := time.Now()
	p.mu.Lock()
	snapshot := make([]*Instance, len(p.instances))
	copy(snapshot, p.instances)
	p.mu.Unlock()

	floor := p.cfg.MinBrowsers
	if floor < 0 {
		floor = 0
	}

	for _, inst := range snapshot {
		p.mu.Lock()
		live := len(p.instances)
		p.mu.Unlock()
		if live <= floor {
			return
		}

		inst.mu.Lock()
		idle := !inst.inUse && now.Sub(inst.LastUsedAt) > p.cfg.IdleTimeout
		inst.mu.Unlock()
		if idle {
			p.destroy(inst)
		}
	}
}

// Metrics reports a snapshot of the pool's current shape.
func (p *Pool) Metrics() models.PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := 0
	for _, inst := range p.instances {
		inst.mu.Lock()
		if inst.inUse {
			active++
		}
		inst.mu.Unlock()
	}

	var utilization float64
	if p.cfg.MaxBrowsers > 0 {
		utilization = float64(active) / float64(p.cfg.MaxBrowsers)
	}

	var avgWaitMillis float64
	if p.waitSamples > 0 {
		avgWaitMillis = (float64(p.waitNanos) / float64(p.waitSamples)) / float64(time.Millisecond)
	}

	var avgLifetime time.Duration
	if p.lifetimeCount > 0 {
		avgLifetime = time.Duration(p.lifetimeNanos / p.lifetimeCount)
	}

	var errorRate float64
	if p.acquireTotal > 0 {
		errorRate = float64(p.errorTotal) / float64(p.acquireTotal)
	}

	return models.PoolMetrics{
		Created:       p.createdTotal,
		Destroyed:     p.destroyedTotal,
		Recycled:      p.recycledTotal,
		CurrentActive: active,
		CurrentIdle:   len(p.instances) - active,
		MaxBrowsers:   p.cfg.MaxBrowsers,
		Utilization:   utilization,
		QueueLength:   p.waiters,
		AvgWaitMillis: avgWaitMillis,
		AvgLifetime:   avgLifetime,
		ErrorRate:     errorRate,
	}
}

// Shutdown stops maintenance loops and closes every browser instance.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.cancel()
	p.healthTicker.Stop()
	p.cleanupTicker.Stop()

	done := make(chan struct{})
	go func() {
		p.mu.Lock()
		snapshot := make([]*Instance, len(p.instances))
		copy(snapshot, p.instances)
		p.mu.Unlock()

		for _, inst := range snapshot {
			p.destroy(inst)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("browser pool shutdown timed out", nil)
	}

	p.launcher.Cleanup()
	_ = p.group.Wait()
	return nil
}
