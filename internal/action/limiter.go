package action

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"browserctl/internal/config"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/pkg/models"
)

// circuitState mirrors a classic three-state circuit breaker.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

type actionLimiter struct {
	limiter  *rate.Limiter
	requests int64
	failures int64
	mu       sync.Mutex
}

type actionCircuit struct {
	maxFailures  int
	resetTimeout time.Duration
	failureCount int
	lastFailTime time.Time
	state        circuitState
	mu           sync.RWMutex
}

// Limiter paces and circuit-breaks dispatch per action type, so a handler
// whose error rate spikes (e.g. every "screenshot" call against a wedged
// browser) is throttled independently of the others. The Limiter does not
// know which browser served a call; OnTripped is how a caller reacts.
type Limiter struct {
	cfg       config.Config
	mu        sync.Mutex
	limiters  map[models.ActionType]*actionLimiter
	circuits  map[models.ActionType]*actionCircuit
	logger    types.Logger
	onTripped func(actionType models.ActionType)
}

func NewLimiter(cfg config.Config) *Limiter {
	return &Limiter{
		cfg:      cfg,
		limiters: make(map[models.ActionType]*actionLimiter),
		circuits: make(map[models.ActionType]*actionCircuit),
		logger:   logging.GetGlobalLogger(),
	}
}

// OnTripped installs a callback fired whenever an action type's circuit
// opens, with the action type whose circuit tripped.
func (l *Limiter) OnTripped(fn func(actionType models.ActionType)) {
	l.onTripped = fn
}

// Allow reports whether actionType may dispatch right now.
func (l *Limiter) Allow(actionType models.ActionType) bool {
	if !l.circuitClosed(actionType) {
		return false
	}
	lim := l.getLimiter(actionType)
	lim.mu.Lock()
	defer lim.mu.Unlock()
	allowed := lim.limiter.Allow()
	if allowed {
		lim.requests++
	}
	return allowed
}

// RecordSuccess closes a half-open circuit for actionType.
func (l *Limiter) RecordSuccess(actionType models.ActionType) {
	c := l.getCircuit(actionType)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == circuitHalfOpen {
		c.state = circuitClosed
		c.failureCount = 0
	}
}

// RecordFailure counts a failure against actionType's circuit, opening it
// once maxFailures is reached.
func (l *Limiter) RecordFailure(actionType models.ActionType) {
	lim := l.getLimiter(actionType)
	lim.mu.Lock()
	lim.failures++
	lim.mu.Unlock()

	c := l.getCircuit(actionType)
	c.mu.Lock()
	c.failureCount++
	c.lastFailTime = time.Now()
	tripped := c.failureCount >= c.maxFailures && c.state == circuitClosed
	if tripped {
		c.state = circuitOpen
	}
	c.mu.Unlock()

	if tripped {
		l.logger.Warn("action circuit breaker opened", map[string]interface{}{"action_type": string(actionType), "failures": c.failureCount})
		if l.onTripped != nil {
			l.onTripped(actionType)
		}
	}
}

func (l *Limiter) getLimiter(actionType models.ActionType) *actionLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[actionType]; ok {
		return lim
	}
	rps := rate.Limit(float64(l.cfg.RateLimit.RequestsPerMinute) / 60.0)
	lim := &actionLimiter{limiter: rate.NewLimiter(rps, l.cfg.RateLimit.Burst)}
	l.limiters[actionType] = lim
	return lim
}

func (l *Limiter) getCircuit(actionType models.ActionType) *actionCircuit {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.circuits[actionType]; ok {
		return c
	}
	c := &actionCircuit{
		maxFailures:  l.cfg.RateLimit.MaxFailures,
		resetTimeout: l.cfg.RateLimit.ResetTimeout,
		state:        circuitClosed,
	}
	l.circuits[actionType] = c
	return c
}

func (l *Limiter) circuitClosed(actionType models.ActionType) bool {
	c := l.getCircuit(actionType)

	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	switch state {
	case circuitClosed:
		return true
	case circuitOpen:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == circuitOpen && time.Since(c.lastFailTime) > c.resetTimeout {
			c.state = circuitHalfOpen
			return true
		}
		return c.state == circuitHalfOpen
	case circuitHalfOpen:
		return true
	default:
		return false
	}
}
