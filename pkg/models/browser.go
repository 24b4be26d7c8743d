package models

import "time"

// BrowserState tracks a managed browser process's position in the pool's
// instance lifecycle.
type BrowserState string

const (
	BrowserLaunching BrowserState = "launching"
	BrowserIdle      BrowserState = "idle"
	BrowserActive    BrowserState = "active"
	BrowserDraining  BrowserState = "draining"
	BrowserDestroyed BrowserState = "destroyed"
)

// BrowserInstance is one managed browser process owned exclusively by the
// pool. Its identifier survives recycle() so callers holding a stale
// reference observe the same id backed by a fresh process.
type BrowserInstance struct {
	ID          string       `json:"id"`
	State       BrowserState `json:"state"`
	CreatedAt   time.Time    `json:"createdAt"`
	LastUsedAt  time.Time    `json:"lastUsedAt"`
	UseCount    int64        `json:"useCount"`
	PageCount   int          `json:"pageCount"`
	ErrorCount  int64        `json:"errorCount"`
	LastRecycle time.Time    `json:"lastRecycledAt,omitempty"`
}

// RecycleSignals carries the weighted inputs to the pool's recycling-score
// formula for a single instance at evaluation time.
type RecycleSignals struct {
	AgeSeconds        float64
	IdleSeconds       float64
	UseCount          int64
	PageCount         int
	ConsecutiveErrors int
	ErrorRate         float64
	MemoryMB          float64
	CPUPercent        float64
}

// RecycleWeights tunes how heavily each signal family contributes to the
// recycling score; default matches spec.md's {time .25, usage .25, health
// .30, resources .20}.
type RecycleWeights struct {
	Time      float64
	Usage     float64
	Health    float64
	Resources float64
}

// DefaultRecycleWeights are the out-of-the-box weights; callers may
// override via configuration without touching the scoring formula itself.
var DefaultRecycleWeights = RecycleWeights{Time: .25, Usage: .25, Health: .30, Resources: .20}

// PoolMetrics is a point-in-time snapshot of the Browser Pool's health,
// emitted as a structured event for external collection.
type PoolMetrics struct {
	Created         int64         `json:"created"`
	Destroyed       int64         `json:"destroyed"`
	Recycled        int64         `json:"recycled"`
	CurrentActive   int           `json:"currentActive"`
	CurrentIdle     int           `json:"currentIdle"`
	MaxBrowsers     int           `json:"maxBrowsers"`
	Utilization     float64       `json:"utilization"`
	QueueLength     int           `json:"queueLength"`
	AvgWaitMillis   float64       `json:"avgWaitMillis"`
	AvgLifetime     time.Duration `json:"avgLifetime"`
	ErrorRate       float64       `json:"errorRate"`
}
