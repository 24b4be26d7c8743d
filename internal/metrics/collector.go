// Package metrics exposes the control plane's Prometheus metrics: pool
// lifecycle counters, action dispatch counters/histograms, and fabric
// connection gauges.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"browserctl/pkg/models"
)

const namespace = "browserctl"

// Collector holds every metric the control plane emits.
type Collector struct {
	PoolCreated   prometheus.Counter
	PoolDestroyed prometheus.Counter
	PoolRecycled  prometheus.Counter
	PoolActive    prometheus.Gauge
	PoolIdle      prometheus.Gauge
	PoolQueueWait prometheus.Histogram
	PoolErrorRate prometheus.Gauge

	ActionTotal    *prometheus.CounterVec
	ActionFailures *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	ActionRetries  *prometheus.CounterVec

	FabricConnections prometheus.Gauge
	FabricSubscribers prometheus.Gauge
	FabricDropped     prometheus.Counter

	SessionsActive prometheus.Gauge

	poolMu                                    sync.Mutex
	lastCreated, lastDestroyed, lastRecycled int64
}

// New builds and registers every metric against the default registry.
func New() *Collector {
	c := &Collector{
		PoolCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "browser_pool_created_total", Help: "Total browsers launched.",
		}),
		PoolDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "browser_pool_destroyed_total", Help: "Total browsers torn down.",
		}),
		PoolRecycled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "browser_pool_recycled_total", Help: "Total browsers recycled.",
		}),
		PoolActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "browser_pool_active", Help: "Browsers currently checked out.",
		}),
		PoolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "browser_pool_idle", Help: "Browsers currently idle in the pool.",
		}),
		PoolQueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "browser_pool_queue_wait_seconds", Help: "Time spent waiting to acquire a browser.",
			Buckets: prometheus.DefBuckets,
		}),
		PoolErrorRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "browser_pool_error_rate", Help: "Rolling error rate across pool instances.",
		}),

		ActionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "action_dispatch_total", Help: "Total actions dispatched, by type.",
		}, []string{"action_type"}),
		ActionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "action_dispatch_failures_total", Help: "Total failed action dispatches, by type.",
		}, []string{"action_type"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "action_dispatch_duration_seconds", Help: "Action dispatch latency, by type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action_type"}),
		ActionRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "action_dispatch_retries_total", Help: "Total retry attempts, by type.",
		}, []string{"action_type"}),

		FabricConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fabric_connections", Help: "Currently open WebSocket connections.",
		}),
		FabricSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fabric_subscriptions", Help: "Currently active channel subscriptions.",
		}),
		FabricDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fabric_messages_dropped_total", Help: "Messages dropped by back-pressure.",
		}),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active", Help: "Currently active sessions.",
		}),
	}

	prometheus.MustRegister(
		c.PoolCreated, c.PoolDestroyed, c.PoolRecycled, c.PoolActive, c.PoolIdle, c.PoolQueueWait, c.PoolErrorRate,
		c.ActionTotal, c.ActionFailures, c.ActionDuration, c.ActionRetries,
		c.FabricConnections, c.FabricSubscribers, c.FabricDropped,
		c.SessionsActive,
	)
	return c
}

// Handler exposes the metrics in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePool folds a PoolMetrics snapshot into the pool gauges and
// advances the lifecycle counters by the delta since the last snapshot:
// Created/Destroyed/Recycled on models.PoolMetrics are cumulative totals
// kept by the pool itself, not per-event signals, so the counters here
// are derived rather than incremented at the call site.
func (c *Collector) ObservePool(m models.PoolMetrics) {
	c.PoolActive.Set(float64(m.CurrentActive))
	c.PoolIdle.Set(float64(m.CurrentIdle))
	c.PoolErrorRate.Set(m.ErrorRate)
	c.PoolQueueWait.Observe(m.AvgWaitMillis / 1000)

	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	if d := m.Created - c.lastCreated; d > 0 {
		c.PoolCreated.Add(float64(d))
		c.lastCreated = m.Created
	}
	if d := m.Destroyed - c.lastDestroyed; d > 0 {
		c.PoolDestroyed.Add(float64(d))
		c.lastDestroyed = m.Destroyed
	}
	if d := m.Recycled - c.lastRecycled; d > 0 {
		c.PoolRecycled.Add(float64(d))
		c.lastRecycled = m.Recycled
	}
}

// ObserveAction records one dispatched action's outcome and latency.
func (c *Collector) ObserveAction(actionType string, success bool, retries int, duration time.Duration) {
	c.ActionTotal.WithLabelValues(actionType).Inc()
	if !success {
		c.ActionFailures.WithLabelValues(actionType).Inc()
	}
	if retries > 0 {
		c.ActionRetries.WithLabelValues(actionType).Add(float64(retries))
	}
	c.ActionDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}
