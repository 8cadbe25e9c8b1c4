// Package metrics exports operation, cascade, sweep and feed counters in
// Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"channelfeed/backend/internal/constants"
)

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	operations     *prometheus.CounterVec
	operationTime  *prometheus.HistogramVec
	cascadeDeleted *prometheus.CounterVec
	sweepRemoved   *prometheus.CounterVec
	feedItems      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	ns := constants.MetricsNamespace
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ns, "", "operations_total"),
			Help: "Core operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(ns, "", "operation_duration_seconds"),
			Help:    "Latency of core operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		cascadeDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ns, "", "cascade_deleted_total"),
			Help: "Records removed by cascading deletes.",
		}, []string{"kind"}),
		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ns, "", "sweep_removed_total"),
			Help: "Dangling relations removed by the reconciliation sweep.",
		}, []string{"kind"}),
		feedItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(ns, "", "feed_items"),
			Help:    "Number of items returned per aggregated feed.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}, []string{"feed"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.operationTime, m.cascadeDeleted, m.sweepRemoved, m.feedItems)
	}
	return m
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationTime.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) CascadeDeleted(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadeDeleted.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) SweepRemoved(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepRemoved.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) FeedItems(feed string, n int) {
	if m == nil {
		return
	}
	m.feedItems.WithLabelValues(feed).Observe(float64(n))
}
